package ingestion

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"amm-strategy-lab/internal/ethereum"
)

// abiWord renders a value as one 32-byte two's-complement hex word.
func abiWord(v *big.Int) string {
	w := new(big.Int).Set(v)
	if w.Sign() < 0 {
		max := new(big.Int).Lsh(big.NewInt(1), 256)
		w.Add(w, max)
	}
	return fmt.Sprintf("%064x", w)
}

func topicOf(v *big.Int) string {
	return "0x" + abiWord(v)
}

func addressTopic(addr string) string {
	hex := strings.TrimPrefix(addr, "0x")
	return "0x" + strings.Repeat("0", 64-len(hex)) + hex
}

const ownerAddr = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"

func swapLog() ethereum.Log {
	data := "0x" +
		abiWord(big.NewInt(-1_000_000)) + // amount0
		abiWord(big.NewInt(4_000_000)) + // amount1
		abiWord(new(big.Int).Lsh(big.NewInt(2), 96)) + // sqrtPriceX96 = 2 * 2^96
		abiWord(big.NewInt(5_000_000)) + // liquidity
		abiWord(big.NewInt(13863)) // tick
	return ethereum.Log{
		Address: testPoolAddr,
		Topics: []string{
			ethereum.TopicSwap,
			addressTopic(ownerAddr),
			addressTopic("0x0000000000000000000000000000000000000002"),
		},
		Data:        data,
		BlockNumber: 103,
		LogIndex:    7,
		TxHash:      "0xswap",
	}
}

func mintLog() ethereum.Log {
	data := "0x" +
		abiWord(big.NewInt(0)) + // sender word (unused)
		abiWord(big.NewInt(2_000_000)) + // amount
		abiWord(big.NewInt(1_500_000)) + // amount0
		abiWord(big.NewInt(500_000)) // amount1
	return ethereum.Log{
		Address: testPoolAddr,
		Topics: []string{
			ethereum.TopicMint,
			addressTopic(ownerAddr),
			topicOf(big.NewInt(-60)),
			topicOf(big.NewInt(60)),
		},
		Data:        data,
		BlockNumber: 100,
		LogIndex:    2,
		TxHash:      "0xmint",
	}
}

func burnLog() ethereum.Log {
	data := "0x" +
		abiWord(big.NewInt(2_000_000)) + // amount
		abiWord(big.NewInt(1_000_000)) + // amount0
		abiWord(big.NewInt(1_000_000)) // amount1
	return ethereum.Log{
		Address: testPoolAddr,
		Topics: []string{
			ethereum.TopicBurn,
			addressTopic(ownerAddr),
			topicOf(big.NewInt(-60)),
			topicOf(big.NewInt(60)),
		},
		Data:        data,
		BlockNumber: 102,
		LogIndex:    1,
		TxHash:      "0xburn",
	}
}

func TestDecodeSwapLog(t *testing.T) {
	s, err := DecodeSwapLog(swapLog(), 1700000036)
	if err != nil {
		t.Fatalf("DecodeSwapLog: %v", err)
	}
	if s.Owner != ownerAddr {
		t.Errorf("owner = %s, want %s", s.Owner, ownerAddr)
	}
	if s.BlockNumber != 103 || s.LogIndex != 7 || s.BlockTime != 1700000036 {
		t.Errorf("position = (%d, %d, %d)", s.BlockNumber, s.LogIndex, s.BlockTime)
	}
	if s.Amount0 != -1_000_000 || s.Amount1 != 4_000_000 {
		t.Errorf("amounts = (%g, %g)", s.Amount0, s.Amount1)
	}
	if s.Liquidity != 5_000_000 {
		t.Errorf("liquidity = %g", s.Liquidity)
	}
	if s.Tick != 13863 {
		t.Errorf("tick = %d, want 13863", s.Tick)
	}
	if s.SqrtPriceX96 != "158456325028528675187087900672" {
		t.Errorf("sqrt_price_x96 = %s", s.SqrtPriceX96)
	}
}

func TestDecodeMintLog(t *testing.T) {
	m, err := DecodeMintLog(mintLog(), 1700000000)
	if err != nil {
		t.Fatalf("DecodeMintLog: %v", err)
	}
	if m.Owner != ownerAddr {
		t.Errorf("owner = %s", m.Owner)
	}
	if m.TickLower != -60 || m.TickUpper != 60 {
		t.Errorf("ticks = (%d, %d), want (-60, 60)", m.TickLower, m.TickUpper)
	}
	if m.Amount != 2_000_000 || m.Amount0 != 1_500_000 || m.Amount1 != 500_000 {
		t.Errorf("amounts = (%g, %g, %g)", m.Amount, m.Amount0, m.Amount1)
	}
}

func TestDecodeBurnLog(t *testing.T) {
	b, err := DecodeBurnLog(burnLog(), 1700000024)
	if err != nil {
		t.Fatalf("DecodeBurnLog: %v", err)
	}
	if b.Owner != ownerAddr {
		t.Errorf("owner = %s", b.Owner)
	}
	if b.Amount0 != 1_000_000 || b.Amount1 != 1_000_000 {
		t.Errorf("amounts = (%g, %g)", b.Amount0, b.Amount1)
	}
}

func TestDecodeWrongTopic(t *testing.T) {
	if _, err := DecodeSwapLog(mintLog(), 0); err == nil {
		t.Error("swap decoder accepted a mint log")
	}
	if _, err := DecodeMintLog(swapLog(), 0); err == nil {
		t.Error("mint decoder accepted a swap log")
	}
	if _, err := DecodeBurnLog(swapLog(), 0); err == nil {
		t.Error("burn decoder accepted a swap log")
	}
}

func TestDecodeTruncatedData(t *testing.T) {
	l := swapLog()
	l.Data = "0x" + abiWord(big.NewInt(1))
	if _, err := DecodeSwapLog(l, 0); err == nil {
		t.Fatal("expected error for truncated data")
	}
}
