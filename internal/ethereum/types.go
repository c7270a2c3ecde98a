package ethereum

import (
	"fmt"
	"math/big"
	"strings"
)

// Log is a decoded eth_getLogs / eth_subscribe entry.
type Log struct {
	Address     string   // emitting contract, lowercase hex
	Topics      []string // topic0 is the event signature hash
	Data        string   // ABI-encoded non-indexed words, 0x-prefixed hex
	BlockNumber int64
	LogIndex    int64
	TxHash      string
	Removed     bool // true when the log was reorged out
}

// LogFilter selects logs by contract address, topic and block range.
type LogFilter struct {
	Address   string
	Topics    []string // positional; empty string matches any
	FromBlock int64
	ToBlock   int64 // 0 means latest
}

// Uniswap V3 pool event signature hashes (topic0).
const (
	TopicSwap = "0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67"
	TopicMint = "0x7a53080ba414158be7ec69b987b5fb7d07dee101fe85488f0853ae16239d0bde"
	TopicBurn = "0x0c396cd989a39f4459b5fa1aed6a9a8dcdbc45908acfd67e028cd568da98982c"
)

// wordBytes is the size of one ABI data word.
const wordBytes = 32

// ParseHexUint64 decodes a 0x-prefixed quantity (eth_blockNumber style).
func ParseHexUint64(s string) (uint64, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if hex == "" {
		return 0, fmt.Errorf("empty hex quantity %q", s)
	}
	v, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return 0, fmt.Errorf("invalid hex quantity %q", s)
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("hex quantity %q overflows uint64", s)
	}
	return v.Uint64(), nil
}

// ParseHexInt64 decodes a 0x-prefixed quantity into int64.
func ParseHexInt64(s string) (int64, error) {
	v, err := ParseHexUint64(s)
	if err != nil {
		return 0, err
	}
	if v > 1<<62 {
		return 0, fmt.Errorf("hex quantity %q overflows int64", s)
	}
	return int64(v), nil
}

// DataWord extracts the i-th 32-byte word of ABI-encoded log data as a
// big-endian byte slice.
func DataWord(data string, i int) ([]byte, error) {
	hex := strings.TrimPrefix(data, "0x")
	if len(hex)%2 != 0 {
		return nil, fmt.Errorf("odd-length log data")
	}
	start := i * wordBytes * 2
	end := start + wordBytes*2
	if end > len(hex) {
		return nil, fmt.Errorf("log data has no word %d (len %d bytes)", i, len(hex)/2)
	}
	word := make([]byte, wordBytes)
	for j := 0; j < wordBytes; j++ {
		b, err := hexByte(hex[start+2*j], hex[start+2*j+1])
		if err != nil {
			return nil, err
		}
		word[j] = b
	}
	return word, nil
}

// DecodeUint256Word interprets a data word as an unsigned integer.
func DecodeUint256Word(word []byte) *big.Int {
	return new(big.Int).SetBytes(word)
}

// DecodeInt256Word interprets a data word as a two's-complement signed
// integer (Uniswap swap amounts are int256).
func DecodeInt256Word(word []byte) *big.Int {
	v := new(big.Int).SetBytes(word)
	if len(word) == wordBytes && word[0]&0x80 != 0 {
		max := new(big.Int).Lsh(big.NewInt(1), uint(len(word))*8)
		v.Sub(v, max)
	}
	return v
}

// DecodeInt24Word interprets the low bits of a data word as a signed 24-bit
// tick. The ABI sign-extends int24 to a full word, so the int256 rule applies.
func DecodeInt24Word(word []byte) (int, error) {
	v := DecodeInt256Word(word)
	if !v.IsInt64() {
		return 0, fmt.Errorf("tick word out of range")
	}
	tick := v.Int64()
	if tick < -8388608 || tick > 8388607 {
		return 0, fmt.Errorf("tick %d outside int24 range", tick)
	}
	return int(tick), nil
}

// TopicAddress extracts the address packed into an indexed topic.
func TopicAddress(topic string) (string, error) {
	hex := strings.TrimPrefix(topic, "0x")
	if len(hex) != wordBytes*2 {
		return "", fmt.Errorf("topic %q is not a 32-byte word", topic)
	}
	return "0x" + strings.ToLower(hex[24:]), nil
}

func hexByte(hi, lo byte) (byte, error) {
	h, ok1 := hexNibble(hi)
	l, ok2 := hexNibble(lo)
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("invalid hex byte %c%c", hi, lo)
	}
	return h<<4 | l, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
