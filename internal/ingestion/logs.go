package ingestion

import (
	"fmt"
	"math/big"

	"amm-strategy-lab/internal/ethereum"
	"amm-strategy-lab/internal/normalization"
)

// topicWord extracts the 32-byte word behind an indexed topic.
func topicWord(l ethereum.Log, i int) ([]byte, error) {
	if i >= len(l.Topics) {
		return nil, fmt.Errorf("log %s has no topic %d", l.TxHash, i)
	}
	return ethereum.DataWord(l.Topics[i], 0)
}

func wordFloat(word []byte, signed bool) float64 {
	var v *big.Int
	if signed {
		v = ethereum.DecodeInt256Word(word)
	} else {
		v = ethereum.DecodeUint256Word(word)
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// DecodeSwapLog decodes a Uniswap V3 Swap log into a raw swap row.
// Data layout: amount0 (int256), amount1 (int256), sqrtPriceX96 (uint160),
// liquidity (uint128), tick (int24); sender and recipient are indexed.
func DecodeSwapLog(l ethereum.Log, blockTime int64) (normalization.RawSwap, error) {
	var s normalization.RawSwap
	if len(l.Topics) == 0 || l.Topics[0] != ethereum.TopicSwap {
		return s, fmt.Errorf("log %s is not a swap", l.TxHash)
	}

	owner, err := ethereum.TopicAddress(l.Topics[1])
	if err != nil {
		return s, err
	}

	words := make([][]byte, 5)
	for i := range words {
		if words[i], err = ethereum.DataWord(l.Data, i); err != nil {
			return s, fmt.Errorf("swap log %s: %w", l.TxHash, err)
		}
	}
	tick, err := ethereum.DecodeInt24Word(words[4])
	if err != nil {
		return s, fmt.Errorf("swap log %s: %w", l.TxHash, err)
	}

	s = normalization.RawSwap{
		TxHash:       l.TxHash,
		Owner:        owner,
		BlockNumber:  l.BlockNumber,
		LogIndex:     l.LogIndex,
		BlockTime:    blockTime,
		Tick:         tick,
		Liquidity:    wordFloat(words[3], false),
		Amount0:      wordFloat(words[0], true),
		Amount1:      wordFloat(words[1], true),
		SqrtPriceX96: ethereum.DecodeUint256Word(words[2]).String(),
	}
	return s, nil
}

// DecodeMintLog decodes a Uniswap V3 Mint log into a raw mint row.
// Data layout: sender (address), amount (uint128), amount0, amount1;
// owner, tickLower and tickUpper are indexed.
func DecodeMintLog(l ethereum.Log, blockTime int64) (normalization.RawMint, error) {
	var m normalization.RawMint
	if len(l.Topics) == 0 || l.Topics[0] != ethereum.TopicMint {
		return m, fmt.Errorf("log %s is not a mint", l.TxHash)
	}

	owner, tickLower, tickUpper, err := positionTopics(l)
	if err != nil {
		return m, err
	}

	words := make([][]byte, 4)
	for i := range words {
		if words[i], err = ethereum.DataWord(l.Data, i); err != nil {
			return m, fmt.Errorf("mint log %s: %w", l.TxHash, err)
		}
	}

	m = normalization.RawMint{
		TxHash:      l.TxHash,
		Owner:       owner,
		BlockNumber: l.BlockNumber,
		LogIndex:    l.LogIndex,
		BlockTime:   blockTime,
		TickLower:   tickLower,
		TickUpper:   tickUpper,
		Amount:      wordFloat(words[1], false),
		Amount0:     wordFloat(words[2], false),
		Amount1:     wordFloat(words[3], false),
	}
	return m, nil
}

// DecodeBurnLog decodes a Uniswap V3 Burn log into a raw burn row.
// Data layout: amount (uint128), amount0, amount1; owner, tickLower and
// tickUpper are indexed.
func DecodeBurnLog(l ethereum.Log, blockTime int64) (normalization.RawBurn, error) {
	var b normalization.RawBurn
	if len(l.Topics) == 0 || l.Topics[0] != ethereum.TopicBurn {
		return b, fmt.Errorf("log %s is not a burn", l.TxHash)
	}

	owner, tickLower, tickUpper, err := positionTopics(l)
	if err != nil {
		return b, err
	}

	words := make([][]byte, 3)
	for i := range words {
		if words[i], err = ethereum.DataWord(l.Data, i); err != nil {
			return b, fmt.Errorf("burn log %s: %w", l.TxHash, err)
		}
	}

	b = normalization.RawBurn{
		TxHash:      l.TxHash,
		Owner:       owner,
		BlockNumber: l.BlockNumber,
		LogIndex:    l.LogIndex,
		BlockTime:   blockTime,
		TickLower:   tickLower,
		TickUpper:   tickUpper,
		Amount:      wordFloat(words[0], false),
		Amount0:     wordFloat(words[1], false),
		Amount1:     wordFloat(words[2], false),
	}
	return b, nil
}

// positionTopics extracts the indexed (owner, tickLower, tickUpper) triple
// shared by mint and burn logs.
func positionTopics(l ethereum.Log) (string, int, int, error) {
	if len(l.Topics) < 4 {
		return "", 0, 0, fmt.Errorf("log %s has %d topics, want 4", l.TxHash, len(l.Topics))
	}
	owner, err := ethereum.TopicAddress(l.Topics[1])
	if err != nil {
		return "", 0, 0, err
	}
	lowerWord, err := topicWord(l, 2)
	if err != nil {
		return "", 0, 0, err
	}
	tickLower, err := ethereum.DecodeInt24Word(lowerWord)
	if err != nil {
		return "", 0, 0, fmt.Errorf("log %s tick_lower: %w", l.TxHash, err)
	}
	upperWord, err := topicWord(l, 3)
	if err != nil {
		return "", 0, 0, err
	}
	tickUpper, err := ethereum.DecodeInt24Word(upperWord)
	if err != nil {
		return "", 0, 0, fmt.Errorf("log %s tick_upper: %w", l.TxHash, err)
	}
	return owner, tickLower, tickUpper, nil
}
