// Package stub provides in-memory ethereum client fakes for tests.
package stub

import (
	"context"
	"sync"

	"amm-strategy-lab/internal/ethereum"
)

// RPCClient implements ethereum.RPCClient for testing.
type RPCClient struct {
	mu         sync.Mutex
	Head       int64
	Logs       []ethereum.Log
	BlockTimes map[int64]int64 // block number -> unix timestamp
	Calls      int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{}
}

// Compile-time interface check.
var _ ethereum.RPCClient = (*RPCClient)(nil)

// BlockNumber returns the configured head block.
func (c *RPCClient) BlockNumber(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	return c.Head, nil
}

// GetLogs returns the stored logs matching the filter's block range and
// address.
func (c *RPCClient) GetLogs(_ context.Context, filter ethereum.LogFilter) ([]ethereum.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++

	var out []ethereum.Log
	for _, l := range c.Logs {
		if filter.Address != "" && l.Address != filter.Address {
			continue
		}
		if filter.FromBlock > 0 && l.BlockNumber < filter.FromBlock {
			continue
		}
		if filter.ToBlock > 0 && l.BlockNumber > filter.ToBlock {
			continue
		}
		if len(filter.Topics) > 0 && filter.Topics[0] != "" {
			if len(l.Topics) == 0 || l.Topics[0] != filter.Topics[0] {
				continue
			}
		}
		out = append(out, l)
	}
	return out, nil
}

// BlockTime returns the configured timestamp for a block, or 12s-spaced
// timestamps anchored at zero when none is set.
func (c *RPCClient) BlockTime(_ context.Context, blockNumber int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if ts, ok := c.BlockTimes[blockNumber]; ok {
		return ts, nil
	}
	return blockNumber * 12, nil
}

// wsSub pairs a subscription channel with its filter.
type wsSub struct {
	filter ethereum.LogFilter
	ch     chan ethereum.Log
}

// WSClient implements ethereum.WSClient for testing. Push delivers logs to
// the subscribers whose filter matches.
type WSClient struct {
	mu     sync.Mutex
	subs   []wsSub
	closed bool
}

// NewWSClient creates a new stub WS client.
func NewWSClient() *WSClient {
	return &WSClient{}
}

// Compile-time interface check.
var _ ethereum.WSClient = (*WSClient)(nil)

// SubscribeLogs returns a channel fed by Push.
func (c *WSClient) SubscribeLogs(_ context.Context, filter ethereum.LogFilter) (<-chan ethereum.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan ethereum.Log, 100)
	c.subs = append(c.subs, wsSub{filter: filter, ch: ch})
	return ch, nil
}

// Push delivers a log to every subscriber whose address and topic0 filter
// matches.
func (c *WSClient) Push(l ethereum.Log) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, s := range c.subs {
		if s.filter.Address != "" && s.filter.Address != l.Address {
			continue
		}
		if len(s.filter.Topics) > 0 && s.filter.Topics[0] != "" {
			if len(l.Topics) == 0 || l.Topics[0] != s.filter.Topics[0] {
				continue
			}
		}
		s.ch <- l
	}
}

// Close closes all subscription channels.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, s := range c.subs {
		close(s.ch)
	}
	c.subs = nil
	return nil
}
