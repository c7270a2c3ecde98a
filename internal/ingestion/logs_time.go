package ingestion

import (
	"context"
	"time"

	"amm-strategy-lab/internal/ethereum"
)

// blockTimer resolves block timestamps over RPC with a small cache. Without
// an RPC client it falls back to the wall clock, which keeps a live feed
// usable on providers that only expose the websocket endpoint.
type blockTimer struct {
	rpc   ethereum.RPCClient
	cache map[int64]int64
	now   func() time.Time
}

func newBlockTimer(rpc ethereum.RPCClient) *blockTimer {
	return &blockTimer{
		rpc:   rpc,
		cache: make(map[int64]int64),
		now:   time.Now,
	}
}

func (t *blockTimer) timeFor(ctx context.Context, blockNumber int64) int64 {
	if ts, ok := t.cache[blockNumber]; ok {
		return ts
	}
	if t.rpc != nil {
		if ts, err := t.rpc.BlockTime(ctx, blockNumber); err == nil {
			t.cache[blockNumber] = ts
			return ts
		}
	}
	return t.now().UTC().Unix()
}
