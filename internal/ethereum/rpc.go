package ethereum

import "context"

// RPCClient defines the Ethereum JSON-RPC HTTP interface the lab needs.
type RPCClient interface {
	// BlockNumber returns the latest block number.
	BlockNumber(ctx context.Context) (int64, error)

	// GetLogs retrieves logs matching the filter via eth_getLogs.
	GetLogs(ctx context.Context, filter LogFilter) ([]Log, error)

	// BlockTime returns the unix timestamp of a block.
	BlockTime(ctx context.Context, blockNumber int64) (int64, error)
}
