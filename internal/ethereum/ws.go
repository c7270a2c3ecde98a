package ethereum

import "context"

// WSClient defines the Ethereum WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to logs matching the filter
	// (eth_subscribe "logs").
	SubscribeLogs(ctx context.Context, filter LogFilter) (<-chan Log, error)

	// Close closes the WebSocket connection.
	Close() error
}
