package ingestion

import (
	"context"
	"testing"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/ethereum/stub"
	"amm-strategy-lab/internal/storage/memory"
)

// waitForEvents polls the store until the pool has n events or the deadline
// passes.
func waitForEvents(t *testing.T, store *memory.EventStore, n int) []*domain.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := store.GetByPool(context.Background(), testPoolAddr)
		if err != nil {
			t.Fatalf("GetByPool: %v", err)
		}
		if len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events", n)
	return nil
}

func TestFeedStoresDecodedEvents(t *testing.T) {
	ws := stub.NewWSClient()
	rpc := stub.NewRPCClient()
	rpc.BlockTimes = map[int64]int64{100: 1700000000, 103: 1700000036}
	store := memory.NewEventStore()

	feed := NewFeed(FeedOptions{
		WS:     ws,
		RPC:    rpc,
		Pool:   testPool(),
		Sink:   &StoreSink{Store: store},
		Logger: quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	// A swap first, then a mint that should inherit its price.
	ws.Push(swapLog())
	events := waitForEvents(t, store, 1)
	if events[0].Kind != domain.EventSwap {
		t.Fatalf("first stored event kind = %s, want swap", events[0].Kind)
	}

	ws.Push(mintLog())
	events = waitForEvents(t, store, 2)

	var mint *domain.Event
	for _, e := range events {
		if e.Kind == domain.EventMint {
			mint = e
		}
	}
	if mint == nil {
		t.Fatal("mint event not stored")
	}
	if mint.Price <= 0 {
		t.Fatalf("mint price = %g, want the last swap price", mint.Price)
	}
	if mint.Owner != ownerAddr {
		t.Errorf("mint owner = %s", mint.Owner)
	}
	if !mint.Timestamp.Equal(time.Unix(1700000000, 0).UTC().Add(2 * time.Millisecond)) {
		t.Errorf("mint timestamp = %v", mint.Timestamp)
	}

	// Closing the client ends the run cleanly.
	ws.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v after close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after close")
	}
}

func TestFeedIgnoresDuplicateDelivery(t *testing.T) {
	ws := stub.NewWSClient()
	store := memory.NewEventStore()

	feed := NewFeed(FeedOptions{
		WS:     ws,
		Pool:   testPool(),
		Sink:   &StoreSink{Store: store},
		Logger: quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = feed.Run(ctx) }()

	// Reconnects redeliver recent logs; the second copy must not error out
	// or duplicate the row.
	ws.Push(swapLog())
	waitForEvents(t, store, 1)
	ws.Push(swapLog())

	time.Sleep(50 * time.Millisecond)
	events, err := store.GetByPool(context.Background(), testPoolAddr)
	if err != nil {
		t.Fatalf("GetByPool: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("stored %d events, want 1", len(events))
	}
}

func TestFeedStopsOnCancel(t *testing.T) {
	ws := stub.NewWSClient()
	feed := NewFeed(FeedOptions{
		WS:     ws,
		Pool:   testPool(),
		Sink:   &StoreSink{Store: memory.NewEventStore()},
		Logger: quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
