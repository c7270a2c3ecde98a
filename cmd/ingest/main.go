// Command ingest loads pool events into storage from one of four sources:
// CSV exports, a synthetic price series, an RPC log backfill, or a live
// WebSocket feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/ethereum"
	"amm-strategy-lab/internal/ingestion"
	"amm-strategy-lab/internal/observability"
	"amm-strategy-lab/internal/storage"
	chstore "amm-strategy-lab/internal/storage/clickhouse"
	"amm-strategy-lab/internal/storage/memory"
	pgstore "amm-strategy-lab/internal/storage/postgres"
)

func main() {
	// Pool
	poolAddr := flag.String("pool", "", "Pool contract address (required)")
	token0 := flag.String("token0", "", "Token0 as SYMBOL:DECIMALS[:ADDRESS] (required)")
	token1 := flag.String("token1", "", "Token1 as SYMBOL:DECIMALS[:ADDRESS] (required)")
	fee := flag.Int("fee", int(domain.FeeMiddle), "Pool fee tier: 100, 500, 3000, 10000")

	// Sources (exactly one)
	csvDir := flag.String("csv-dir", "", "Directory with mint.csv, burn.csv, swap.csv")
	synthetic := flag.Bool("synthetic", false, "Generate a synthetic price series")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("ETH_RPC_ENDPOINT"), "Ethereum RPC HTTP endpoint for backfill")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("ETH_WS_ENDPOINT"), "Ethereum WebSocket endpoint for live feed")

	// Synthetic parameters
	synthCount := flag.Int("synth-count", 365, "Synthetic series length")
	synthStep := flag.Duration("synth-step", 24*time.Hour, "Synthetic series step")
	synthInitPrice := flag.Float64("synth-init-price", 1, "Synthetic series initial price")
	synthMu := flag.Float64("synth-mu", 0, "Synthetic log-return drift per step")
	synthSigma := flag.Float64("synth-sigma", 0.1, "Synthetic log-return volatility per step")
	synthSeed := flag.Int64("synth-seed", 42, "Synthetic series random seed")
	synthStart := flag.String("synth-start", "2022-01-01T00:00:00Z", "Synthetic series start, RFC3339")

	// Backfill parameters
	fromBlock := flag.Int64("from-block", 0, "Backfill start block")
	toBlock := flag.Int64("to-block", 0, "Backfill end block")
	backfillBlocks := flag.Int64("backfill-blocks", 0, "Backfill this many latest blocks instead of an explicit range")
	blockBatch := flag.Int64("block-batch", ingestion.DefaultBlockBatch, "Blocks per eth_getLogs call")

	// Storage
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (pools)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (events)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (useful with --metrics-addr for smoke tests)")

	metricsAddr := flag.String("metrics-addr", "", "Serve prometheus metrics on this address (live feed mode)")

	flag.Parse()

	logger := log.New(os.Stderr, "[ingest] ", log.LstdFlags)

	if *poolAddr == "" {
		logger.Fatal("--pool is required")
	}
	pool, err := buildPool(*poolAddr, *token0, *token1, *fee)
	if err != nil {
		logger.Fatalf("Invalid pool flags: %v", err)
	}

	sources := 0
	for _, set := range []bool{*csvDir != "", *synthetic, *rpcEndpoint != "" && *wsEndpoint == "", *wsEndpoint != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		logger.Fatal("exactly one source required: --csv-dir, --synthetic, --rpc-endpoint (backfill), or --ws-endpoint (live feed)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Stores
	var poolStore storage.PoolStore = memory.NewPoolStore()
	var eventStore storage.EventStore = memory.NewEventStore()

	if !*useMemory {
		if *postgresDSN == "" || *clickhouseDSN == "" {
			logger.Fatal("--postgres-dsn and --clickhouse-dsn are required when not using --use-memory")
		}

		pgPool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pgPool.Close()
		poolStore = pgstore.NewPoolStore(pgPool)

		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		eventStore = chstore.NewEventStore(conn)
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	mgr := ingestion.NewManager(ingestion.ManagerOptions{
		Pool:       pool,
		PoolStore:  poolStore,
		EventStore: eventStore,
	})
	if err := mgr.RegisterPool(ctx); err != nil {
		logger.Fatalf("register pool: %v", err)
	}

	switch {
	case *csvDir != "":
		n, err := mgr.IngestDir(ctx, *csvDir)
		if err != nil {
			logger.Fatalf("ingest %s: %v", *csvDir, err)
		}
		observability.RecordEventsStored(n)
		logger.Printf("Ingested %d events from %s", n, *csvDir)

	case *synthetic:
		start, err := time.Parse(time.RFC3339, *synthStart)
		if err != nil {
			logger.Fatalf("--synth-start: %v", err)
		}
		n, err := mgr.IngestSynthetic(ctx, ingestion.SyntheticConfig{
			Start:     start,
			Step:      *synthStep,
			Count:     *synthCount,
			InitPrice: *synthInitPrice,
			Mu:        *synthMu,
			Sigma:     *synthSigma,
			Seed:      *synthSeed,
		})
		if err != nil {
			logger.Fatalf("generate synthetic series: %v", err)
		}
		observability.RecordEventsStored(n)
		logger.Printf("Ingested %d synthetic events (seed=%d)", n, *synthSeed)

	case *wsEndpoint != "":
		runFeed(ctx, logger, pool, eventStore, *wsEndpoint, *rpcEndpoint)

	default:
		runBackfill(ctx, logger, pool, eventStore, backfillFlags{
			endpoint:   *rpcEndpoint,
			fromBlock:  *fromBlock,
			toBlock:    *toBlock,
			blocks:     *backfillBlocks,
			blockBatch: *blockBatch,
		})
	}
}

type backfillFlags struct {
	endpoint   string
	fromBlock  int64
	toBlock    int64
	blocks     int64
	blockBatch int64
}

// runBackfill fetches historical pool logs over RPC.
func runBackfill(ctx context.Context, logger *log.Logger, pool *domain.Pool, events storage.EventStore, f backfillFlags) {
	backfiller := ingestion.NewBackfiller(ingestion.BackfillOptions{
		RPC:        ethereum.NewHTTPClient(f.endpoint),
		Store:      events,
		Pool:       pool,
		BlockBatch: f.blockBatch,
		Logger:     logger,
	})

	var result *ingestion.BackfillResult
	var err error
	switch {
	case f.blocks > 0:
		result, err = backfiller.BackfillLatest(ctx, f.blocks)
	case f.fromBlock > 0 && f.toBlock >= f.fromBlock:
		result, err = backfiller.BackfillBlockRange(ctx, f.fromBlock, f.toBlock)
	default:
		logger.Fatal("backfill needs --backfill-blocks or --from-block/--to-block")
	}
	if err != nil {
		logger.Fatalf("backfill failed: %v", err)
	}

	observability.RecordEventsStored(result.EventsIngested)
	logger.Printf("Backfill done in %v: %d logs, %d events, %d duplicates, %d errors",
		result.Duration.Round(time.Millisecond),
		result.LogsFetched, result.EventsIngested, result.DuplicatesSkipped, result.Errors)
}

// runFeed streams live pool events over WebSocket until interrupted.
func runFeed(ctx context.Context, logger *log.Logger, pool *domain.Pool, events storage.EventStore, wsEndpoint, rpcEndpoint string) {
	ws, err := ethereum.NewWSClient(ctx, wsEndpoint, nil)
	if err != nil {
		logger.Fatalf("create websocket client: %v", err)
	}
	defer ws.Close()

	var rpc ethereum.RPCClient
	if rpcEndpoint != "" {
		rpc = ethereum.NewHTTPClient(rpcEndpoint)
	}

	feed := ingestion.NewFeed(ingestion.FeedOptions{
		WS:     ws,
		RPC:    rpc,
		Pool:   pool,
		Sink:   &ingestion.StoreSink{Store: events},
		Logger: logger,
	})

	logger.Printf("Streaming live events for pool %s", pool.Name())
	if err := feed.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("feed failed: %v", err)
	}
	logger.Println("Feed stopped")
}

// serveMetrics exposes prometheus metrics and a liveness endpoint.
func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	logger.Printf("Serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("metrics server error: %v", err)
	}
}

// buildPool assembles the pool descriptor from CLI flags.
func buildPool(addr, token0, token1 string, fee int) (*domain.Pool, error) {
	t0, err := parseToken(token0)
	if err != nil {
		return nil, fmt.Errorf("--token0: %w", err)
	}
	t1, err := parseToken(token1)
	if err != nil {
		return nil, fmt.Errorf("--token1: %w", err)
	}
	tier := domain.Fee(fee)
	if !tier.Valid() {
		return nil, fmt.Errorf("--fee: unknown tier %d", fee)
	}
	return &domain.Pool{
		Address: strings.ToLower(addr),
		Token0:  t0,
		Token1:  t1,
		Fee:     tier,
	}, nil
}

// parseToken parses SYMBOL:DECIMALS[:ADDRESS].
func parseToken(s string) (domain.Token, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return domain.Token{}, fmt.Errorf("want SYMBOL:DECIMALS[:ADDRESS], got %q", s)
	}
	decimals, err := strconv.Atoi(parts[1])
	if err != nil || decimals < 0 {
		return domain.Token{}, fmt.Errorf("bad decimals %q", parts[1])
	}
	token := domain.Token{Symbol: parts[0], Decimals: decimals}
	if len(parts) == 3 {
		token.Address = strings.ToLower(parts[2])
	}
	return token, nil
}
