// Command crossval replays one strategy over a pool's stored window, splits
// the window into sequential folds, and scores every fold with a bounded
// worker pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"amm-strategy-lab/internal/backtest"
	"amm-strategy-lab/internal/crossval"
	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/ingestion"
	"amm-strategy-lab/internal/reporting"
	"amm-strategy-lab/internal/storage"
	chstore "amm-strategy-lab/internal/storage/clickhouse"
	"amm-strategy-lab/internal/storage/memory"
	pgstore "amm-strategy-lab/internal/storage/postgres"
	"amm-strategy-lab/internal/strategy"
)

func main() {
	// Pool
	poolAddr := flag.String("pool", "", "Pool contract address (required)")
	token0 := flag.String("token0", "", "Token0 as SYMBOL:DECIMALS[:ADDRESS] (required)")
	token1 := flag.String("token1", "", "Token1 as SYMBOL:DECIMALS[:ADDRESS] (required)")
	fee := flag.Int("fee", int(domain.FeeMiddle), "Pool fee tier: 100, 500, 3000, 10000")

	// Strategy
	strategyType := flag.String("strategy", "", "Strategy: HOLD, PASSIVE_RANGE, ADDRESS_REPLAY (required)")
	lowerPrice := flag.Float64("lower-price", 0, "Lower price bound for PASSIVE_RANGE")
	upperPrice := flag.Float64("upper-price", 0, "Upper price bound for PASSIVE_RANGE")
	feePercent := flag.Float64("fee-percent", 0, "Pool fee accrual fraction (default: from --fee)")
	initialX := flag.Float64("initial-x", 1, "Initial vault funding in token0")
	initialY := flag.Float64("initial-y", 0, "Initial vault funding in token1")
	replayAddress := flag.String("replay-address", "", "Owner address for ADDRESS_REPLAY")

	// Folds
	folds := flag.Int("folds", 5, "Number of sequential folds")
	foldWindow := flag.Duration("fold-window", 0, "Fold window duration (overrides --folds)")
	foldStep := flag.Duration("fold-step", 0, "Fold step duration (with --fold-window; default: window)")
	workers := flag.Int("workers", 0, "Concurrent fold replays (0 = GOMAXPROCS)")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (runs, fold scores)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (events)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	csvDir := flag.String("csv-dir", "", "Ingest mint/burn/swap CSVs from this directory first")

	persist := flag.Bool("persist", false, "Persist the run record and fold scores")

	flag.Parse()

	logger := log.New(os.Stderr, "[crossval] ", log.LstdFlags)

	if *poolAddr == "" {
		logger.Fatal("--pool is required")
	}
	if *strategyType == "" {
		logger.Fatal("--strategy is required")
	}

	pool, err := buildPool(*poolAddr, *token0, *token1, *fee)
	if err != nil {
		logger.Fatalf("Invalid pool flags: %v", err)
	}
	if *feePercent == 0 {
		*feePercent = pool.Fee.Fraction()
	}

	cfg, err := buildStrategyConfig(strings.ToUpper(*strategyType), *lowerPrice, *upperPrice,
		*feePercent, *initialX, *initialY, *replayAddress, pool.DecimalsDiff())
	if err != nil {
		logger.Fatalf("Invalid strategy flags: %v", err)
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
	var eventStore storage.EventStore = memory.NewEventStore()
	var runStore storage.RunStore = memory.NewRunStore()
	var foldStore storage.FoldScoreStore = memory.NewFoldScoreStore()

	if !*useMemory {
		if *postgresDSN == "" || *clickhouseDSN == "" {
			logger.Fatal("--postgres-dsn and --clickhouse-dsn are required when not using --use-memory")
		}

		pgPool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pgPool.Close()
		runStore = pgstore.NewRunStore(pgPool)
		foldStore = pgstore.NewFoldScoreStore(pgPool)

		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		eventStore = chstore.NewEventStore(conn)
	}

	if *csvDir != "" {
		mgr := ingestion.NewManager(ingestion.ManagerOptions{Pool: pool, EventStore: eventStore})
		n, err := mgr.IngestDir(ctx, *csvDir)
		if err != nil {
			logger.Fatalf("ingest %s: %v", *csvDir, err)
		}
		logger.Printf("Ingested %d events from %s", n, *csvDir)
	}

	events, err := eventStore.GetByPool(ctx, pool.Address)
	if err != nil {
		logger.Fatalf("load events: %v", err)
	}
	if len(events) == 0 {
		logger.Fatalf("no stored events for pool %s", pool.Address)
	}

	// Full-window run first; its ID keys the fold scores.
	var persistRuns storage.RunStore
	if *persist {
		persistRuns = runStore
	}
	runner := backtest.NewRunner(eventStore, persistRuns, nil, logger)
	_, record, err := runner.Run(ctx, pool, events[0].Timestamp, events[len(events)-1].Timestamp, cfg)
	if err != nil {
		logger.Fatalf("full-window run failed: %v", err)
	}
	logger.Printf("Full window: run=%s events=%d g_apy=%.4f", record.RunID, record.EventCount, record.GAPY)

	var spans []crossval.FoldSpan
	if *foldWindow > 0 {
		step := *foldStep
		if step <= 0 {
			step = *foldWindow
		}
		spans, err = crossval.SplitByDuration(events, *foldWindow, step)
	} else {
		spans, err = crossval.SplitByCount(events, *folds)
	}
	if err != nil {
		logger.Fatalf("split folds: %v", err)
	}

	strat, err := strategy.FromConfig(cfg)
	if err != nil {
		logger.Fatalf("build strategy: %v", err)
	}

	results := crossval.NewRunner(crossval.Options{Workers: *workers, Logger: logger}).
		Run(ctx, record.RunID, strat, spans)
	scores := crossval.Scores(results)

	if *persist && len(scores) > 0 {
		if err := foldStore.InsertBulk(ctx, scores); err != nil {
			logger.Fatalf("persist fold scores: %v", err)
		}
		logger.Printf("Persisted %d fold scores", len(scores))
	}

	printScores(record.RunID, scores)

	for _, fr := range results {
		if fr.Err != nil && fr.Err != context.Canceled {
			logger.Printf("fold %d: %v", fr.Span.Index, fr.Err)
		}
	}
}

// printScores renders the fold score table to stdout.
func printScores(runID string, scores []*domain.FoldScore) {
	rows := make([]reporting.FoldScoreRow, len(scores))
	for i, s := range scores {
		rows[i] = reporting.FoldScoreRow{
			RunID:      s.RunID,
			FoldIndex:  s.FoldIndex,
			FromTs:     s.FromTs,
			ToTs:       s.ToTs,
			EventCount: s.EventCount,
			Skipped:    s.Skipped,
			GAPY:       s.GAPY,
		}
	}

	fmt.Println()
	fmt.Printf("=== Fold Scores: %s ===\n", runID)
	fmt.Print(reporting.RenderFoldScoresCSV(rows))

	var sum float64
	var scored int
	for _, s := range scores {
		if !s.Skipped {
			sum += s.GAPY
			scored++
		}
	}
	if scored > 0 {
		fmt.Printf("\nMean g_apy over %d scored folds: %.6f\n", scored, sum/float64(scored))
	}
}

// buildStrategyConfig creates a StrategyConfig from CLI flags.
func buildStrategyConfig(strategyType string, lowerPrice, upperPrice, feePercent, initialX, initialY float64,
	replayAddress string, decimalsDiff int) (domain.StrategyConfig, error) {
	cfg := domain.StrategyConfig{
		StrategyType: strategyType,
		FeePercent:   &feePercent,
		InitialX:     &initialX,
		InitialY:     &initialY,
	}

	switch strategyType {
	case domain.StrategyTypeHold:
	case domain.StrategyTypePassiveRange:
		if lowerPrice <= 0 || upperPrice <= lowerPrice {
			return cfg, fmt.Errorf("PASSIVE_RANGE needs --lower-price and --upper-price with lower < upper")
		}
		cfg.LowerPrice = &lowerPrice
		cfg.UpperPrice = &upperPrice
	case domain.StrategyTypeAddressReplay:
		if replayAddress == "" {
			return cfg, fmt.Errorf("ADDRESS_REPLAY needs --replay-address")
		}
		addr := strings.ToLower(replayAddress)
		cfg.Address = &addr
		cfg.DecimalsDiff = &decimalsDiff
	default:
		return cfg, fmt.Errorf("unknown strategy %q, must be HOLD, PASSIVE_RANGE, or ADDRESS_REPLAY", strategyType)
	}

	return cfg, nil
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
