// Command backtest replays one strategy over a pool's stored event window
// and prints the resulting run summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"amm-strategy-lab/internal/backtest"
	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/ingestion"
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

	// Window
	fromStr := flag.String("from", "", "Window start, RFC3339 (default: first stored event)")
	toStr := flag.String("to", "", "Window end, RFC3339 (default: last stored event)")

	// Strategy
	strategyType := flag.String("strategy", "", "Strategy: HOLD, PASSIVE_RANGE, ADDRESS_REPLAY (required)")
	lowerPrice := flag.Float64("lower-price", 0, "Lower price bound for PASSIVE_RANGE")
	upperPrice := flag.Float64("upper-price", 0, "Upper price bound for PASSIVE_RANGE")
	feePercent := flag.Float64("fee-percent", 0, "Pool fee accrual fraction (default: from --fee)")
	swapFee := flag.Float64("swap-fee", 0, "Vault swap fee fraction")
	operationCost := flag.Float64("operation-cost", 0, "Fixed per-operation cost")
	initialX := flag.Float64("initial-x", 1, "Initial vault funding in token0")
	initialY := flag.Float64("initial-y", 0, "Initial vault funding in token1")
	xInterest := flag.Float64("x-interest", 0, "Daily compounding rate on x for HOLD")
	yInterest := flag.Float64("y-interest", 0, "Daily compounding rate on y for HOLD")
	replayAddress := flag.String("replay-address", "", "Owner address for ADDRESS_REPLAY")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (runs)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (events, snapshots)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	csvDir := flag.String("csv-dir", "", "Ingest mint/burn/swap CSVs from this directory first")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	persist := flag.Bool("persist", false, "Persist the run record and snapshots")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

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

	cfg, err := buildStrategyConfig(strategyFlags{
		strategyType:  strings.ToUpper(*strategyType),
		lowerPrice:    *lowerPrice,
		upperPrice:    *upperPrice,
		feePercent:    *feePercent,
		swapFee:       *swapFee,
		operationCost: *operationCost,
		initialX:      *initialX,
		initialY:      *initialY,
		xInterest:     *xInterest,
		yInterest:     *yInterest,
		replayAddress: *replayAddress,
		decimalsDiff:  pool.DecimalsDiff(),
	})
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
	var snapshotStore storage.SnapshotStore = memory.NewSnapshotStore()

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

		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		eventStore = chstore.NewEventStore(conn)
		snapshotStore = chstore.NewSnapshotStore(conn)
	}

	if *csvDir != "" {
		mgr := ingestion.NewManager(ingestion.ManagerOptions{Pool: pool, EventStore: eventStore})
		n, err := mgr.IngestDir(ctx, *csvDir)
		if err != nil {
			logger.Fatalf("ingest %s: %v", *csvDir, err)
		}
		logger.Printf("Ingested %d events from %s", n, *csvDir)
	}

	from, to, err := resolveWindow(ctx, eventStore, pool.Address, *fromStr, *toStr)
	if err != nil {
		logger.Fatalf("resolve window: %v", err)
	}

	if !*persist {
		runStore = nil
		snapshotStore = nil
	}

	logger.Printf("Running backtest: pool=%s strategy=%s window=%s..%s",
		pool.Name(), cfg.StrategyType, from.Format(time.RFC3339), to.Format(time.RFC3339))

	runner := backtest.NewRunner(eventStore, runStore, snapshotStore, logger)
	_, record, err := runner.Run(ctx, pool, from, to, cfg)
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(record, "", "  ")
		fmt.Println(string(output))
	} else {
		printRunRecord(record)
	}
}

type strategyFlags struct {
	strategyType  string
	lowerPrice    float64
	upperPrice    float64
	feePercent    float64
	swapFee       float64
	operationCost float64
	initialX      float64
	initialY      float64
	xInterest     float64
	yInterest     float64
	replayAddress string
	decimalsDiff  int
}

// buildStrategyConfig creates a StrategyConfig from CLI flags.
func buildStrategyConfig(f strategyFlags) (domain.StrategyConfig, error) {
	cfg := domain.StrategyConfig{
		StrategyType: f.strategyType,
		FeePercent:   &f.feePercent,
		InitialX:     &f.initialX,
		InitialY:     &f.initialY,
	}
	if f.swapFee > 0 {
		cfg.SwapFee = &f.swapFee
	}
	if f.operationCost > 0 {
		cfg.OperationCost = &f.operationCost
	}

	switch f.strategyType {
	case domain.StrategyTypeHold:
		cfg.XInterest = &f.xInterest
		cfg.YInterest = &f.yInterest
	case domain.StrategyTypePassiveRange:
		if f.lowerPrice <= 0 || f.upperPrice <= f.lowerPrice {
			return cfg, fmt.Errorf("PASSIVE_RANGE needs --lower-price and --upper-price with lower < upper")
		}
		cfg.LowerPrice = &f.lowerPrice
		cfg.UpperPrice = &f.upperPrice
	case domain.StrategyTypeAddressReplay:
		if f.replayAddress == "" {
			return cfg, fmt.Errorf("ADDRESS_REPLAY needs --replay-address")
		}
		addr := strings.ToLower(f.replayAddress)
		cfg.Address = &addr
		cfg.DecimalsDiff = &f.decimalsDiff
	default:
		return cfg, fmt.Errorf("unknown strategy %q, must be HOLD, PASSIVE_RANGE, or ADDRESS_REPLAY", f.strategyType)
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

// resolveWindow parses the window flags, falling back to the stored event
// range for unset bounds.
func resolveWindow(ctx context.Context, events storage.EventStore, pool, fromStr, toStr string) (time.Time, time.Time, error) {
	var from, to time.Time

	if fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return from, to, fmt.Errorf("--from: %w", err)
		}
		from = t
	}
	if toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return from, to, fmt.Errorf("--to: %w", err)
		}
		to = t
	}
	if !from.IsZero() && !to.IsZero() {
		return from, to, nil
	}

	stored, err := events.GetByPool(ctx, pool)
	if err != nil {
		return from, to, err
	}
	if len(stored) == 0 {
		return from, to, fmt.Errorf("no stored events for pool %s", pool)
	}
	if from.IsZero() {
		from = stored[0].Timestamp
	}
	if to.IsZero() {
		to = stored[len(stored)-1].Timestamp
	}
	return from, to, nil
}

// printRunRecord outputs a human-readable run summary.
func printRunRecord(r *domain.RunRecord) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:           %s\n", r.RunID)
	fmt.Printf("Pool:             %s\n", r.PoolAddress)
	fmt.Printf("Strategy:         %s\n", r.StrategyName)
	fmt.Printf("Window:           %s .. %s\n",
		r.FromTs.Format(time.RFC3339), r.ToTs.Format(time.RFC3339))
	fmt.Printf("Events:           %d\n", r.EventCount)
	fmt.Println()

	fmt.Println("Portfolio:")
	fmt.Printf("  Value (token0): %.6f\n", r.PortfolioValueX)
	fmt.Printf("  Value (token1): %.6f\n", r.PortfolioValueY)
	fmt.Printf("  APY (token0):   %.4f\n", r.PortfolioAPYX)
	fmt.Printf("  APY (token1):   %.4f\n", r.PortfolioAPYY)
	fmt.Printf("  gAPY vs hold:   %.4f\n", r.GAPY)
}
