// Command server runs all components together:
// - Live feed (continuous): WebSocket pool events into storage
// - Pipeline (scheduled): backtests, cross-validation, persistence
// - Reporting (scheduled): REPORT.md and CSVs in the output directory
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/ethereum"
	"amm-strategy-lab/internal/ingestion"
	"amm-strategy-lab/internal/observability"
	"amm-strategy-lab/internal/orchestrator"
	"amm-strategy-lab/internal/reporting"
	"amm-strategy-lab/internal/storage"
	chstore "amm-strategy-lab/internal/storage/clickhouse"
	"amm-strategy-lab/internal/storage/memory"
	pgstore "amm-strategy-lab/internal/storage/postgres"
)

// Server holds all components of the unified service.
type Server struct {
	// Configuration
	pool             *domain.Pool
	wsEndpoint       string
	rpcEndpoint      string
	outputDir        string
	strategies       []domain.StrategyConfig
	folds            int
	workers          int
	pipelineInterval time.Duration
	reportInterval   time.Duration

	// Stores
	stores *allStores

	logger *log.Logger

	// State
	mu              sync.Mutex
	started         time.Time
	lastPipelineRun time.Time
	lastReportRun   time.Time
	pipelineRunning bool
	reportRunning   bool
	pipelineRuns    int
	reportRuns      int
}

// allStores holds all storage implementations.
type allStores struct {
	poolStore      storage.PoolStore
	eventStore     storage.EventStore
	runStore       storage.RunStore
	snapshotStore  storage.SnapshotStore
	foldScoreStore storage.FoldScoreStore
}

func main() {
	loadEnvFile()

	// Pool
	poolAddr := flag.String("pool", "", "Pool contract address (required)")
	token0 := flag.String("token0", "", "Token0 as SYMBOL:DECIMALS[:ADDRESS] (required)")
	token1 := flag.String("token1", "", "Token1 as SYMBOL:DECIMALS[:ADDRESS] (required)")
	fee := flag.Int("fee", int(domain.FeeMiddle), "Pool fee tier: 100, 500, 3000, 10000")

	// Endpoints (env vars as defaults)
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("ETH_WS_ENDPOINT"), "Ethereum WebSocket endpoint (empty disables the live feed)")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("ETH_RPC_ENDPOINT"), "Ethereum RPC HTTP endpoint (block timestamps)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")

	// Strategies
	lowerPrice := flag.Float64("lower-price", 0, "PASSIVE_RANGE lower bound (0 disables the strategy)")
	upperPrice := flag.Float64("upper-price", 0, "PASSIVE_RANGE upper bound")
	replayAddress := flag.String("replay-address", "", "ADDRESS_REPLAY owner address (empty disables the strategy)")

	// Scheduling
	folds := flag.Int("folds", 0, "Cross-validation folds per pipeline run (0 disables)")
	workers := flag.Int("workers", 0, "Concurrent fold replays (0 = GOMAXPROCS)")
	pipelineInterval := flag.Duration("pipeline-interval", 1*time.Hour, "Pipeline run interval")
	reportInterval := flag.Duration("report-interval", 6*time.Hour, "Report generation interval")
	outputDir := flag.String("output-dir", "output", "Output directory for reports")
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for /healthz, /metrics, /status")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *poolAddr == "" {
		logger.Fatal("--pool is required")
	}
	pool, err := buildPool(*poolAddr, *token0, *token1, *fee)
	if err != nil {
		logger.Fatalf("Invalid pool flags: %v", err)
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	strategies := buildStrategies(pool, *lowerPrice, *upperPrice, *replayAddress)
	logger.Printf("Configured strategies: %s", strategyNames(strategies))

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server := &Server{
		pool:             pool,
		wsEndpoint:       *wsEndpoint,
		rpcEndpoint:      *rpcEndpoint,
		outputDir:        *outputDir,
		strategies:       strategies,
		folds:            *folds,
		workers:          *workers,
		pipelineInterval: *pipelineInterval,
		reportInterval:   *reportInterval,
		stores:           stores,
		logger:           logger,
		started:          time.Now(),
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startHTTPServer(*httpAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// Run starts the unified server with all components.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting unified server...")

	mgr := ingestion.NewManager(ingestion.ManagerOptions{
		Pool:      s.pool,
		PoolStore: s.stores.poolStore,
	})
	if err := mgr.RegisterPool(ctx); err != nil {
		return fmt.Errorf("register pool: %w", err)
	}

	errCh := make(chan error, 3)

	if s.wsEndpoint != "" {
		go func() {
			err := s.runFeed(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("feed: %w", err)
			}
		}()
	} else {
		s.logger.Println("No WebSocket endpoint configured, live feed disabled")
	}

	go func() {
		err := s.runPipelineScheduler(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("pipeline scheduler: %w", err)
		}
	}()

	go func() {
		err := s.runReportScheduler(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("report scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runFeed streams live pool events into the event store.
func (s *Server) runFeed(ctx context.Context) error {
	s.logger.Println("Starting live feed...")

	ws, err := ethereum.NewWSClient(ctx, s.wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("create websocket client: %w", err)
	}
	defer ws.Close()

	var rpc ethereum.RPCClient
	if s.rpcEndpoint != "" {
		rpc = ethereum.NewHTTPClient(s.rpcEndpoint)
	}

	feed := ingestion.NewFeed(ingestion.FeedOptions{
		WS:     ws,
		RPC:    rpc,
		Pool:   s.pool,
		Sink:   &ingestion.StoreSink{Store: s.stores.eventStore},
		Logger: log.New(os.Stdout, "[feed] ", log.LstdFlags),
	})

	s.logger.Println("Live feed started")
	return feed.Run(ctx)
}

// runPipelineScheduler runs the backtest pipeline on schedule.
func (s *Server) runPipelineScheduler(ctx context.Context) error {
	s.logger.Printf("Starting pipeline scheduler (interval: %v)...", s.pipelineInterval)

	// Run immediately on start
	s.runPipeline(ctx)

	ticker := time.NewTicker(s.pipelineInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runPipeline(ctx)
		}
	}
}

// runPipeline executes the backtest pipeline over the stored window.
func (s *Server) runPipeline(ctx context.Context) {
	s.mu.Lock()
	if s.pipelineRunning {
		s.mu.Unlock()
		s.logger.Println("Pipeline already running, skipping...")
		return
	}
	s.pipelineRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pipelineRunning = false
		s.lastPipelineRun = time.Now()
		s.pipelineRuns++
		s.mu.Unlock()
	}()

	s.logger.Println("Running pipeline...")
	start := time.Now()

	orch := orchestrator.New(orchestrator.Options{
		Pool:           s.pool,
		PoolStore:      s.stores.poolStore,
		EventStore:     s.stores.eventStore,
		RunStore:       s.stores.runStore,
		SnapshotStore:  s.stores.snapshotStore,
		FoldScoreStore: s.stores.foldScoreStore,
		Strategies:     s.strategies,
		Folds:          s.folds,
		Workers:        s.workers,
		Logger:         log.New(os.Stdout, "[pipeline] ", log.LstdFlags),
	})

	result, err := orch.Run(ctx)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoEvents) {
			s.logger.Println("Pipeline skipped: no stored events yet")
			return
		}
		s.logger.Printf("Pipeline error: %v", err)
		observability.RecordRun("error", time.Since(start).Seconds())
		return
	}

	s.logger.Printf("Pipeline completed in %v: %d runs, %d folds",
		time.Since(start), len(result.Runs), result.FoldsScored)
	observability.RecordRun("success", time.Since(start).Seconds())
}

// runReportScheduler generates reports on schedule.
func (s *Server) runReportScheduler(ctx context.Context) error {
	s.logger.Printf("Starting report scheduler (interval: %v)...", s.reportInterval)

	ticker := time.NewTicker(s.reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runReport(ctx)
		}
	}
}

// runReport renders the stored runs to the output directory.
func (s *Server) runReport(ctx context.Context) {
	s.mu.Lock()
	if s.reportRunning {
		s.mu.Unlock()
		s.logger.Println("Report generation already running, skipping...")
		return
	}
	s.reportRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.reportRunning = false
		s.lastReportRun = time.Now()
		s.reportRuns++
		s.mu.Unlock()
	}()

	s.logger.Println("Generating reports...")
	start := time.Now()

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		s.logger.Printf("Failed to create output directory: %v", err)
		return
	}

	gen := reporting.NewGenerator(s.stores.runStore, s.stores.foldScoreStore)
	report, err := gen.Generate(ctx)
	if err != nil {
		s.logger.Printf("Report generation error: %v", err)
		return
	}

	outputs := map[string]string{
		"REPORT.md": reporting.RenderMarkdown(report),
		"runs.csv":  reporting.RenderRunsCSV(report.Runs),
	}
	if len(report.FoldScores) > 0 {
		outputs["fold_scores.csv"] = reporting.RenderFoldScoresCSV(report.FoldScores)
	}
	for name, content := range outputs {
		path := filepath.Join(s.outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			s.logger.Printf("Failed to write %s: %v", path, err)
			return
		}
	}

	s.logger.Printf("Reports generated in %v to %s/ (%d runs)",
		time.Since(start), s.outputDir, report.RunCount)
}

// startHTTPServer serves health, metrics, and status endpoints.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Pool            string    `json:"pool"`
	Uptime          string    `json:"uptime"`
	LastPipelineRun time.Time `json:"last_pipeline_run,omitempty"`
	LastReportRun   time.Time `json:"last_report_run,omitempty"`
	PipelineRuns    int       `json:"pipeline_runs"`
	ReportRuns      int       `json:"report_runs"`
	PipelineRunning bool      `json:"pipeline_running"`
	ReportRunning   bool      `json:"report_running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:          "running",
		Pool:            s.pool.Name(),
		Uptime:          time.Since(s.started).String(),
		LastPipelineRun: s.lastPipelineRun,
		LastReportRun:   s.lastReportRun,
		PipelineRuns:    s.pipelineRuns,
		ReportRuns:      s.reportRuns,
		PipelineRunning: s.pipelineRunning,
		ReportRunning:   s.reportRunning,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			poolStore:      memory.NewPoolStore(),
			eventStore:     memory.NewEventStore(),
			runStore:       memory.NewRunStore(),
			snapshotStore:  memory.NewSnapshotStore(),
			foldScoreStore: memory.NewFoldScoreStore(),
		}
		return stores, func() {}, nil
	}

	pgPool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pgPool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores := &allStores{
		// PostgreSQL stores (pool registry, run summaries, fold scores)
		poolStore:      pgstore.NewPoolStore(pgPool),
		runStore:       pgstore.NewRunStore(pgPool),
		foldScoreStore: pgstore.NewFoldScoreStore(pgPool),

		// ClickHouse stores (event series, snapshot series)
		eventStore:    chstore.NewEventStore(conn),
		snapshotStore: chstore.NewSnapshotStore(conn),
	}

	cleanup := func() {
		conn.Close()
		pgPool.Close()
	}

	return stores, cleanup, nil
}

// buildStrategies returns the strategy configurations to replay each
// pipeline run. HOLD is always included as the baseline.
func buildStrategies(pool *domain.Pool, lowerPrice, upperPrice float64, replayAddress string) []domain.StrategyConfig {
	feePercent := pool.Fee.Fraction()
	initialX := 1.0
	initialY := 0.0
	zero := 0.0

	configs := []domain.StrategyConfig{
		{
			StrategyType: domain.StrategyTypeHold,
			FeePercent:   &feePercent,
			InitialX:     &initialX,
			InitialY:     &initialY,
			XInterest:    &zero,
			YInterest:    &zero,
		},
	}

	if lowerPrice > 0 && upperPrice > lowerPrice {
		configs = append(configs, domain.StrategyConfig{
			StrategyType: domain.StrategyTypePassiveRange,
			FeePercent:   &feePercent,
			InitialX:     &initialX,
			InitialY:     &initialY,
			LowerPrice:   &lowerPrice,
			UpperPrice:   &upperPrice,
		})
	}

	if replayAddress != "" {
		addr := strings.ToLower(replayAddress)
		decimalsDiff := pool.DecimalsDiff()
		configs = append(configs, domain.StrategyConfig{
			StrategyType: domain.StrategyTypeAddressReplay,
			FeePercent:   &feePercent,
			InitialX:     &initialX,
			InitialY:     &initialY,
			Address:      &addr,
			DecimalsDiff: &decimalsDiff,
		})
	}

	return configs
}

func strategyNames(configs []domain.StrategyConfig) string {
	names := make([]string, len(configs))
	for i, c := range configs {
		names[i] = c.StrategyType
	}
	return strings.Join(names, ", ")
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

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
