// Package orchestrator drives the full pipeline:
// ingest → backtest → cross-validation → report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"amm-strategy-lab/internal/backtest"
	"amm-strategy-lab/internal/crossval"
	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/ethereum"
	"amm-strategy-lab/internal/ingestion"
	"amm-strategy-lab/internal/observability"
	"amm-strategy-lab/internal/reporting"
	"amm-strategy-lab/internal/storage"
	"amm-strategy-lab/internal/strategy"
)

// ErrNoEvents is returned when the backtest phase finds no stored events for
// the pool.
var ErrNoEvents = errors.New("orchestrator: no events for pool")

// Options configures the orchestrator.
type Options struct {
	// Pool is the pool every phase operates on. Required.
	Pool *domain.Pool

	// Stores. Pool, snapshot, and fold score stores may be nil; events and
	// runs are required.
	PoolStore      storage.PoolStore
	EventStore     storage.EventStore
	RunStore       storage.RunStore
	SnapshotStore  storage.SnapshotStore
	FoldScoreStore storage.FoldScoreStore

	// Ingest source, first non-zero wins: a CSV directory, a synthetic
	// series, or an RPC backfill over the latest BackfillBlocks blocks.
	// All zero skips the ingest phase and replays already-stored events.
	CSVDir         string
	Synthetic      *ingestion.SyntheticConfig
	RPC            ethereum.RPCClient
	BackfillBlocks int64

	// Strategies to replay over the ingested window. Required.
	Strategies []domain.StrategyConfig

	// Folds > 1 enables the cross-validation phase; Workers bounds its
	// concurrency (zero means GOMAXPROCS).
	Folds   int
	Workers int

	// ReportWriter receives the rendered markdown report. Nil skips the
	// report phase.
	ReportWriter io.Writer

	Logger *log.Logger
}

// Result summarizes one pipeline execution.
type Result struct {
	EventsIngested int
	Runs           []*domain.RunRecord
	FoldsScored    int
	Report         *reporting.Report
}

// Orchestrator runs the pipeline phases in order.
type Orchestrator struct {
	opts   Options
	logger *log.Logger
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{opts: opts, logger: logger}
}

// Run executes the phases. A phase error aborts the pipeline; the result
// reflects the phases that completed.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	if err := o.phase(ctx, "ingest", func(ctx context.Context) error {
		n, err := o.runIngest(ctx)
		result.EventsIngested = n
		return err
	}); err != nil {
		return result, err
	}

	if err := o.phase(ctx, "backtest", func(ctx context.Context) error {
		runs, err := o.runBacktests(ctx)
		result.Runs = runs
		return err
	}); err != nil {
		return result, err
	}

	if o.opts.Folds > 1 {
		if err := o.phase(ctx, "crossval", func(ctx context.Context) error {
			n, err := o.runCrossValidation(ctx, result.Runs)
			result.FoldsScored = n
			return err
		}); err != nil {
			return result, err
		}
	}

	if o.opts.ReportWriter != nil {
		if err := o.phase(ctx, "report", func(ctx context.Context) error {
			report, err := o.runReport(ctx)
			result.Report = report
			return err
		}); err != nil {
			return result, err
		}
	}

	o.logger.Printf("[orchestrator] pipeline done: %d events ingested, %d runs, %d folds",
		result.EventsIngested, len(result.Runs), result.FoldsScored)
	return result, nil
}

// phase runs fn with timing logs and metrics.
func (o *Orchestrator) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	o.logger.Printf("[orchestrator] phase %s starting", name)
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordPhase(name, status, elapsed.Seconds())
	o.logger.Printf("[orchestrator] phase %s finished in %s (%s)", name, elapsed.Round(time.Millisecond), status)

	if err != nil {
		return fmt.Errorf("phase %s: %w", name, err)
	}
	return nil
}

// runIngest registers the pool and loads events from the configured source.
func (o *Orchestrator) runIngest(ctx context.Context) (int, error) {
	mgr := ingestion.NewManager(ingestion.ManagerOptions{
		Pool:       o.opts.Pool,
		PoolStore:  o.opts.PoolStore,
		EventStore: o.opts.EventStore,
	})
	if err := mgr.RegisterPool(ctx); err != nil {
		return 0, fmt.Errorf("register pool: %w", err)
	}

	switch {
	case o.opts.CSVDir != "":
		return o.tolerateDuplicates(mgr.IngestDir(ctx, o.opts.CSVDir))
	case o.opts.Synthetic != nil:
		return o.tolerateDuplicates(mgr.IngestSynthetic(ctx, *o.opts.Synthetic))
	case o.opts.RPC != nil && o.opts.BackfillBlocks > 0:
		backfiller := ingestion.NewBackfiller(ingestion.BackfillOptions{
			RPC:    o.opts.RPC,
			Store:  o.opts.EventStore,
			Pool:   o.opts.Pool,
			Logger: o.logger,
		})
		res, err := backfiller.BackfillLatest(ctx, o.opts.BackfillBlocks)
		if err != nil {
			return 0, err
		}
		return res.EventsIngested, nil
	default:
		o.logger.Printf("[orchestrator] no ingest source configured, using stored events")
		return 0, nil
	}
}

// tolerateDuplicates treats an already-ingested window as a no-op so the
// pipeline can re-run over the same stores.
func (o *Orchestrator) tolerateDuplicates(n int, err error) (int, error) {
	if errors.Is(err, storage.ErrDuplicateKey) {
		o.logger.Printf("[orchestrator] events already ingested, reusing stored window")
		return 0, nil
	}
	return n, err
}

// runBacktests replays every configured strategy over the stored window.
func (o *Orchestrator) runBacktests(ctx context.Context) ([]*domain.RunRecord, error) {
	from, to, err := o.eventWindow(ctx)
	if err != nil {
		return nil, err
	}

	runner := backtest.NewRunner(o.opts.EventStore, o.opts.RunStore, o.opts.SnapshotStore, o.logger)
	records := make([]*domain.RunRecord, 0, len(o.opts.Strategies))
	for _, cfg := range o.opts.Strategies {
		_, record, err := runner.Run(ctx, o.opts.Pool, from, to, cfg)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				o.logger.Printf("[orchestrator] strategy %s already ran for this window, skipping", cfg.StrategyType)
				continue
			}
			return records, fmt.Errorf("strategy %s: %w", cfg.StrategyType, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// runCrossValidation splits the stored events into folds and replays every
// strategy over them, persisting the scores under the strategy's run ID.
func (o *Orchestrator) runCrossValidation(ctx context.Context, records []*domain.RunRecord) (int, error) {
	events, err := o.opts.EventStore.GetByPool(ctx, o.opts.Pool.Address)
	if err != nil {
		return 0, fmt.Errorf("load events: %w", err)
	}

	folds, err := crossval.SplitByCount(events, o.opts.Folds)
	if err != nil {
		return 0, fmt.Errorf("split folds: %w", err)
	}

	runner := crossval.NewRunner(crossval.Options{
		Workers: o.opts.Workers,
		Logger:  o.logger,
	})

	byStrategy := make(map[string]*domain.RunRecord, len(records))
	for _, r := range records {
		byStrategy[r.StrategyName] = r
	}

	total := 0
	for _, cfg := range o.opts.Strategies {
		record, ok := byStrategy[cfg.StrategyType]
		if !ok {
			continue
		}

		strat, err := strategy.FromConfig(cfg)
		if err != nil {
			return total, fmt.Errorf("build strategy %s: %w", cfg.StrategyType, err)
		}

		results := runner.Run(ctx, record.RunID, strat, folds)
		scores := crossval.Scores(results)
		if o.opts.FoldScoreStore != nil && len(scores) > 0 {
			if err := o.opts.FoldScoreStore.InsertBulk(ctx, scores); err != nil {
				if errors.Is(err, storage.ErrDuplicateKey) {
					o.logger.Printf("[orchestrator] fold scores for run %s already stored", record.RunID)
					continue
				}
				return total, fmt.Errorf("store fold scores: %w", err)
			}
		}
		total += len(scores)
	}
	return total, nil
}

// runReport renders stored runs and fold scores to the report writer.
func (o *Orchestrator) runReport(ctx context.Context) (*reporting.Report, error) {
	report, err := reporting.NewGenerator(o.opts.RunStore, o.opts.FoldScoreStore).Generate(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(o.opts.ReportWriter, reporting.RenderMarkdown(report)); err != nil {
		return report, fmt.Errorf("write report: %w", err)
	}
	return report, nil
}

// eventWindow returns the stored event range for the pool.
func (o *Orchestrator) eventWindow(ctx context.Context) (time.Time, time.Time, error) {
	events, err := o.opts.EventStore.GetByPool(ctx, o.opts.Pool.Address)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return time.Time{}, time.Time{}, ErrNoEvents
	}
	return events[0].Timestamp, events[len(events)-1].Timestamp, nil
}
