package crossval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"

	"amm-strategy-lab/internal/backtest"
	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/idhash"
	"amm-strategy-lab/internal/portfolio"
	"amm-strategy-lab/internal/strategy"
)

// Options configures the fold runner.
type Options struct {
	// Workers caps the number of folds replayed concurrently.
	// Zero means GOMAXPROCS.
	Workers int

	// Logger receives per-fold progress and skip warnings.
	// Nil means the default logger.
	Logger *log.Logger
}

// FoldResult is the outcome of one fold's replay.
type FoldResult struct {
	Span    FoldSpan
	Score   domain.FoldScore
	Results *backtest.Results // nil when the fold was skipped or failed
	Err     error             // ErrEmptyFold for skipped folds
}

// Runner replays a strategy over folds with a bounded worker pool.
type Runner struct {
	workers int
	logger  *log.Logger
}

// NewRunner creates a fold runner.
func NewRunner(opts Options) *Runner {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{workers: workers, logger: logger}
}

// Run replays strat over every fold. Each worker operates on a clone of the
// strategy with a fresh portfolio and engine; results come back indexed by
// fold, so the output is deterministic regardless of scheduling. A fold's
// failure is recorded on its result and does not stop the others.
func (r *Runner) Run(ctx context.Context, runID string, strat strategy.Strategy, folds []FoldSpan) []FoldResult {
	results := make([]FoldResult, len(folds))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = r.runFold(ctx, runID, strat, folds[i])
			}
		}()
	}

	for i := range folds {
		select {
		case jobs <- i:
		case <-ctx.Done():
			results[i] = FoldResult{Span: folds[i], Err: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

func (r *Runner) runFold(ctx context.Context, runID string, strat strategy.Strategy, span FoldSpan) FoldResult {
	score := domain.FoldScore{
		RunID:      runID,
		FoldID:     idhash.ComputeFoldID(runID, span.Index),
		FoldIndex:  span.Index,
		FromTs:     span.From,
		ToTs:       span.To,
		EventCount: len(span.Events),
	}

	if err := ctx.Err(); err != nil {
		return FoldResult{Span: span, Score: score, Err: err}
	}

	if len(span.Events) == 0 {
		r.logger.Printf("[crossval] fold %d is empty, skipping", span.Index)
		score.Skipped = true
		return FoldResult{Span: span, Score: score, Err: ErrEmptyFold}
	}

	res, err := backtest.NewEngine().Run(strat.Clone(), portfolio.NewPortfolio("main"), span.Events)
	if err != nil {
		return FoldResult{Span: span, Score: score, Err: fmt.Errorf("fold %d: %w", span.Index, err)}
	}

	gAPY, err := foldGAPY(res)
	if err != nil {
		return FoldResult{Span: span, Score: score, Results: res, Err: fmt.Errorf("fold %d: %w", span.Index, err)}
	}
	score.GAPY = gAPY

	r.logger.Printf("[crossval] fold %d: events=%d g_apy=%.4f", span.Index, score.EventCount, score.GAPY)
	return FoldResult{Span: span, Score: score, Results: res}
}

// Scores extracts persistable fold scores from results, ordered by fold
// index. Skipped folds are kept (marked), failed folds are dropped.
func Scores(results []FoldResult) []*domain.FoldScore {
	var scores []*domain.FoldScore
	for i := range results {
		fr := &results[i]
		if fr.Err != nil && !errors.Is(fr.Err, ErrEmptyFold) {
			continue
		}
		sc := fr.Score
		scores = append(scores, &sc)
	}
	return scores
}

func foldGAPY(res *backtest.Results) (float64, error) {
	if res.PortfolioHistory.Len() == 0 {
		return 0, nil
	}
	stats, err := res.PortfolioHistory.ComputeStats()
	if err != nil {
		return 0, fmt.Errorf("compute stats: %w", err)
	}
	col := stats.Column("g_apy")
	if len(col) == 0 {
		return 0, nil
	}
	return col[len(col)-1], nil
}
