package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"amm-strategy-lab/internal/backtest"
	"amm-strategy-lab/internal/domain"
	"amm-strategy-lab/internal/storage"
)

var (
	// ErrRunNotFound is returned when the run ID doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrPoolNotFound is returned when the run's pool is not registered.
	ErrPoolNotFound = errors.New("pool not found")
)

// FieldDivergence represents a mismatch between a stored summary field and
// its replayed value.
type FieldDivergence struct {
	Field    string
	Expected interface{}
	Actual   interface{}
}

// VerificationResult contains the result of verifying one stored run.
type VerificationResult struct {
	RunID        string
	Match        bool
	Divergences  []FieldDivergence
	StoredGAPY   float64
	ReplayedGAPY float64
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	Results       []VerificationResult
}

// RunVerifier re-executes stored runs and compares their summaries.
type RunVerifier struct {
	runs   storage.RunStore
	events storage.EventStore
	pools  storage.PoolStore
}

// RunVerifierOptions contains configuration for creating a RunVerifier.
type RunVerifierOptions struct {
	RunStore   storage.RunStore
	EventStore storage.EventStore
	PoolStore  storage.PoolStore
}

// NewRunVerifier creates a new RunVerifier.
func NewRunVerifier(opts RunVerifierOptions) *RunVerifier {
	return &RunVerifier{
		runs:   opts.RunStore,
		events: opts.EventStore,
		pools:  opts.PoolStore,
	}
}

// VerifyRun loads a stored run, replays its exact event window with the
// stored strategy configuration through a fresh engine, and compares every
// summary field within FloatTolerance.
func (v *RunVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationResult, error) {
	stored, err := v.runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	replayed, err := v.replayRun(ctx, stored)
	if err != nil {
		return nil, err
	}

	divergences := CompareRunRecords(stored, replayed)
	return &VerificationResult{
		RunID:        runID,
		Match:        len(divergences) == 0,
		Divergences:  divergences,
		StoredGAPY:   stored.GAPY,
		ReplayedGAPY: replayed.GAPY,
	}, nil
}

// VerifyAll verifies every stored run.
func (v *RunVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	runs, err := v.runs.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalRuns: len(runs),
		Results:   make([]VerificationResult, 0, len(runs)),
	}
	for _, r := range runs {
		result, err := v.VerifyRun(ctx, r.RunID)
		if err != nil {
			return nil, fmt.Errorf("verify run %s: %w", r.RunID, err)
		}
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
		report.Results = append(report.Results, *result)
	}
	return report, nil
}

// replayRun re-executes a stored run without persisting anything.
func (v *RunVerifier) replayRun(ctx context.Context, stored *domain.RunRecord) (*domain.RunRecord, error) {
	pool, err := v.pools.GetByAddress(ctx, stored.PoolAddress)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPoolNotFound
		}
		return nil, err
	}

	var cfg domain.StrategyConfig
	if err := json.Unmarshal([]byte(stored.ConfigJSON), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config of run %s: %w", stored.RunID, err)
	}

	runner := backtest.NewRunner(v.events, nil, nil, log.New(io.Discard, "", 0))
	_, replayed, err := runner.Run(ctx, pool, stored.FromTs, stored.ToTs, cfg)
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", stored.RunID, err)
	}
	return replayed, nil
}

// CompareRunRecords compares a stored run summary against a replayed one.
// FinishedAt is wall-clock and excluded.
func CompareRunRecords(stored, replayed *domain.RunRecord) []FieldDivergence {
	var divergences []FieldDivergence

	// The run ID is derived from pool, strategy, config and window; a
	// mismatch means the replay did not reproduce the stored inputs.
	if stored.RunID != replayed.RunID {
		divergences = append(divergences, FieldDivergence{
			Field:    "RunID",
			Expected: stored.RunID,
			Actual:   replayed.RunID,
		})
	}

	if stored.StrategyName != replayed.StrategyName {
		divergences = append(divergences, FieldDivergence{
			Field:    "StrategyName",
			Expected: stored.StrategyName,
			Actual:   replayed.StrategyName,
		})
	}

	if stored.EventCount != replayed.EventCount {
		divergences = append(divergences, FieldDivergence{
			Field:    "EventCount",
			Expected: stored.EventCount,
			Actual:   replayed.EventCount,
		})
	}

	if !stored.FromTs.Equal(replayed.FromTs) {
		divergences = append(divergences, FieldDivergence{
			Field:    "FromTs",
			Expected: stored.FromTs,
			Actual:   replayed.FromTs,
		})
	}

	if !stored.ToTs.Equal(replayed.ToTs) {
		divergences = append(divergences, FieldDivergence{
			Field:    "ToTs",
			Expected: stored.ToTs,
			Actual:   replayed.ToTs,
		})
	}

	if !floatEquals(stored.PortfolioValueX, replayed.PortfolioValueX) {
		divergences = append(divergences, FieldDivergence{
			Field:    "PortfolioValueX",
			Expected: stored.PortfolioValueX,
			Actual:   replayed.PortfolioValueX,
		})
	}

	if !floatEquals(stored.PortfolioValueY, replayed.PortfolioValueY) {
		divergences = append(divergences, FieldDivergence{
			Field:    "PortfolioValueY",
			Expected: stored.PortfolioValueY,
			Actual:   replayed.PortfolioValueY,
		})
	}

	if !floatEquals(stored.PortfolioAPYX, replayed.PortfolioAPYX) {
		divergences = append(divergences, FieldDivergence{
			Field:    "PortfolioAPYX",
			Expected: stored.PortfolioAPYX,
			Actual:   replayed.PortfolioAPYX,
		})
	}

	if !floatEquals(stored.PortfolioAPYY, replayed.PortfolioAPYY) {
		divergences = append(divergences, FieldDivergence{
			Field:    "PortfolioAPYY",
			Expected: stored.PortfolioAPYY,
			Actual:   replayed.PortfolioAPYY,
		})
	}

	if !floatEquals(stored.GAPY, replayed.GAPY) {
		divergences = append(divergences, FieldDivergence{
			Field:    "GAPY",
			Expected: stored.GAPY,
			Actual:   replayed.GAPY,
		})
	}

	return divergences
}
