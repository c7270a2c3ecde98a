// Command replay re-executes stored backtest runs over the same events and
// reports any divergence between the stored summary and the replay.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	chstore "amm-strategy-lab/internal/storage/clickhouse"
	pgstore "amm-strategy-lab/internal/storage/postgres"
	"amm-strategy-lab/internal/verification"
)

func main() {
	runID := flag.String("run-id", "", "Verify one stored run")
	all := flag.Bool("all", false, "Verify every stored run")

	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (runs, pools)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (events)")

	flag.Parse()

	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	if (*runID == "" && !*all) || (*runID != "" && *all) {
		logger.Fatal("exactly one of --run-id or --all is required")
	}
	if *postgresDSN == "" || *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required")
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

	pgPool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pgPool.Close()

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("connect to clickhouse: %v", err)
	}
	defer conn.Close()

	verifier := verification.NewRunVerifier(verification.RunVerifierOptions{
		RunStore:   pgstore.NewRunStore(pgPool),
		EventStore: chstore.NewEventStore(conn),
		PoolStore:  pgstore.NewPoolStore(pgPool),
	})

	if *all {
		report, err := verifier.VerifyAll(ctx)
		if err != nil {
			logger.Fatalf("verification failed: %v", err)
		}
		for i := range report.Results {
			printResult(&report.Results[i])
		}
		fmt.Printf("\n%d runs verified: %d matched, %d divergent\n",
			report.TotalRuns, report.MatchedRuns, report.DivergentRuns)
		if report.DivergentRuns > 0 {
			os.Exit(1)
		}
		return
	}

	result, err := verifier.VerifyRun(ctx, *runID)
	if err != nil {
		if err == verification.ErrRunNotFound {
			logger.Fatalf("run %s not found", *runID)
		}
		logger.Fatalf("verification failed: %v", err)
	}
	printResult(result)
	if !result.Match {
		os.Exit(1)
	}
}

// printResult renders one run's verification outcome.
func printResult(r *verification.VerificationResult) {
	status := "OK"
	if !r.Match {
		status = "DIVERGED"
	}
	fmt.Printf("run %s: %s (stored g_apy=%.6f replayed g_apy=%.6f)\n",
		r.RunID, status, r.StoredGAPY, r.ReplayedGAPY)
	for _, d := range r.Divergences {
		fmt.Printf("  field %s: stored=%v replayed=%v\n", d.Field, d.Expected, d.Actual)
	}
}
