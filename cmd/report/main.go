// Command report renders stored backtest runs and fold scores as Markdown
// or CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"amm-strategy-lab/internal/reporting"
	pgstore "amm-strategy-lab/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (runs, fold scores)")
	format := flag.String("format", "markdown", "Output format: markdown or csv")
	outPath := flag.String("out", "", "Write to this file instead of stdout")

	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if *format != "markdown" && *format != "csv" {
		logger.Fatalf("unknown format %q, must be markdown or csv", *format)
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

	gen := reporting.NewGenerator(pgstore.NewRunStore(pgPool), pgstore.NewFoldScoreStore(pgPool))
	report, err := gen.Generate(ctx)
	if err != nil {
		logger.Fatalf("generate report: %v", err)
	}

	var output string
	switch *format {
	case "markdown":
		output = reporting.RenderMarkdown(report)
	case "csv":
		output = reporting.RenderRunsCSV(report.Runs)
		if len(report.FoldScores) > 0 {
			output += "\n" + reporting.RenderFoldScoresCSV(report.FoldScores)
		}
	}

	if *outPath == "" {
		fmt.Print(output)
		return
	}
	if err := os.WriteFile(*outPath, []byte(output), 0644); err != nil {
		logger.Fatalf("write %s: %v", *outPath, err)
	}
	logger.Printf("Report written to %s (%d runs, %d fold scores)",
		*outPath, report.RunCount, len(report.FoldScores))
}
