package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
	"bitbucket.org/mmdatafocus/contract_ledger/models"
	"bitbucket.org/mmdatafocus/contract_ledger/workflow"
)

func main() {
	report := flag.String("report", workflow.ReportAll, "Report to build: "+strings.Join(workflow.Reports, "|"))
	incremental := flag.Bool("incremental", false, "Update the Contract View in place instead of rewriting it")
	dryRun := flag.Bool("dry-run", false, "Compute and print stats without writing any table")
	withHistory := flag.Bool("history", true, "Record run history when DB_HOST/DB_NAME are set")
	flag.Parse()

	if !workflow.ValidReport(*report) {
		fmt.Fprintf(os.Stderr, "unknown report %q (want one of %s)\n", *report, strings.Join(workflow.Reports, ", "))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := config.GetLogger()

	if *withHistory && config.DatabaseConfigured() {
		if err := config.ConnectDatabaseWithRetry(); err != nil {
			config.LogError(logger, "main", "main", "connect database; continuing without history", nil, err)
		} else {
			models.MigrateTable()
		}
	}
	if config.RedisConfigured() {
		if err := config.ConnectRedisWithRetry(ctx); err != nil {
			config.LogError(logger, "main", "main", "connect redis; continuing without run lock", nil, err)
		}
	}

	pipeline, err := workflow.NewPipelineFromEnv(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}
	pipeline.PersistHistory = pipeline.PersistHistory && *withHistory

	res, err := pipeline.Run(ctx, workflow.RunOptions{
		Report:      *report,
		Incremental: *incremental,
		DryRun:      *dryRun,
		TriggeredBy: models.TriggeredByCli,
	})
	if errors.Is(err, workflow.ErrRunInProgress) {
		fmt.Fprintln(os.Stderr, "another run holds the lock; try again later")
		os.Exit(3)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(res.Stats, "", "  ")
	fmt.Println(string(out))
	if res.Stats.LocalOnly {
		fmt.Fprintf(os.Stderr, "external store unavailable; skipped: %s\n", strings.Join(res.Stats.SkippedOutputs, ", "))
	}
}
