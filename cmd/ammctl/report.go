package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammcore/internal/config"
	"ammcore/internal/exchange"
	"ammcore/internal/report"
	"ammcore/internal/storage/postgres"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate the pool event journal into window metrics",
		RunE:  runReport,
	}
	cmd.Flags().String("journal", "./data/pool_events.jsonl", "input pool event journal JSONL")
	cmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	cmd.Flags().String("pool", "", "limit the report to one pool id")
	cmd.Flags().String("out", "", "output JSONL path, stdout when empty")
	cmd.Flags().String("pg-dsn", "", "write windows to Postgres instead of JSONL")
	cmd.Flags().Int("batch-size", 1000, "windows per write")
	cmd.Flags().String("report-state", "", "optional local state file for progress tracking")
	cmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Journal == "" {
		return fmt.Errorf("journal path is required")
	}
	windowSeconds, err := cfg.WindowSeconds()
	if err != nil {
		return err
	}
	recomputeFrom, err := config.ParseTimestamp(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("parse recompute-from: %w", err)
	}
	var pool common.Hash
	if cfg.Pool != "" {
		if pool, err = exchange.ParsePoolID(cfg.Pool); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sink       report.Sink
		stateStore report.StateStore
	)
	if cfg.StateFile != "" {
		stateStore = &report.FileStateStore{Path: cfg.StateFile}
	}

	switch {
	case cfg.PGDSN != "":
		store, err := postgres.NewStore(ctx, cfg.PGDSN, postgres.Options{})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if _, err := store.Migrate(ctx); err != nil {
			return err
		}
		sink = store
		if stateStore == nil {
			stateStore = &report.DBStateStore{Store: store, Name: fmt.Sprintf("report:%d:%s", windowSeconds, pool.Hex())}
		}
	case cfg.Out != "":
		if dir := filepath.Dir(cfg.Out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}
		file, err := os.OpenFile(cfg.Out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		defer file.Close()
		sink = report.NewWriterSink(file)
	default:
		sink = report.NewWriterSink(cmd.OutOrStdout())
	}

	logger.Info("report start",
		zap.String("journal", cfg.Journal),
		zap.Uint64("window_seconds", windowSeconds),
		zap.String("pool", cfg.Pool),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Uint64("recompute_from", recomputeFrom),
	)

	reporter := report.NewReporter(report.Config{
		WindowSeconds: windowSeconds,
		BatchSize:     cfg.BatchSize,
		RecomputeFrom: recomputeFrom,
		Pool:          pool,
		StateStore:    stateStore,
	}, sink, logger)
	return reporter.Run(ctx, cfg.Journal)
}
