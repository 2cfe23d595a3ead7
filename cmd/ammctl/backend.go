package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammcore/internal/config"
	"ammcore/internal/exchange"
	"ammcore/internal/storage"
	"ammcore/internal/storage/memory"
	"ammcore/internal/storage/postgres"
)

func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", config.BackendMemory, "state backend (memory, postgres)")
	cmd.Flags().String("state-file", "./data/amm_state.json", "memory backend snapshot path, empty to disable")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("journal", "./data/pool_events.jsonl", "pool event journal JSONL, empty to disable")
	cmd.Flags().Int("max-retries", 5, "maximum retries for serialization failures")
	cmd.Flags().Duration("retry-backoff", 50*time.Millisecond, "initial retry backoff")
}

// env is everything a pool command needs, opened from the command's flags.
type env struct {
	cfg     config.Config
	logger  *zap.Logger
	store   storage.Store
	service *exchange.Service
}

func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var journals []storage.Journal
	if cfg.Journal != "" {
		journals = append(journals, storage.NewJsonlJournal(cfg.Journal))
	}

	var store storage.Store
	switch cfg.Backend {
	case config.BackendPostgres:
		pg, err := postgres.NewStore(ctx, cfg.PGDSN, postgres.Options{
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		applied, err := pg.Migrate(ctx)
		if err != nil {
			pg.Close()
			return nil, err
		}
		if applied > 0 {
			logger.Info("schema migrated", zap.Int("applied", applied))
		}
		store = pg
		journals = append(journals, pg)
	default:
		mem, err := memory.Open(cfg.StateFile)
		if err != nil {
			return nil, fmt.Errorf("open state: %w", err)
		}
		store = mem
	}

	logger.Debug("backend ready",
		zap.String("backend", cfg.Backend),
		zap.String("state_file", cfg.StateFile),
		zap.String("journal", cfg.Journal),
	)

	return &env{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		service: exchange.NewService(store, storage.Tee(journals...), logger),
	}, nil
}

func (e *env) Close() {
	e.store.Close()
	_ = e.logger.Sync()
}
