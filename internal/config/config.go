package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config holds the settings shared by the pool commands, loaded from flags,
// env, or config file.
type Config struct {
	Backend      string
	StateFile    string
	PGDSN        string
	Journal      string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetDefault("backend", BackendMemory)
	v.SetDefault("state-file", "./data/amm_state.json")
	v.SetDefault("journal", "./data/pool_events.jsonl")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 50*time.Millisecond)
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Backend:      strings.ToLower(strings.TrimSpace(v.GetString("backend"))),
		StateFile:    v.GetString("state-file"),
		PGDSN:        v.GetString("pg-dsn"),
		Journal:      v.GetString("journal"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0")
	}
	return nil
}

// read wires env, flags and the optional config file into v. Env keys use the
// AMM_ prefix with dashes replaced by underscores, so --pg-dsn is AMM_PG_DSN.
func read(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
