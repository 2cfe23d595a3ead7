package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ReportConfig holds configuration for the report command.
type ReportConfig struct {
	Journal       string
	Window        string
	Pool          string
	Out           string
	PGDSN         string
	BatchSize     int
	StateFile     string
	RecomputeFrom string
	LogLevel      string
}

// LoadReport merges config file, environment variables, and flags into ReportConfig.
func LoadReport(cfgFile string, flags *pflag.FlagSet) (ReportConfig, error) {
	v := viper.New()
	v.SetDefault("journal", "./data/pool_events.jsonl")
	v.SetDefault("window", "5m")
	v.SetDefault("batch-size", 1000)
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return ReportConfig{}, err
	}

	cfg := ReportConfig{
		Journal:       v.GetString("journal"),
		Window:        v.GetString("window"),
		Pool:          v.GetString("pool"),
		Out:           v.GetString("out"),
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("report-state"),
		RecomputeFrom: v.GetString("recompute-from"),
		LogLevel:      v.GetString("log-level"),
	}
	return cfg, nil
}

// WindowSeconds parses Window as a duration of at least one second.
func (c ReportConfig) WindowSeconds() (uint64, error) {
	window, err := time.ParseDuration(c.Window)
	if err != nil {
		return 0, fmt.Errorf("invalid window: %w", err)
	}
	seconds := uint64(window / time.Second)
	if window <= 0 || seconds == 0 {
		return 0, fmt.Errorf("window must be at least 1s")
	}
	return seconds, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
