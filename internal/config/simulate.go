package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Scenario  string
	Out       string
	Errors    string
	PGDSN     string
	StateDB   string
	BatchSize int
	LogLevel  string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"out":        "./data/events.jsonl",
		"errors":     "./data/step_failures.jsonl",
		"batch-size": 50,
		"log-level":  "info",
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	return SimulateConfig{
		Scenario:  v.GetString("scenario"),
		Out:       v.GetString("out"),
		Errors:    v.GetString("errors"),
		PGDSN:     v.GetString("pg-dsn"),
		StateDB:   v.GetString("state-db"),
		BatchSize: v.GetInt("batch-size"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}

// LoadScenario decodes a scenario file. The format follows the file
// extension (yaml, json, toml).
func LoadScenario(path string) (Scenario, error) {
	if path == "" {
		return Scenario{}, fmt.Errorf("scenario path is required")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("start_time", int64(1_700_000_000))
	v.SetDefault("implementation.version", "1")
	v.SetDefault("implementation.protocol_fee_bps", 250)
	if err := v.ReadInConfig(); err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := v.Unmarshal(&sc); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	if err := v.UnmarshalKey("steps", &sc.Steps); err != nil {
		return Scenario{}, fmt.Errorf("decode steps: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}
