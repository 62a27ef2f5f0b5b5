package config

import "github.com/spf13/pflag"

// ReportConfig holds configuration for the report command.
type ReportConfig struct {
	Input         string
	Window        string
	PGDSN         string
	BatchSize     int
	StateFile     string
	RecomputeFrom string
	ArchiveEvents bool
	LogLevel      string
}

// LoadReport merges config file, environment variables, and flags into ReportConfig.
func LoadReport(cfgFile string, flags *pflag.FlagSet) (ReportConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"window":         "1h",
		"batch-size":     1000,
		"archive-events": true,
		"log-level":      "info",
	})
	if err != nil {
		return ReportConfig{}, err
	}

	return ReportConfig{
		Input:         v.GetString("in"),
		Window:        v.GetString("window"),
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: v.GetString("recompute-from"),
		ArchiveEvents: v.GetBool("archive-events"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}
