package config

import (
	"fmt"
	"strings"
	"time"
)

// ApplyDefaults fills in every zero-valued field of cfg with its default,
// leaving explicitly-set values untouched.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyShutdownDefaults(cfg)
	applyMetricsDefaults(&cfg.Metrics)
	applySessionDefaults(&cfg.Session)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	} else {
		cfg.Level = strings.ToUpper(cfg.Level)
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyShutdownDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applySessionDefaults fills in the §6 surface's defaults: BeginString
// "FIX.4.2", Epoch "<sender>_<target>", HeartbeatTimeout 30s, and
// StartTime "00:00:00".
func applySessionDefaults(cfg *SessionConfig) {
	if cfg.BeginString == "" {
		cfg.BeginString = "FIX.4.2"
	}
	if cfg.Epoch == "" && cfg.SenderCompID != "" && cfg.TargetCompID != "" {
		cfg.Epoch = fmt.Sprintf("%s_%s", cfg.SenderCompID, cfg.TargetCompID)
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = 30 * time.Second
	}
	if cfg.StartTime == "" {
		cfg.StartTime = "00:00:00"
	}
}

// GetDefaultConfig returns a Config with every field at its default,
// aside from the required §6 fields which have no sensible default and
// are left empty for Validate to reject.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
