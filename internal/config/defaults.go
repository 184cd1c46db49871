package config

import (
	"slices"
	"time"
)

// DefaultConfig returns configuration with sensible defaults.
// These defaults are used when no config file exists or when
// config file is missing specific fields.
func DefaultConfig() *Config {
	return &Config{
		Evidence: EvidenceConfig{
			Backend:   "file",
			Path:      "assets.yaml",
			Table:     "ASSETS",
			CacheTTL:  5 * time.Minute,
			CacheSize: 128,
		},
		Scoring: ScoringConfig{
			ImpactThreshold:  0.5,
			QualityThreshold: 0.7,
			UnknownThreshold: 0.35,
			DefaultImpact:    0.25,
		},
		Readiness: ReadinessConfig{
			Threshold: 0.75,
		},
		Completeness: CompletenessConfig{
			Threshold: 50,
		},
		Output: OutputConfig{
			DefaultFormat:  "yaml",
			DefaultDensity: "medium",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Merge overlays loaded on defaults. Zero values in loaded are unset and
// take the default; capabilities have no defaults.
func Merge(loaded, defaults *Config) *Config {
	le, de := loaded.Evidence, defaults.Evidence
	ev := EvidenceConfig{
		Backend:   or(le.Backend, de.Backend),
		Path:      le.Path,
		DSN:       le.DSN,
		Table:     or(le.Table, de.Table),
		CacheTTL:  or(le.CacheTTL, de.CacheTTL),
		CacheSize: or(le.CacheSize, de.CacheSize),
	}
	// A sql backend given only a DSN must not inherit assets.yaml
	if ev.Path == "" && ev.Backend == de.Backend && le.DSN == "" {
		ev.Path = de.Path
	}

	ls, ds := loaded.Scoring, defaults.Scoring
	return &Config{
		Evidence: ev,
		Scoring: ScoringConfig{
			ImpactThreshold:  or(ls.ImpactThreshold, ds.ImpactThreshold),
			QualityThreshold: or(ls.QualityThreshold, ds.QualityThreshold),
			UnknownThreshold: or(ls.UnknownThreshold, ds.UnknownThreshold),
			DefaultImpact:    or(ls.DefaultImpact, ds.DefaultImpact),
		},
		Readiness:    ReadinessConfig{Threshold: or(loaded.Readiness.Threshold, defaults.Readiness.Threshold)},
		Completeness: CompletenessConfig{Threshold: or(loaded.Completeness.Threshold, defaults.Completeness.Threshold)},
		Capabilities: loaded.Capabilities,
		Output: OutputConfig{
			DefaultFormat:  or(loaded.Output.DefaultFormat, defaults.Output.DefaultFormat),
			DefaultDensity: or(loaded.Output.DefaultDensity, defaults.Output.DefaultDensity),
		},
		Logging: LoggingConfig{
			Level:  or(loaded.Logging.Level, defaults.Logging.Level),
			Format: or(loaded.Logging.Format, defaults.Logging.Format),
		},
		Server: ServerConfig{
			Addr:            or(loaded.Server.Addr, defaults.Server.Addr),
			ShutdownTimeout: or(loaded.Server.ShutdownTimeout, defaults.Server.ShutdownTimeout),
		},
	}
}

func or[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// ValidDensities lists the valid values for output density
var ValidDensities = []string{"sparse", "medium", "dense"}

// IsValidDensity checks if the given density value is valid
func IsValidDensity(density string) bool { return slices.Contains(ValidDensities, density) }

// ValidFormats lists the valid values for output format
var ValidFormats = []string{"yaml", "json", "table"}

// IsValidFormat checks if the given format value is valid
func IsValidFormat(format string) bool { return slices.Contains(ValidFormats, format) }

// ValidBackends lists the supported evidence backends
var ValidBackends = []string{"file", "sqlite", "dolt", "postgres"}

// IsValidBackend checks if the given evidence backend is supported
func IsValidBackend(backend string) bool { return slices.Contains(ValidBackends, backend) }
