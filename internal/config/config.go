package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mdlh/mdq/internal/capability"
	"github.com/mdlh/mdq/internal/logging"
	"github.com/mdlh/mdq/internal/score"
)

// ConfigFileName is the name of the mdq configuration file
const ConfigFileName = "config.yaml"

// ConfigDirName is the name of the mdq configuration directory
const ConfigDirName = ".mdq"

// Config holds all mdq configuration
type Config struct {
	Evidence     EvidenceConfig            `yaml:"evidence"`
	Scoring      ScoringConfig             `yaml:"scoring"`
	Readiness    ReadinessConfig           `yaml:"readiness"`
	Completeness CompletenessConfig        `yaml:"completeness"`
	Capabilities []capability.Requirements `yaml:"capabilities,omitempty"`
	Output       OutputConfig              `yaml:"output"`
	Logging      LoggingConfig             `yaml:"logging"`
	Server       ServerConfig              `yaml:"server"`

	// Root is the directory relative evidence paths resolve against: the
	// parent of the .mdq directory the config was loaded from.
	Root string `yaml:"-"`
}

// EvidenceConfig selects where asset evidence comes from
type EvidenceConfig struct {
	// Backend is one of file, sqlite, dolt, postgres
	Backend string `yaml:"backend"`

	// Path is the evidence file (file), database file (sqlite) or
	// database directory (dolt)
	Path string `yaml:"path,omitempty"`

	// DSN overrides Path for sql backends; required for postgres
	DSN string `yaml:"dsn,omitempty"`

	// Table is the asset table for sql backends
	Table string `yaml:"table"`

	CacheTTL  time.Duration `yaml:"cache_ttl"`
	CacheSize int           `yaml:"cache_size"`
}

// ScoringConfig holds the impact/quality policy thresholds
type ScoringConfig struct {
	ImpactThreshold  float64 `yaml:"impact_threshold"`
	QualityThreshold float64 `yaml:"quality_threshold"`
	UnknownThreshold float64 `yaml:"unknown_threshold"`
	DefaultImpact    float64 `yaml:"default_impact"`
}

// ReadinessConfig holds the readiness verdict threshold
type ReadinessConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// CompletenessConfig holds the completeness score threshold
type CompletenessConfig struct {
	Threshold int `yaml:"threshold"`
}

// OutputConfig holds configuration for output formatting
type OutputConfig struct {
	DefaultFormat  string `yaml:"default_format"`
	DefaultDensity string `yaml:"default_density"`
}

// LoggingConfig holds slog settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig holds settings for mdq serve
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ErrConfigNotFound is returned when no config file can be found
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when config validation fails
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from .mdq/config.yaml, falling back to defaults.
// It searches for the config directory starting from workDir and walking up
// the directory tree. If no config is found, returns defaults rooted at workDir.
func Load(workDir string) (*Config, error) {
	configDir, err := FindConfigDir(workDir)
	if err != nil {
		// No config dir found, return defaults
		cfg := DefaultConfig()
		cfg.Root, _ = filepath.Abs(workDir)
		return cfg, nil
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	return LoadFromPath(configPath)
}

// LoadFromPath reads config from a specific path.
// Merges loaded config with defaults and validates the result.
func LoadFromPath(path string) (*Config, error) {
	root := projectRoot(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.Root = root
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Merge with defaults
	merged := Merge(loaded, DefaultConfig())
	merged.Root = root

	// Validate the merged config
	if err := Validate(merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// projectRoot returns the directory above .mdq for a config path, or the
// config file's own directory when it does not live in .mdq.
func projectRoot(configPath string) string {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		abs = configPath
	}
	dir := filepath.Dir(abs)
	if filepath.Base(dir) == ConfigDirName {
		return filepath.Dir(dir)
	}
	return dir
}

// FindConfigDir locates the .mdq directory by walking up from startDir.
// Returns the path to the .mdq directory if found.
func FindConfigDir(startDir string) (string, error) {
	// Get absolute path
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	currentDir := absDir
	for {
		configDir := filepath.Join(currentDir, ConfigDirName)
		info, err := os.Stat(configDir)
		if err == nil && info.IsDir() {
			return configDir, nil
		}

		// Move to parent directory
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root, config not found
			return "", ErrConfigNotFound
		}
		currentDir = parentDir
	}
}

// EnsureConfigDir creates the .mdq directory if it doesn't exist.
// Returns the path to the .mdq directory.
func EnsureConfigDir(workDir string) (string, error) {
	// Get absolute path
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	configDir := filepath.Join(absDir, ConfigDirName)

	// Check if it already exists
	info, err := os.Stat(configDir)
	if err == nil {
		if info.IsDir() {
			return configDir, nil
		}
		return "", fmt.Errorf("%s exists but is not a directory", configDir)
	}

	// Create the directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	return configDir, nil
}

// Validate checks that config values are valid.
// Returns an error if validation fails.
func Validate(cfg *Config) error {
	if err := validateEvidence(cfg.Evidence); err != nil {
		return err
	}

	// Scoring thresholds must lie in [0,1]
	if err := cfg.ScoreOptions().Validate(); err != nil {
		return fmt.Errorf("%w: scoring: %v", ErrInvalidConfig, err)
	}

	if cfg.Readiness.Threshold <= 0 || cfg.Readiness.Threshold > 1 {
		return fmt.Errorf("%w: readiness.threshold must be in (0, 1], got %f",
			ErrInvalidConfig, cfg.Readiness.Threshold)
	}

	if cfg.Completeness.Threshold <= 0 || cfg.Completeness.Threshold > 100 {
		return fmt.Errorf("%w: completeness.threshold must be in 1..100, got %d",
			ErrInvalidConfig, cfg.Completeness.Threshold)
	}

	// Extra capabilities must be well formed
	for _, r := range cfg.Capabilities {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: capabilities: %v", ErrInvalidConfig, err)
		}
	}

	if !IsValidFormat(cfg.Output.DefaultFormat) {
		return fmt.Errorf("%w: default_format must be one of %v, got %q",
			ErrInvalidConfig, ValidFormats, cfg.Output.DefaultFormat)
	}

	if !IsValidDensity(cfg.Output.DefaultDensity) {
		return fmt.Errorf("%w: default_density must be one of %v, got %q",
			ErrInvalidConfig, ValidDensities, cfg.Output.DefaultDensity)
	}

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging: %v", ErrInvalidConfig, err)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("%w: logging.format must be text or json, got %q",
			ErrInvalidConfig, cfg.Logging.Format)
	}

	if cfg.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalidConfig)
	}

	return nil
}

func validateEvidence(e EvidenceConfig) error {
	if !IsValidBackend(e.Backend) {
		return fmt.Errorf("%w: evidence.backend must be one of %v, got %q",
			ErrInvalidConfig, ValidBackends, e.Backend)
	}

	switch e.Backend {
	case "postgres":
		if e.DSN == "" {
			return fmt.Errorf("%w: evidence.dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		if e.Path == "" && e.DSN == "" {
			return fmt.Errorf("%w: evidence.path is required for %s", ErrInvalidConfig, e.Backend)
		}
	}

	if e.Backend != "file" && e.Table == "" {
		return fmt.Errorf("%w: evidence.table is required for %s", ErrInvalidConfig, e.Backend)
	}

	if e.CacheTTL < 0 {
		return fmt.Errorf("%w: evidence.cache_ttl must be non-negative, got %s", ErrInvalidConfig, e.CacheTTL)
	}
	if e.CacheSize < 0 {
		return fmt.Errorf("%w: evidence.cache_size must be non-negative, got %d", ErrInvalidConfig, e.CacheSize)
	}
	return nil
}

// ScoreOptions returns the scoring policy as engine options.
func (c *Config) ScoreOptions() score.Options {
	return score.Options{
		ImpactThreshold:  c.Scoring.ImpactThreshold,
		QualityThreshold: c.Scoring.QualityThreshold,
		UnknownThreshold: c.Scoring.UnknownThreshold,
		DefaultImpact:    c.Scoring.DefaultImpact,
	}
}

// Catalog returns the built-in capability catalog extended with any
// capabilities declared in the config.
func (c *Config) Catalog() (capability.Catalog, error) {
	cat, err := capability.NewCatalog(c.Capabilities...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cat, nil
}

// EvidencePath resolves Evidence.Path against Root.
func (c *Config) EvidencePath() string {
	p := c.Evidence.Path
	if p == "" || filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// SaveDefault writes the default configuration to .mdq/config.yaml in workDir.
// Creates the .mdq directory if it doesn't exist.
func SaveDefault(workDir string) (string, error) {
	configDir, err := EnsureConfigDir(workDir)
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(configDir, ConfigFileName)

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	// Add header comment
	header := "# mdq configuration\n# evidence.backend: file | sqlite | dolt | postgres\n\n"
	data = append([]byte(header), data...)

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}

	return configPath, nil
}
