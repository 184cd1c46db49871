package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mdlh/mdq/internal/config"
	"github.com/mdlh/mdq/internal/evaluate"
	"github.com/mdlh/mdq/internal/evidence"
	"github.com/mdlh/mdq/internal/logging"
	"github.com/mdlh/mdq/internal/output"
	"github.com/mdlh/mdq/internal/store"
)

// Shared setup for command implementations

// env is everything a command needs: the loaded config, the evidence
// source and an evaluation service over it.
type env struct {
	cfg     *config.Config
	source  evidence.Source
	cache   *evidence.Cached
	service *evaluate.Service
	closer  func() error
}

// Close releases the evidence backend.
func (e *env) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

// loadConfig reads --config if given, otherwise searches upward from the
// working directory, then configures logging from it.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		var cwd string
		cwd, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		cfg, err = config.Load(cwd)
	}
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	logging.Init(level, cfg.Logging.Format)
	return cfg, nil
}

// newEnv loads config and opens the configured evidence source behind a
// TTL cache. Callers must Close the env.
func newEnv(opts ...evaluate.ServiceOption) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	src, closer, err := openSource(cfg)
	if err != nil {
		return nil, err
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		if closer != nil {
			closer()
		}
		return nil, err
	}

	evalOpts := evaluate.DefaultOptions()
	evalOpts.Score = cfg.ScoreOptions()
	evalOpts.ReadinessThreshold = cfg.Readiness.Threshold

	cache := evidence.NewCached(src, cfg.Evidence.CacheSize, cfg.Evidence.CacheTTL)
	svcOpts := append([]evaluate.ServiceOption{
		evaluate.WithOptions(evalOpts),
		evaluate.WithLogger(logging.New("evaluate")),
	}, opts...)

	return &env{
		cfg:     cfg,
		source:  src,
		cache:   cache,
		service: evaluate.NewService(cache, catalog, svcOpts...),
		closer:  closer,
	}, nil
}

// openSource builds the evidence source for the configured backend.
func openSource(cfg *config.Config) (evidence.Source, func() error, error) {
	if cfg.Evidence.Backend == "" || cfg.Evidence.Backend == "file" {
		return evidence.NewFileSource(cfg.EvidencePath()), nil, nil
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

// openStore opens the configured sql backend.
func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Evidence.Backend == "" || cfg.Evidence.Backend == "file" {
		return nil, fmt.Errorf("evidence backend is %q; set evidence.backend to sqlite, dolt or postgres", "file")
	}
	dsn := cfg.Evidence.DSN
	if dsn == "" {
		dsn = cfg.EvidencePath()
	}
	st, err := store.Open(cfg.Evidence.Backend, dsn, cfg.Evidence.Table)
	if err != nil {
		return nil, fmt.Errorf("open evidence store: %w", err)
	}
	return st, nil
}

// outputSettings resolves --format and --density against config defaults.
func outputSettings(cfg *config.Config) (output.Format, output.Density, error) {
	formatName := outputFormat
	if formatName == "" {
		formatName = cfg.Output.DefaultFormat
	}
	format, err := output.ParseFormat(formatName)
	if err != nil {
		return "", "", err
	}

	densityName := outputDensity
	if densityName == "" {
		densityName = cfg.Output.DefaultDensity
	}
	density, err := output.ParseDensity(densityName)
	if err != nil {
		return "", "", err
	}
	return format, density, nil
}

// writeOutput renders v in the resolved format to the command's stdout.
func writeOutput(cmd *cobra.Command, format output.Format, v interface{}) error {
	return output.Write(cmd.OutOrStdout(), format, v)
}
