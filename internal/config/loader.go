package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigName is the file name searched for in the root directory.
const DefaultConfigName = "archlint"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a configuration loader for the given root directory.
// A non-empty configFile is read instead of searching rootDir, and its
// absence is an error.
func NewLoader(rootDir, configFile string) Loader {
	return &loader{
		rootDir:    rootDir,
		configFile: configFile,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (ARCHLINT_*)
// 2. Config file (archlint.yaml or archlint.yml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(l.rootDir)
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("ARCHLINT")
	v.AutomaticEnv()
	// Replace . with _ in env var names (e.g., ARCHLINT_OUTPUT_FORMAT)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range []string{
		"minCoverageDomain",
		"minCoverageApplication",
		"concurrencyLimit",
		"coverageFile",
		"output.format",
		"output.file",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		var notFound viper.ConfigFileNotFoundError
		if l.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrInvalidConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", ErrInvalidConfig, err)
	}

	// Lists of records have no per-key default in viper.
	defaults := Default()
	if !v.IsSet("layerMap") {
		cfg.LayerMap = defaults.LayerMap
	}
	if !v.IsSet("ruleSet") {
		cfg.RuleSet = defaults.RuleSet
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("minCoverageDomain", defaults.MinCoverageDomain)
	v.SetDefault("minCoverageApplication", defaults.MinCoverageApplication)
	v.SetDefault("concurrencyLimit", defaults.ConcurrencyLimit)
	v.SetDefault("coverageFile", defaults.CoverageFile)

	v.SetDefault("paths.include", defaults.Paths.Include)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)

	v.SetDefault("extraction.hookPrimitives", defaults.Extraction.HookPrimitives)
	v.SetDefault("extraction.rawAsyncTargets", defaults.Extraction.RawAsyncTargets)
	v.SetDefault("extraction.clientSymbols", defaults.Extraction.ClientSymbols)
	v.SetDefault("extraction.pureCalls", defaults.Extraction.PureCalls)
	v.SetDefault("extraction.optionalWrappers", defaults.Extraction.OptionalWrappers)

	v.SetDefault("output.format", defaults.Output.Format)
	v.SetDefault("output.file", defaults.Output.File)
}
