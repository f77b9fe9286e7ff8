// Package config loads application configuration and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the results database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DataConfig configures where the source datasets come from and where they
// are cached locally.
type DataConfig struct {
	CacheDir      string `yaml:"cache_dir" mapstructure:"cache_dir"`
	BoundariesURL string `yaml:"boundaries_url" mapstructure:"boundaries_url"`
	SchoolsURL    string `yaml:"schools_url" mapstructure:"schools_url"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
}

// AnalysisConfig holds the default analysis parameters; flags override them.
type AnalysisConfig struct {
	Attribute    string  `yaml:"attribute" mapstructure:"attribute"`
	Threshold    float64 `yaml:"threshold" mapstructure:"threshold"`
	SRID         int     `yaml:"srid" mapstructure:"srid"`
	Concurrency  int     `yaml:"concurrency" mapstructure:"concurrency"`
	DisplayScale float64 `yaml:"display_scale" mapstructure:"display_scale"`
}

// ServerConfig configures the results API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RAPMAPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "rapmaps.db")
	v.SetDefault("data.cache_dir", "data")
	v.SetDefault("data.user_agent", "rap-for-maps/1.0")
	v.SetDefault("analysis.attribute", "pop_age_11_15")
	v.SetDefault("analysis.threshold", 4000)
	v.SetDefault("analysis.srid", 27700)
	v.SetDefault("analysis.concurrency", 4)
	v.SetDefault("analysis.display_scale", 10000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration needed for the given mode ("fetch",
// "compute", "serve"). Modes only validate the settings they use, so a
// compute-only deployment never needs a server port.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "fetch":
		if c.Data.CacheDir == "" {
			problems = append(problems, "data.cache_dir is required")
		}
		if c.Data.BoundariesURL == "" {
			problems = append(problems, "data.boundaries_url is required")
		}
		if c.Data.SchoolsURL == "" {
			problems = append(problems, "data.schools_url is required")
		}
	case "compute":
		if c.Analysis.Attribute == "" {
			problems = append(problems, "analysis.attribute is required")
		}
		if c.Analysis.Threshold <= 0 {
			problems = append(problems, "analysis.threshold must be > 0")
		}
		if c.Analysis.Concurrency < 1 || c.Analysis.Concurrency > 64 {
			problems = append(problems, "analysis.concurrency must be between 1 and 64")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Analysis.DisplayScale <= 0 {
			problems = append(problems, "analysis.display_scale must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
