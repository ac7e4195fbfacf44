package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Geometry GeometryConfig `yaml:"geometry" mapstructure:"geometry"`
	Model    ModelConfig    `yaml:"model" mapstructure:"model"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GeometryConfig locates the polygon dataset and scopes which attributes load.
type GeometryConfig struct {
	// Path points at a .shp file or a sqlite cache built by `siteval fetch --cache`.
	Path string `yaml:"path" mapstructure:"path"`
	// Attributes restricts which numeric columns are loaded. Empty loads all numeric columns.
	Attributes []string `yaml:"attributes" mapstructure:"attributes"`
}

// ModelConfig locates the pre-trained regression artifact (.json, .yaml, or .yml).
type ModelConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// FetchConfig configures artifact downloads.
type FetchConfig struct {
	DataDir     string `yaml:"data_dir" mapstructure:"data_dir"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
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
	v.SetEnvPrefix("SITEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("geometry.path", "data/tracts.shp")
	v.SetDefault("geometry.attributes", []string{})
	v.SetDefault("model.path", "data/model.json")
	v.SetDefault("fetch.data_dir", "data")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "siteval/1.0")
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

// Validate checks that the configuration is usable for the given mode.
// Modes: "serve" (predict/batch/nearest/inspect) requires both artifact
// paths; "fetch" requires a data directory.
func (c *Config) Validate(mode string) error {
	var errs error

	switch mode {
	case "serve":
		if c.Geometry.Path == "" {
			errs = multierr.Append(errs, eris.New("geometry.path is required"))
		}
		if c.Model.Path == "" {
			errs = multierr.Append(errs, eris.New("model.path is required"))
		}
	case "fetch":
		if c.Fetch.DataDir == "" {
			errs = multierr.Append(errs, eris.New("fetch.data_dir is required"))
		}
		if c.Fetch.TimeoutSecs <= 0 {
			errs = multierr.Append(errs, eris.New("fetch.timeout_secs must be > 0"))
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	return errs
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
