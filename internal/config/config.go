// Package config loads the adsync configuration from file and
// environment and initializes logging.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Quora   QuoraConfig   `yaml:"quora" mapstructure:"quora"`
	Limiter LimiterConfig `yaml:"limiter" mapstructure:"limiter"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Harvest HarvestConfig `yaml:"harvest" mapstructure:"harvest"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// QuoraConfig holds the Quora Ads API endpoints.
type QuoraConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	TokenURL string `yaml:"token_url" mapstructure:"token_url"`
}

// LimiterConfig configures the shared request budget.
type LimiterConfig struct {
	Capacity int           `yaml:"capacity" mapstructure:"capacity"`
	Window   time.Duration `yaml:"window" mapstructure:"window"`
}

// RetryConfig configures HTTP retry behavior.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction float64       `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// StoreConfig configures the warehouse database and table names.
type StoreConfig struct {
	DatabaseURL  string `yaml:"database_url" mapstructure:"database_url"`
	Schema       string `yaml:"schema" mapstructure:"schema"`
	TargetTable  string `yaml:"target_table" mapstructure:"target_table"`
	StagingTable string `yaml:"staging_table" mapstructure:"staging_table"`
}

// HarvestConfig configures the harvest run.
type HarvestConfig struct {
	ResultsFile string `yaml:"results_file" mapstructure:"results_file"`
	Workers     int    `yaml:"workers" mapstructure:"workers"`
}

// AuthConfig configures credential storage.
type AuthConfig struct {
	SecretFile string `yaml:"secret_file" mapstructure:"secret_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml and ADSYNC_* environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ADSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("quora.base_url", "https://api.quora.com/ads/v0")
	v.SetDefault("quora.token_url", "https://www.quora.com/_/oauth/token")
	v.SetDefault("limiter.capacity", 1800)
	v.SetDefault("limiter.window", "3600s")
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.initial_backoff", "1s")
	v.SetDefault("retry.max_backoff", "30s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("store.schema", "quora_ads")
	v.SetDefault("store.target_table", "quora_ads")
	v.SetDefault("store.staging_table", "quora_ads_tmp")
	v.SetDefault("harvest.results_file", "data.json")
	v.SetDefault("harvest.workers", 1)
	v.SetDefault("auth.secret_file", "secret.json")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
