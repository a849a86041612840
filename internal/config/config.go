// Package config loads the onnxinline CLI configuration from flags, environment
// variables (ONNXINLINE_*) and an optional onnxinline.yaml file.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the CLI configuration.
type Config struct {
	// Schemas is the path to a YAML operator schema file. Empty means no schemas.
	Schemas string

	RecursionLimit        int
	Parallelism           int
	ExternalDataThreshold int64
	LogLevel              string
}

// Keys.
const (
	KeySchemas               = "schemas"
	KeyRecursionLimit        = "recursion_limit"
	KeyParallelism           = "parallelism"
	KeyExternalDataThreshold = "external_data_threshold"
	KeyLogLevel              = "log_level"
)

// New returns a viper instance with defaults, environment binding and the
// config file search path set. Flags may be bound to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ONNXINLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("onnxinline")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/onnxinline")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeySchemas, "")
	v.SetDefault(KeyRecursionLimit, 32)
	v.SetDefault(KeyParallelism, 4)
	v.SetDefault(KeyExternalDataThreshold, 1024)
	v.SetDefault(KeyLogLevel, "info")
}

// Load reads the config file, if any, and returns the validated configuration.
// configFile overrides the search path when non-empty.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{
		Schemas:               v.GetString(KeySchemas),
		RecursionLimit:        v.GetInt(KeyRecursionLimit),
		Parallelism:           v.GetInt(KeyParallelism),
		ExternalDataThreshold: v.GetInt64(KeyExternalDataThreshold),
		LogLevel:              v.GetString(KeyLogLevel),
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.RecursionLimit <= 0 {
		return errors.Errorf("%s must be positive, got %d", KeyRecursionLimit, cfg.RecursionLimit)
	}
	if cfg.Parallelism <= 0 {
		return errors.Errorf("%s must be positive, got %d", KeyParallelism, cfg.Parallelism)
	}
	if cfg.ExternalDataThreshold < 0 {
		return errors.Errorf("%s must not be negative, got %d", KeyExternalDataThreshold, cfg.ExternalDataThreshold)
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Wrapf(err, "%s", KeyLogLevel)
	}
	return nil
}

// Logger builds a console logger at the configured level, writing to stderr.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", KeyLogLevel)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	logger, err := zc.Build()
	return logger, errors.Wrap(err, "build logger")
}
