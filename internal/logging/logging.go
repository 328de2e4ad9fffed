package logging

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envconfigPrefix = "LOG"

const (
	// FormatJSON produces one JSON object per log entry.
	FormatJSON = "json"
	// FormatConsole produces human-friendly log entries.
	FormatConsole = "console"
)

// Config represents logging configuration.
type Config struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

// GetConfigFromEnvironment returns logging configuration derived from
// environment variables.
func GetConfigFromEnvironment() (Config, error) {
	c := Config{}
	if err := envconfig.Process(envconfigPrefix, &c); err != nil {
		return c, errors.Wrap(
			err,
			"error getting logging configuration from environment",
		)
	}
	return c, nil
}

// NewLogger returns a *zap.Logger built according to the provided Config.
func NewLogger(config Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(config.Level)); err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", config.Level)
	}
	var zapConfig zap.Config
	switch config.Format {
	case FormatJSON:
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "time"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case FormatConsole:
		zapConfig = zap.NewDevelopmentConfig()
	default:
		return nil, errors.Errorf("invalid log format %q", config.Format)
	}
	zapConfig.Level = level
	logger, err := zapConfig.Build()
	return logger, errors.Wrap(err, "error building logger")
}

// NewLoggerFromEnvironment returns a *zap.Logger configured by environment
// variables.
func NewLoggerFromEnvironment() (*zap.Logger, error) {
	config, err := GetConfigFromEnvironment()
	if err != nil {
		return nil, err
	}
	return NewLogger(config)
}
