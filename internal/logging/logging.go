// Package logging builds the process logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

type Option func(*zap.Config)

// WithLogLevel sets the minimum level. Unknown levels fall back to info.
func WithLogLevel(level string) Option {
	return func(c *zap.Config) {
		ll := zapcore.InfoLevel
		_ = ll.Set(level)
		c.Level.SetLevel(ll)
	}
}

func WithLogFormat(format string) Option {
	return func(c *zap.Config) {
		switch format {
		case LogFormatConsole:
			c.Encoding = LogFormatConsole
			c.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
			c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		default:
			c.Encoding = LogFormatJSON
		}
	}
}

func WithOutputPaths(paths ...string) Option {
	return func(c *zap.Config) {
		if len(paths) > 0 {
			c.OutputPaths = paths
		}
	}
}

// New builds a production logger and installs it as the zap global.
func New(opts ...Option) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Sampling = nil
	zc.DisableStacktrace = true

	for _, opt := range opts {
		opt(&zc)
	}

	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(l)

	l.Debug("logger created", zap.String("log_level", zc.Level.String()), zap.String("log_format", zc.Encoding))
	return l, nil
}
