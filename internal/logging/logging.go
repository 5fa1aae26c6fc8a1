// Package logging builds the process logger and per-component entries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config selects the level, format and destination of log output.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	File   string `yaml:"file"`   // empty logs to stderr
}

// New returns a configured logger. The returned closer releases the log file,
// if any.
func New(cfg Config) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(cfg.Level); err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	case "json":
		formatter := new(logrus.JSONFormatter)
		formatter.TimestampFormat = time.RFC3339Nano
		logger.SetFormatter(formatter)
	default:
		return nil, nil, fmt.Errorf("log format %q: want json or text", cfg.Format)
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		logger.SetOutput(f)
		closer = f
	}
	return logger, closer, nil
}

// Component tags every line with the component name.
func Component(logger logrus.FieldLogger, name string) *logrus.Entry {
	return logger.WithField("component", name)
}

// Discard returns a logger that writes nothing, for tests and tools.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
