// Package logger - logrus setup shared by the pipeline and the CLI.
package logger

import (
	"io"
	"strings"

	"github.com/nvr-ai/go-tensordecode/config"
	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/sirupsen/logrus"
)

// Field keys used across the decoder.
const (
	FieldHead     = "head"
	FieldFrame    = "frame"
	FieldTensor   = "tensor"
	FieldDuration = "duration"
)

// New creates a logger writing to out with the configured level and format.
//
// Arguments:
//   - cfg: Level (default info) and format ("text" or "json", default text).
//   - out: The log destination.
//
// Returns:
//   - *logrus.Logger: The logger.
//   - error: A *model.ConfigError for an unknown level or format.
func New(cfg config.Log, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, model.NewConfigError("log.level", "%v", err)
		}
		level = parsed
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, model.NewConfigError("log.format", "unknown format %q", cfg.Format)
	}
	return log, nil
}

// Discard returns a logger that drops everything. Tests and library callers without
// a logger use it.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
