// Package logging builds the zerolog logger used across send2crm.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuseinfotech/send2crm/internal/config"
)

// Setup creates a logger from cfg writing to out (stderr when nil).
// Format "text" selects the console writer, anything else emits JSON lines.
func Setup(cfg config.LoggingConfig, out io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("logging: parse level: %w", err)
		}
		level = parsed
	}

	if out == nil {
		out = os.Stderr
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json":
	case "text":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return zerolog.Logger{}, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	return zerolog.New(out).With().Timestamp().Logger().Level(level), nil
}
