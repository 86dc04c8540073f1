// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/projectlog/internal/config"
)

// New returns a zerolog logger writing to w (stderr when nil). Development
// environments get the console writer; everything else gets JSON lines.
func New(cfg *config.Config, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if cfg.IsDevelopment() {
		w = zerolog.ConsoleWriter{Out: w, NoColor: w != os.Stderr}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "projectlog").Logger()
}
