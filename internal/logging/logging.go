// Package logging configures the zerolog root logger and hands out
// component loggers.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logger fields
const (
	COMPONENT = "component"
	REQUEST   = "request_id"
	USER      = "user_id"
	PROJECT   = "project_id"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// New builds a logger writing to w. format is "json" or "console"; level is
// any zerolog level name and falls back to info.
func New(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(parsed).With().Timestamp().Logger()
}

// SetGlobal replaces the package-level zerolog logger used by For.
func SetGlobal(logger zerolog.Logger) {
	log.Logger = logger
}

// For returns a child of the global logger tagged with component.
func For(component string) zerolog.Logger {
	return log.With().Str(COMPONENT, component).Logger()
}
