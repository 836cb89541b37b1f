// Package logging configures the process-wide logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init builds the root logger for the sidecar. All output goes to stderr so
// the host keeps stdout for its own use. Debug widens the level filter.
func Init(debug bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Str("app", "maple-sidecar").Logger()
	log.Logger = logger
	return logger
}
