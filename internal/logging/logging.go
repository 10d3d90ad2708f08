// Package logging configures the process-wide zerolog logger. The TUI owns
// the terminal, so logs go to a file under the state directory; console
// output only exists for the headless subcommands.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger. When console is true (headless
// subcommands) messages are also pretty-printed to stderr; the full-screen
// interface logs to the file only.
func Setup(logPath string, verbosity int, console bool) {
	switch verbosity {
	case 0:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case 1:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}

	var writers []io.Writer
	if console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		})
	}

	file, err := openLogFile(logPath)
	if err == nil {
		writers = append(writers, file)
	}

	switch len(writers) {
	case 0:
		log.Logger = zerolog.New(io.Discard)
	case 1:
		log.Logger = zerolog.New(writers[0]).With().Timestamp().Logger()
	default:
		log.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
	}

	if err != nil && console {
		log.Warn().Err(err).Str("path", logPath).Msg("log file unavailable, console only")
	}

	log.Debug().Int("verbosity", verbosity).Str("logFile", logPath).Msg("logger initialized")
}

// Component returns a logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func openLogFile(logPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}
