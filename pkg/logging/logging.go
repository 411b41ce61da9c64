package logging

import (
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

/*
Setup configures the process-wide logger once at startup.  Everything
else in the codebase logs through the package-level charmbracelet
functions, so this is the single place the level is decided.
*/
func Setup(level string) {
	log.SetDefault(log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           ParseLevel(level),
	}))
}

/*
ParseLevel maps a configured level name to a log level, defaulting to
info for anything unrecognized.
*/
func ParseLevel(raw string) log.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
