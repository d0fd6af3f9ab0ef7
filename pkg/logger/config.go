package logger

import (
	"io"
	"os"
	"strings"
)

// LogLevel is the set of severities the logger accepts, independent of the
// charmbracelet/log level values it maps to.
type LogLevel string

const (
	DebugLevel    LogLevel = "debug"
	InfoLevel     LogLevel = "info"
	WarnLevel     LogLevel = "warn"
	ErrorLevel    LogLevel = "error"
	DisabledLevel LogLevel = "disabled"
)

// ToCharmlogLevel maps a LogLevel to the numeric level charmbracelet/log
// expects. Unknown levels fall back to InfoLevel's value rather than erroring,
// since logging must never be the reason a process fails to start.
func (l LogLevel) ToCharmlogLevel() int {
	switch l {
	case DebugLevel:
		return -4
	case InfoLevel:
		return 0
	case WarnLevel:
		return 4
	case ErrorLevel:
		return 8
	case DisabledLevel:
		return 1000
	default:
		return 0
	}
}

// Config controls how NewLogger builds a Logger.
type Config struct {
	Level      LogLevel
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns the Config used when none is supplied explicitly.
func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stdout,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// TestConfig returns a Config tuned for unit tests: output discarded and
// logging disabled unless a test replaces Output/Level to inspect behavior.
func TestConfig() *Config {
	return &Config{
		Level:      DisabledLevel,
		Output:     io.Discard,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// IsTestEnvironment reports whether the process is running under `go test`.
func IsTestEnvironment() bool {
	if flag := os.Getenv("GO_TEST"); flag != "" {
		return true
	}
	for _, arg := range os.Args {
		if strings.HasSuffix(arg, ".test") || strings.Contains(arg, "/_test/") {
			return true
		}
	}
	return strings.HasSuffix(os.Args[0], ".test")
}
