package logger

import (
	"io"
	"os"
	"strings"
	"time"

	sdklog "cosmossdk.io/log"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Global logger instance. Usable before Initialize, writes JSON to stderr.
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Initialize sets up the global logger with a console writer on stdout.
func Initialize(logLevel string) {
	InitializeWithWriter(logLevel, zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
	})
}

// InitializeWithWriter sets up the global logger on an arbitrary writer.
// Use zerolog.MultiLevelWriter together with FileWriter to log to console and file.
func InitializeWithWriter(logLevel string, w io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339

	Logger = zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Logger()

	zerolog.SetGlobalLevel(ParseLevel(logLevel))

	// Replace standard log with zerolog
	log.Logger = Logger
}

// ParseLevel maps the LOG_LEVEL values to zerolog levels, defaulting to info.
func ParseLevel(logLevel string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the global logger instance
func Get() *zerolog.Logger {
	return &Logger
}

// GetForComponent returns a logger with a component field for better filtering
func GetForComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// SDKLogger wraps the component logger for code that expects the SDK logger
// interface, e.g. the sdk.Context handed to keepers.
func SDKLogger(component string) sdklog.Logger {
	return sdklog.NewCustomLogger(GetForComponent(component))
}

// FileWriter returns a writer to a log file for optional use alongside console logging
func FileWriter(path string) (io.Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return file, nil
}
