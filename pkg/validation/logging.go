package validation

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Log format names accepted by the logging configuration.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// ParseLogLevel maps a configured level name to a zap level. An empty name
// means info.
func ParseLogLevel(level string) (zapcore.Level, error) {
	switch level {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// ValidateLogFormat checks the configured log encoding. An empty format is
// accepted and means json.
func ValidateLogFormat(format string) error {
	switch format {
	case "", LogFormatJSON, LogFormatConsole:
		return nil
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}
}
