// internal/observability/observabilityconfig.go
package observability

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// LogLevel represents logging levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "LOG_LEVELS_DEBUGLEVEL"
	LogLevelInfo  LogLevel = "LOG_LEVELS_INFOLEVEL"
	LogLevelWarn  LogLevel = "LOG_LEVELS_WARNLEVEL"
	LogLevelError LogLevel = "LOG_LEVELS_ERRORLEVEL"
)

// GetZapLevel converts LogLevel to zapcore.Level. The short zap names
// ("debug", "warn", ...) are accepted as well.
func (l LogLevel) GetZapLevel() zapcore.Level {
	switch LogLevel(strings.ToUpper(string(l))) {
	case LogLevelDebug, "DEBUG":
		return zapcore.DebugLevel
	case LogLevelWarn, "WARN":
		return zapcore.WarnLevel
	case LogLevelError, "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Config represents OpenTelemetry configuration
type Config struct {
	Enabled        bool   `yaml:"enabled"`
	ServiceName    string `yaml:"serviceName"`
	ServiceVersion string `yaml:"serviceVersion"`
	Environment    string `yaml:"environment"`
	OTelEndpoint   string `yaml:"otelEndpoint"`
}

// LoggerConfig represents logging configuration
type LoggerConfig struct {
	Level LogLevel `yaml:"level"`
}
