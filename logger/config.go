package logger

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

var validLevels = []string{"debug", "info", "warn", "error", "fatal"}

// ManagerConfig is the logger section of the application config, shared by every module logger.
type ManagerConfig struct {
	BaseLogDir            string `mapstructure:"base_log_dir"`
	Level                 string `mapstructure:"level"`
	AppName               string `mapstructure:"app_name"` // injected into every entry, even when empty
	Encoding              string `mapstructure:"encoding"` // json or console
	ConsoleEncoding       string `mapstructure:"console_encoding"`
	EnableConsole         bool   `mapstructure:"enable_console"`
	EnableFile            bool   `mapstructure:"enable_file"`
	EnableLevelInFilename bool   `mapstructure:"enable_level_in_filename"`
	EnableDateInFilename  bool   `mapstructure:"enable_date_in_filename"`
	DateFormat            string `mapstructure:"date_format"`
	MaxSize               int    `mapstructure:"max_size"` // MB
	MaxBackups            int    `mapstructure:"max_backups"`
	MaxAge                int    `mapstructure:"max_age"` // days
	Compress              bool   `mapstructure:"compress"`
	EnableCaller          bool   `mapstructure:"enable_caller"`
	EnableStacktrace      bool   `mapstructure:"enable_stacktrace"`
	StacktraceLevel       string `mapstructure:"stacktrace_level"`
	StacktraceDepth       int    `mapstructure:"stacktrace_depth"` // 0 = unlimited

	EnableTraceID    bool   `mapstructure:"enable_trace_id"`
	TraceIDKey       string `mapstructure:"trace_id_key"`        // string context key checked after the span
	TraceIDFieldName string `mapstructure:"trace_id_field_name"` // default "trace_id"
}

// moduleConfig is the per-module view of ManagerConfig.
type moduleConfig struct {
	ManagerConfig
	module string
}

// DefaultManagerConfig returns the defaults used when no logger section is configured.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		BaseLogDir:            "logs",
		Level:                 "info",
		Encoding:              "json",
		ConsoleEncoding:       "console",
		EnableConsole:         true,
		EnableFile:            true,
		EnableLevelInFilename: true,
		EnableDateInFilename:  true,
		DateFormat:            "2006-01-02",
		MaxSize:               100,
		MaxBackups:            3,
		MaxAge:                28,
		Compress:              true,
		EnableCaller:          true,
		EnableStacktrace:      true,
		StacktraceLevel:       "error",
		StacktraceDepth:       5,
		EnableTraceID:         true,
		TraceIDKey:            "trace_id",
		TraceIDFieldName:      "trace_id",
	}
}

// ApplyDefaults fills zero-valued string and numeric fields. Booleans are kept as configured.
func (c *ManagerConfig) ApplyDefaults() {
	d := DefaultManagerConfig()

	if c.BaseLogDir == "" {
		c.BaseLogDir = d.BaseLogDir
	}
	if c.Level == "" {
		c.Level = d.Level
	}
	if c.Encoding == "" {
		c.Encoding = d.Encoding
	}
	if c.ConsoleEncoding == "" {
		c.ConsoleEncoding = d.ConsoleEncoding
	}
	if c.DateFormat == "" {
		c.DateFormat = d.DateFormat
	}
	if c.StacktraceLevel == "" {
		c.StacktraceLevel = d.StacktraceLevel
	}
	if c.TraceIDKey == "" {
		c.TraceIDKey = d.TraceIDKey
	}
	if c.TraceIDFieldName == "" {
		c.TraceIDFieldName = d.TraceIDFieldName
	}
	if c.MaxSize == 0 {
		c.MaxSize = d.MaxSize
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = d.MaxBackups
	}
	if c.MaxAge == 0 {
		c.MaxAge = d.MaxAge
	}
}

// Validate checks enum and range fields. Call after ApplyDefaults.
func (c ManagerConfig) Validate() error {
	if !contains(validLevels, c.Level) {
		return fmt.Errorf("invalid log level: %s (valid values: %v)", c.Level, validLevels)
	}
	if !contains(validLevels, c.StacktraceLevel) {
		return fmt.Errorf("invalid stacktrace level: %s (valid values: %v)", c.StacktraceLevel, validLevels)
	}
	for _, enc := range []string{c.Encoding, c.ConsoleEncoding} {
		if enc != "json" && enc != "console" {
			return fmt.Errorf("invalid log encoding: %s (valid values: json, console)", enc)
		}
	}
	if c.MaxSize < 1 || c.MaxSize > 10000 {
		return fmt.Errorf("max_size must be between 1-10000 MB, current: %d", c.MaxSize)
	}
	if c.MaxBackups < 0 || c.MaxBackups > 1000 {
		return fmt.Errorf("max_backups must be between 0-1000, current: %d", c.MaxBackups)
	}
	if c.MaxAge < 0 || c.MaxAge > 3650 {
		return fmt.Errorf("max_age must be between 0-3650 days, current: %d", c.MaxAge)
	}
	return nil
}

// ParseLevel maps a level name to zapcore. Unknown names map to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// filePath builds logs/<module>/<module>[-level][-date].log
func (c moduleConfig) filePath(level string) string {
	parts := []string{c.module}
	if c.EnableLevelInFilename {
		parts = append(parts, level)
	}
	if c.EnableDateInFilename {
		parts = append(parts, time.Now().Format(c.DateFormat))
	}
	return filepath.Join(c.BaseLogDir, c.module, strings.Join(parts, "-")+".log")
}
