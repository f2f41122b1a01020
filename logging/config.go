package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Config represents the logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level" json:"level" yaml:"level"`

	// Format is the log format (json or console).
	Format string `mapstructure:"format" json:"format" yaml:"format"`

	// EncodeLevel is the level encoder type (LowercaseLevelEncoder, LowercaseColorLevelEncoder, CapitalLevelEncoder, CapitalColorLevelEncoder).
	EncodeLevel string `mapstructure:"encode-level" json:"encodeLevel" yaml:"encode-level"`

	// TimeFormat is the time format string (uses Go time format).
	TimeFormat string `mapstructure:"time-format" json:"timeFormat" yaml:"time-format"`

	// Prefix is prepended to every timestamp.
	Prefix string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`

	MessageKey    string `mapstructure:"message-key" json:"messageKey" yaml:"message-key"`
	LevelKey      string `mapstructure:"level-key" json:"levelKey" yaml:"level-key"`
	TimeKey       string `mapstructure:"time-key" json:"timeKey" yaml:"time-key"`
	NameKey       string `mapstructure:"name-key" json:"nameKey" yaml:"name-key"`
	CallerKey     string `mapstructure:"caller-key" json:"callerKey" yaml:"caller-key"`
	StacktraceKey string `mapstructure:"stacktrace-key" json:"stacktraceKey" yaml:"stacktrace-key"`

	// LogInTerminal writes every entry to stdout.
	LogInTerminal bool `mapstructure:"log-in-terminal" json:"logInTerminal" yaml:"log-in-terminal"`

	// LogToFile writes one rotated file per level under Director.
	LogToFile bool `mapstructure:"log-to-file" json:"logToFile" yaml:"log-to-file"`

	// Director is the directory where log files will be stored.
	Director string `mapstructure:"director" json:"director" yaml:"director"`

	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `mapstructure:"max-age" json:"maxAge" yaml:"max-age"`

	// MaxSize is the maximum size in megabytes of the log file before it gets rotated.
	MaxSize int `mapstructure:"max-size" json:"maxSize" yaml:"max-size"`

	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int `mapstructure:"max-backups" json:"maxBackups" yaml:"max-backups"`

	// Compress gzips rotated files.
	Compress bool `mapstructure:"compress" json:"compress" yaml:"compress"`

	// ShowLineNumber enables adding caller information to log entries.
	ShowLineNumber bool `mapstructure:"show-line-number" json:"showLineNumber" yaml:"show-line-number"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:          "info",
		Format:         "json",
		EncodeLevel:    "LowercaseLevelEncoder",
		TimeFormat:     "2006/01/02 - 15:04:05",
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LogInTerminal:  true,
		LogToFile:      true,
		Director:       "logs",
		MaxAge:         7,
		MaxSize:        100,
		MaxBackups:     10,
		Compress:       true,
		ShowLineNumber: true,
	}
}

// TransportLevel converts the string level to zapcore.Level.
func (c Config) TransportLevel() zapcore.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.DebugLevel
	}
}

// ZapEncodeLevel returns the zapcore.LevelEncoder based on EncodeLevel.
func (c Config) ZapEncodeLevel() zapcore.LevelEncoder {
	switch c.EncodeLevel {
	case "LowercaseColorLevelEncoder":
		return zapcore.LowercaseColorLevelEncoder
	case "CapitalLevelEncoder":
		return zapcore.CapitalLevelEncoder
	case "CapitalColorLevelEncoder":
		return zapcore.CapitalColorLevelEncoder
	default:
		return zapcore.LowercaseLevelEncoder
	}
}

// applyDefaults applies default values to empty fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&c.Format, defaults.Format)
	fill(&c.TimeFormat, defaults.TimeFormat)
	fill(&c.MessageKey, defaults.MessageKey)
	fill(&c.LevelKey, defaults.LevelKey)
	fill(&c.TimeKey, defaults.TimeKey)
	fill(&c.NameKey, defaults.NameKey)
	fill(&c.CallerKey, defaults.CallerKey)
	fill(&c.StacktraceKey, defaults.StacktraceKey)
	fill(&c.Director, defaults.Director)

	if c.MaxBackups == 0 {
		c.MaxBackups = defaults.MaxBackups
	}
	if c.MaxSize == 0 {
		c.MaxSize = defaults.MaxSize
	}
	if c.MaxAge == 0 {
		c.MaxAge = defaults.MaxAge
	}
	// Without any sink nothing would be logged at all.
	if !c.LogInTerminal && !c.LogToFile {
		c.LogInTerminal = true
	}
}
