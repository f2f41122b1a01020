package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	globalLogger Logger
	globalMu     sync.RWMutex
)

// Global returns the process logger. Until Init or SetGlobal is called it
// is a console-only logger at info level.
func Global() Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		cfg := DefaultConfig()
		cfg.LogToFile = false
		globalLogger = NewLogger(cfg)
	}
	return globalLogger
}

// SetGlobal replaces the global logger with the given logger.
func SetGlobal(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// Init initializes the global logger with the given config.
func Init(config Config) Logger {
	l := NewLogger(config)
	SetGlobal(l)
	return l
}

// Info logs a message at InfoLevel using the global logger.
func Info(msg string, fields ...zap.Field) {
	Global().Info(msg, fields...)
}

// Warn logs a message at WarnLevel using the global logger.
func Warn(msg string, fields ...zap.Field) {
	Global().Warn(msg, fields...)
}

// Error logs a message at ErrorLevel using the global logger.
func Error(msg string, fields ...zap.Field) {
	Global().Error(msg, fields...)
}

// Named creates a child logger from the global logger with the given name.
func Named(name string) Logger {
	return Global().Named(name)
}

// Sync flushes any buffered log entries from the global logger.
func Sync() error {
	return Global().Sync()
}
