package logging

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// openFiles tracks every rotated file. CloseAllWriters flushes them on
// shutdown.
var (
	openFiles   []*lumberjack.Logger
	openFilesMu sync.Mutex
)

// newLevelFile returns the rotated file <Director>/<level>.log.
func newLevelFile(config Config, level string) *lumberjack.Logger {
	_ = os.MkdirAll(config.Director, 0o755)
	f := &lumberjack.Logger{
		Filename:   filepath.Join(config.Director, level+".log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
		LocalTime:  true,
	}

	openFilesMu.Lock()
	openFiles = append(openFiles, f)
	openFilesMu.Unlock()
	return f
}

// getWriteSyncer combines stdout and the level file according to config.
func getWriteSyncer(config Config, level string) zapcore.WriteSyncer {
	var syncers []zapcore.WriteSyncer
	if config.LogInTerminal {
		syncers = append(syncers, zapcore.Lock(os.Stdout))
	}
	if config.LogToFile {
		syncers = append(syncers, zapcore.AddSync(newLevelFile(config, level)))
	}
	return zapcore.NewMultiWriteSyncer(syncers...)
}

// CloseAllWriters closes every log file opened by NewLogger.
func CloseAllWriters() error {
	openFilesMu.Lock()
	defer openFilesMu.Unlock()

	var lastErr error
	for _, f := range openFiles {
		if err := f.Close(); err != nil {
			lastErr = err
		}
	}
	openFiles = nil
	return lastErr
}
