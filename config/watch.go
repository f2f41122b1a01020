package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/leeforge/imagevise/logging"
)

// Watch reloads the files when one of them changes and then calls
// onChange. The directory is watched rather than the files, which
// catches editors that replace a file on save. Watching stops when ctx
// is done.
func (l *Loader) Watch(ctx context.Context, onChange func(e fsnotify.Event)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("❌ Failed to create config watcher: %w", err)
	}
	if err := watcher.Add(l.opts.BasePath); err != nil {
		watcher.Close()
		return fmt.Errorf("❌ Failed to watch %s: %w", l.opts.BasePath, err)
	}

	watched := make(map[string]struct{})
	for _, file := range l.candidateFiles() {
		watched[filepath.Clean(file)] = struct{}{}
	}

	logger := logging.Named("config")
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if _, ok := watched[filepath.Clean(event.Name)]; !ok {
					continue
				}
				if !event.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
					continue
				}
				if err := l.Reload(); err != nil {
					logger.Warn("config.reload_failed", zap.String("file", event.Name), zap.Error(err))
					continue
				}
				logger.Info("config.reloaded", zap.String("file", event.Name), zap.String("op", event.Op.String()))
				if onChange != nil {
					onChange(event)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config.watch_error", zap.Error(err))
			}
		}
	}()
	return nil
}
