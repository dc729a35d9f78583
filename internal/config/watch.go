package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch monitors the declaration file at path and calls reload each time it
// is written or re-created. Successful results are passed to onChange; a
// failed reload is logged and onChange is not called. Watch blocks until ctx
// is cancelled.
//
// The parent directory is watched rather than the file so that editors which
// save through a rename keep being observed.
func Watch(ctx context.Context, path string, logger *zap.Logger, reload func() (Config, error), onChange func(Config)) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	logger.Info("watching declaration for changes", zap.String("path", absPath))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := reload()
			if err != nil {
				logger.Error("declaration reload failed, keeping previous configuration",
					zap.String("path", absPath), zap.Error(err))
				continue
			}

			logger.Info("declaration changed", zap.String("path", absPath))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("declaration watcher error", zap.Error(err))
		}
	}
}
