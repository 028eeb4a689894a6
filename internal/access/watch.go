package access

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Syncer reloads a policy from its backing file.
type Syncer interface {
	Path() string
	Sync() error
}

// Watch reloads policy whenever its file changes and then calls onReload.
// It watches the containing directory so that editors that replace the file
// by rename are picked up. Watch returns once the watcher is registered; the
// loop stops when ctx is done.
func Watch(ctx context.Context, policy Syncer, onReload func(), logger *zap.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("access: creating policy watcher: %w", err)
	}
	target, err := filepath.Abs(policy.Path())
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("access: resolving policy path: %w", err)
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return fmt.Errorf("access: watching %s: %w", filepath.Dir(target), err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Op.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := policy.Sync(); err != nil {
					logger.Warn("policy reload failed, keeping previous policy",
						zap.String("path", target),
						zap.Error(err),
					)
					continue
				}
				logger.Info("policy reloaded", zap.String("path", target))
				if onReload != nil {
					onReload()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("policy watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
