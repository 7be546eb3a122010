package curator

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/lookbook/pkg/imagefs"
)

// DefaultDebounce is how long Watch waits after the last directory event
// before re-running ProcessDirectory.
const DefaultDebounce = 2 * time.Second

// Watch runs ProcessDirectory once, then again whenever images are created,
// written or renamed in sourceDir, until ctx is cancelled. Bursts of events
// collapse into a single run after the debounce interval.
func (c *Curator) Watch(ctx context.Context, sourceDir, storePath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(sourceDir); err != nil {
		return fmt.Errorf("watching %s: %w", sourceDir, err)
	}

	if _, err := c.ProcessDirectory(ctx, sourceDir, storePath); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	c.logger.Info("watching for new images", "dir", sourceDir)

	timer := time.NewTimer(c.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !imagefs.IsSupported(event.Name) {
				continue
			}
			c.logger.Debug("image changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(c.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			if _, err := c.ProcessDirectory(ctx, sourceDir, storePath); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("curation run failed", "error", err)
			}
		}
	}
}
