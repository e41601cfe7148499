package ingestion

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is how long Watch waits after the last event before
// ingesting, so files that are still being written settle first.
const DefaultWatchDebounce = 500 * time.Millisecond

// Watch ingests files with an accepted extension as they are created or
// written in dir. Events are batched until debounce passes without a new one.
// A non-positive debounce uses DefaultWatchDebounce. Watch blocks until ctx is
// done and then returns nil.
func (p *Pipeline) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	p.logger.Info("watching for documents", "dir", dir, "extensions", p.extensions)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !p.Accepts(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("watch error", "dir", dir, "err", err)
		case <-timer.C:
			paths := slices.Sorted(maps.Keys(pending))
			clear(pending)

			report, err := p.IngestFiles(ctx, paths)
			if err != nil {
				p.logger.Error("watch ingestion failed", "err", err)
				continue
			}
			p.logger.Info("watch ingestion finished",
				"ingested", len(report.Ingested),
				"unchanged", len(report.Unchanged),
				"skipped", len(report.Skipped))
		}
	}
}
