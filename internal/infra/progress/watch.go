package progress

import (
	"context"
	"time"

	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
)

// Watch polls store every interval and calls emit whenever the tuple
// changes. It returns nil once a terminal status was emitted, the emit error
// if emit fails, or ctx.Err(). A missing entry is not emitted.
func Watch(ctx context.Context, store runs.ProgressStore, id runs.RunID, interval time.Duration, emit func(runs.Progress) error) error {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	var last runs.Progress
	sent := false
	for {
		p, ok, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		if ok && (!sent || p != last) {
			if err := emit(p); err != nil {
				return err
			}
			last, sent = p, true
		}
		if ok && p.Status.Terminal() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
