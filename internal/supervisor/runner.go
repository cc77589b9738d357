// internal/supervisor/runner.go
package supervisor

import (
	"context"
	"time"
)

// Run drives the tick loop until ctx is cancelled, then closes every
// channel and returns. The first tick runs immediately; shutdown is checked
// between ticks and between devices, never mid-exchange.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("supervisor loop starting")
	defer w.log.Info("supervisor loop stopped")
	defer w.closeAll()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}
