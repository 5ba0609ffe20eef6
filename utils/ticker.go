package utils

import (
	"context"
	"time"

	"github.com/edaniels/golog"
)

// ReportProgress starts a goroutine that logs p every interval until ctx is done
// or the returned stop function is called.
func ReportProgress(ctx context.Context, p *Progress, interval time.Duration, logger golog.Logger) func() {
	ticker := time.NewTicker(interval)
	ctxWithCancel, cancel := context.WithCancel(ctx)
	startTime := time.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				snap := p.Snapshot()
				elapsed := time.Since(startTime).Round(time.Second).String()
				if snap.Target > 0 {
					logger.Infow("progress", "phase", snap.Phase,
						"done", snap.Value, "of", snap.Target, "time_elapsed", elapsed)
				} else {
					logger.Infow("progress", "phase", snap.Phase, "done", snap.Value, "time_elapsed", elapsed)
				}
			case <-ctxWithCancel.Done():
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		cancel()
		<-done
	}
}
