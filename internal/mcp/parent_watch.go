package mcp

import (
	"context"
	"os"
	"time"

	"looprig/internal/logging"
)

// parentPollInterval is how often WatchParent checks the parent pid.
var parentPollInterval = 2 * time.Second

// WatchParent calls cancel once the process that launched the server goes
// away, so a stdio server does not outlive its client. It never touches
// stdin, which belongs to the transport.
func WatchParent(ctx context.Context, cancel context.CancelFunc) {
	ppid := os.Getppid()
	interval := parentPollInterval
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if os.Getppid() != ppid {
					logging.New("mcp").Warn("parent process exited, shutting down", "ppid", ppid)
					cancel()
					return
				}
			}
		}
	}()
}
