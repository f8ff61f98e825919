package vaultd

import (
	"context"
	"log/slog"
	"time"
)

// RunKeeper harvests every configured strategy once per interval until ctx
// is cancelled. A non-positive interval returns immediately.
func (n *Node) RunKeeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	n.logger.Info("keeper started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("keeper stopped")
			return
		case <-ticker.C:
			// Failures are logged per strategy by HarvestAll.
			_ = n.HarvestAll()
		}
	}
}
