// Package sweeper closes conversations that have gone quiet so the next
// message starts a fresh one.
package sweeper

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Closer represents the cleanup behavior needed by the sweeper.
type Closer interface {
	CloseIdleConversations(ctx context.Context, cutoff time.Time) (int64, error)
}

// Start runs a periodic idle-conversation sweep until ctx is cancelled.
// Conversations with no activity since now-idleCutoff are closed.
func Start(ctx context.Context, logger *log.Logger, interval, idleCutoff time.Duration, closer Closer) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := closer.CloseIdleConversations(ctx, time.Now().UTC().Add(-idleCutoff))
			if err != nil {
				logger.Warn("idle conversation sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("closed idle conversations", "count", n)
			}
		}
	}
}
