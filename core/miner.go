package core

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RunMiner advances the height by one block every interval until ctx is
// cancelled. A non-positive interval disables the miner.
func (n *Node) RunMiner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := n.MineBlocks(1); err != nil {
				n.logger.Error("mine block", slog.Any("error", err))
				if errors.Is(err, ErrNodeClosed) {
					return
				}
			}
		}
	}
}
