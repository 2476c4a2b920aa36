package domain

import (
	"context"
	"time"
)

// Sleep waits for d, returning ctx.Err() if ctx is done first
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
