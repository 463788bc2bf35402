package service

import (
    "context"
    "time"
)

// StartReaper runs ExpirePending on a fixed interval until the
// context is cancelled.  It is launched once from main as a
// background goroutine; the lazy expiry checks in the capture path
// keep the system correct even if the reaper falls behind, so the
// interval is a cleanup cadence, not a correctness knob.
func (s *Settlement) StartReaper(ctx context.Context, interval time.Duration) {
    go func() {
        ticker := time.NewTicker(interval)
        defer ticker.Stop()
        for {
            select {
            case <-ctx.Done():
                return
            case <-ticker.C:
                if _, err := s.ExpirePending(ctx); err != nil {
                    s.log.WithError(err).Warn("reaper pass failed")
                }
            }
        }
    }()
}
