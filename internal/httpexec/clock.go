package httpexec

import (
	"context"
	"time"
)

// Clock abstracts timed waits so engines can be tested without real sleeps.
type Clock interface {
	// Sleep waits for d or until ctx is cancelled, returning ctx.Err() in
	// the latter case.
	Sleep(ctx context.Context, d time.Duration) error
	Now() time.Time
}

// RealClock waits on the wall clock.
type RealClock struct{}

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (RealClock) Now() time.Time {
	return time.Now()
}
