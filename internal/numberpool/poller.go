package numberpool

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Schedule is the fast-then-slow poll cadence. The vendor's script load and
// number assignment timing is unpredictable, so the first Window is polled
// aggressively and the rest of the page lifetime lazily.
type Schedule struct {
	Fast   time.Duration
	Window time.Duration
	Slow   time.Duration
}

// DefaultSchedule polls every 500ms for 30s, then every 3s.
func DefaultSchedule() Schedule {
	return Schedule{
		Fast:   500 * time.Millisecond,
		Window: 30 * time.Second,
		Slow:   3 * time.Second,
	}
}

// WithDefaults fills unset durations from DefaultSchedule.
func (s Schedule) WithDefaults() Schedule {
	d := DefaultSchedule()
	if s.Fast <= 0 {
		s.Fast = d.Fast
	}
	if s.Window <= 0 {
		s.Window = d.Window
	}
	if s.Slow <= 0 {
		s.Slow = d.Slow
	}
	return s
}

// Poll runs the resolver until ctx is cancelled. Every ticker and timer it
// acquires is released before it returns, and the resolver ends Idle.
func Poll(ctx context.Context, r *Resolver, s Schedule) {
	s = s.WithDefaults()
	defer r.stop()

	found := r.Start(ctx)

	var fastC <-chan time.Time
	fast := time.NewTicker(s.Fast)
	defer fast.Stop()
	if found {
		fast.Stop()
	} else {
		fastC = fast.C
	}

	window := time.NewTimer(s.Window)
	defer window.Stop()

	var slow *time.Ticker
	var slowC <-chan time.Time
	defer func() {
		if slow != nil {
			slow.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("poller torn down",
				zap.String("number", r.Current()),
				zap.String("source", r.Source()))
			return

		case <-fastC:
			if r.Check(ctx) {
				fast.Stop()
				fastC = nil
			}

		case <-window.C:
			fast.Stop()
			fastC = nil
			slow = time.NewTicker(s.Slow)
			slowC = slow.C

		case <-slowC:
			r.Check(ctx)
		}
	}
}

// Until polls until a number is found or ctx ends, and reports the number in
// use at that point.
func Until(ctx context.Context, r *Resolver, s Schedule) (string, bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		Poll(ctx, r, s)
	}()

	ticker := time.NewTicker(s.WithDefaults().Fast)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-done
			return r.Current(), r.Source() != ""
		case <-ticker.C:
			if r.State() == Found {
				cancel()
				<-done
				return r.Current(), true
			}
		}
	}
}
