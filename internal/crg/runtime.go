package crg

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// Clocks feeds free-running edges to Run. A nil channel disables that clock.
type Clocks struct {
	Reference <-chan time.Time
	BringUp   <-chan time.Time
	Primary   <-chan time.Time
}

// TickerClocks derives wall-clock tickers from the configured frequencies,
// stretched by slowdown. The returned func stops every ticker.
func (s *System) TickerClocks(slowdown float64) (Clocks, func()) {
	if slowdown < 1 {
		slowdown = 1
	}
	period := func(ps int64) time.Duration {
		d := time.Duration(float64(ps) / 1000 * slowdown)
		if d < time.Microsecond {
			d = time.Microsecond
		}
		return d
	}
	ref := time.NewTicker(period(s.cfg.ReferenceHz.PeriodPS()))
	bu := time.NewTicker(period(s.bringUp.Frequency.PeriodPS()))
	pr := time.NewTicker(period(s.primary.Frequency.PeriodPS()))
	stop := func() {
		ref.Stop()
		bu.Stop()
		pr.Stop()
	}
	return Clocks{Reference: ref.C, BringUp: bu.C, Primary: pr.C}, stop
}

// Run drives each clock from its own goroutine until ctx is done. The loops
// share nothing but level signals.
func (s *System) Run(ctx context.Context, clocks Clocks) error {
	g, ctx := errgroup.WithContext(ctx)
	drive := func(c <-chan time.Time, tick func()) {
		if c == nil {
			return
		}
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-c:
					tick()
				}
			}
		})
	}
	drive(clocks.Reference, s.TickReference)
	drive(clocks.BringUp, s.TickBringUp)
	drive(clocks.Primary, s.TickPrimary)

	s.log.Info().Msg("crg running")
	err := g.Wait()
	s.log.Info().Stringer("state", s.seq.State()).Msg("crg stopped")
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
