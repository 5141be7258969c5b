package crg

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/crgctl/internal/clock"
	"github.com/danmuck/crgctl/internal/reset"
)

var (
	ErrInvalidClock   = errors.New("crg: invalid clock")
	ErrEdgeBudget     = errors.New("crg: edge budget exhausted")
	ErrEmptyScheduler = errors.New("crg: scheduler has no clocks")
)

// Edge is one rising clock edge delivered by the scheduler.
type Edge struct {
	Clock  string
	TimePS int64
}

type scheduledClock struct {
	name   string
	period int64
	next   int64
	ticks  uint64
	tick   func()
}

// Scheduler interleaves rising edges of several clocks in simulated time.
// Edges that coincide are delivered in the order the clocks were added.
type Scheduler struct {
	clocks []*scheduledClock
	now    int64
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Add registers a clock whose first rising edge is one period after time zero.
func (s *Scheduler) Add(name string, freq clock.Hz, tick func()) error {
	period := freq.PeriodPS()
	if period <= 0 || tick == nil {
		return fmt.Errorf("%w: %s at %s", ErrInvalidClock, name, freq)
	}
	s.clocks = append(s.clocks, &scheduledClock{name: name, period: period, next: period, tick: tick})
	return nil
}

// Now is the simulated time of the last delivered edge, in picoseconds.
func (s *Scheduler) Now() int64 { return s.now }

// Ticks returns the number of edges delivered to the named clock.
func (s *Scheduler) Ticks(name string) uint64 {
	for _, c := range s.clocks {
		if c.name == name {
			return c.ticks
		}
	}
	return 0
}

// Step delivers the next rising edge.
func (s *Scheduler) Step() (Edge, error) {
	if len(s.clocks) == 0 {
		return Edge{}, ErrEmptyScheduler
	}
	next := s.clocks[0]
	for _, c := range s.clocks[1:] {
		if c.next < next.next {
			next = c
		}
	}
	s.now = next.next
	next.next += next.period
	next.ticks++
	next.tick()
	return Edge{Clock: next.name, TimePS: s.now}, nil
}

// Scheduler returns a scheduler driving the reference, bring-up and primary
// clocks of the system.
func (s *System) Scheduler() (*Scheduler, error) {
	sch := NewScheduler()
	if err := sch.Add("reference", s.cfg.ReferenceHz, s.TickReference); err != nil {
		return nil, err
	}
	if err := sch.Add(s.bringUp.Name, s.bringUp.Frequency, s.TickBringUp); err != nil {
		return nil, err
	}
	if err := sch.Add(s.primary.Name, s.primary.Frequency, s.TickPrimary); err != nil {
		return nil, err
	}
	return sch, nil
}

// RunResult summarizes a scheduled run.
type RunResult struct {
	State        reset.State
	Edges        int
	ElapsedPS    int64
	BringUpTicks uint64
	PrimaryTicks uint64
	Transitions  []Transition
}

const ctxCheckEvery = 1024

// RunUntil steps sch until done reports true or maxEdges edges were delivered.
func (s *System) RunUntil(ctx context.Context, sch *Scheduler, maxEdges int, done func() bool) (RunResult, error) {
	edges := 0
	for !done() {
		if edges >= maxEdges {
			return s.result(sch, edges), fmt.Errorf("%w after %d edges in %s", ErrEdgeBudget, edges, s.seq.State())
		}
		if edges%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return s.result(sch, edges), err
			}
		}
		if _, err := sch.Step(); err != nil {
			return s.result(sch, edges), err
		}
		edges++
	}
	return s.result(sch, edges), nil
}

// RunUntilReleased simulates from the current state until the primary domain
// leaves reset.
func (s *System) RunUntilReleased(ctx context.Context, maxEdges int) (RunResult, error) {
	sch, err := s.Scheduler()
	if err != nil {
		return RunResult{}, err
	}
	return s.RunUntil(ctx, sch, maxEdges, func() bool { return !s.seq.PrimaryReset() })
}

func (s *System) result(sch *Scheduler, edges int) RunResult {
	return RunResult{
		State:        s.seq.State(),
		Edges:        edges,
		ElapsedPS:    sch.Now(),
		BringUpTicks: sch.Ticks(s.bringUp.Name),
		PrimaryTicks: sch.Ticks(s.primary.Name),
		Transitions:  s.Transitions(),
	}
}
