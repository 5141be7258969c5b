package reset

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/danmuck/crgctl/internal/signal"
	"github.com/danmuck/crgctl/internal/testutil/testlog"
)

type recordingLine struct {
	asserted bool
	writes   int
}

func (l *recordingLine) SetReset(asserted bool) {
	l.asserted = asserted
	l.writes++
}

type bench struct {
	ext     *signal.Wire
	lock    *signal.Wire
	ready   *signal.Wire
	primary *recordingLine
	handoff *recordingLine
	seq     *Sequencer
}

func newBench(t *testing.T, cfg Config, withCalibration bool) *bench {
	t.Helper()
	b := &bench{
		ext:     signal.NewWire(false),
		lock:    signal.NewWire(false),
		ready:   signal.NewWire(false),
		primary: &recordingLine{},
		handoff: &recordingLine{},
	}
	var ready signal.Level = signal.Const(true)
	if withCalibration {
		ready = b.ready
	}
	seq, err := NewSequencer(cfg, Inputs{
		ExternalReset: b.ext,
		Lock:          b.lock,
		Ready:         ready,
	}, Lines{Primary: b.primary, Handoff: b.handoff})
	if err != nil {
		t.Fatalf("new sequencer: %v", err)
	}
	b.seq = seq
	return b
}

// completeStage1 ticks the bring-up clock with lock held until the
// intermediate reset releases and returns the number of ticks taken.
func (b *bench) completeStage1(t *testing.T) int {
	t.Helper()
	b.lock.Set(true)
	for n := 1; n <= 1<<16; n++ {
		b.seq.TickBringUp()
		if !b.seq.IntermediateReset() {
			return n
		}
	}
	t.Fatalf("stage 1 never completed")
	return 0
}

// driveTo interleaves both clocks until the sequencer reaches want.
func (b *bench) driveTo(t *testing.T, want State) {
	t.Helper()
	b.lock.Set(true)
	b.ready.Set(true)
	for i := 0; i < 1<<16; i++ {
		if b.seq.State() == want {
			return
		}
		b.seq.TickBringUp()
		if b.seq.State() == want {
			return
		}
		b.seq.TickPrimary()
	}
	t.Fatalf("never reached %s, stuck in %s", want, b.seq.State())
}

func TestNewSequencerRequiresInputs(t *testing.T) {
	testlog.Start(t)

	cases := []Inputs{
		{Lock: signal.Const(true), Ready: signal.Const(true)},
		{ExternalReset: signal.Const(false), Ready: signal.Const(true)},
		{ExternalReset: signal.Const(false), Lock: signal.Const(true)},
	}
	for i, in := range cases {
		if _, err := NewSequencer(DefaultConfig(), in, Lines{}); !errors.Is(err, ErrMissingInput) {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}
	}
}

func TestColdStartIsArmed(t *testing.T) {
	testlog.Start(t)

	b := newBench(t, DefaultConfig(), false)
	snap := b.seq.Snapshot()
	if snap.State != StateArmed {
		t.Fatalf("unexpected state: %s", snap.State)
	}
	if snap.Countdown1 != DefaultDelay || snap.Countdown2 != DefaultDelay {
		t.Fatalf("unexpected countdowns: %s", snap)
	}
	if !snap.IntermediateReset || !snap.PrimaryReset {
		t.Fatalf("expected both resets asserted: %s", snap)
	}
	if !b.primary.asserted || !b.handoff.asserted {
		t.Fatalf("expected lines driven asserted at construction")
	}
}

func TestNoLockHoldsArmed(t *testing.T) {
	testlog.Start(t)

	b := newBench(t, DefaultConfig(), false)
	for i := 0; i < 500; i++ {
		b.seq.TickBringUp()
		b.seq.TickPrimary()
	}
	snap := b.seq.Snapshot()
	if snap.State != StateArmed || snap.Countdown1 != DefaultDelay || !snap.PrimaryReset {
		t.Fatalf("expected armed without lock: %s", snap)
	}
}

func TestBypassScenarioTickCounts(t *testing.T) {
	testlog.Start(t)

	b := newBench(t, DefaultConfig(), false)
	for i := 0; i < 10; i++ {
		b.seq.TickBringUp()
	}
	if b.seq.State() != StateArmed {
		t.Fatalf("unexpected state before lock: %s", b.seq.State())
	}

	b.lock.Set(true)
	stage1 := 0
	for b.seq.IntermediateReset() {
		b.seq.TickBringUp()
		stage1++
		if stage1 < 64 && b.seq.State() != StateCountingStage1 {
			t.Fatalf("unexpected state at bring-up tick %d: %s", stage1, b.seq.State())
		}
		if stage1 > 64 {
			t.Fatalf("stage 1 overran")
		}
	}
	if stage1 != 64 {
		t.Fatalf("unexpected stage 1 ticks: %d", stage1)
	}

	for i := 0; i < signal.Stages; i++ {
		b.seq.TickPrimary()
		if b.seq.Countdown2().Value() != DefaultDelay {
			t.Fatalf("countdown 2 moved during handoff")
		}
		if b.seq.State() != StateCountingStage1 {
			t.Fatalf("unexpected handoff state: %s", b.seq.State())
		}
	}

	stage2 := 0
	for b.seq.PrimaryReset() {
		b.seq.TickPrimary()
		stage2++
		if b.seq.State() == StateWaitingReady {
			t.Fatalf("bypass must not wait for readiness")
		}
		if stage2 > 64 {
			t.Fatalf("stage 2 overran")
		}
		if stage2 < 64 {
			if b.seq.State() != StateCountingStage2 {
				t.Fatalf("unexpected state at primary tick %d: %s", stage2, b.seq.State())
			}
			if got, want := b.seq.Countdown2().Value(), DefaultDelay-uint32(stage2); got != want {
				t.Fatalf("unexpected countdown 2 at tick %d: got=%d want=%d", stage2, got, want)
			}
		}
	}
	if stage2 != 64 {
		t.Fatalf("unexpected stage 2 ticks: %d", stage2)
	}
	if stage1+stage2 != 128 {
		t.Fatalf("unexpected total ticks: %d", stage1+stage2)
	}
	if b.seq.State() != StateReleased || b.primary.asserted || b.handoff.asserted {
		t.Fatalf("expected released with lines deasserted: %s", b.seq.Snapshot())
	}
}

func TestPrimaryReleasesOneTickAfterCountdownReachesZero(t *testing.T) {
	testlog.Start(t)

	b := newBench(t, Config{Stage1Delay: 2, Stage2Delay: 5}, false)
	b.completeStage1(t)
	for b.seq.Countdown2().Value() != 0 {
		b.seq.TickPrimary()
		if !b.seq.PrimaryReset() {
			t.Fatalf("released before countdown 2 reached zero")
		}
	}
	if !b.seq.PrimaryReset() {
		t.Fatalf("released on the tick countdown 2 reached zero")
	}
	b.seq.TickPrimary()
	if b.seq.PrimaryReset() {
		t.Fatalf("expected release one tick after zero")
	}

	b.ready.Set(false)
	for i := 0; i < 200; i++ {
		b.seq.TickBringUp()
		b.seq.TickPrimary()
		if b.seq.PrimaryReset() || b.seq.State() != StateReleased {
			t.Fatalf("release must hold until external reset: %s", b.seq.Snapshot())
		}
	}
	if b.seq.Countdown2().Value() != 0 {
		t.Fatalf("countdown 2 wrapped: %d", b.seq.Countdown2().Value())
	}
}

func TestCalibrationWaitLastsExactlyUntilReady(t *testing.T) {
	testlog.Start(t)

	b := newBench(t, DefaultConfig(), true)
	b.completeStage1(t)

	waiting := 0
	firstCount := 0
	for tick := 1; tick <= 40; tick++ {
		if tick == 11 {
			b.ready.Set(true)
		}
		before := b.seq.Countdown2().Value()
		b.seq.TickPrimary()
		switch b.seq.State() {
		case StateWaitingReady:
			waiting++
			if b.seq.Countdown2().Value() != DefaultDelay {
				t.Fatalf("countdown 2 moved while waiting at tick %d", tick)
			}
		case StateCountingStage2:
			if firstCount == 0 {
				firstCount = tick
				if before != DefaultDelay || b.seq.Countdown2().Value() != DefaultDelay-1 {
					t.Fatalf("unexpected first decrement: before=%d after=%d", before, b.seq.Countdown2().Value())
				}
			}
		}
	}
	if waiting != 10 {
		t.Fatalf("unexpected waiting ticks: %d", waiting)
	}
	if firstCount != 11+signal.Stages {
		t.Fatalf("unexpected first counting tick: %d", firstCount)
	}
}

func TestCountdown2NeverRunsWithoutReady(t *testing.T) {
	testlog.Start(t)

	b := newBench(t, DefaultConfig(), true)
	b.completeStage1(t)
	for i := 0; i < 1000; i++ {
		b.seq.TickPrimary()
		if b.seq.Countdown2().Value() != DefaultDelay {
			t.Fatalf("countdown 2 decremented without ready")
		}
	}
	if b.seq.State() != StateWaitingReady || !b.seq.PrimaryReset() {
		t.Fatalf("expected parked in waiting: %s", b.seq.Snapshot())
	}
}

func TestReadyDropPausesStage2WithoutReload(t *testing.T) {
	testlog.Start(t)

	b := newBench(t, DefaultConfig(), true)
	b.completeStage1(t)
	b.ready.Set(true)
	for b.seq.Countdown2().Value() > 40 {
		b.seq.TickPrimary()
	}
	b.ready.Set(false)
	for i := 0; i < signal.Stages; i++ {
		b.seq.TickPrimary()
	}
	paused := b.seq.Countdown2().Value()
	for i := 0; i < 20; i++ {
		b.seq.TickPrimary()
	}
	if b.seq.Countdown2().Value() != paused || b.seq.State() != StateWaitingReady {
		t.Fatalf("expected paused countdown: %s", b.seq.Snapshot())
	}
	if paused == DefaultDelay || paused == 0 {
		t.Fatalf("unexpected paused value: %d", paused)
	}
}

func TestExternalResetArmsFromEveryState(t *testing.T) {
	testlog.Start(t)

	for _, st := range States() {
		b := newBench(t, Config{Stage1Delay: 7, Stage2Delay: 9}, true)
		if st == StateWaitingReady {
			b.lock.Set(true)
			b.completeStage1(t)
			for b.seq.State() != StateWaitingReady {
				b.seq.TickPrimary()
			}
		} else {
			b.driveTo(t, st)
		}

		b.ext.Set(true)
		if !b.seq.PrimaryReset() {
			t.Fatalf("%s: primary reset must follow external reset immediately", st)
		}
		b.seq.TickBringUp()
		if b.seq.Countdown1().Value() != 7 || !b.seq.IntermediateReset() {
			t.Fatalf("%s: bring-up not re-armed after one tick: %s", st, b.seq.Snapshot())
		}
		b.seq.TickPrimary()
		snap := b.seq.Snapshot()
		if snap.State != StateArmed || snap.Countdown2 != 9 || !snap.PrimaryReset {
			t.Fatalf("%s: not armed after one tick of each clock: %s", st, snap)
		}
		if !b.primary.asserted || !b.handoff.asserted {
			t.Fatalf("%s: reset lines not asserted", st)
		}
	}
}

func TestExternalResetFromReleasedMatchesColdStart(t *testing.T) {
	testlog.Start(t)

	cfg := Config{Stage1Delay: 5, Stage2Delay: 3}
	warm := newBench(t, cfg, true)
	warm.driveTo(t, StateReleased)
	cold := newBench(t, cfg, true)

	for _, b := range []*bench{warm, cold} {
		b.ext.Set(true)
		b.lock.Set(true)
		b.ready.Set(true)
		b.seq.TickBringUp()
		b.seq.TickPrimary()
		b.ext.Set(false)
	}
	strip := func(s Snapshot) Snapshot {
		s.BringUpTicks, s.PrimaryTicks = 0, 0
		return s
	}
	if strip(warm.seq.Snapshot()) != strip(cold.seq.Snapshot()) {
		t.Fatalf("warm re-arm differs from cold start: warm=%s cold=%s", warm.seq.Snapshot(), cold.seq.Snapshot())
	}

	steps := func(b *bench) int {
		n := 0
		for b.seq.PrimaryReset() {
			b.seq.TickBringUp()
			b.seq.TickPrimary()
			n++
			if n > 1000 {
				t.Fatalf("never released")
			}
		}
		return n
	}
	if w, c := steps(warm), steps(cold); w != c {
		t.Fatalf("unexpected release timing: warm=%d cold=%d", w, c)
	}
}

func TestLockLossRearms(t *testing.T) {
	testlog.Start(t)

	b := newBench(t, DefaultConfig(), false)
	b.lock.Set(true)
	for i := 0; i < 30; i++ {
		b.seq.TickBringUp()
	}
	b.lock.Set(false)
	b.seq.TickBringUp()
	if b.seq.Countdown1().Value() != DefaultDelay || b.seq.State() != StateArmed {
		t.Fatalf("expected lock glitch to reload countdown 1: %s", b.seq.Snapshot())
	}

	b.driveTo(t, StateReleased)
	b.lock.Set(false)
	b.seq.TickBringUp()
	if !b.seq.PrimaryReset() || b.seq.State() != StateArmed {
		t.Fatalf("expected lock loss to re-arm before the next primary edge: %s", b.seq.Snapshot())
	}
	b.seq.TickPrimary()
	if b.seq.Countdown2().Value() != DefaultDelay {
		t.Fatalf("expected countdown 2 reloaded: %s", b.seq.Snapshot())
	}
}

func TestRearmBetweenPrimaryEdgesRerunsStage2(t *testing.T) {
	testlog.Start(t)

	cfg := Config{Stage1Delay: 5, Stage2Delay: 3}
	warm := newBench(t, cfg, false)
	warm.driveTo(t, StateReleased)

	// The pulse and the whole of stage 1 fit between two primary edges.
	warm.ext.Set(true)
	warm.seq.TickBringUp()
	warm.ext.Set(false)
	warm.completeStage1(t)
	if warm.seq.Released() || !warm.seq.PrimaryReset() {
		t.Fatalf("released before the primary loop saw the re-arm: %s", warm.seq.Snapshot())
	}
	if warm.seq.State() != StateCountingStage1 {
		t.Fatalf("unexpected state with re-arm pending: %s", warm.seq.State())
	}

	cold := newBench(t, cfg, false)
	cold.completeStage1(t)

	strip := func(s Snapshot) Snapshot {
		s.BringUpTicks, s.PrimaryTicks = 0, 0
		return s
	}
	for _, b := range []*bench{warm, cold} {
		b.seq.TickPrimary()
	}
	if warm.seq.Countdown2().Value() != cfg.Stage2Delay || !warm.primary.asserted {
		t.Fatalf("expected countdown 2 reloaded and primary held: %s", warm.seq.Snapshot())
	}
	if strip(warm.seq.Snapshot()) != strip(cold.seq.Snapshot()) {
		t.Fatalf("warm re-arm differs from cold start: warm=%s cold=%s", warm.seq.Snapshot(), cold.seq.Snapshot())
	}

	steps := func(b *bench) int {
		n := 0
		for b.seq.PrimaryReset() {
			b.seq.TickPrimary()
			n++
			if n > 100 {
				t.Fatalf("never released")
			}
		}
		return n
	}
	w, c := steps(warm), steps(cold)
	if w != c {
		t.Fatalf("unexpected release timing: warm=%d cold=%d", w, c)
	}
	if w < int(cfg.Stage2Delay)+1 {
		t.Fatalf("stage 2 skipped: released after %d primary ticks", w)
	}
}

func TestLockGlitchBetweenPrimaryEdgesRerunsStage2(t *testing.T) {
	testlog.Start(t)

	b := newBench(t, DefaultConfig(), false)
	b.driveTo(t, StateReleased)

	b.lock.Set(false)
	b.seq.TickBringUp()
	b.completeStage1(t)
	if b.seq.Released() {
		t.Fatalf("released with an unacknowledged re-arm: %s", b.seq.Snapshot())
	}

	ticks := 0
	for b.seq.PrimaryReset() {
		b.seq.TickPrimary()
		ticks++
		if ticks > 1000 {
			t.Fatalf("never released")
		}
	}
	if want := signal.Stages + int(DefaultDelay) + 1; ticks != want {
		t.Fatalf("unexpected primary ticks after glitch: got=%d want=%d", ticks, want)
	}
}

func TestRandomInputsNeverReleaseEarly(t *testing.T) {
	testlog.Start(t)

	// bringUpOdds is the chance that a step clocks the bring-up loop; the
	// high values let stage 1 finish between two primary edges.
	for _, bringUpOdds := range []float64{1.0 / 3, 0.9} {
		rng := rand.New(rand.NewSource(7))
		b := newBench(t, Config{Stage1Delay: 4, Stage2Delay: 6}, true)
		lockRun, readyRun, stage2Run := 0, 0, 0
		for i := 0; i < 200000; i++ {
			b.ext.Set(rng.Intn(400) == 0)
			b.lock.Set(rng.Intn(50) != 0)
			b.ready.Set(rng.Intn(8) != 0)
			if rng.Float64() < bringUpOdds {
				b.seq.TickBringUp()
				if b.lock.Level() && !b.ext.Level() {
					lockRun++
				} else {
					lockRun = 0
					stage2Run = 0
				}
			} else {
				b.seq.TickPrimary()
				if b.ext.Level() {
					stage2Run = 0
				} else {
					stage2Run++
				}
				if b.ready.Level() {
					readyRun++
				}
			}
			if b.seq.PrimaryReset() {
				continue
			}
			snap := b.seq.Snapshot()
			if snap.Countdown1 != 0 || snap.Countdown2 != 0 || snap.IntermediateReset || b.ext.Level() {
				t.Fatalf("odds=%v: released with pending prerequisites at step %d: %s", bringUpOdds, i, snap)
			}
			if lockRun < 5 {
				t.Fatalf("odds=%v: released after only %d locked bring-up ticks", bringUpOdds, lockRun)
			}
			if stage2Run < 7 {
				t.Fatalf("odds=%v: released after only %d primary ticks since the last re-arm", bringUpOdds, stage2Run)
			}
			if readyRun == 0 {
				t.Fatalf("odds=%v: released without ever observing ready", bringUpOdds)
			}
		}
	}
}

func TestConcurrentLoopsRelease(t *testing.T) {
	testlog.Start(t)

	b := newBench(t, DefaultConfig(), false)
	b.lock.Set(true)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				b.seq.TickBringUp()
			}
		}
	}()
	violations := 0
	go func() {
		defer wg.Done()
		defer close(stop)
		for i := 0; i < 1<<24 && !b.seq.Released(); i++ {
			b.seq.TickPrimary()
			if !b.seq.PrimaryReset() && b.seq.Countdown2().Value() != 0 {
				violations++
			}
		}
	}()
	wg.Wait()

	if violations != 0 {
		t.Fatalf("released with countdown 2 pending %d times", violations)
	}
	if !b.seq.Released() {
		t.Fatalf("expected release: %s", b.seq.Snapshot())
	}
}

func TestApplyTruthTable(t *testing.T) {
	cases := []struct{ released, ext, want bool }{
		{false, false, true},
		{false, true, true},
		{true, true, true},
		{true, false, false},
	}
	for _, tc := range cases {
		if got := Apply(tc.released, tc.ext); got != tc.want {
			t.Fatalf("unexpected Apply(%v,%v)=%v", tc.released, tc.ext, got)
		}
	}
	line := &recordingLine{}
	if NewDomainResetController(line).Drive(true, false) || line.asserted || line.writes != 1 {
		t.Fatalf("unexpected controller drive: %+v", line)
	}
	var nilCtrl *DomainResetController
	if !nilCtrl.Drive(false, false) {
		t.Fatalf("nil controller must still compute the reset bit")
	}
}

func TestCountdownSaturates(t *testing.T) {
	c := newCountdown(2)
	if c.Step() || c.Step() {
		t.Fatalf("unexpected done before zero")
	}
	for i := 0; i < 3; i++ {
		if !c.Step() || c.Value() != 0 {
			t.Fatalf("expected saturation at zero, got %d", c.Value())
		}
	}
	c.Reload()
	if c.Value() != c.Initial() {
		t.Fatalf("unexpected reload value: %d", c.Value())
	}
}

func TestStateString(t *testing.T) {
	if StateWaitingReady.String() != "WAITING_READY" {
		t.Fatalf("unexpected name: %s", StateWaitingReady)
	}
	if State(42).String() != "State(42)" {
		t.Fatalf("unexpected fallback name: %s", State(42))
	}
}
