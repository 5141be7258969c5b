package clock

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/danmuck/crgctl/internal/signal"
)

var (
	ErrInvalidReference = errors.New("clock: invalid reference frequency")
	ErrNoOutputs        = errors.New("clock: no outputs requested")
	ErrInvalidOutput    = errors.New("clock: invalid output spec")
	ErrDuplicateDomain  = errors.New("clock: duplicate domain")
	ErrUnknownSource    = errors.New("clock: unknown divider source")
)

// Synthesizer is the external frequency-synthesis capability (PLL/MMCM).
type Synthesizer interface {
	// Program requests the given output frequencies from reference.
	Program(reference Hz, outputs []Hz) error
	// Locked samples the asynchronous lock status.
	Locked() bool
}

// OutputSpec requests one clock domain.
type OutputSpec struct {
	Name      string
	Frequency Hz
	// WithReset routes the domain's reset through the multiplier's reset
	// synchronizer, holding it while the synthesizer is unlocked.
	WithReset bool
	ResetLess bool
	// Source and Divide derive the domain from another synthesized output
	// through a clock-buffer divider. Frequency may be left zero.
	Source string
	Divide int
}

// Multiplier is a configured synthesizer with its derived domains.
type Multiplier struct {
	synth     Synthesizer
	reference Hz
	domains   []*Domain
	byName    map[string]*Domain
}

// Configure validates specs, programs synth and returns the derived domains.
func Configure(synth Synthesizer, reference Hz, specs []OutputSpec) (*Multiplier, error) {
	if !reference.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, float64(reference))
	}
	if len(specs) == 0 {
		return nil, ErrNoOutputs
	}

	m := &Multiplier{
		synth:     synth,
		reference: reference,
		domains:   make([]*Domain, 0, len(specs)),
		byName:    make(map[string]*Domain, len(specs)),
	}

	var outputs []Hz
	synthesized := make(map[string]bool, len(specs))
	for i, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: outputs[%d] missing name", ErrInvalidOutput, i)
		}
		if _, ok := m.byName[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDomain, name)
		}
		if spec.WithReset && spec.ResetLess {
			return nil, fmt.Errorf("%w: %s is reset-less but requests a reset", ErrInvalidOutput, name)
		}
		d := newDomain(name, spec.Frequency, spec.ResetLess)
		d.SyncReset = spec.WithReset
		m.byName[name] = d
		m.domains = append(m.domains, d)
		if spec.Source != "" {
			continue
		}
		if !spec.Frequency.Valid() {
			return nil, fmt.Errorf("%w: %s frequency %v", ErrInvalidOutput, name, float64(spec.Frequency))
		}
		outputs = append(outputs, spec.Frequency)
		synthesized[name] = true
	}

	for i, spec := range specs {
		if spec.Source == "" {
			continue
		}
		d := m.domains[i]
		srcName := strings.TrimSpace(spec.Source)
		src, ok := m.byName[srcName]
		if !ok || !synthesized[srcName] {
			return nil, fmt.Errorf("%w: %s <- %s", ErrUnknownSource, d.Name, spec.Source)
		}
		if spec.Divide < 1 {
			return nil, fmt.Errorf("%w: %s divide %d", ErrInvalidOutput, d.Name, spec.Divide)
		}
		freq := src.Frequency / Hz(spec.Divide)
		if spec.Frequency > 0 && math.Abs(float64(spec.Frequency-freq)) > 1 {
			return nil, fmt.Errorf("%w: %s wants %s, %s/%d gives %s",
				ErrInvalidOutput, d.Name, spec.Frequency, src.Name, spec.Divide, freq)
		}
		d.Frequency = freq
		d.Source = src.Name
		d.Divide = spec.Divide
	}

	if len(outputs) == 0 {
		return nil, ErrNoOutputs
	}
	if err := synth.Program(reference, outputs); err != nil {
		return nil, fmt.Errorf("program synthesizer: %w", err)
	}
	return m, nil
}

func (m *Multiplier) Reference() Hz { return m.reference }

// Domains returns the derived domains in the order their outputs were given.
func (m *Multiplier) Domains() []*Domain {
	out := make([]*Domain, len(m.domains))
	copy(out, m.domains)
	return out
}

func (m *Multiplier) Domain(name string) (*Domain, bool) {
	d, ok := m.byName[name]
	return d, ok
}

// Lock exposes the synthesizer lock status as a sampled level.
func (m *Multiplier) Lock() signal.Level {
	return signal.Func(m.synth.Locked)
}

// DomainReset returns the reset synchronizer for a WithReset domain.
func (m *Multiplier) DomainReset(name string) (*DomainReset, bool) {
	d, ok := m.byName[name]
	if !ok || !d.SyncReset {
		return nil, false
	}
	return &DomainReset{
		domain: d,
		lock:   m.Lock(),
		sync:   signal.NewResetSynchronizer(),
	}, true
}

// DomainReset holds a domain in reset while the synthesizer is unlocked or an
// external reset is requested. It must be clocked by the domain's own clock.
type DomainReset struct {
	domain *Domain
	lock   signal.Level
	sync   *signal.ResetSynchronizer
}

// Clock advances the synchronizer one edge and drives the domain's reset flag.
func (r *DomainReset) Clock(external bool) bool {
	asserted := r.sync.Clock(external || !r.lock.Level())
	r.domain.SetReset(asserted)
	return asserted
}

func (r *DomainReset) Domain() *Domain { return r.domain }
