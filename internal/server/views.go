package server

import "github.com/danmuck/crgctl/internal/crg"

type StatusView struct {
	System             string `json:"system"`
	State              string `json:"state"`
	Countdown1         uint32 `json:"countdown1"`
	Countdown2         uint32 `json:"countdown2"`
	IntermediateReset  bool   `json:"intermediate_reset"`
	PrimaryReset       bool   `json:"primary_reset"`
	ExternalReset      bool   `json:"external_reset"`
	Locked             bool   `json:"locked"`
	CalibrationPresent bool   `json:"calibration_present"`
	BringUpTicks       uint64 `json:"bring_up_ticks"`
	PrimaryTicks       uint64 `json:"primary_ticks"`
}

type DomainView struct {
	Name      string  `json:"name"`
	Frequency string  `json:"frequency"`
	Hz        float64 `json:"hz"`
	Reset     bool    `json:"reset"`
	ResetLess bool    `json:"reset_less,omitempty"`
	Source    string  `json:"source,omitempty"`
	Divide    int     `json:"divide,omitempty"`
}

type TransitionView struct {
	From         string `json:"from"`
	To           string `json:"to"`
	BringUpTicks uint64 `json:"bring_up_ticks"`
	PrimaryTicks uint64 `json:"primary_ticks"`
}

func (s *Server) Status() StatusView {
	snap := s.system.Snapshot()
	return StatusView{
		System:             s.Name,
		State:              snap.State.String(),
		Countdown1:         snap.Countdown1,
		Countdown2:         snap.Countdown2,
		IntermediateReset:  snap.IntermediateReset,
		PrimaryReset:       snap.PrimaryReset,
		ExternalReset:      s.system.ExternalReset(),
		Locked:             s.system.LockIndicator(),
		CalibrationPresent: s.system.CalibrationPresent(),
		BringUpTicks:       snap.BringUpTicks,
		PrimaryTicks:       snap.PrimaryTicks,
	}
}

func (s *Server) Domains() []DomainView {
	domains := s.system.Domains()
	out := make([]DomainView, 0, len(domains))
	for _, d := range domains {
		out = append(out, DomainView{
			Name:      d.Name,
			Frequency: d.Frequency.String(),
			Hz:        float64(d.Frequency),
			Reset:     d.Reset(),
			ResetLess: d.ResetLess,
			Source:    d.Source,
			Divide:    d.Divide,
		})
	}
	return out
}

func (s *Server) Transitions() []TransitionView {
	return transitionViews(s.system.Transitions())
}

func transitionViews(in []crg.Transition) []TransitionView {
	out := make([]TransitionView, 0, len(in))
	for _, t := range in {
		out = append(out, TransitionView{
			From:         t.From.String(),
			To:           t.To.String(),
			BringUpTicks: t.BringUpTicks,
			PrimaryTicks: t.PrimaryTicks,
		})
	}
	return out
}
