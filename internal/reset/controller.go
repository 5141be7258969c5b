package reset

// ResetLine is a domain reset input. clock.Domain satisfies it.
type ResetLine interface {
	SetReset(asserted bool)
}

// Apply computes the primary-domain reset bit.
func Apply(sequencerReleased, externalResetRequested bool) bool {
	return externalResetRequested || !sequencerReleased
}

// DomainResetController drives one domain's reset line from the sequencer.
type DomainResetController struct {
	line ResetLine
}

func NewDomainResetController(line ResetLine) *DomainResetController {
	return &DomainResetController{line: line}
}

// Drive applies the reset rule and writes the result onto the line.
func (c *DomainResetController) Drive(sequencerReleased, externalResetRequested bool) bool {
	bit := Apply(sequencerReleased, externalResetRequested)
	if c != nil && c.line != nil {
		c.line.SetReset(bit)
	}
	return bit
}
