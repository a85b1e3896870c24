// Package persona scores multi-signal evidence into a candidate traffic
// classification and advances a 5-sample majority-vote hysteresis state
// machine that only commits a persona change once it sees a stable
// majority of recent candidates.
package persona

import "github.com/mycoflow/mycoflow/internal/model"

const fifoCapacity = 5

// State holds the committed persona, the rolling candidate FIFO, and the
// operator override. It is exclusively owned by the loop driver.
type State struct {
	committed model.Persona
	fifo      [fifoCapacity]model.Persona
	filled    int // number of valid entries, caps at fifoCapacity
	next      int // next write position once filled

	overrideActive bool
	overrideValue  model.Persona
}

// New returns a State with the committed persona Unknown.
func New() *State {
	return &State{committed: model.PersonaUnknown}
}

// Candidate scores the weighted signal table against m and returns the
// raw classification for this tick, before hysteresis is applied.
func Candidate(m model.Metrics) model.Persona {
	var votesInteractive, votesBulk int

	if m.RTTMs > 40 || m.JitterMs > 15 {
		votesInteractive++
	}
	if m.TxBps > 1.5*m.RxBps {
		votesBulk++
	}
	if m.AvgPktSize > 0 && m.AvgPktSize < 200 {
		votesInteractive++
	} else if m.AvgPktSize > 1000 {
		votesBulk++
	}
	if m.ActiveFlows >= 1 && m.ActiveFlows < 5 {
		votesInteractive++
	} else if m.ActiveFlows > 50 {
		votesBulk++
	}
	if m.ElephantFlow {
		votesBulk += 2
	}
	if m.EBPFPktRate > 500 {
		votesInteractive++
	} else if m.EBPFPktRate > 0 && m.EBPFPktRate < 50 {
		votesBulk++
	}

	switch {
	case votesInteractive > votesBulk:
		return model.PersonaInteractive
	case votesBulk > votesInteractive:
		return model.PersonaBulk
	default:
		return model.PersonaUnknown
	}
}

// Update pushes a fresh candidate into the FIFO and advances the committed
// persona per the majority rule: >=3 of 5 Interactive or Bulk commits that
// persona; a full buffer of all-Unknown commits Unknown; otherwise the
// previous committed persona is retained. The FIFO always observes real
// candidates, even while an override is active.
func (s *State) Update(candidate model.Persona) {
	s.fifo[s.next] = candidate
	s.next = (s.next + 1) % fifoCapacity
	if s.filled < fifoCapacity {
		s.filled++
	}

	var interactive, bulk, unknown int
	for i := 0; i < s.filled; i++ {
		switch s.fifo[i] {
		case model.PersonaInteractive:
			interactive++
		case model.PersonaBulk:
			bulk++
		default:
			unknown++
		}
	}

	switch {
	case interactive >= 3:
		s.committed = model.PersonaInteractive
	case bulk >= 3:
		s.committed = model.PersonaBulk
	case s.filled == fifoCapacity && unknown == fifoCapacity:
		s.committed = model.PersonaUnknown
	}
}

// SetOverride sets the operator persona override.
func (s *State) SetOverride(p model.Persona) {
	s.overrideActive = true
	s.overrideValue = p
}

// ClearOverride removes the operator persona override.
func (s *State) ClearOverride() {
	s.overrideActive = false
}

// Effective returns the persona the Controller and snapshot should use:
// the override value when active, otherwise the hysteresis-committed
// persona.
func (s *State) Effective() model.Persona {
	if s.overrideActive {
		return s.overrideValue
	}
	return s.committed
}

// Committed returns the hysteresis machine's own state, ignoring any
// override — used for diagnostics and tests.
func (s *State) Committed() model.Persona {
	return s.committed
}

// OverrideActive reports whether an operator override is currently set,
// and its value.
func (s *State) OverrideActive() (bool, model.Persona) {
	return s.overrideActive, s.overrideValue
}
