package persona

import (
	"testing"

	"github.com/mycoflow/mycoflow/internal/model"
)

func TestCandidateInteractiveSignals(t *testing.T) {
	m := model.Metrics{AvgPktSize: 120, ActiveFlows: 2, RTTMs: 12, JitterMs: 3}
	if got := Candidate(m); got != model.PersonaInteractive {
		t.Errorf("Candidate = %v, want Interactive", got)
	}
}

func TestCandidateBulkSignals(t *testing.T) {
	m := model.Metrics{TxBps: 10e6, RxBps: 1e6, AvgPktSize: 1400, ActiveFlows: 60, ElephantFlow: true}
	if got := Candidate(m); got != model.PersonaBulk {
		t.Errorf("Candidate = %v, want Bulk", got)
	}
}

func TestCandidateTieIsUnknown(t *testing.T) {
	m := model.Metrics{}
	if got := Candidate(m); got != model.PersonaUnknown {
		t.Errorf("Candidate = %v, want Unknown", got)
	}
}

func TestHysteresisCommitsAfterThreeAgree(t *testing.T) {
	s := New()
	for i := 0; i < 2; i++ {
		s.Update(model.PersonaBulk)
	}
	if s.Effective() != model.PersonaUnknown {
		t.Fatalf("committed early at %d agreeing candidates", 2)
	}
	s.Update(model.PersonaBulk)
	if s.Effective() != model.PersonaBulk {
		t.Errorf("expected commit to Bulk after 3 agreeing candidates")
	}
}

func TestHysteresisRetainsOnSplitVotes(t *testing.T) {
	s := New()
	s.Update(model.PersonaBulk)
	s.Update(model.PersonaBulk)
	s.Update(model.PersonaBulk)
	if s.Effective() != model.PersonaBulk {
		t.Fatalf("setup: expected committed Bulk")
	}
	// Push split votes until the window holds 2 Interactive, 2 Bulk and
	// 1 Unknown (no majority); committed should not flip.
	s.Update(model.PersonaInteractive)
	s.Update(model.PersonaUnknown)
	s.Update(model.PersonaInteractive)
	if s.Effective() != model.PersonaBulk {
		t.Errorf("expected persona to remain Bulk on non-majority votes, got %v", s.Effective())
	}
}

func TestHysteresisCommitsUnknownOnlyOnAllUnknownBuffer(t *testing.T) {
	s := New()
	s.Update(model.PersonaBulk)
	s.Update(model.PersonaBulk)
	s.Update(model.PersonaBulk)
	// Fill the rest of the window with Unknown — not a full-Unknown buffer,
	// so persona should remain Bulk (retain previous committed persona).
	s.Update(model.PersonaUnknown)
	s.Update(model.PersonaUnknown)
	if s.Effective() != model.PersonaBulk {
		t.Errorf("expected Bulk retained, got %v", s.Effective())
	}

	s2 := New()
	for i := 0; i < 5; i++ {
		s2.Update(model.PersonaUnknown)
	}
	if s2.Effective() != model.PersonaUnknown {
		t.Errorf("expected Unknown commit on all-Unknown full buffer, got %v", s2.Effective())
	}
}

func TestOverrideReplacesExposedPersonaButHysteresisKeepsObserving(t *testing.T) {
	s := New()
	s.SetOverride(model.PersonaInteractive)
	if s.Effective() != model.PersonaInteractive {
		t.Fatalf("expected override value exposed")
	}

	for i := 0; i < 3; i++ {
		s.Update(model.PersonaBulk)
	}
	if s.Committed() != model.PersonaBulk {
		t.Errorf("expected hysteresis to keep observing real candidates under override, got %v", s.Committed())
	}
	if s.Effective() != model.PersonaInteractive {
		t.Errorf("expected override to still be exposed, got %v", s.Effective())
	}

	s.ClearOverride()
	if s.Effective() != model.PersonaBulk {
		t.Errorf("expected warm hysteresis state after clearing override, got %v", s.Effective())
	}
}
