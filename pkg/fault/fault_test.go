package fault

import (
	"errors"
	"testing"
	"time"
)

const (
	kindHard Kind = 0
	kindWarn Kind = 4
)

func newTestSet(t *testing.T) *Set {
	t.Helper()
	s, err := NewSet([]Config{
		{Kind: kindHard, Name: "SHORT_TO_GROUND", Class: ClassFault, Enabled: true, Debounce: 100 * time.Millisecond},
		{Kind: kindWarn, Name: "OUT_OF_RANGE_LOW", Class: ClassWarning, Enabled: true, Debounce: 50 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}
	return s
}

func TestObserveDebounce(t *testing.T) {
	s := newTestSet(t)

	// 90 ms of persistent condition must not latch a 100 ms debounce.
	for i := 0; i < 9; i++ {
		edge, err := s.Observe(kindHard, true, 10*time.Millisecond)
		if err != nil {
			t.Fatalf("Observe() error = %v", err)
		}
		if edge != EdgeNone {
			t.Fatalf("Observe() cycle %d edge = %s, want NONE", i, edge)
		}
	}
	if s.Active(kindHard) {
		t.Fatal("Active() = true before debounce elapsed")
	}

	edge, err := s.Observe(kindHard, true, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if edge != EdgeActivated {
		t.Errorf("Observe() edge = %s, want ACTIVATED", edge)
	}
	if !s.Active(kindHard) {
		t.Error("Active() = false after debounce elapsed")
	}

	// Condition clearing unlatches immediately.
	edge, err = s.Observe(kindHard, false, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if edge != EdgeDeactivated {
		t.Errorf("Observe() edge = %s, want DEACTIVATED", edge)
	}
	if s.Active(kindHard) {
		t.Error("Active() = true after condition cleared")
	}
}

func TestObserveInterruptedConditionRestartsDebounce(t *testing.T) {
	s := newTestSet(t)

	s.Observe(kindHard, true, 90*time.Millisecond)
	s.Observe(kindHard, false, 10*time.Millisecond)
	edge, _ := s.Observe(kindHard, true, 90*time.Millisecond)
	if edge != EdgeNone || s.Active(kindHard) {
		t.Error("debounce did not restart after interrupted condition")
	}
	edge, _ = s.Observe(kindHard, true, 10*time.Millisecond)
	if edge != EdgeActivated {
		t.Errorf("Observe() edge = %s, want ACTIVATED", edge)
	}
}

func TestObserveZeroDebounce(t *testing.T) {
	s, err := NewSet([]Config{
		{Kind: 2, Name: "PARAMETER", Class: ClassFault, Enabled: true},
	})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}

	edge, _ := s.Observe(2, true, 0)
	if edge != EdgeActivated || !s.Active(2) {
		t.Error("zero debounce did not latch on first observation")
	}
}

func TestEventsDetectAndClear(t *testing.T) {
	s := newTestSet(t)
	s.Observe(kindHard, true, 100*time.Millisecond)

	// Non-consuming reads keep the event pending.
	if !s.Activated(kindHard, false) || !s.Activated(kindHard, false) {
		t.Error("Activated(detect) did not keep event pending")
	}
	if !s.Activated(kindHard, true) {
		t.Error("Activated(clear) = false, want true")
	}
	if s.Activated(kindHard, false) {
		t.Error("Activated() = true after event was cleared")
	}

	// Latch persists independently of the event.
	if !s.Active(kindHard) {
		t.Error("Active() = false, latch must survive event clearing")
	}

	s.Observe(kindHard, false, 0)
	if !s.Deactivated(kindHard, true) {
		t.Error("Deactivated(clear) = false, want true")
	}
	if s.Deactivated(kindHard, false) {
		t.Error("Deactivated() = true after event was cleared")
	}
}

func TestSuppressionBlocksWarning(t *testing.T) {
	s := newTestSet(t)
	if err := s.Link(kindWarn, kindHard); err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	s.Observe(kindHard, true, 100*time.Millisecond)
	if !s.Active(kindHard) {
		t.Fatal("hard fault did not latch")
	}

	// Warning condition persists far beyond its own debounce but must not
	// assert while the hard fault is latched.
	for i := 0; i < 20; i++ {
		s.Observe(kindWarn, true, 10*time.Millisecond)
	}
	if s.Active(kindWarn) {
		t.Error("warning latched while its hard fault is active")
	}

	// Once the hard fault clears, the warning may latch normally.
	s.Observe(kindHard, false, 0)
	for i := 0; i < 5; i++ {
		s.Observe(kindWarn, true, 10*time.Millisecond)
	}
	if !s.Active(kindWarn) {
		t.Error("warning did not latch after hard fault cleared")
	}
}

func TestSuppressionDropsLatchedWarning(t *testing.T) {
	s := newTestSet(t)
	if err := s.Link(kindWarn, kindHard); err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	// Warning latches first (shorter debounce).
	for i := 0; i < 5; i++ {
		s.Observe(kindWarn, true, 10*time.Millisecond)
	}
	if !s.Active(kindWarn) {
		t.Fatal("warning did not latch")
	}

	s.Observe(kindHard, true, 100*time.Millisecond)
	edge, _ := s.Observe(kindWarn, true, 10*time.Millisecond)
	if edge != EdgeDeactivated || s.Active(kindWarn) {
		t.Error("warning stayed latched after its hard fault latched")
	}
}

func TestForceAndRelease(t *testing.T) {
	s := newTestSet(t)

	edge, err := s.Force(kindHard)
	if err != nil {
		t.Fatalf("Force() error = %v", err)
	}
	if edge != EdgeActivated || !s.Active(kindHard) {
		t.Error("Force() did not latch immediately")
	}
	if edge, _ := s.Force(kindHard); edge != EdgeNone {
		t.Error("repeated Force() produced another edge")
	}

	edge, err = s.Release(kindHard)
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if edge != EdgeDeactivated || s.Active(kindHard) {
		t.Error("Release() did not unlatch immediately")
	}
}

func TestDisabledCheckNeverAsserts(t *testing.T) {
	s, err := NewSet([]Config{
		{Kind: 5, Name: "OUT_OF_RANGE_HIGH", Class: ClassWarning, Enabled: false, Debounce: 0},
	})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}

	for i := 0; i < 10; i++ {
		edge, err := s.Observe(5, true, time.Second)
		if err != nil {
			t.Fatalf("Observe() error = %v", err)
		}
		if edge != EdgeNone {
			t.Fatal("disabled check produced an edge")
		}
	}
	if s.Active(5) {
		t.Error("disabled check latched")
	}
}

func TestMasks(t *testing.T) {
	s := newTestSet(t)
	s.Force(kindHard)
	s.Force(kindWarn)

	if mask := s.ActiveMask(); mask != 1<<kindHard|1<<kindWarn {
		t.Errorf("ActiveMask() = %#04x, want %#04x", mask, 1<<kindHard|1<<kindWarn)
	}
	if !s.AnyActive(ClassFault) || !s.AnyActive(ClassWarning) {
		t.Error("AnyActive() missed a latched class")
	}

	if mask := s.ActivatedMask(true); mask != 1<<kindHard|1<<kindWarn {
		t.Errorf("ActivatedMask() = %#04x", mask)
	}
	if mask := s.ActivatedMask(false); mask != 0 {
		t.Errorf("ActivatedMask() = %#04x after clearing, want 0", mask)
	}
}

func TestUnknownKind(t *testing.T) {
	s := newTestSet(t)

	if _, err := s.Observe(9, true, 0); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Observe(unknown) error = %v, want ErrUnknownKind", err)
	}
	if _, err := s.Force(9); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Force(unknown) error = %v, want ErrUnknownKind", err)
	}
	if err := s.Link(9, kindHard); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Link(unknown) error = %v, want ErrUnknownKind", err)
	}
	if s.Active(9) || s.Activated(9, true) {
		t.Error("unknown kind reported state")
	}
}

func TestReset(t *testing.T) {
	s := newTestSet(t)
	s.Force(kindHard)
	s.Observe(kindWarn, true, 40*time.Millisecond) // pending, not latched

	s.Reset()

	if s.ActiveMask() != 0 {
		t.Error("ActiveMask() != 0 after Reset")
	}
	if s.ActivatedMask(false) != 0 || s.DeactivatedMask(false) != 0 {
		t.Error("events survived Reset")
	}

	// Pending debounce must restart from zero.
	edge, _ := s.Observe(kindWarn, true, 40*time.Millisecond)
	if edge != EdgeNone || s.Active(kindWarn) {
		t.Error("pending debounce survived Reset")
	}
}

func TestNewSetValidation(t *testing.T) {
	if _, err := NewSet([]Config{{Kind: 16}}); !errors.Is(err, ErrKindRange) {
		t.Errorf("NewSet(kind 16) error = %v, want ErrKindRange", err)
	}
	if _, err := NewSet([]Config{{Kind: 1}, {Kind: 1}}); !errors.Is(err, ErrDuplicateKind) {
		t.Errorf("NewSet(duplicate) error = %v, want ErrDuplicateKind", err)
	}
}
