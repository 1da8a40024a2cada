package slots

import (
	"testing"

	"github.com/FocuswithJustin/JuniperReader/core/canon"
)

func TestAcquireAllocatesWhenEmpty(t *testing.T) {
	p := NewPool[string](canon.KJV())

	s := p.Acquire(0, 0)
	if s == nil {
		t.Fatal("Acquire returned nil")
	}
	if !s.InUse() || s.Book() != 0 || s.Chapter() != 0 {
		t.Errorf("slot = {inUse:%v book:%d chapter:%d}", s.InUse(), s.Book(), s.Chapter())
	}
	if s.State() != Loading {
		t.Errorf("State() = %v, want loading", s.State())
	}
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}
}

func TestReuseBound(t *testing.T) {
	p := NewPool[string](canon.KJV())

	const n = 3
	var live []*Slot[string]
	for i := 0; i < n; i++ {
		live = append(live, p.Acquire(0, i))
	}
	if p.Len() != n {
		t.Fatalf("Len() = %d, want %d", p.Len(), n)
	}

	for _, s := range live {
		p.Release(s)
	}
	if p.InUse() != 0 {
		t.Fatalf("InUse() = %d, want 0", p.InUse())
	}

	live = live[:0]
	for i := 0; i < n; i++ {
		live = append(live, p.Acquire(1, i))
	}
	if p.Len() != n {
		t.Errorf("after reacquire Len() = %d, want %d (no new allocation)", p.Len(), n)
	}

	p.Acquire(2, 0)
	if p.Len() != n+1 {
		t.Errorf("after N+1 live slots Len() = %d, want %d", p.Len(), n+1)
	}
	if p.InUse() != n+1 {
		t.Errorf("InUse() = %d, want %d", p.InUse(), n+1)
	}
}

func TestReleaseKeepsBinding(t *testing.T) {
	p := NewPool[string](canon.KJV())
	s := p.Acquire(4, 2)
	s.Fill(4, 2, "Deuteronomy 3")
	p.Release(s)

	if s.InUse() {
		t.Error("InUse() after Release = true")
	}
	if s.Book() != 4 || s.Chapter() != 2 {
		t.Errorf("binding cleared: (%d, %d)", s.Book(), s.Chapter())
	}
	if s.Payload() != "Deuteronomy 3" {
		t.Errorf("Payload() = %q", s.Payload())
	}
}

func TestRebindMarksLoadingWithStalePayload(t *testing.T) {
	p := NewPool[string](canon.KJV())
	s := p.Acquire(0, 0)
	s.Fill(0, 0, "Genesis 1")
	p.Release(s)

	r := p.Acquire(0, 1)
	if r != s {
		t.Fatal("expected the released slot to be reused")
	}
	if r.State() != Loading {
		t.Errorf("State() = %v, want loading", r.State())
	}
	if r.Payload() != "Genesis 1" {
		t.Errorf("stale payload = %q, want previous chapter's content", r.Payload())
	}
}

func TestAcquirePrefersSameChapter(t *testing.T) {
	p := NewPool[string](canon.KJV())
	a := p.Acquire(0, 0)
	b := p.Acquire(0, 1)
	b.Fill(0, 1, "Genesis 2")
	p.Release(a)
	p.Release(b)

	got := p.Acquire(0, 1)
	if got != b {
		t.Fatalf("Acquire(0, 1) returned slot %d, want %d", got.ID(), b.ID())
	}
	if got.State() != Ready {
		t.Errorf("State() = %v, want ready", got.State())
	}
}

func TestFillRejectsStale(t *testing.T) {
	p := NewPool[string](canon.KJV())
	s := p.Acquire(0, 0)
	p.Release(s)
	p.Acquire(0, 5)

	if s.Fill(0, 0, "Genesis 1") {
		t.Error("Fill for the old chapter should be rejected")
	}
	if s.State() != Loading {
		t.Errorf("State() = %v, want loading", s.State())
	}
	if !s.Fill(0, 5, "Genesis 6") {
		t.Error("Fill for the bound chapter should succeed")
	}
	if s.State() != Ready || s.Payload() != "Genesis 6" {
		t.Errorf("slot = %v %q", s.State(), s.Payload())
	}

	p.Release(s)
	if s.Fill(0, 5, "again") {
		t.Error("Fill on a released slot should be rejected")
	}
}

func TestPositionOf(t *testing.T) {
	p := NewPool[int](canon.KJV())
	s := p.Acquire(39, 0)
	pos, err := p.PositionOf(s)
	if err != nil {
		t.Fatalf("PositionOf: %v", err)
	}
	if pos != 929 {
		t.Errorf("PositionOf() = %d, want 929", pos)
	}

	bad := p.Acquire(0, 99)
	if _, err := p.PositionOf(bad); err == nil {
		t.Error("PositionOf for an out-of-range binding should fail")
	}
}
