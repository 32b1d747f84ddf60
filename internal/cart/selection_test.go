package cart

import (
	"testing"
	"time"
)

func TestSelectionRegistryIdleExpiry(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	reg := NewSelectionRegistry(30 * time.Minute)
	reg.now = func() time.Time { return now }

	reg.Store("a", NewSelection("1", "2"))
	reg.Store("b", NewSelection("3"))

	now = now.Add(20 * time.Minute)
	if got := reg.Load("a"); !got.Has("1") || !got.Has("2") {
		t.Fatalf("expected selection for a, got %v", got)
	}

	now = now.Add(20 * time.Minute)
	if dropped := reg.Sweep(); dropped != 1 {
		t.Fatalf("expected b to expire, dropped %d", dropped)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one live entry, got %d", reg.Len())
	}

	now = now.Add(31 * time.Minute)
	if got := reg.Load("a"); got.Len() != 0 {
		t.Fatalf("expected expired selection, got %v", got)
	}
}

func TestSelectionRegistryCopies(t *testing.T) {
	reg := NewSelectionRegistry(0)
	sel := NewSelection("1")
	reg.Store("a", sel)
	sel["2"] = struct{}{}

	loaded := reg.Load("a")
	if loaded.Has("2") {
		t.Fatal("registry must keep its own copy")
	}
	loaded["3"] = struct{}{}
	if reg.Load("a").Has("3") {
		t.Fatal("Load must return a copy")
	}

	reg.Store("a", Selection{})
	if reg.Len() != 0 {
		t.Fatal("empty selections are not kept")
	}
	reg.Store("b", NewSelection("1"))
	reg.Forget("b")
	if reg.Len() != 0 {
		t.Fatal("forget should drop the entry")
	}
}

func TestNilRegistryIsInert(t *testing.T) {
	var reg *SelectionRegistry
	reg.Store("a", NewSelection("1"))
	if reg.Load("a").Len() != 0 || reg.Sweep() != 0 || reg.Len() != 0 {
		t.Fatal("nil registry should behave as empty")
	}
}
