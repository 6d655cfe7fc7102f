package session

import "testing"

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry()

	a := r.Add()
	b := r.Add()
	if a.ID == b.ID {
		t.Fatal("session ids must be unique")
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}

	r.Remove(a.ID)
	if r.Count() != 1 {
		t.Errorf("Count() after remove = %d, want 1", r.Count())
	}

	// Removing twice is harmless.
	r.Remove(a.ID)
	if r.Count() != 1 {
		t.Errorf("Count() after double remove = %d, want 1", r.Count())
	}
}

func TestRegistryIDsStable(t *testing.T) {
	r := NewRegistry()
	a := r.Add()
	b := r.Add()
	c := r.Add()

	ids := r.IDs()
	if len(ids) != 3 {
		t.Fatalf("IDs() returned %d entries, want 3", len(ids))
	}

	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	for _, s := range []*Session{a, b, c} {
		if !seen[s.ID] {
			t.Errorf("IDs() missing %s", s.ID)
		}
	}

	// Two calls with no membership change agree.
	again := r.IDs()
	for i := range ids {
		if ids[i] != again[i] {
			t.Fatalf("IDs() not stable: %v vs %v", ids, again)
		}
	}
}
