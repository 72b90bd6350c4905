package wecs_test

import (
	"testing"

	"github.com/oriumgames/wecs"
)

func accessOf(reads, writes []wecs.ComponentID) *wecs.Access {
	a := &wecs.Access{}
	for _, id := range reads {
		a.AddRead(id)
	}
	for _, id := range writes {
		a.AddWrite(id)
	}
	return a
}

// go test -run ^TestAccessCompatibility$ . -count 1
func TestAccessCompatibility(t *testing.T) {
	cases := []struct {
		name string
		a, b *wecs.Access
		want bool
	}{
		{"disjoint reads", accessOf([]wecs.ComponentID{0}, nil), accessOf([]wecs.ComponentID{1}, nil), true},
		{"shared read", accessOf([]wecs.ComponentID{0}, nil), accessOf([]wecs.ComponentID{0}, nil), true},
		{"write vs read", accessOf(nil, []wecs.ComponentID{0}), accessOf([]wecs.ComponentID{0}, nil), false},
		{"write vs write", accessOf(nil, []wecs.ComponentID{0}), accessOf(nil, []wecs.ComponentID{0}), false},
		{"disjoint writes", accessOf(nil, []wecs.ComponentID{0}), accessOf(nil, []wecs.ComponentID{1}), true},
	}
	for _, c := range cases {
		if got := c.a.IsCompatible(c.b); got != c.want {
			t.Errorf("%s: IsCompatible = %v, want %v", c.name, got, c.want)
		}
		// The predicate must answer the same from either side.
		if c.a.IsCompatible(c.b) != c.b.IsCompatible(c.a) {
			t.Errorf("%s: IsCompatible is not symmetric", c.name)
		}
	}
}

// go test -run ^TestAccessConflictID$ . -count 1
func TestAccessConflictID(t *testing.T) {
	// (Read A, Write B) against (Write A): the conflict is A, never B.
	const idA, idB = 2, 5
	a := accessOf([]wecs.ComponentID{idA}, []wecs.ComponentID{idB})
	b := accessOf(nil, []wecs.ComponentID{idA})

	id, ok := a.GetConflict(b)
	if !ok {
		t.Fatal("expected a conflict")
	}
	if id != idA {
		t.Errorf("conflict id = %d, want %d", id, idA)
	}

	// Either side of the pair reports the same id.
	id2, ok := b.GetConflict(a)
	if !ok || id2 != id {
		t.Errorf("reverse conflict id = %d (%v), want %d", id2, ok, id)
	}

	conflicts := a.Conflicts(b)
	if len(conflicts) != 1 || conflicts[0] != idA {
		t.Errorf("Conflicts = %v, want [%d]", conflicts, idA)
	}
}

// go test -run ^TestAccessExclusive$ . -count 1
func TestAccessExclusive(t *testing.T) {
	excl := &wecs.Access{}
	excl.WriteAll()

	other := accessOf([]wecs.ComponentID{3}, nil)
	if excl.IsCompatible(other) || other.IsCompatible(excl) {
		t.Error("exclusive access must conflict with any other access")
	}

	empty := &wecs.Access{}
	if excl.IsCompatible(empty) {
		t.Error("exclusive access must conflict even with empty access")
	}

	if id, ok := excl.GetConflict(other); !ok || id != 3 {
		t.Errorf("exclusive conflict id = %d (%v), want 3", id, ok)
	}
}

// go test -run ^TestAccessReadAll$ . -count 1
func TestAccessReadAll(t *testing.T) {
	all := &wecs.Access{}
	all.ReadAll()

	reader := accessOf([]wecs.ComponentID{1}, nil)
	if !all.IsCompatible(reader) {
		t.Error("a read-all access is compatible with plain reads")
	}

	writer := accessOf(nil, []wecs.ComponentID{1})
	if all.IsCompatible(writer) || writer.IsCompatible(all) {
		t.Error("a read-all access conflicts with any write")
	}
}

// go test -run ^TestAccessExtend$ . -count 1
func TestAccessExtend(t *testing.T) {
	a := accessOf([]wecs.ComponentID{0}, nil)
	b := accessOf(nil, []wecs.ComponentID{1})
	a.Extend(b)

	if !a.HasRead(0) || !a.HasWrite(1) {
		t.Error("Extend lost entries")
	}
	if got := a.ReadsAndWrites(); len(got) != 2 {
		t.Errorf("ReadsAndWrites = %v, want two ids", got)
	}
}

// go test -run ^TestFilteredAccessDisjointFilters$ . -count 1
func TestFilteredAccessDisjointFilters(t *testing.T) {
	// Two writers of component 0 conflict in raw access, but With(1)
	// against Without(1) proves no archetype satisfies both, so they may
	// run concurrently.
	f1 := wecs.NewFilteredAccess()
	f1.AddWrite(0)
	f1.AndWith(1)

	f2 := wecs.NewFilteredAccess()
	f2.AddWrite(0)
	f2.AndWithout(1)

	if !f1.IsCompatible(f2) || !f2.IsCompatible(f1) {
		t.Error("filter-disjoint writers should be compatible")
	}

	// Without the distinguishing filter the conflict is real.
	f3 := wecs.NewFilteredAccess()
	f3.AddWrite(0)
	if f1.IsCompatible(f3) {
		t.Error("writers without disjoint filters must conflict")
	}
	if id, ok := f1.GetConflict(f3); !ok || id != 0 {
		t.Errorf("conflict id = %d (%v), want 0", id, ok)
	}
}
