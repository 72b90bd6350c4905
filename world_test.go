package wecs_test

import (
	"testing"

	"github.com/oriumgames/wecs"
)

// --- Test Components ---

type Position struct{ X, Y float64 }
type Velocity struct{ X, Y float64 }
type Health struct{ Current, Max int }
type Shield struct{ Strength int }
type Marker struct{}

// go test -run ^TestSpawnAndGet$ . -count 1
func TestSpawnAndGet(t *testing.T) {
	w := wecs.NewWorld()
	e := w.Spawn(Position{X: 1, Y: 2}, Health{Current: 10, Max: 100})

	if !w.Alive(e) {
		t.Fatal("spawned entity should be alive")
	}
	pos := wecs.Get[Position](w, e)
	if pos == nil || pos.X != 1 || pos.Y != 2 {
		t.Fatalf("Position = %+v, want {1 2}", pos)
	}
	hp := wecs.Get[Health](w, e)
	if hp == nil || hp.Current != 10 {
		t.Fatalf("Health = %+v, want {10 100}", hp)
	}
	if w.EntityCount() != 1 {
		t.Errorf("EntityCount = %d, want 1", w.EntityCount())
	}
}

// go test -run ^TestGetAbsent$ . -count 1
func TestGetAbsent(t *testing.T) {
	w := wecs.NewWorld()
	e := w.Spawn(Position{})

	// A component the entity does not hold is absent, not an error.
	if v := wecs.Get[Velocity](w, e); v != nil {
		t.Errorf("Get of absent component = %+v, want nil", v)
	}
	if wecs.Has[Velocity](w, e) {
		t.Error("Has of absent component should be false")
	}
	if _, ok := wecs.GetTicks[Velocity](w, e); ok {
		t.Error("GetTicks of absent component should report false")
	}
}

// go test -run ^TestInsertRelocates$ . -count 1
func TestInsertRelocates(t *testing.T) {
	w := wecs.NewWorld()
	e := w.Spawn(Position{X: 3})
	before := w.ArchetypeCount()

	if !wecs.Insert(w, e, Velocity{X: 7}) {
		t.Fatal("Insert failed")
	}
	if w.ArchetypeCount() != before+1 {
		t.Errorf("ArchetypeCount = %d, want %d", w.ArchetypeCount(), before+1)
	}
	if pos := wecs.Get[Position](w, e); pos == nil || pos.X != 3 {
		t.Errorf("Position lost across relocation: %+v", pos)
	}
	if vel := wecs.Get[Velocity](w, e); vel == nil || vel.X != 7 {
		t.Errorf("Velocity = %+v, want {7 0}", vel)
	}

	// Inserting an already-present type overwrites in place.
	wecs.Insert(w, e, Position{X: 9})
	if w.ArchetypeCount() != before+1 {
		t.Error("overwrite must not create an archetype")
	}
	if pos := wecs.Get[Position](w, e); pos.X != 9 {
		t.Errorf("Position.X = %v, want 9", pos.X)
	}
}

// go test -run ^TestStructuralRoundTrip$ . -count 1
func TestStructuralRoundTrip(t *testing.T) {
	w := wecs.NewWorld()
	e := w.Spawn(Position{X: 1, Y: 2}, Health{Current: 50, Max: 100})

	// Adding then removing a component restores the entity's values,
	// regardless of the physical relocation both steps perform.
	wecs.Insert(w, e, Velocity{X: 5})
	if !wecs.Remove[Velocity](w, e) {
		t.Fatal("Remove failed")
	}

	if pos := wecs.Get[Position](w, e); pos == nil || (*pos != Position{X: 1, Y: 2}) {
		t.Errorf("Position after round-trip = %+v, want {1 2}", pos)
	}
	if hp := wecs.Get[Health](w, e); hp == nil || (*hp != Health{Current: 50, Max: 100}) {
		t.Errorf("Health after round-trip = %+v, want {50 100}", hp)
	}
	if wecs.Has[Velocity](w, e) {
		t.Error("Velocity should be gone")
	}
}

// go test -run ^TestRemoveAbsent$ . -count 1
func TestRemoveAbsent(t *testing.T) {
	w := wecs.NewWorld()
	e := w.Spawn(Position{})
	if wecs.Remove[Velocity](w, e) {
		t.Error("removing an absent component should report false")
	}
}

// go test -run ^TestDespawnAndStaleHandles$ . -count 1
func TestDespawnAndStaleHandles(t *testing.T) {
	w := wecs.NewWorld()
	e1 := w.Spawn(Position{X: 1})
	other := w.Spawn(Position{X: 2})

	if !w.Despawn(e1) {
		t.Fatal("Despawn failed")
	}
	if w.Alive(e1) {
		t.Error("despawned entity should not be alive")
	}
	if w.Despawn(e1) {
		t.Error("double despawn should report false")
	}
	if wecs.Get[Position](w, e1) != nil {
		t.Error("stale handle must not resolve")
	}
	if wecs.Insert(w, e1, Health{}) {
		t.Error("insert through a stale handle should report false")
	}

	// The surviving entity is untouched by the swap-remove.
	if pos := wecs.Get[Position](w, other); pos == nil || pos.X != 2 {
		t.Errorf("surviving entity corrupted: %+v", pos)
	}

	// The freed index comes back with a bumped generation, so the old
	// handle stays stale.
	e2 := w.Spawn(Velocity{})
	if e2.Index() != e1.Index() {
		t.Errorf("expected index reuse, got %d and %d", e1.Index(), e2.Index())
	}
	if e2.Generation() == e1.Generation() {
		t.Error("reused index must carry a new generation")
	}
	if w.Alive(e1) {
		t.Error("old handle must stay stale after reuse")
	}
}

// go test -run ^TestAddedChangedLifecycle$ . -count 1
func TestAddedChangedLifecycle(t *testing.T) {
	w := wecs.NewWorld()
	baseline := w.LastChangeTick()
	e := w.Spawn(Position{})

	// Observed in the run that inserted it: both added and changed.
	if !wecs.IsAdded[Position](w, e, baseline) {
		t.Error("fresh component should report added")
	}
	if !wecs.IsChanged[Position](w, e, baseline) {
		t.Error("fresh component should report changed")
	}

	// One run later with no mutation: both false.
	prev := w.ChangeTick()
	w.IncrementChangeTick()
	if wecs.IsAdded[Position](w, e, prev) {
		t.Error("component should not report added one run later")
	}
	if wecs.IsChanged[Position](w, e, prev) {
		t.Error("component should not report changed one run later")
	}
}

// go test -run ^TestGetMutStampsChanged$ . -count 1
func TestGetMutStampsChanged(t *testing.T) {
	w := wecs.NewWorld()
	e := w.Spawn(Position{})

	prev := w.ChangeTick()
	w.IncrementChangeTick()

	// Plain Get does not stamp.
	_ = wecs.Get[Position](w, e)
	if wecs.IsChanged[Position](w, e, prev) {
		t.Error("Get must not stamp the component changed")
	}

	p := wecs.GetMut[Position](w, e)
	p.X = 42
	if !wecs.IsChanged[Position](w, e, prev) {
		t.Error("GetMut must stamp the component changed")
	}
	if wecs.IsAdded[Position](w, e, prev) {
		t.Error("GetMut must not stamp the component added")
	}
}

// go test -run ^TestTicksSurviveRelocation$ . -count 1
func TestTicksSurviveRelocation(t *testing.T) {
	w := wecs.NewWorld()
	e := w.Spawn(Position{})
	orig, _ := wecs.GetTicks[Position](w, e)

	w.IncrementChangeTick()
	wecs.Insert(w, e, Velocity{})

	after, ok := wecs.GetTicks[Position](w, e)
	if !ok {
		t.Fatal("Position lost in relocation")
	}
	if after != orig {
		t.Errorf("relocation altered ticks: %+v -> %+v", orig, after)
	}

	// The newly written component carries the current tick.
	velTicks, _ := wecs.GetTicks[Velocity](w, e)
	if velTicks.Added != w.ChangeTick() {
		t.Errorf("Velocity added tick = %d, want %d", velTicks.Added, w.ChangeTick())
	}
}

// go test -run ^TestSpawnDuplicateComponentPanics$ . -count 1
func TestSpawnDuplicateComponentPanics(t *testing.T) {
	w := wecs.NewWorld()
	defer func() {
		if recover() == nil {
			t.Error("spawning duplicate component types should panic")
		}
	}()
	w.Spawn(Position{X: 1}, Position{X: 2})
}

// go test -run ^TestZeroSizeComponent$ . -count 1
func TestZeroSizeComponent(t *testing.T) {
	w := wecs.NewWorld()
	e := w.Spawn(Position{}, Marker{})
	if !wecs.Has[Marker](w, e) {
		t.Error("zero-size component should be stored")
	}
	if !wecs.Remove[Marker](w, e) {
		t.Error("zero-size component should be removable")
	}
}
