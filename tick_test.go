package wecs_test

import (
	"math"
	"testing"

	"github.com/oriumgames/wecs"
)

// go test -run ^TestTickConstants$ . -count 1
func TestTickConstants(t *testing.T) {
	want := uint32(math.MaxUint32) - (2*wecs.CheckTickThreshold - 1)
	if wecs.MaxChangeAge != want {
		t.Errorf("MaxChangeAge = %d, want %d", wecs.MaxChangeAge, want)
	}
}

// go test -run ^TestTickIsNewerThan$ . -count 1
func TestTickIsNewerThan(t *testing.T) {
	cases := []struct {
		name             string
		tick             wecs.Tick
		lastRun, thisRun wecs.Tick
		want             bool
	}{
		{"changed after observer ran", 5, 4, 6, true},
		{"changed at observer run", 4, 4, 6, false},
		{"changed before observer ran", 3, 4, 6, false},
		{"changed this tick", 6, 4, 6, true},
		{"observer up to date", 6, 6, 6, false},
		{"wrapped counter, recent change", 2, wecs.Tick(math.MaxUint32 - 1), 3, true},
	}
	for _, c := range cases {
		if got := c.tick.IsNewerThan(c.lastRun, c.thisRun); got != c.want {
			t.Errorf("%s: IsNewerThan(%d, %d, %d) = %v, want %v",
				c.name, c.tick, c.lastRun, c.thisRun, got, c.want)
		}
	}
}

// go test -run ^TestTickWraparoundBoundary$ . -count 1
func TestTickWraparoundBoundary(t *testing.T) {
	changed := wecs.Tick(10)
	lastRun := changed - 1

	// One tick inside the window the change is still visible.
	thisRun := changed + wecs.Tick(wecs.MaxChangeAge) - 1
	if !changed.IsNewerThan(lastRun, thisRun) {
		t.Fatal("change inside the age window should still be visible")
	}

	// Exactly MaxChangeAge ticks later the change ages out.
	thisRun = changed + wecs.Tick(wecs.MaxChangeAge)
	if changed.IsNewerThan(lastRun, thisRun) {
		t.Fatal("change exactly MaxChangeAge old should not be visible")
	}

	// One tick further must not wrap back to visible.
	thisRun++
	if changed.IsNewerThan(lastRun, thisRun) {
		t.Fatal("change past MaxChangeAge must not report as new again")
	}
}

// go test -run ^TestCheckTickClamps$ . -count 1
func TestCheckTickClamps(t *testing.T) {
	tick := wecs.Tick(5)
	current := tick + wecs.Tick(wecs.MaxChangeAge)
	if tick.CheckTick(current) {
		t.Fatal("tick at exactly MaxChangeAge should not clamp")
	}

	current++
	if !tick.CheckTick(current) {
		t.Fatal("tick past MaxChangeAge should clamp")
	}
	if want := current - wecs.Tick(wecs.MaxChangeAge); tick != want {
		t.Errorf("clamped tick = %d, want %d", tick, want)
	}

	// Clamping is idempotent.
	if tick.CheckTick(current) {
		t.Error("already clamped tick should not clamp again")
	}
}

// go test -run ^TestComponentTicks$ . -count 1
func TestComponentTicks(t *testing.T) {
	var ticks wecs.ComponentTicks
	ticks.Added = 3
	ticks.Changed = 7

	if !ticks.IsAdded(2, 8) {
		t.Error("added at 3 should be new to an observer from 2")
	}
	if ticks.IsAdded(3, 8) {
		t.Error("added at 3 should not be new to an observer from 3")
	}
	if !ticks.IsChanged(6, 8) {
		t.Error("changed at 7 should be new to an observer from 6")
	}
	if ticks.IsChanged(7, 8) {
		t.Error("changed at 7 should not be new to an observer from 7")
	}
}

// go test -run ^TestWorldCheckChangeTicks$ . -count 1
func TestWorldCheckChangeTicks(t *testing.T) {
	w := wecs.NewWorld()
	e := w.Spawn(Position{X: 1})

	now := wecs.Tick(1) + wecs.Tick(wecs.MaxChangeAge) + 50
	w.SetChangeTick(now)
	w.CheckChangeTicks()

	ticks, ok := wecs.GetTicks[Position](w, e)
	if !ok {
		t.Fatal("component disappeared")
	}
	want := now - wecs.Tick(wecs.MaxChangeAge)
	if ticks.Added != want || ticks.Changed != want {
		t.Errorf("ticks after sweep = %+v, want both %d", ticks, want)
	}

	// A stale change stays invisible after the clamp.
	if ticks.IsChanged(now-1, now) {
		t.Error("clamped tick must not read as a fresh change")
	}
}
