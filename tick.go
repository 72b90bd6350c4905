package wecs

// CheckTickThreshold is the number of world ticks that may elapse between
// two clamping sweeps before stored ticks risk aging past MaxChangeAge.
// The world triggers a sweep automatically once this many ticks have
// passed since the previous one.
const CheckTickThreshold uint32 = 518_400_000

// MaxChangeAge is the oldest age, in ticks, that a stored change tick is
// allowed to reach. Periodic sweeps clamp older ticks to exactly this age
// so that wrapping arithmetic never makes a stale change look recent.
const MaxChangeAge uint32 = ^uint32(0) - (2*CheckTickThreshold - 1)

// Tick is a value of the world's monotonically increasing change counter.
// The counter wraps around at 32 bits; all comparisons use wrapping
// arithmetic and saturate at MaxChangeAge.
type Tick uint32

// IsNewerThan reports whether t is a more recent change than anything the
// observer has already seen. lastRun is the tick at which the observer
// last ran, thisRun is the current tick.
func (t Tick) IsNewerThan(lastRun, thisRun Tick) bool {
	sinceChange := min(uint32(thisRun-t), MaxChangeAge)
	sinceObserver := min(uint32(thisRun-lastRun), MaxChangeAge)
	return sinceObserver > sinceChange
}

// CheckTick clamps t so that its age relative to current never exceeds
// MaxChangeAge. It returns true if the tick was clamped.
func (t *Tick) CheckTick(current Tick) bool {
	if uint32(current-*t) > MaxChangeAge {
		*t = current - Tick(MaxChangeAge)
		return true
	}
	return false
}

// ComponentTicks is the pair of change ticks attached to every stored
// component and resource: the tick it was inserted and the tick it was
// last mutated.
type ComponentTicks struct {
	Added   Tick
	Changed Tick
}

// newComponentTicks returns ticks for a value inserted at t. Insertion
// counts as a change, so both ticks start equal.
func newComponentTicks(t Tick) ComponentTicks {
	return ComponentTicks{Added: t, Changed: t}
}

// IsAdded reports whether the value was inserted since the observer
// last ran.
func (c ComponentTicks) IsAdded(lastRun, thisRun Tick) bool {
	return c.Added.IsNewerThan(lastRun, thisRun)
}

// IsChanged reports whether the value was inserted or mutated since the
// observer last ran.
func (c ComponentTicks) IsChanged(lastRun, thisRun Tick) bool {
	return c.Changed.IsNewerThan(lastRun, thisRun)
}

// check clamps both ticks against current, returning how many were clamped.
func (c *ComponentTicks) check(current Tick) int {
	n := 0
	if c.Added.CheckTick(current) {
		n++
	}
	if c.Changed.CheckTick(current) {
		n++
	}
	return n
}
