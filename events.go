package wecs

// Events is a double-buffered event channel stored as a resource. Events
// sent during one update stay readable through the next, then drop; a
// reader polling once per update never misses one and never sees one
// twice.
//
// Sending requires mutable access to the channel, reading only shared
// access, so any number of readers runs in parallel with each other.
type Events[T any] struct {
	front      []T
	back       []T
	frontStart uint64
	backStart  uint64
	count      uint64
}

// Send appends an event to the current update's buffer.
func (e *Events[T]) Send(event T) {
	e.back = append(e.back, event)
	e.count++
}

// Update rotates the buffers: last update's events drop, this update's
// become readable history. Call once per update, typically from a
// schedule's first stage.
func (e *Events[T]) Update() {
	e.front = e.back
	e.frontStart = e.backStart
	e.back = nil
	e.backStart = e.count
}

// Clear drops all buffered events without advancing the update cycle.
func (e *Events[T]) Clear() {
	e.front = nil
	e.back = nil
	e.frontStart = e.count
	e.backStart = e.count
}

// Len returns the number of currently buffered events.
func (e *Events[T]) Len() int {
	return len(e.front) + len(e.back)
}

// oldest returns the sequence number of the oldest buffered event.
func (e *Events[T]) oldest() uint64 {
	return e.frontStart
}

// sliceFrom returns all buffered events at or after sequence seq.
func (e *Events[T]) sliceFrom(seq uint64) []T {
	if seq < e.frontStart {
		seq = e.frontStart
	}
	var out []T
	if seq < e.backStart {
		out = append(out, e.front[seq-e.frontStart:]...)
		seq = e.backStart
	}
	if seq < e.count {
		out = append(out, e.back[seq-e.backStart:]...)
	}
	return out
}

// EventReader tracks one consumer's position in an event channel. Each
// reader owns its cursor, so two readers each observe every event.
type EventReader[T any] struct {
	seen uint64
}

// Read returns the events sent since this reader last read, oldest
// first, and advances the cursor past them.
func (r *EventReader[T]) Read(e *Events[T]) []T {
	if r.seen < e.oldest() {
		r.seen = e.oldest()
	}
	out := e.sliceFrom(r.seen)
	r.seen = e.count
	return out
}

// Pending returns how many events the reader has not yet read.
func (r *EventReader[T]) Pending(e *Events[T]) int {
	seen := r.seen
	if seen < e.oldest() {
		seen = e.oldest()
	}
	return int(e.count - seen)
}

// AddEvent registers an event channel of type T as a resource on the
// world and hooks its buffer rotation into World.UpdateEvents.
func AddEvent[T any](w *World) {
	if HasResource[Events[T]](w) {
		return
	}
	InsertResource(w, Events[T]{})
	w.eventUpdaters = append(w.eventUpdaters, func(w *World) {
		if ev := ResourceMut[Events[T]](w); ev != nil {
			ev.Update()
		}
	})
}

// SendEvent appends an event to the world's channel of type T. The
// channel must have been registered with AddEvent.
func SendEvent[T any](w *World, event T) {
	ev := ResourceMut[Events[T]](w)
	if ev == nil {
		panic("wecs: event type not registered, call AddEvent first")
	}
	ev.Send(event)
}

// UpdateEvents rotates every event channel registered with AddEvent.
// Run it once per update, before the systems that read events.
func (w *World) UpdateEvents() {
	for _, fn := range w.eventUpdaters {
		fn(w)
	}
}
