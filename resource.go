package wecs

import (
	"bytes"
	"fmt"
	"reflect"
	"runtime"
	"strconv"
	"unsafe"
)

// resourceCell stores one world-global value together with its change
// ticks. NonSend cells additionally remember the goroutine that created
// them and reject access from any other.
type resourceCell struct {
	id     ComponentID
	ptr    unsafe.Pointer
	ticks  ComponentTicks
	origin int64 // goroutine id for non-send cells, 0 otherwise
}

// goroutineID parses the current goroutine's id from the runtime stack
// header. Only the non-send access check pays this cost.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Header line: "goroutine 123 [running]:"
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// checkOrigin panics when a non-send cell is touched off its owning
// goroutine.
func (c *resourceCell) checkOrigin(w *World) {
	if c.origin == 0 {
		return
	}
	if gid := goroutineID(); gid != c.origin {
		panic(fmt.Sprintf("wecs: non-send resource %s accessed from goroutine %d, owned by goroutine %d",
			w.registry.name(c.id), gid, c.origin))
	}
}

// InsertResource stores value as the world's single instance of type T,
// replacing any previous instance. Insertion stamps both change ticks at
// the current world tick.
func InsertResource[T any](w *World, value T) {
	id := w.registry.registerResource(typeOf[T](), false)
	w.insertResourceCell(id, unsafe.Pointer(&value), 0)
}

// InsertNonSendResource stores value as a non-send resource: all later
// access must happen on the goroutine calling this function. Systems
// declaring non-send parameters are kept on the schedule's run goroutine.
func InsertNonSendResource[T any](w *World, value T) {
	id := w.registry.registerResource(typeOf[T](), true)
	w.insertResourceCell(id, unsafe.Pointer(&value), goroutineID())
}

func (w *World) insertResourceCell(id ComponentID, ptr unsafe.Pointer, origin int64) {
	now := w.ChangeTick()
	if cell, ok := w.resources[id]; ok {
		cell.checkOrigin(w)
		cell.ptr = ptr
		cell.ticks.Changed = now
		cell.origin = origin
		return
	}
	w.resources[id] = &resourceCell{
		id:     id,
		ptr:    ptr,
		ticks:  newComponentTicks(now),
		origin: origin,
	}
}

// Resource returns a pointer to the world's instance of T, or nil if
// none was inserted. The pointer is read access only; use ResourceMut
// when mutating so change detection observes it.
func Resource[T any](w *World) *T {
	cell := w.resourceLookup(typeOf[T]())
	if cell == nil {
		return nil
	}
	cell.checkOrigin(w)
	return (*T)(cell.ptr)
}

// ResourceMut returns a pointer to the world's instance of T and stamps
// it changed at the current world tick. Returns nil if none was inserted.
func ResourceMut[T any](w *World) *T {
	cell := w.resourceLookup(typeOf[T]())
	if cell == nil {
		return nil
	}
	cell.checkOrigin(w)
	cell.ticks.Changed = w.ChangeTick()
	return (*T)(cell.ptr)
}

// HasResource reports whether the world holds an instance of T.
func HasResource[T any](w *World) bool {
	return w.resourceLookup(typeOf[T]()) != nil
}

// RemoveResource deletes the world's instance of T, returning false if
// none was present.
func RemoveResource[T any](w *World) bool {
	t := typeOf[T]()
	id, ok := w.registry.resources.Load(t)
	if !ok {
		return false
	}
	cell, ok := w.resources[id.(ComponentID)]
	if !ok {
		return false
	}
	cell.checkOrigin(w)
	delete(w.resources, id.(ComponentID))
	return true
}

// ResourceTicks returns the change ticks of the world's instance of T.
func ResourceTicks[T any](w *World) (ComponentTicks, bool) {
	cell := w.resourceLookup(typeOf[T]())
	if cell == nil {
		return ComponentTicks{}, false
	}
	return cell.ticks, true
}

// IsResourceChanged reports whether T was inserted or mutated since
// lastRun, observed at the current world tick.
func IsResourceChanged[T any](w *World, lastRun Tick) bool {
	cell := w.resourceLookup(typeOf[T]())
	if cell == nil {
		return false
	}
	return cell.ticks.IsChanged(lastRun, w.ChangeTick())
}

func (w *World) resourceLookup(t reflect.Type) *resourceCell {
	id, ok := w.registry.resources.Load(t)
	if !ok {
		return nil
	}
	return w.resources[id.(ComponentID)]
}

// checkResourceTicks clamps the stored ticks of every resource cell.
func (w *World) checkResourceTicks(current Tick) int {
	n := 0
	for _, cell := range w.resources {
		n += cell.ticks.check(current)
	}
	return n
}
