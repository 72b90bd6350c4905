package wecs

import (
	"fmt"
	"reflect"
)

// SystemMeta holds pre-computed metadata about a single system.
// This is computed once when the schedule builds and reused for all
// executions.
type SystemMeta struct {
	// Name identifies the system in ordering constraints, reports and
	// panics. Names must be unique when used as ordering targets.
	Name string

	// access is the combined component and resource access of all
	// declared parameters, used for conflict detection.
	access FilteredAccessSet

	// lastRun is the tick at which the system last ran; the baseline
	// its change filters observe.
	lastRun Tick

	// exclusive marks systems claiming the whole world. They run alone,
	// never concurrently with any other system.
	exclusive bool

	// threadLocal pins execution to the schedule's run goroutine, set
	// by non-send parameters and exclusive access.
	threadLocal bool
}

func newSystemMeta(name string) *SystemMeta {
	return &SystemMeta{Name: name}
}

// Access returns the system's combined access set.
func (m *SystemMeta) Access() *FilteredAccessSet { return &m.access }

// Exclusive reports whether the system claims the whole world.
func (m *SystemMeta) Exclusive() bool { return m.exclusive }

// SystemParam declares one input of a system: a query, a resource, or
// exclusive world access. Applying a parameter folds its access into the
// system's metadata when the schedule builds.
type SystemParam interface {
	applyParam(w *World, meta *SystemMeta)
}

// applyParam initializes the query against the world and folds its
// access into the system. Two parameters of one system conflicting with
// each other cannot be scheduled around, so that fails immediately.
func (q *Query) applyParam(w *World, meta *SystemMeta) {
	q.ensureInit(w)
	checkParamConflict(w, meta, q.filtered)
	meta.access.Add(q.filtered)
}

// resParam declares access to a single resource type.
type resParam struct {
	typ     reflect.Type
	write   bool
	nonSend bool
}

func (p resParam) applyParam(w *World, meta *SystemMeta) {
	id := w.registry.registerResource(p.typ, p.nonSend)
	probe := NewFilteredAccess()
	if p.write {
		probe.access.AddWrite(id)
	} else {
		probe.access.AddRead(id)
	}
	checkParamConflict(w, meta, probe)
	meta.access.Add(probe)
	if p.nonSend {
		meta.threadLocal = true
	}
}

// exclusiveParam claims the whole world.
type exclusiveParam struct{}

func (exclusiveParam) applyParam(w *World, meta *SystemMeta) {
	meta.exclusive = true
	meta.threadLocal = true
	meta.access.AddExclusive()
}

func checkParamConflict(w *World, meta *SystemMeta, next *FilteredAccess) {
	for _, prev := range meta.access.list {
		if prev.IsCompatible(next) {
			continue
		}
		ids := prev.Conflicts(next)
		panic(fmt.Sprintf("wecs: system %q declares parameters with conflicting access on %v; split the system or drop to read access",
			meta.Name, w.registry.names(ids)))
	}
}

// ReadsResource declares shared access to resource T. Systems reading
// the same resource may run concurrently.
func ReadsResource[T any]() SystemParam {
	return resParam{typ: typeOf[T]()}
}

// WritesResource declares exclusive access to resource T. No other
// system touching T runs concurrently with this one.
func WritesResource[T any]() SystemParam {
	return resParam{typ: typeOf[T](), write: true}
}

// ReadsNonSend declares shared access to non-send resource T and pins
// the system to the schedule's run goroutine.
func ReadsNonSend[T any]() SystemParam {
	return resParam{typ: typeOf[T](), nonSend: true}
}

// WritesNonSend declares exclusive access to non-send resource T and
// pins the system to the schedule's run goroutine.
func WritesNonSend[T any]() SystemParam {
	return resParam{typ: typeOf[T](), write: true, nonSend: true}
}

// ReadsEvents declares that the system reads the event channel of type
// T. Readers run concurrently with each other.
func ReadsEvents[T any]() SystemParam {
	return resParam{typ: typeOf[Events[T]]()}
}

// WritesEvents declares that the system sends events of type T.
func WritesEvents[T any]() SystemParam {
	return resParam{typ: typeOf[Events[T]](), write: true}
}

// ExclusiveAccess declares that the system needs the whole world, such
// as for direct structural changes. Exclusive systems run alone on the
// schedule's run goroutine.
func ExclusiveAccess() SystemParam {
	return exclusiveParam{}
}
