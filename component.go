package wecs

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// ComponentID is a unique identifier for a component or resource type
// within one world. Valid IDs range from 0 to MaxComponents-1, assigned
// in registration order.
type ComponentID uint8

// MaxComponents is the maximum number of registered types supported per
// world, components and resources combined.
const MaxComponents = 255

// componentInfo stores the metadata recorded for one registered type.
type componentInfo struct {
	typ      reflect.Type
	name     string
	resource bool
	nonSend  bool
}

// componentRegistry manages per-world type registration with lock-free
// reads. IDs are assigned sequentially and cached for fast lookup.
// sync.Map provides lock-free reads for the hot path (looking up already
// registered types) while still allowing safe concurrent registration.
// A type may be registered both as a component and as a resource; the two
// registrations receive distinct IDs.
type componentRegistry struct {
	// types maps reflect.Type to ComponentID for component registrations,
	// resources does the same for resource registrations. These are the
	// hot path: types are registered once but looked up constantly.
	types     sync.Map // map[reflect.Type]ComponentID
	resources sync.Map // map[reflect.Type]ComponentID

	// infos stores metadata indexed by ComponentID. Entries are written
	// once during registration and read-only afterward.
	infos [MaxComponents]componentInfo

	// nextID is the next available ID (atomic for lock-free allocation).
	nextID atomic.Uint32

	// infoMu protects writes to infos during registration.
	infoMu sync.RWMutex
}

// register registers a component type and returns its ID. Called
// automatically when a type is first used in a query or spawn.
func (r *componentRegistry) register(t reflect.Type) ComponentID {
	if id, ok := r.types.Load(t); ok {
		return id.(ComponentID)
	}
	validateComponentType(t)

	newID := r.allocateID(t)
	actual, loaded := r.types.LoadOrStore(t, newID)
	if loaded {
		// Another goroutine registered this type first. Its ID wins; the
		// one allocated here stays unused.
		return actual.(ComponentID)
	}

	r.storeInfo(newID, componentInfo{typ: t, name: typeName(t)})
	return newID
}

// registerResource registers a resource type and returns its ID. The
// nonSend flag pins all later access to the registering goroutine.
func (r *componentRegistry) registerResource(t reflect.Type, nonSend bool) ComponentID {
	if id, ok := r.resources.Load(t); ok {
		return id.(ComponentID)
	}
	validateComponentType(t)

	newID := r.allocateID(t)
	actual, loaded := r.resources.LoadOrStore(t, newID)
	if loaded {
		return actual.(ComponentID)
	}

	r.storeInfo(newID, componentInfo{typ: t, name: typeName(t), resource: true, nonSend: nonSend})
	return newID
}

// allocateID claims the next sequential ID, failing loudly once the
// registration space is exhausted.
func (r *componentRegistry) allocateID(t reflect.Type) ComponentID {
	newID := r.nextID.Add(1) - 1
	if newID >= MaxComponents {
		panic(fmt.Sprintf("wecs: registration limit exceeded for %s (max %d types)", typeName(t), MaxComponents))
	}
	return ComponentID(newID)
}

func (r *componentRegistry) storeInfo(id ComponentID, info componentInfo) {
	r.infoMu.Lock()
	r.infos[id] = info
	r.infoMu.Unlock()
}

// lookup returns the ID for a registered component type.
// Returns false if the type has not been registered.
func (r *componentRegistry) lookup(t reflect.Type) (ComponentID, bool) {
	if id, ok := r.types.Load(t); ok {
		return id.(ComponentID), true
	}
	return 0, false
}

// info returns the metadata recorded for the given ID.
func (r *componentRegistry) info(id ComponentID) componentInfo {
	r.infoMu.RLock()
	defer r.infoMu.RUnlock()
	return r.infos[id]
}

// name returns the registered type name for diagnostics.
func (r *componentRegistry) name(id ComponentID) string {
	r.infoMu.RLock()
	defer r.infoMu.RUnlock()
	return r.infos[id].name
}

// count returns the number of IDs assigned so far.
func (r *componentRegistry) count() int {
	return int(r.nextID.Load())
}

// names resolves a list of IDs to their registered type names.
func (r *componentRegistry) names(ids []ComponentID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = r.name(id)
	}
	return out
}

// validateComponentType rejects types that cannot be stored by value.
func validateComponentType(t reflect.Type) {
	switch t.Kind() {
	case reflect.Ptr, reflect.UnsafePointer:
		panic(fmt.Sprintf("wecs: %s cannot be registered: pointer types are not storable, register the element type", t))
	case reflect.Interface:
		panic(fmt.Sprintf("wecs: %s cannot be registered: interface types are not storable", t))
	}
}

// typeName returns a short printable name for a type, falling back to the
// full string form for anonymous types.
func typeName(t reflect.Type) string {
	if n := t.Name(); n != "" {
		return n
	}
	return t.String()
}

// typeOf returns the reflect.Type of T.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// RegisterComponent registers component type T with the world and returns
// its ID. Registration is otherwise automatic on first use; explicit
// registration only pins the ID order.
func RegisterComponent[T any](w *World) ComponentID {
	return w.registry.register(typeOf[T]())
}

// ComponentName returns the registered name of the type with the given ID.
func (w *World) ComponentName(id ComponentID) string {
	return w.registry.name(id)
}

// ComponentType returns the reflect.Type registered under the given ID.
func (w *World) ComponentType(id ComponentID) reflect.Type {
	return w.registry.info(id).typ
}

// RegisteredCount returns the number of component and resource types
// registered with the world so far.
func (w *World) RegisteredCount() int {
	return w.registry.count()
}
