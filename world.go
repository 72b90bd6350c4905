package wecs

import (
	"fmt"
	"reflect"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// World owns all entity storage: the type registry, the entity table,
// every archetype, and the resource cells. It also carries the change
// tick counter that drives change detection.
//
// Reads may happen concurrently, which is how the schedule runs
// non-conflicting systems in parallel. Structural changes (spawn,
// despawn, insert, remove) require exclusive access; inside a schedule
// they go through Commands and are applied at stage barriers.
type World struct {
	id       uuid.UUID
	registry *componentRegistry
	entities *entityIndex

	archetypes          []*Archetype
	archetypeIndex      map[Bitmask]ArchetypeID
	archetypeGeneration atomic.Uint32

	resources     map[ComponentID]*resourceCell
	eventUpdaters []func(*World)

	changeTick     atomic.Uint32
	lastChangeTick Tick
	lastCheckTick  Tick

	logger *zap.Logger
}

// WorldOption configures a World during construction.
type WorldOption func(*World)

// WithLogger sets the logger used for world and schedule diagnostics.
// The default discards everything.
func WithLogger(logger *zap.Logger) WorldOption {
	return func(w *World) {
		w.logger = logger
	}
}

// NewWorld creates an empty world. The change tick starts at 1 so values
// inserted before the first schedule pass still read as added.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		id:             uuid.New(),
		registry:       &componentRegistry{},
		entities:       newEntityIndex(),
		archetypeIndex: make(map[Bitmask]ArchetypeID),
		resources:      make(map[ComponentID]*resourceCell),
		logger:         zap.NewNop(),
	}
	w.changeTick.Store(1)
	// Archetype 0 holds entities with no components, including reserved
	// entities between flush and their first insert.
	w.getOrCreateArchetype(Bitmask{}, nil)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the world's unique identity. Queries and schedules
// initialized against one world refuse to run against another.
func (w *World) ID() uuid.UUID { return w.id }

// Logger returns the world's diagnostic logger.
func (w *World) Logger() *zap.Logger { return w.logger }

// ChangeTick returns the current value of the change counter.
func (w *World) ChangeTick() Tick {
	return Tick(w.changeTick.Load())
}

// LastChangeTick returns the tick recorded at the end of the previous
// schedule pass, used as the observer baseline for manual iteration.
func (w *World) LastChangeTick() Tick {
	return w.lastChangeTick
}

// IncrementChangeTick advances the change counter by one and returns the
// new value. The schedule calls this once per pass; manual callers only
// need it when observing change detection without a schedule.
func (w *World) IncrementChangeTick() Tick {
	return Tick(w.changeTick.Add(1))
}

// SetChangeTick forces the change counter to t. Intended for tests and
// frameworks that replay recorded tick sequences.
func (w *World) SetChangeTick(t Tick) {
	w.changeTick.Store(uint32(t))
}

// Spawn creates an entity holding the given component values and returns
// its handle. Components of duplicate types are rejected.
func (w *World) Spawn(components ...any) Entity {
	w.Flush()
	e := w.entities.alloc()
	w.placeNew(e, components)
	return e
}

// placeNew stores a freshly allocated entity's components and records
// its location.
func (w *World) placeNew(e Entity, components []any) {
	if len(components) == 0 {
		empty := w.archetypes[0]
		row := empty.table.addRow(e)
		w.entities.setLocation(e, entityLocation{archetype: 0, row: row})
		return
	}

	type pending struct {
		id    ComponentID
		value reflect.Value
	}
	list := make([]pending, 0, len(components))
	var mask Bitmask
	for _, c := range components {
		if c == nil {
			panic("wecs: nil component in spawn")
		}
		v := reflect.ValueOf(c)
		id := w.registry.register(v.Type())
		if mask.Has(id) {
			panic(fmt.Sprintf("wecs: duplicate component %s in spawn", typeName(v.Type())))
		}
		mask.Set(id)
		list = append(list, pending{id: id, value: v})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })

	ids := make([]ComponentID, len(list))
	for i, p := range list {
		ids[i] = p.id
	}
	arch := w.getOrCreateArchetype(mask, ids)
	row := arch.table.addRow(e)
	now := w.ChangeTick()
	for _, p := range list {
		arch.table.column(p.id).push(p.value, now)
	}
	w.entities.setLocation(e, entityLocation{archetype: arch.id, row: row})
}

// Despawn removes the entity and all its components, releasing the
// handle's index for reuse. Returns false for stale handles.
func (w *World) Despawn(e Entity) bool {
	loc, ok := w.entities.location(e)
	if !ok {
		// Reserved but never materialized entities still need freeing.
		if w.entities.contains(e) {
			w.Flush()
			if loc, ok = w.entities.location(e); !ok {
				return false
			}
		} else {
			return false
		}
	}
	arch := w.archetypes[loc.archetype]
	moved, movedOK := arch.table.swapRemoveRow(loc.row)
	if movedOK {
		w.entities.setLocation(moved, loc)
	}
	return w.entities.free(e)
}

// Alive reports whether the handle refers to a live or reserved entity.
func (w *World) Alive(e Entity) bool {
	return w.entities.contains(e)
}

// EntityCount returns the number of materialized live entities.
func (w *World) EntityCount() int {
	n := 0
	for _, a := range w.archetypes {
		n += a.table.Len()
	}
	return n
}

// ArchetypeCount returns the number of distinct component sets seen.
func (w *World) ArchetypeCount() int {
	return len(w.archetypes)
}

// Flush materializes all entity handles reserved through Commands,
// placing them in the empty archetype until their components arrive.
func (w *World) Flush() {
	empty := w.archetypes[0]
	w.entities.flush(func(e Entity) {
		row := empty.table.addRow(e)
		w.entities.setLocation(e, entityLocation{archetype: 0, row: row})
	})
}

// moveEntity relocates e's row from its current archetype to dst,
// carrying over the columns both archetypes share with ticks intact.
// Returns the new row; columns unique to dst are filled by the caller.
func (w *World) moveEntity(e Entity, loc entityLocation, dst *Archetype) int {
	src := w.archetypes[loc.archetype]
	newRow := dst.table.addRow(e)
	for id, col := range src.table.columns {
		if dstCol := dst.table.column(id); dstCol != nil {
			col.transferTo(dstCol, loc.row)
		}
	}
	moved, ok := src.table.swapRemoveRow(loc.row)
	if ok {
		w.entities.setLocation(moved, loc)
	}
	w.entities.setLocation(e, entityLocation{archetype: dst.id, row: newRow})
	return newRow
}

// insertBoxed adds component values to an existing entity, relocating it
// across archetypes as needed. Values whose type is already present are
// overwritten in place and stamped changed.
func (w *World) insertBoxed(e Entity, components ...any) bool {
	loc, ok := w.entities.location(e)
	if !ok {
		return false
	}
	now := w.ChangeTick()
	for _, c := range components {
		if c == nil {
			panic("wecs: nil component in insert")
		}
		v := reflect.ValueOf(c)
		id := w.registry.register(v.Type())
		arch := w.archetypes[loc.archetype]
		if arch.mask.Has(id) {
			arch.table.column(id).set(loc.row, v, now)
			continue
		}
		dst := w.archetypeAfterAdd(arch, id)
		newRow := w.moveEntity(e, loc, dst)
		dst.table.column(id).push(v, now)
		loc = entityLocation{archetype: dst.id, row: newRow}
	}
	return true
}

// removeByID drops one component from an entity, relocating it to the
// smaller archetype. Returns false if the entity is stale or does not
// hold the component.
func (w *World) removeByID(e Entity, id ComponentID) bool {
	loc, ok := w.entities.location(e)
	if !ok {
		return false
	}
	arch := w.archetypes[loc.archetype]
	if !arch.mask.Has(id) {
		return false
	}
	dst := w.archetypeAfterRemove(arch, id)
	w.moveEntity(e, loc, dst)
	return true
}

// Insert adds or overwrites a single component on an entity. Returns
// false for stale handles.
func Insert[T any](w *World, e Entity, value T) bool {
	return w.insertBoxed(e, value)
}

// Remove drops component T from an entity. Returns false if the entity
// is stale or does not hold T.
func Remove[T any](w *World, e Entity) bool {
	id, ok := w.registry.lookup(typeOf[T]())
	if !ok {
		return false
	}
	return w.removeByID(e, id)
}

// Get returns a pointer to e's component of type T, or nil if absent.
// The pointer is read access; mutations through it bypass change
// detection, use GetMut for those.
func Get[T any](w *World, e Entity) *T {
	col, row := componentCell[T](w, e)
	if col == nil {
		return nil
	}
	return (*T)(col.ptr(row))
}

// GetMut returns a pointer to e's component of type T and stamps it
// changed at the current world tick. Returns nil if absent.
func GetMut[T any](w *World, e Entity) *T {
	col, row := componentCell[T](w, e)
	if col == nil {
		return nil
	}
	col.markChanged(row, w.ChangeTick())
	return (*T)(col.ptr(row))
}

// Has reports whether e holds a component of type T.
func Has[T any](w *World, e Entity) bool {
	id, ok := w.registry.lookup(typeOf[T]())
	if !ok {
		return false
	}
	loc, ok := w.entities.location(e)
	if !ok {
		return false
	}
	return w.archetypes[loc.archetype].mask.Has(id)
}

// GetTicks returns the change ticks of e's component of type T.
func GetTicks[T any](w *World, e Entity) (ComponentTicks, bool) {
	col, row := componentCell[T](w, e)
	if col == nil {
		return ComponentTicks{}, false
	}
	return col.ticks(row), true
}

// IsAdded reports whether e's component of type T was inserted since
// lastRun, observed at the current world tick.
func IsAdded[T any](w *World, e Entity, lastRun Tick) bool {
	ticks, ok := GetTicks[T](w, e)
	return ok && ticks.IsAdded(lastRun, w.ChangeTick())
}

// IsChanged reports whether e's component of type T was inserted or
// mutated since lastRun, observed at the current world tick.
func IsChanged[T any](w *World, e Entity, lastRun Tick) bool {
	ticks, ok := GetTicks[T](w, e)
	return ok && ticks.IsChanged(lastRun, w.ChangeTick())
}

func componentCell[T any](w *World, e Entity) (*column, int) {
	id, ok := w.registry.lookup(typeOf[T]())
	if !ok {
		return nil, 0
	}
	loc, ok := w.entities.location(e)
	if !ok {
		return nil, 0
	}
	col := w.archetypes[loc.archetype].table.column(id)
	if col == nil {
		return nil, 0
	}
	return col, loc.row
}

// CheckChangeTicks clamps every stored change tick whose age exceeds
// MaxChangeAge, pinning it to exactly that age. The schedule triggers
// this automatically once CheckTickThreshold ticks have elapsed since
// the previous sweep; manual worlds running billions of ticks without a
// schedule should call it at the same cadence.
func (w *World) CheckChangeTicks() {
	now := w.ChangeTick()
	n := 0
	for _, a := range w.archetypes {
		for _, col := range a.table.columns {
			n += col.checkTicks(now)
		}
	}
	n += w.checkResourceTicks(now)
	w.lastCheckTick = now
	if n > 0 {
		w.logger.Debug("clamped stale change ticks",
			zap.Int("count", n),
			zap.Uint32("tick", uint32(now)))
	}
}

// maybeCheckTicks runs the clamping sweep when enough ticks have passed.
func (w *World) maybeCheckTicks() {
	if uint32(w.ChangeTick()-w.lastCheckTick) >= CheckTickThreshold {
		w.CheckChangeTicks()
	}
}
