package wecs

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Entity is a lightweight handle to a stored entity: an index into the
// world's entity table plus the generation at which the index was issued.
// A handle goes stale when its entity is despawned; stale handles are
// rejected by every world operation instead of aliasing the reused index.
type Entity struct {
	index      uint32
	generation uint32
}

// Index returns the table index of the handle.
func (e Entity) Index() uint32 { return e.index }

// Generation returns the incarnation counter of the handle.
func (e Entity) Generation() uint32 { return e.generation }

// IsNil returns true for the zero Entity, which no world ever issues.
func (e Entity) IsNil() bool { return e.generation == 0 }

// String renders the handle as index and generation, e.g. "7v2".
func (e Entity) String() string {
	return fmt.Sprintf("%dv%d", e.index, e.generation)
}

// invalidArchetype marks an entity index with no storage location, either
// freed or reserved but not yet materialized.
const invalidArchetype = ArchetypeID(math.MaxUint32)

// entityLocation records where an entity's row currently lives.
type entityLocation struct {
	archetype ArchetypeID
	row       int
}

// entityMeta is the per-index record of the entity table.
type entityMeta struct {
	generation uint32
	loc        entityLocation
}

// entityIndex allocates entity handles and maps them to storage
// locations. Freed indexes are recycled through a pending list with a
// generation bump so stale handles never resolve.
//
// reserve is safe to call from multiple goroutines at once, which is how
// command buffers hand out entity handles while systems run in parallel.
// Every other method requires exclusive access to the world; reservations
// are materialized by flush at the next barrier.
type entityIndex struct {
	metas   []entityMeta
	pending []uint32

	// freeCursor is the reservation cursor into pending. Values above
	// zero index unclaimed freed slots; zero or below counts fresh
	// indexes promised past the end of metas.
	freeCursor atomic.Int64
}

func newEntityIndex() *entityIndex {
	return &entityIndex{}
}

// reserve hands out an entity handle without touching storage. The handle
// is valid immediately but has no location until flush runs.
func (idx *entityIndex) reserve() Entity {
	n := idx.freeCursor.Add(-1)
	if n >= 0 {
		i := idx.pending[n]
		return Entity{index: i, generation: idx.metas[i].generation}
	}
	// Promised index past the current table, materialized by flush.
	return Entity{index: uint32(len(idx.metas)) + uint32(-n-1), generation: 1}
}

// flush materializes all outstanding reservations, invoking init for each
// so the caller can place the entity into storage.
func (idx *entityIndex) flush(init func(Entity)) {
	n := idx.freeCursor.Load()
	cut := n
	if cut < 0 {
		cut = 0
	}

	// Freed indexes claimed by reserve sit above the cursor.
	for _, i := range idx.pending[cut:] {
		init(Entity{index: i, generation: idx.metas[i].generation})
	}
	idx.pending = idx.pending[:cut]

	// Negative cursor values are fresh indexes past the end of metas.
	for ; n < 0; n++ {
		i := uint32(len(idx.metas))
		idx.metas = append(idx.metas, entityMeta{
			generation: 1,
			loc:        entityLocation{archetype: invalidArchetype},
		})
		init(Entity{index: i, generation: 1})
	}
	idx.freeCursor.Store(int64(len(idx.pending)))
}

// alloc returns a fresh handle with no location set. The caller must
// place it before the entity becomes visible to queries. Requires all
// reservations to have been flushed.
func (idx *entityIndex) alloc() Entity {
	if n := len(idx.pending); n > 0 {
		i := idx.pending[n-1]
		idx.pending = idx.pending[:n-1]
		idx.freeCursor.Store(int64(n - 1))
		return Entity{index: i, generation: idx.metas[i].generation}
	}
	i := uint32(len(idx.metas))
	idx.metas = append(idx.metas, entityMeta{
		generation: 1,
		loc:        entityLocation{archetype: invalidArchetype},
	})
	return Entity{index: i, generation: 1}
}

// free releases the handle's index for reuse and bumps its generation so
// the handle goes stale. Returns false if the handle is already stale.
func (idx *entityIndex) free(e Entity) bool {
	if !idx.contains(e) {
		return false
	}
	meta := &idx.metas[e.index]
	meta.generation++
	meta.loc = entityLocation{archetype: invalidArchetype}
	idx.pending = append(idx.pending, e.index)
	idx.freeCursor.Store(int64(len(idx.pending)))
	return true
}

// contains reports whether the handle refers to a live or reserved entity.
func (idx *entityIndex) contains(e Entity) bool {
	if e.generation == 0 {
		return false
	}
	if int(e.index) >= len(idx.metas) {
		// Reserved fresh index that has not been flushed yet.
		return idx.reservedFresh(e.index) && e.generation == 1
	}
	return idx.metas[e.index].generation == e.generation
}

// reservedFresh reports whether index i lies within the fresh range
// promised by outstanding reservations.
func (idx *entityIndex) reservedFresh(i uint32) bool {
	n := idx.freeCursor.Load()
	if n >= 0 {
		return false
	}
	return i < uint32(len(idx.metas))+uint32(-n)
}

// location returns the storage location for a live handle.
func (idx *entityIndex) location(e Entity) (entityLocation, bool) {
	if int(e.index) >= len(idx.metas) || idx.metas[e.index].generation != e.generation {
		return entityLocation{}, false
	}
	loc := idx.metas[e.index].loc
	if loc.archetype == invalidArchetype {
		return entityLocation{}, false
	}
	return loc, true
}

// setLocation records where a handle's row now lives.
func (idx *entityIndex) setLocation(e Entity, loc entityLocation) {
	idx.metas[e.index].loc = loc
}

// len returns the number of materialized entity slots.
func (idx *entityIndex) len() int {
	return len(idx.metas)
}
