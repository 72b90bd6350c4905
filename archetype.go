package wecs

import "reflect"

// ArchetypeID identifies one archetype within a world.
type ArchetypeID uint32

// archetypeEdge caches the neighboring archetype reached by adding or
// removing a single component, so repeated structural changes skip the
// mask lookup.
type archetypeEdge struct {
	add       ArchetypeID
	remove    ArchetypeID
	hasAdd    bool
	hasRemove bool
}

// Archetype groups all entities holding exactly the same component set.
// Each archetype owns one table; the mask mirrors the component list for
// fast matching.
type Archetype struct {
	id         ArchetypeID
	mask       Bitmask
	components []ComponentID // ascending
	table      *Table
	edges      map[ComponentID]archetypeEdge
}

// ID returns the archetype's identifier.
func (a *Archetype) ID() ArchetypeID { return a.id }

// Mask returns the archetype's component mask.
func (a *Archetype) Mask() Bitmask { return a.mask }

// Components returns the component IDs held, in ascending order.
func (a *Archetype) Components() []ComponentID { return a.components }

// Len returns the number of entities stored in the archetype.
func (a *Archetype) Len() int { return a.table.Len() }

// edgeAdd returns the cached archetype reached by adding id.
func (a *Archetype) edgeAdd(id ComponentID) (ArchetypeID, bool) {
	e, ok := a.edges[id]
	if !ok || !e.hasAdd {
		return 0, false
	}
	return e.add, true
}

// edgeRemove returns the cached archetype reached by removing id.
func (a *Archetype) edgeRemove(id ComponentID) (ArchetypeID, bool) {
	e, ok := a.edges[id]
	if !ok || !e.hasRemove {
		return 0, false
	}
	return e.remove, true
}

func (a *Archetype) setEdgeAdd(id ComponentID, to ArchetypeID) {
	e := a.edges[id]
	e.add = to
	e.hasAdd = true
	a.edges[id] = e
}

func (a *Archetype) setEdgeRemove(id ComponentID, to ArchetypeID) {
	e := a.edges[id]
	e.remove = to
	e.hasRemove = true
	a.edges[id] = e
}

// getOrCreateArchetype returns the archetype for the exact component set
// in mask, creating its table on first use. New archetypes bump the
// world's archetype generation so cached query matches catch up.
func (w *World) getOrCreateArchetype(mask Bitmask, ids []ComponentID) *Archetype {
	if id, ok := w.archetypeIndex[mask]; ok {
		return w.archetypes[id]
	}

	ids = append([]ComponentID(nil), ids...)
	types := make([]reflect.Type, len(ids))
	for i, id := range ids {
		types[i] = w.registry.info(id).typ
	}

	a := &Archetype{
		id:         ArchetypeID(len(w.archetypes)),
		mask:       mask,
		components: ids,
		table:      newTable(ids, types),
		edges:      make(map[ComponentID]archetypeEdge),
	}
	w.archetypes = append(w.archetypes, a)
	w.archetypeIndex[mask] = a.id
	w.archetypeGeneration.Add(1)
	return a
}

// archetypeAfterAdd resolves the archetype reached from a by adding id,
// filling the edge cache on first use.
func (w *World) archetypeAfterAdd(a *Archetype, id ComponentID) *Archetype {
	if to, ok := a.edgeAdd(id); ok {
		return w.archetypes[to]
	}
	mask := a.mask
	mask.Set(id)
	ids := insertSorted(a.components, id)
	to := w.getOrCreateArchetype(mask, ids)
	a.setEdgeAdd(id, to.id)
	to.setEdgeRemove(id, a.id)
	return to
}

// archetypeAfterRemove resolves the archetype reached from a by removing
// id, filling the edge cache on first use.
func (w *World) archetypeAfterRemove(a *Archetype, id ComponentID) *Archetype {
	if to, ok := a.edgeRemove(id); ok {
		return w.archetypes[to]
	}
	mask := a.mask
	mask.Clear(id)
	ids := removeSorted(a.components, id)
	to := w.getOrCreateArchetype(mask, ids)
	a.setEdgeRemove(id, to.id)
	to.setEdgeAdd(id, a.id)
	return to
}

// insertSorted returns a copy of ids with id inserted in order.
func insertSorted(ids []ComponentID, id ComponentID) []ComponentID {
	out := make([]ComponentID, 0, len(ids)+1)
	placed := false
	for _, v := range ids {
		if !placed && id < v {
			out = append(out, id)
			placed = true
		}
		if v == id {
			placed = true
		}
		out = append(out, v)
	}
	if !placed {
		out = append(out, id)
	}
	return out
}

// removeSorted returns a copy of ids without id.
func removeSorted(ids []ComponentID, id ComponentID) []ComponentID {
	out := make([]ComponentID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
