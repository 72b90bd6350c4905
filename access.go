package wecs

// Access records which component and resource IDs a query or system reads
// and writes. Conflict checks between two systems reduce to bit
// operations over these sets.
//
// The readsAndWrites mask is the union of reads and writes; keeping it
// precomputed makes the compatibility predicate two mask intersections.
// The all flags mark broad access, such as an exclusive system claiming
// the whole world.
type Access struct {
	reads          Bitmask
	writes         Bitmask
	readsAndWrites Bitmask
	readsAll       bool
	writesAll      bool
}

// AddRead marks id as read.
func (a *Access) AddRead(id ComponentID) {
	a.reads.Set(id)
	a.readsAndWrites.Set(id)
}

// AddWrite marks id as written.
func (a *Access) AddWrite(id ComponentID) {
	a.writes.Set(id)
	a.readsAndWrites.Set(id)
}

// ReadAll marks the access as reading every ID, current and future.
func (a *Access) ReadAll() {
	a.readsAll = true
}

// WriteAll marks the access as exclusive: it reads and writes every ID.
func (a *Access) WriteAll() {
	a.readsAll = true
	a.writesAll = true
}

// HasRead reports whether id is read, directly or through ReadAll.
func (a *Access) HasRead(id ComponentID) bool {
	return a.readsAll || a.readsAndWrites.Has(id)
}

// HasWrite reports whether id is written, directly or through WriteAll.
func (a *Access) HasWrite(id ComponentID) bool {
	return a.writesAll || a.writes.Has(id)
}

// HasAnyWrite reports whether the access writes anything at all.
func (a *Access) HasAnyWrite() bool {
	return a.writesAll || !a.writes.IsZero()
}

// IsEmpty reports whether the access touches nothing.
func (a *Access) IsEmpty() bool {
	return !a.readsAll && !a.writesAll && a.readsAndWrites.IsZero()
}

// Clear resets the access to empty.
func (a *Access) Clear() {
	*a = Access{}
}

// Extend unions other into a.
func (a *Access) Extend(other *Access) {
	a.reads = a.reads.Or(other.reads)
	a.writes = a.writes.Or(other.writes)
	a.readsAndWrites = a.readsAndWrites.Or(other.readsAndWrites)
	a.readsAll = a.readsAll || other.readsAll
	a.writesAll = a.writesAll || other.writesAll
}

// IsCompatible reports whether a and other may run concurrently: no ID is
// written by one side and read or written by the other. An exclusive
// access is incompatible with every other access. The predicate is
// symmetric.
func (a *Access) IsCompatible(other *Access) bool {
	if a.writesAll || other.writesAll {
		return false
	}
	if a.readsAll && other.HasAnyWrite() {
		return false
	}
	if other.readsAll && a.HasAnyWrite() {
		return false
	}
	return a.writes.IsDisjoint(other.readsAndWrites) &&
		a.readsAndWrites.IsDisjoint(other.writes)
}

// GetConflict returns the lowest conflicting ID between a and other, or
// false if the accesses are compatible. Both clauses of the predicate are
// checked: writes of a against anything other touches, then anything a
// touches against writes of other. Either side of a pair reports the
// same ID.
func (a *Access) GetConflict(other *Access) (ComponentID, bool) {
	if a.writesAll {
		return other.readsAndWrites.First()
	}
	if other.writesAll {
		return a.readsAndWrites.First()
	}

	var candidates Bitmask
	candidates = a.writes.And(other.readsAndWrites)
	candidates = candidates.Or(a.readsAndWrites.And(other.writes))
	if a.readsAll {
		candidates = candidates.Or(other.writes)
	}
	if other.readsAll {
		candidates = candidates.Or(a.writes)
	}
	return candidates.First()
}

// Conflicts returns every conflicting ID between a and other in
// ascending order. Empty means compatible, unless one side is exclusive,
// in which case the conflict is the whole world rather than specific IDs.
func (a *Access) Conflicts(other *Access) []ComponentID {
	if a.writesAll {
		return other.readsAndWrites.Bits(nil)
	}
	if other.writesAll {
		return a.readsAndWrites.Bits(nil)
	}

	var candidates Bitmask
	candidates = a.writes.And(other.readsAndWrites)
	candidates = candidates.Or(a.readsAndWrites.And(other.writes))
	if a.readsAll {
		candidates = candidates.Or(other.writes)
	}
	if other.readsAll {
		candidates = candidates.Or(a.writes)
	}
	return candidates.Bits(nil)
}

// ReadsAndWrites returns every ID the access touches, ascending.
func (a *Access) ReadsAndWrites() []ComponentID {
	return a.readsAndWrites.Bits(nil)
}

// Writes returns every ID the access writes, ascending.
func (a *Access) Writes() []ComponentID {
	return a.writes.Bits(nil)
}

// AccessFilters is one conjunctive clause of a query's archetype filter:
// the components an archetype must have and must not have.
type AccessFilters struct {
	with    Bitmask
	without Bitmask
}

// isRuledOutBy reports whether no archetype can satisfy both clauses.
// Two clauses exclude each other when one requires a component the other
// forbids.
func (f *AccessFilters) isRuledOutBy(other *AccessFilters) bool {
	return f.with.ContainsAny(other.without) || f.without.ContainsAny(other.with)
}

// FilteredAccess pairs an Access with the archetype filter that scopes
// it. The filter is a disjunction of AccessFilters clauses; a fresh
// FilteredAccess starts with one empty clause matching everything.
//
// Two filtered accesses whose plain accesses conflict are still
// compatible when their filters prove the conflicting components can
// never be seen on the same archetype, such as Write[A] with B against
// Write[A] without B.
type FilteredAccess struct {
	access     Access
	required   Bitmask
	filterSets []AccessFilters
}

// NewFilteredAccess returns a filtered access matching every archetype.
func NewFilteredAccess() *FilteredAccess {
	return &FilteredAccess{filterSets: []AccessFilters{{}}}
}

// Access returns the underlying access.
func (f *FilteredAccess) Access() *Access {
	return &f.access
}

// AddRead marks id as read and required.
func (f *FilteredAccess) AddRead(id ComponentID) {
	f.access.AddRead(id)
	f.required.Set(id)
	f.AndWith(id)
}

// AddWrite marks id as written and required.
func (f *FilteredAccess) AddWrite(id ComponentID) {
	f.access.AddWrite(id)
	f.required.Set(id)
	f.AndWith(id)
}

// AndWith adds a presence requirement to every clause.
func (f *FilteredAccess) AndWith(id ComponentID) {
	for i := range f.filterSets {
		f.filterSets[i].with.Set(id)
	}
}

// AndWithout adds an absence requirement to every clause.
func (f *FilteredAccess) AndWithout(id ComponentID) {
	for i := range f.filterSets {
		f.filterSets[i].without.Set(id)
	}
}

// AppendOr appends other's clauses as alternatives to f's.
func (f *FilteredAccess) AppendOr(other *FilteredAccess) {
	f.filterSets = append(f.filterSets, other.filterSets...)
}

// ExtendAccess unions only other's access into f, leaving the filter
// clauses alone. Optional terms use this so their access never narrows
// what the query matches.
func (f *FilteredAccess) ExtendAccess(other *FilteredAccess) {
	f.access.Extend(&other.access)
}

// Extend combines f with other so that f matches only what both matched:
// accesses and requirements union, filter clauses cross-multiply.
func (f *FilteredAccess) Extend(other *FilteredAccess) {
	f.access.Extend(&other.access)
	f.required = f.required.Or(other.required)

	sets := make([]AccessFilters, 0, len(f.filterSets)*len(other.filterSets))
	for _, a := range f.filterSets {
		for _, b := range other.filterSets {
			sets = append(sets, AccessFilters{
				with:    a.with.Or(b.with),
				without: a.without.Or(b.without),
			})
		}
	}
	f.filterSets = sets
}

// Clone returns a deep copy of f.
func (f *FilteredAccess) Clone() *FilteredAccess {
	out := &FilteredAccess{
		access:     f.access,
		required:   f.required,
		filterSets: append([]AccessFilters(nil), f.filterSets...),
	}
	return out
}

// IsCompatible reports whether f and other may run concurrently: either
// their accesses are compatible outright, or every pair of filter
// clauses is mutually exclusive so the conflict can never materialize on
// a single archetype.
func (f *FilteredAccess) IsCompatible(other *FilteredAccess) bool {
	if f.access.IsCompatible(&other.access) {
		return true
	}
	for i := range f.filterSets {
		for j := range other.filterSets {
			if !f.filterSets[i].isRuledOutBy(&other.filterSets[j]) {
				return false
			}
		}
	}
	return true
}

// GetConflict returns the lowest conflicting ID between f and other, or
// false if they are compatible.
func (f *FilteredAccess) GetConflict(other *FilteredAccess) (ComponentID, bool) {
	if f.IsCompatible(other) {
		return 0, false
	}
	return f.access.GetConflict(&other.access)
}

// Conflicts returns every conflicting ID between f and other.
func (f *FilteredAccess) Conflicts(other *FilteredAccess) []ComponentID {
	if f.IsCompatible(other) {
		return nil
	}
	return f.access.Conflicts(&other.access)
}

// matches reports whether an archetype with the given mask satisfies at
// least one filter clause.
func (f *FilteredAccess) matches(mask Bitmask) bool {
	for i := range f.filterSets {
		if mask.ContainsAll(f.filterSets[i].with) && mask.IsDisjoint(f.filterSets[i].without) {
			return true
		}
	}
	return false
}

// FilteredAccessSet is the combined access of one system: every filtered
// access of its queries plus the unfiltered access of its resource
// parameters.
type FilteredAccessSet struct {
	combined Access
	list     []*FilteredAccess
}

// CombinedAccess returns the union of every access in the set.
func (s *FilteredAccessSet) CombinedAccess() *Access {
	return &s.combined
}

// Add inserts a filtered access into the set.
func (s *FilteredAccessSet) Add(f *FilteredAccess) {
	s.combined.Extend(&f.access)
	s.list = append(s.list, f)
}

// AddUnfilteredRead marks id as read with no archetype filter.
func (s *FilteredAccessSet) AddUnfilteredRead(id ComponentID) {
	f := NewFilteredAccess()
	f.access.AddRead(id)
	s.Add(f)
}

// AddUnfilteredWrite marks id as written with no archetype filter.
func (s *FilteredAccessSet) AddUnfilteredWrite(id ComponentID) {
	f := NewFilteredAccess()
	f.access.AddWrite(id)
	s.Add(f)
}

// AddExclusive marks the set as claiming the whole world.
func (s *FilteredAccessSet) AddExclusive() {
	f := NewFilteredAccess()
	f.access.WriteAll()
	s.Add(f)
}

// Extend unions other into s.
func (s *FilteredAccessSet) Extend(other *FilteredAccessSet) {
	s.combined.Extend(&other.combined)
	s.list = append(s.list, other.list...)
}

// IsCompatible reports whether two sets may run concurrently. The cheap
// combined check answers most pairs; only combined conflicts fall back to
// pairwise filtered checks, which can still prove disjointness.
func (s *FilteredAccessSet) IsCompatible(other *FilteredAccessSet) bool {
	if s.combined.IsCompatible(&other.combined) {
		return true
	}
	for _, a := range s.list {
		for _, b := range other.list {
			if !a.IsCompatible(b) {
				return false
			}
		}
	}
	return true
}

// Conflicts returns every conflicting ID between the two sets, ascending
// and deduplicated. An empty result with IsCompatible false means the
// conflict is on whole-world access rather than specific IDs.
func (s *FilteredAccessSet) Conflicts(other *FilteredAccessSet) []ComponentID {
	if s.combined.IsCompatible(&other.combined) {
		return nil
	}
	var mask Bitmask
	for _, a := range s.list {
		for _, b := range other.list {
			for _, id := range a.Conflicts(b) {
				mask.Set(id)
			}
		}
	}
	return mask.Bits(nil)
}
