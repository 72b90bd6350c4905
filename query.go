package wecs

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// termKind enumerates the closed set of query term shapes.
type termKind uint8

const (
	termRead termKind = iota
	termWrite
	termWith
	termWithout
	termAdded
	termChanged
	termOptional
	termOr
)

func (k termKind) String() string {
	switch k {
	case termRead:
		return "Read"
	case termWrite:
		return "Write"
	case termWith:
		return "With"
	case termWithout:
		return "Without"
	case termAdded:
		return "Added"
	case termChanged:
		return "Changed"
	case termOptional:
		return "Optional"
	case termOr:
		return "Or"
	}
	return "Unknown"
}

// QueryTerm is one element of a query's shape: a value to fetch, an
// archetype filter, a change filter, or a combinator over other terms.
type QueryTerm struct {
	kind termKind
	typ  reflect.Type
	sub  []QueryTerm
}

// Read declares shared access to component T. Matching archetypes must
// hold T; the term produces a read pointer per row.
func Read[T any]() QueryTerm {
	return QueryTerm{kind: termRead, typ: typeOf[T]()}
}

// Write declares exclusive access to component T. Matching archetypes
// must hold T; accessing the value stamps it changed.
func Write[T any]() QueryTerm {
	return QueryTerm{kind: termWrite, typ: typeOf[T]()}
}

// With filters to archetypes holding T without accessing its value.
func With[T any]() QueryTerm {
	return QueryTerm{kind: termWith, typ: typeOf[T]()}
}

// Without filters to archetypes not holding T.
func Without[T any]() QueryTerm {
	return QueryTerm{kind: termWithout, typ: typeOf[T]()}
}

// Added filters to rows whose T was inserted since the observer last
// ran. Requires T's presence and reads its ticks.
func Added[T any]() QueryTerm {
	return QueryTerm{kind: termAdded, typ: typeOf[T]()}
}

// Changed filters to rows whose T was inserted or mutated since the
// observer last ran. Requires T's presence and reads its ticks.
func Changed[T any]() QueryTerm {
	return QueryTerm{kind: termChanged, typ: typeOf[T]()}
}

// Optional wraps a Read or Write term so that its component is no longer
// required: archetypes missing it still match and the value reads nil.
// Optional never narrows what a query matches, even combined with other
// filters.
func Optional(term QueryTerm) QueryTerm {
	switch term.kind {
	case termRead, termWrite:
	default:
		panic("wecs: Optional wraps only Read or Write terms")
	}
	return QueryTerm{kind: termOptional, sub: []QueryTerm{term}}
}

// Or matches archetypes satisfying at least one of the given terms. Value
// terms inside Or are accessible only on archetypes where their branch
// matched; unmatched branches contribute no access there.
func Or(terms ...QueryTerm) QueryTerm {
	if len(terms) < 2 {
		panic("wecs: Or needs at least two terms")
	}
	return QueryTerm{kind: termOr, sub: terms}
}

// termLabel renders a term for diagnostics, e.g. "Write[Position]".
func termLabel(t QueryTerm) string {
	if t.typ != nil {
		return fmt.Sprintf("%s[%s]", t.kind, typeName(t.typ))
	}
	return t.kind.String()
}

// termState is the compiled, immutable form of one term. Per-iteration
// column bindings live on the iterator, never here, so one Query can be
// iterated from several goroutines at once.
type termState struct {
	kind termKind
	comp ComponentID
	typ  reflect.Type
	sub  []termState
}

// Query matches entities by component shape and change state. A query is
// declared once with NewQuery, initialized against a world on first use,
// and from then on iterates its cached archetype matches, catching up
// with newly created archetypes at well-defined points.
type Query struct {
	terms []QueryTerm

	mu       sync.Mutex
	world    *World
	worldID  uuid.UUID
	state    []termState
	filtered *FilteredAccess
	dense    bool
	matched  []ArchetypeID
	scanned  int
	inited   bool
}

// NewQuery declares a query over the given terms. The query is inert
// until first used against a world.
func NewQuery(terms ...QueryTerm) *Query {
	if len(terms) == 0 {
		panic("wecs: query needs at least one term")
	}
	return &Query{terms: terms}
}

// ensureInit compiles the query against w on first use. Conflicting
// terms, such as Read and Write of the same component, fail here.
func (q *Query) ensureInit(w *World) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inited {
		if q.worldID != w.id {
			panic("wecs: query already initialized against a different world")
		}
		return
	}
	q.world = w
	q.worldID = w.id
	q.filtered = NewFilteredAccess()
	q.state = make([]termState, len(q.terms))
	for i := range q.terms {
		q.state[i] = compileTerm(w, q.terms[i], q.filtered)
	}
	// Every term binds table columns directly, so iteration is dense:
	// matched archetypes are walked row by row with no per-entity lookup.
	q.dense = true
	q.refreshLocked()
	q.inited = true
}

// compileTerm registers the term's types, folds its access into f and
// returns the compiled form. Access conflicts inside one query panic
// immediately rather than corrupting the fold.
func compileTerm(w *World, t QueryTerm, f *FilteredAccess) termState {
	switch t.kind {
	case termRead, termAdded, termChanged:
		id := w.registry.register(t.typ)
		if f.access.HasWrite(id) {
			panic(fmt.Sprintf("wecs: query term %s conflicts with a previous mutable access of %s in the same query",
				termLabel(t), typeName(t.typ)))
		}
		f.AddRead(id)
		return termState{kind: t.kind, comp: id, typ: t.typ}

	case termWrite:
		id := w.registry.register(t.typ)
		if f.access.HasRead(id) || f.access.HasWrite(id) {
			panic(fmt.Sprintf("wecs: query term %s conflicts with a previous access of %s in the same query",
				termLabel(t), typeName(t.typ)))
		}
		f.AddWrite(id)
		return termState{kind: t.kind, comp: id, typ: t.typ}

	case termWith:
		id := w.registry.register(t.typ)
		f.AndWith(id)
		return termState{kind: t.kind, comp: id, typ: t.typ}

	case termWithout:
		id := w.registry.register(t.typ)
		f.AndWithout(id)
		return termState{kind: t.kind, comp: id, typ: t.typ}

	case termOptional:
		// The inner access folds in, but no filter clause does: missing
		// components must not stop the archetype from matching.
		tmp := f.Clone()
		inner := compileTerm(w, t.sub[0], tmp)
		f.ExtendAccess(tmp)
		return termState{kind: termOptional, sub: []termState{inner}}

	case termOr:
		// Each branch extends a snapshot of the access so far; the
		// snapshots recombine as alternative filter clauses.
		base := f.Clone()
		sub := make([]termState, len(t.sub))
		var combined *FilteredAccess
		for i, b := range t.sub {
			inter := base.Clone()
			sub[i] = compileTerm(w, b, inter)
			if i == 0 {
				combined = inter
			} else {
				combined.AppendOr(inter)
				combined.ExtendAccess(inter)
			}
		}
		combined.required = base.required
		*f = *combined
		return termState{kind: termOr, sub: sub}
	}
	panic(fmt.Sprintf("wecs: unknown query term kind %d", t.kind))
}

// refreshLocked scans archetypes created since the last refresh and
// caches the ones the query matches. Caller holds q.mu.
func (q *Query) refreshLocked() {
	for ; q.scanned < len(q.world.archetypes); q.scanned++ {
		a := q.world.archetypes[q.scanned]
		if q.filtered.matches(a.mask) {
			q.matched = append(q.matched, a.id)
		}
	}
}

// catchUp picks up archetypes created since the last iteration. The fast
// path is a plain length comparison; archetypes are only created under
// exclusive world access, so the comparison is stable while systems run.
func (q *Query) catchUp() {
	if q.scanned == len(q.world.archetypes) {
		return
	}
	q.mu.Lock()
	q.refreshLocked()
	q.mu.Unlock()
}

// Access returns the query's filtered access. The query must have been
// initialized.
func (q *Query) Access() *FilteredAccess {
	if !q.inited {
		panic("wecs: query not initialized")
	}
	return q.filtered
}

// Matches reports whether an archetype with the given component mask
// satisfies the query's shape filters.
func (q *Query) Matches(mask Bitmask) bool {
	if !q.inited {
		panic("wecs: query not initialized")
	}
	return q.filtered.matches(mask)
}

// AccessForArchetype returns the access the query actually exercises on
// one archetype. Or branches contribute only where they matched, and
// Optional terms only where the component is present, so analysis of
// unrelated archetypes stays clean.
func (q *Query) AccessForArchetype(mask Bitmask) Access {
	if !q.inited {
		panic("wecs: query not initialized")
	}
	var out Access
	for i := range q.state {
		termArchetypeAccess(&q.state[i], mask, &out)
	}
	return out
}

func termArchetypeAccess(ts *termState, mask Bitmask, out *Access) {
	switch ts.kind {
	case termRead, termAdded, termChanged:
		out.AddRead(ts.comp)
	case termWrite:
		out.AddWrite(ts.comp)
	case termOptional:
		inner := &ts.sub[0]
		if mask.Has(inner.comp) {
			termArchetypeAccess(inner, mask, out)
		}
	case termOr:
		for i := range ts.sub {
			if branchMatches(&ts.sub[i], mask) {
				termArchetypeAccess(&ts.sub[i], mask, out)
			}
		}
	}
}

// branchMatches evaluates one Or branch's shape filter against a mask.
func branchMatches(ts *termState, mask Bitmask) bool {
	switch ts.kind {
	case termRead, termWrite, termWith, termAdded, termChanged:
		return mask.Has(ts.comp)
	case termWithout:
		return !mask.Has(ts.comp)
	case termOptional:
		return true
	case termOr:
		for i := range ts.sub {
			if branchMatches(&ts.sub[i], mask) {
				return true
			}
		}
		return false
	}
	return false
}

// termBinding is the per-iterator column binding for one term, filled
// each time the iterator enters a new table.
type termBinding struct {
	col     *column
	present bool
	sub     []termBinding
}

func newBindings(state []termState) []termBinding {
	out := make([]termBinding, len(state))
	for i := range state {
		if len(state[i].sub) > 0 {
			out[i].sub = newBindings(state[i].sub)
		}
	}
	return out
}

// QueryIter walks the rows of every archetype a query matches. The
// iterator binds one table at a time; value access before the first
// Next, or after Next returned false, panics.
type QueryIter struct {
	q       *Query
	w       *World
	lastRun Tick
	thisRun Tick
	binds   []termBinding

	cursor int
	table  *Table
	row    int
	rowEnd int
	bound  bool

	// Parallel batches restrict the iterator to one slice of one table.
	fixed      *Archetype
	fixedStart int
	fixedEnd   int
	limited    bool
	consumed   bool
}

// Iter starts iteration with the observer ticks of the running system:
// change filters see everything since the system's previous run.
func (q *Query) Iter(ctx *Ctx) *QueryIter {
	return q.IterManual(ctx.world, ctx.lastRun, ctx.thisRun)
}

// IterWorld starts iteration outside a schedule, observing everything
// since the end of the previous schedule pass.
func (q *Query) IterWorld(w *World) *QueryIter {
	return q.IterManual(w, w.lastChangeTick, w.ChangeTick())
}

// IterManual starts iteration with explicit observer ticks.
func (q *Query) IterManual(w *World, lastRun, thisRun Tick) *QueryIter {
	q.ensureInit(w)
	if q.worldID != w.id {
		panic("wecs: query initialized against a different world")
	}
	q.catchUp()
	return &QueryIter{
		q:       q,
		w:       w,
		lastRun: lastRun,
		thisRun: thisRun,
		binds:   newBindings(q.state),
		cursor:  -1,
		row:     -1,
	}
}

// Next advances to the next matching row, returning false when the query
// is exhausted.
func (it *QueryIter) Next() bool {
	for {
		it.row++
		if it.row >= it.rowEnd {
			if !it.advanceTable() {
				return false
			}
		}
		if it.matchesRow(it.row) {
			return true
		}
	}
}

// advanceTable binds the next non-empty matched table and positions the
// iterator at its first row.
func (it *QueryIter) advanceTable() bool {
	if it.limited {
		if it.consumed {
			it.bound = false
			return false
		}
		it.consumed = true
		it.bindTable(it.fixed)
		it.table = it.fixed.table
		it.row = it.fixedStart
		it.rowEnd = it.fixedEnd
		it.bound = true
		return true
	}
	for {
		it.cursor++
		if it.cursor >= len(it.q.matched) {
			it.bound = false
			return false
		}
		a := it.w.archetypes[it.q.matched[it.cursor]]
		if a.table.Len() == 0 {
			continue
		}
		it.bindTable(a)
		it.table = a.table
		it.row = 0
		it.rowEnd = a.table.Len()
		it.bound = true
		return true
	}
}

func (it *QueryIter) bindTable(a *Archetype) {
	for i := range it.q.state {
		bindTerm(&it.q.state[i], &it.binds[i], a)
	}
}

func bindTerm(ts *termState, b *termBinding, a *Archetype) {
	switch ts.kind {
	case termRead, termWrite, termAdded, termChanged:
		b.col = a.table.column(ts.comp)
		b.present = true
	case termWith, termWithout:
		// Filter-only branches carry no column; presence still marks
		// that the branch matched, which Or row matching relies on.
		b.present = true
	case termOptional:
		inner := &ts.sub[0]
		if a.mask.Has(inner.comp) {
			bindTerm(inner, &b.sub[0], a)
			b.present = true
		} else {
			b.sub[0].col = nil
			b.present = false
		}
	case termOr:
		b.present = false
		for i := range ts.sub {
			if branchMatches(&ts.sub[i], a.mask) {
				bindTerm(&ts.sub[i], &b.sub[i], a)
				b.present = true
			} else {
				b.sub[i].col = nil
				b.sub[i].present = false
			}
		}
	}
}

// matchesRow evaluates the change filters for one row.
func (it *QueryIter) matchesRow(row int) bool {
	for i := range it.q.state {
		if !termRowMatches(&it.q.state[i], &it.binds[i], row, it.lastRun, it.thisRun) {
			return false
		}
	}
	return true
}

func termRowMatches(ts *termState, b *termBinding, row int, lastRun, thisRun Tick) bool {
	switch ts.kind {
	case termAdded:
		return b.col.added[row].IsNewerThan(lastRun, thisRun)
	case termChanged:
		return b.col.changed[row].IsNewerThan(lastRun, thisRun)
	case termOr:
		for i := range ts.sub {
			if b.sub[i].present && termRowMatches(&ts.sub[i], &b.sub[i], row, lastRun, thisRun) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// checkAccess guards value access against out-of-sequence use.
func (it *QueryIter) checkAccess() {
	if !it.bound || it.row < 0 || it.row >= it.rowEnd {
		panic("wecs: query value access outside a successful Next")
	}
}

// Entity returns the handle owning the current row.
func (it *QueryIter) Entity() Entity {
	it.checkAccess()
	return it.table.entity(it.row)
}

// Matched reports whether term i produced a value on the current
// archetype. Always true for required terms; for Optional and Or it
// reflects the current table.
func (it *QueryIter) Matched(i int) bool {
	it.checkAccess()
	switch it.q.state[i].kind {
	case termOptional, termOr:
		return it.binds[i].present
	}
	return true
}

// At returns a typed pointer to the value of term i at the current row.
// Write terms stamp the value changed. Optional terms return nil where
// the component is absent. Terms carrying no value panic.
func At[T any](it *QueryIter, i int) *T {
	it.checkAccess()
	ts := &it.q.state[i]
	b := &it.binds[i]
	switch ts.kind {
	case termRead:
	case termWrite:
		b.col.markChanged(it.row, it.thisRun)
	case termOptional:
		if !b.present {
			return nil
		}
		ts = &ts.sub[0]
		b = &b.sub[0]
		if ts.kind == termWrite {
			b.col.markChanged(it.row, it.thisRun)
		}
	default:
		panic(fmt.Sprintf("wecs: term %d (%s) carries no value", i, ts.kind))
	}
	checkTermType[T](ts)
	return (*T)(b.col.ptr(it.row))
}

// OrAt returns a typed pointer to the value of branch j of the Or term
// at i, or nil when that branch did not match the current archetype.
func OrAt[T any](it *QueryIter, i, j int) *T {
	it.checkAccess()
	ts := &it.q.state[i]
	if ts.kind != termOr {
		panic(fmt.Sprintf("wecs: term %d (%s) is not an Or term", i, ts.kind))
	}
	branch := &ts.sub[j]
	b := it.binds[i].sub[j]
	switch branch.kind {
	case termRead, termWrite:
	default:
		panic(fmt.Sprintf("wecs: Or branch %d (%s) carries no value", j, branch.kind))
	}
	if !b.present {
		return nil
	}
	if branch.kind == termWrite {
		b.col.markChanged(it.row, it.thisRun)
	}
	checkTermType[T](branch)
	return (*T)(b.col.ptr(it.row))
}

// TicksAt returns the change ticks of term i's value at the current row.
// The second result is false for absent Optional values.
func (it *QueryIter) TicksAt(i int) (ComponentTicks, bool) {
	it.checkAccess()
	ts := &it.q.state[i]
	b := &it.binds[i]
	if ts.kind == termOptional {
		if !b.present {
			return ComponentTicks{}, false
		}
		b = &b.sub[0]
	} else {
		switch ts.kind {
		case termRead, termWrite, termAdded, termChanged:
		default:
			panic(fmt.Sprintf("wecs: term %d (%s) carries no value", i, ts.kind))
		}
	}
	return b.col.ticks(it.row), true
}

func checkTermType[T any](ts *termState) {
	want := typeOf[T]()
	if ts.typ != want {
		panic(fmt.Sprintf("wecs: term holds %s, requested %s", typeName(ts.typ), typeName(want)))
	}
}

// ParForEach runs fn over the query's rows in parallel batches of at
// most batchSize rows each. Every batch gets its own restricted
// iterator; fn may run concurrently with itself and must confine its
// writes to the query's declared access. The first error is returned
// after all batches finish.
func (q *Query) ParForEach(ctx *Ctx, batchSize int, fn func(*QueryIter) error) error {
	if batchSize <= 0 {
		panic("wecs: batch size must be positive")
	}
	q.ensureInit(ctx.world)
	q.catchUp()

	var g errgroup.Group
	for _, id := range q.matched {
		arch := ctx.world.archetypes[id]
		n := arch.table.Len()
		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n
			}
			a, s, e := arch, start, end
			g.Go(func() error {
				it := &QueryIter{
					q:          q,
					w:          ctx.world,
					lastRun:    ctx.lastRun,
					thisRun:    ctx.thisRun,
					binds:      newBindings(q.state),
					row:        -1,
					fixed:      a,
					fixedStart: s,
					fixedEnd:   e,
					limited:    true,
				}
				return fn(it)
			})
		}
	}
	return g.Wait()
}
