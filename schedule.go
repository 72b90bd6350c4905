package wecs

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogLevel selects how a class of build findings is surfaced.
type LogLevel uint8

const (
	// LogIgnore drops the findings silently.
	LogIgnore LogLevel = iota

	// LogWarn records the findings as warnings and logs them. The build
	// still succeeds.
	LogWarn

	// LogError records the findings as build errors. The build fails.
	LogError
)

// String returns the string representation of the level.
func (l LogLevel) String() string {
	switch l {
	case LogIgnore:
		return "Ignore"
	case LogWarn:
		return "Warn"
	case LogError:
		return "Error"
	default:
		return "Unknown"
	}
}

// BuildSettings tunes which findings fail a schedule build. Ambiguities
// and redundant hierarchy both default to warnings.
type BuildSettings struct {
	AmbiguityDetection LogLevel
	HierarchyDetection LogLevel
}

func defaultBuildSettings() BuildSettings {
	return BuildSettings{
		AmbiguityDetection: LogWarn,
		HierarchyDetection: LogWarn,
	}
}

// SystemConfig declares one system and its scheduling constraints. The
// chained methods may be combined freely before the system is added to a
// schedule.
type SystemConfig struct {
	name             string
	sys              System
	params           []SystemParam
	inSets           []string
	before           []string
	after            []string
	ambiguousWith    []string
	ambiguousWithAll bool
	runIf            func(*World) bool
}

// NewSystem declares a system running fn with the given parameters. The
// name identifies the system in ordering constraints and diagnostics.
func NewSystem(name string, fn func(*Ctx), params ...SystemParam) *SystemConfig {
	return SystemOf(name, SystemFunc(fn), params...)
}

// SystemOf declares a system backed by any System implementation.
func SystemOf(name string, sys System, params ...SystemParam) *SystemConfig {
	if name == "" {
		panic("wecs: system name must not be empty")
	}
	if sys == nil {
		panic(fmt.Sprintf("wecs: system %q has no body", name))
	}
	return &SystemConfig{name: name, sys: sys, params: params}
}

// InSet places the system in the named sets.
func (c *SystemConfig) InSet(sets ...string) *SystemConfig {
	c.inSets = append(c.inSets, sets...)
	return c
}

// Before orders the system before the named systems or sets.
func (c *SystemConfig) Before(targets ...string) *SystemConfig {
	c.before = append(c.before, targets...)
	return c
}

// After orders the system after the named systems or sets.
func (c *SystemConfig) After(targets ...string) *SystemConfig {
	c.after = append(c.after, targets...)
	return c
}

// AmbiguousWith suppresses ambiguity findings between this system and
// the named systems or sets.
func (c *SystemConfig) AmbiguousWith(targets ...string) *SystemConfig {
	c.ambiguousWith = append(c.ambiguousWith, targets...)
	return c
}

// AmbiguousWithAll suppresses all ambiguity findings for this system.
func (c *SystemConfig) AmbiguousWithAll() *SystemConfig {
	c.ambiguousWithAll = true
	return c
}

// RunIf gates each run of the system on the predicate. A false result
// skips the run; the system's change detection baseline then stays where
// it was.
func (c *SystemConfig) RunIf(pred func(*World) bool) *SystemConfig {
	c.runIf = pred
	return c
}

// SetConfig declares a named system set and its constraints. Ordering
// against a set orders against every system it transitively contains.
type SetConfig struct {
	name          string
	inSets        []string
	before        []string
	after         []string
	ambiguousWith []string
}

// NewSet declares a system set.
func NewSet(name string) *SetConfig {
	if name == "" {
		panic("wecs: set name must not be empty")
	}
	return &SetConfig{name: name}
}

// InSet nests the set inside the named parent sets.
func (c *SetConfig) InSet(sets ...string) *SetConfig {
	c.inSets = append(c.inSets, sets...)
	return c
}

// Before orders every member of the set before the named targets.
func (c *SetConfig) Before(targets ...string) *SetConfig {
	c.before = append(c.before, targets...)
	return c
}

// After orders every member of the set after the named targets.
func (c *SetConfig) After(targets ...string) *SetConfig {
	c.after = append(c.after, targets...)
	return c
}

// AmbiguousWith suppresses ambiguity findings between members of this
// set and the named targets.
func (c *SetConfig) AmbiguousWith(targets ...string) *SetConfig {
	c.ambiguousWith = append(c.ambiguousWith, targets...)
	return c
}

// systemNode is one system instance inside a stage.
type systemNode struct {
	cfg      *SystemConfig
	meta     *SystemMeta
	commands *Commands
}

// stageConfig collects the systems and sets of one stage together with
// the execution plan the build produced.
type stageConfig struct {
	systems []*systemNode
	sets    []*SetConfig
	setIdx  map[string]int
	plan    *stagePlan
}

// stagePlan is the deterministic execution layout of one stage: the
// total order of systems and their grouping into parallel batches.
type stagePlan struct {
	order   []int
	batches [][]int
}

// Schedule owns a fixed pipeline of stages, builds them against a world,
// and runs them with conflict-free parallelism. Build must succeed
// before Run; a failed build leaves the schedule refusing to run.
type Schedule struct {
	label    string
	settings BuildSettings
	workers  int

	stages [stageCount]*stageConfig

	logger  *zap.Logger
	worldID uuid.UUID
	built   bool
	report  *BuildReport

	workerPool chan func()
	workerWG   sync.WaitGroup
	poolOnce   sync.Once
	stopOnce   sync.Once
}

// ScheduleOption configures a Schedule during construction.
type ScheduleOption func(*Schedule)

// WithBuildSettings overrides the default build settings.
func WithBuildSettings(settings BuildSettings) ScheduleOption {
	return func(s *Schedule) {
		s.settings = settings
	}
}

// WithWorkers sets the size of the schedule's worker pool. The default
// is GOMAXPROCS.
func WithWorkers(n int) ScheduleOption {
	return func(s *Schedule) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSchedule creates an empty schedule with the given label.
func NewSchedule(label string, opts ...ScheduleOption) *Schedule {
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	s := &Schedule{
		label:    label,
		settings: defaultBuildSettings(),
		workers:  workers,
		logger:   zap.NewNop(),
	}
	for i := range s.stages {
		s.stages[i] = &stageConfig{setIdx: make(map[string]int)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Label returns the schedule's label.
func (s *Schedule) Label() string { return s.label }

// AddSystems adds systems to a stage. Adding after a build invalidates
// the plan; Build must run again.
func (s *Schedule) AddSystems(stage Stage, cfgs ...*SystemConfig) *Schedule {
	sc := s.stages[stage]
	for _, cfg := range cfgs {
		sc.systems = append(sc.systems, &systemNode{cfg: cfg})
	}
	s.built = false
	return s
}

// ConfigureSets declares or extends sets in a stage. Configuring the
// same set twice merges the constraints.
func (s *Schedule) ConfigureSets(stage Stage, sets ...*SetConfig) *Schedule {
	sc := s.stages[stage]
	for _, set := range sets {
		if i, ok := sc.setIdx[set.name]; ok {
			prev := sc.sets[i]
			prev.inSets = append(prev.inSets, set.inSets...)
			prev.before = append(prev.before, set.before...)
			prev.after = append(prev.after, set.after...)
			prev.ambiguousWith = append(prev.ambiguousWith, set.ambiguousWith...)
			continue
		}
		sc.setIdx[set.name] = len(sc.sets)
		sc.sets = append(sc.sets, set)
	}
	s.built = false
	return s
}

// Report returns the findings of the last build, or nil before any.
func (s *Schedule) Report() *BuildReport { return s.report }

// Built reports whether the schedule holds a valid execution plan.
func (s *Schedule) Built() bool { return s.built }

// Build analyzes every stage against the world: set hierarchy, ordering
// constraints, and access conflicts between unordered systems. All
// findings are collected into one report; any error leaves the schedule
// unbuilt. On success the deterministic batch plan is fixed until the
// next Build.
func (s *Schedule) Build(w *World) error {
	s.logger = w.logger
	s.worldID = w.id
	report := &BuildReport{Label: s.label}

	for st := StageFirst; st < stageCount; st++ {
		s.buildStage(w, st, report)
	}

	for _, warn := range report.warnings {
		s.logger.Warn("schedule build finding",
			zap.String("schedule", s.label),
			zap.String("finding", warn.Error()))
	}

	s.report = report
	if len(report.errs) > 0 {
		s.built = false
		return report
	}
	s.built = true
	return nil
}

// stageNodes indexes a stage's systems and sets as graph nodes: systems
// first, then sets.
type stageNodes struct {
	sc     *stageConfig
	nSys   int
	byName map[string][]int
	total  int
}

func newStageNodes(sc *stageConfig) *stageNodes {
	n := &stageNodes{
		sc:     sc,
		nSys:   len(sc.systems),
		byName: make(map[string][]int),
		total:  len(sc.systems) + len(sc.sets),
	}
	for i, node := range sc.systems {
		n.byName[node.cfg.name] = append(n.byName[node.cfg.name], i)
	}
	return n
}

func (n *stageNodes) isSet(idx int) bool { return idx >= n.nSys }

func (n *stageNodes) name(idx int) string {
	if n.isSet(idx) {
		return n.sc.sets[idx-n.nSys].name
	}
	return n.sc.systems[idx].cfg.name
}

func (n *stageNodes) names(idxs []int) []string {
	out := make([]string, len(idxs))
	for i, idx := range idxs {
		out[i] = n.name(idx)
	}
	return out
}

// resolveSet resolves a membership target, which must name a set.
func (n *stageNodes) resolveSet(from, target string, report *BuildReport) (int, bool) {
	if i, ok := n.sc.setIdx[target]; ok {
		return n.nSys + i, true
	}
	report.add(&UnknownTargetError{From: from, Target: target})
	return 0, false
}

// resolveOrdering resolves an ordering target to node indexes: a set by
// that name wins, otherwise exactly one system must match.
func (n *stageNodes) resolveOrdering(from, target string, report *BuildReport) (int, bool) {
	if i, ok := n.sc.setIdx[target]; ok {
		return n.nSys + i, true
	}
	matches := n.byName[target]
	switch len(matches) {
	case 0:
		report.add(&UnknownTargetError{From: from, Target: target})
		return 0, false
	case 1:
		return matches[0], true
	default:
		report.add(&AmbiguousTargetError{Target: target, Count: len(matches)})
		return 0, false
	}
}

// resolveAmbiguous resolves an AmbiguousWith target to the set of system
// indexes it covers.
func (n *stageNodes) resolveAmbiguous(from, target string, members []*bitset.BitSet, report *BuildReport) []int {
	if i, ok := n.sc.setIdx[target]; ok {
		var out []int
		for j, ok := members[n.nSys+i].NextSet(0); ok; j, ok = members[n.nSys+i].NextSet(j + 1) {
			out = append(out, int(j))
		}
		return out
	}
	if sys := n.byName[target]; len(sys) > 0 {
		return sys
	}
	report.add(&UnknownTargetError{From: from, Target: target})
	return nil
}

func (s *Schedule) buildStage(w *World, stage Stage, report *BuildReport) {
	sc := s.stages[stage]
	sc.plan = nil
	if len(sc.systems) == 0 {
		sc.plan = &stagePlan{}
		return
	}

	// Parameter application computes each system's access. Fresh metas
	// every build keep repeated builds idempotent.
	for _, node := range sc.systems {
		node.meta = newSystemMeta(node.cfg.name)
		node.commands = newCommands(w)
		for _, p := range node.cfg.params {
			p.applyParam(w, node.meta)
		}
	}

	nodes := newStageNodes(sc)

	// Set membership hierarchy: parent -> child edges.
	hier := newDigraph(nodes.total)
	hierOK := true
	addMembership := func(childIdx int, childName string, parents []string) {
		for _, parent := range parents {
			if parent == childName && nodes.isSet(childIdx) {
				report.add(&HierarchyLoopError{Set: childName})
				hierOK = false
				continue
			}
			p, ok := nodes.resolveSet(childName, parent, report)
			if !ok {
				continue
			}
			hier.addEdge(p, childIdx)
		}
	}
	for i, node := range sc.systems {
		addMembership(i, node.cfg.name, node.cfg.inSets)
	}
	for i, set := range sc.sets {
		addMembership(nodes.nSys+i, set.name, set.inSets)
	}

	if cycles := hier.cycles(); len(cycles) > 0 {
		for _, cyc := range cycles {
			report.add(&HierarchyCycleError{Cycle: nodes.names(cyc)})
		}
		hierOK = false
	}
	if !hierOK {
		return
	}

	hierTopo := hier.topoOrder()
	hierReach := hier.reachability(hierTopo)

	// Redundant memberships are style findings, fatal only on demand.
	if s.settings.HierarchyDetection != LogIgnore {
		for _, edge := range hier.redundantEdges(hierReach) {
			finding := &HierarchyRedundancyError{
				Parent: nodes.name(edge[0]),
				Child:  nodes.name(edge[1]),
			}
			if s.settings.HierarchyDetection == LogError {
				report.add(finding)
			} else {
				report.warn(finding)
			}
		}
	}

	// members[i]: the systems node i stands for. A system stands for
	// itself; a set stands for everything it transitively contains.
	members := make([]*bitset.BitSet, nodes.total)
	for i := 0; i < nodes.total; i++ {
		members[i] = bitset.New(uint(nodes.nSys))
		if !nodes.isSet(i) {
			members[i].Set(uint(i))
			continue
		}
		for j, ok := hierReach[i].NextSet(0); ok; j, ok = hierReach[i].NextSet(j + 1) {
			if int(j) < nodes.nSys {
				members[i].Set(j)
			}
		}
	}

	// Ordering dependency graph over the same nodes.
	dep := newDigraph(nodes.total)
	depOK := true
	addOrdering := func(idx int, name string, targets []string, isBefore bool) {
		for _, target := range targets {
			t, ok := nodes.resolveOrdering(name, target, report)
			if !ok {
				depOK = false
				continue
			}
			if t == idx {
				report.add(&DependencyLoopError{Node: name})
				depOK = false
				continue
			}
			if isBefore {
				dep.addEdge(idx, t)
			} else {
				dep.addEdge(t, idx)
			}
		}
	}
	for i, node := range sc.systems {
		addOrdering(i, node.cfg.name, node.cfg.before, true)
		addOrdering(i, node.cfg.name, node.cfg.after, false)
	}
	for i, set := range sc.sets {
		addOrdering(nodes.nSys+i, set.name, set.before, true)
		addOrdering(nodes.nSys+i, set.name, set.after, false)
	}

	if cycles := dep.cycles(); len(cycles) > 0 {
		for _, cyc := range cycles {
			report.add(&DependencyCycleError{Cycle: nodes.names(cyc)})
		}
		depOK = false
	}
	if !depOK {
		return
	}

	// An ordering edge across a membership relation is unsatisfiable.
	for edge := range dep.edges {
		u, v := edge[0], edge[1]
		if hierReach[u].Test(uint(v)) || hierReach[v].Test(uint(u)) {
			report.add(&CrossDependencyError{A: nodes.name(u), B: nodes.name(v)})
			depOK = false
		}
	}

	// Ordered sets sharing systems would order those systems against
	// themselves once flattened.
	for edge := range dep.edges {
		u, v := edge[0], edge[1]
		if !nodes.isSet(u) || !nodes.isSet(v) {
			continue
		}
		shared := members[u].Intersection(members[v])
		if shared.Count() > 0 {
			var names []string
			for j, ok := shared.NextSet(0); ok; j, ok = shared.NextSet(j + 1) {
				names = append(names, nodes.name(int(j)))
			}
			report.add(&SetsIntersectError{A: nodes.name(u), B: nodes.name(v), Shared: names})
			depOK = false
		}
	}
	if !depOK {
		return
	}

	// Flatten set endpoints to their member systems.
	flat := newDigraph(nodes.nSys)
	for edge := range dep.edges {
		us, vs := members[edge[0]], members[edge[1]]
		for a, okA := us.NextSet(0); okA; a, okA = us.NextSet(a + 1) {
			for b, okB := vs.NextSet(0); okB; b, okB = vs.NextSet(b + 1) {
				if a != b {
					flat.addEdge(int(a), int(b))
				}
			}
		}
	}

	if cycles := flat.cycles(); len(cycles) > 0 {
		for _, cyc := range cycles {
			report.add(&DependencyCycleError{Cycle: nodes.names(cyc)})
		}
		return
	}

	topo := flat.topoOrder()
	reach := flat.reachability(topo)

	if s.settings.AmbiguityDetection != LogIgnore {
		s.detectAmbiguities(w, nodes, members, reach, report)
	}

	sc.plan = &stagePlan{
		order:   topo,
		batches: planBatches(sc, flat, topo),
	}
}

// detectAmbiguities reports unordered system pairs whose accesses
// conflict: their relative observation order depends on scheduling
// accident rather than declared constraints.
func (s *Schedule) detectAmbiguities(w *World, nodes *stageNodes, members []*bitset.BitSet, reach []*bitset.BitSet, report *BuildReport) {
	sc := nodes.sc

	// ignore[i] holds the systems i declared itself ambiguous with.
	ignore := make([]*bitset.BitSet, nodes.nSys)
	for i, node := range sc.systems {
		ignore[i] = bitset.New(uint(nodes.nSys))
		for _, target := range node.cfg.ambiguousWith {
			for _, j := range nodes.resolveAmbiguous(node.cfg.name, target, members, report) {
				ignore[i].Set(uint(j))
			}
		}
	}
	for si, set := range sc.sets {
		if len(set.ambiguousWith) == 0 {
			continue
		}
		own := members[nodes.nSys+si]
		for _, target := range set.ambiguousWith {
			for _, j := range nodes.resolveAmbiguous(set.name, target, members, report) {
				for i, ok := own.NextSet(0); ok; i, ok = own.NextSet(i + 1) {
					ignore[i].Set(uint(j))
				}
			}
		}
	}

	for i := 0; i < nodes.nSys; i++ {
		a := sc.systems[i]
		if a.cfg.ambiguousWithAll {
			continue
		}
		for j := i + 1; j < nodes.nSys; j++ {
			b := sc.systems[j]
			if b.cfg.ambiguousWithAll {
				continue
			}
			if reach[i].Test(uint(j)) || reach[j].Test(uint(i)) {
				continue
			}
			if ignore[i].Test(uint(j)) || ignore[j].Test(uint(i)) {
				continue
			}
			if a.meta.access.IsCompatible(&b.meta.access) {
				continue
			}
			finding := &AmbiguityError{
				A:          a.cfg.name,
				B:          b.cfg.name,
				Components: w.registry.names(a.meta.access.Conflicts(&b.meta.access)),
			}
			if s.settings.AmbiguityDetection == LogError {
				report.add(finding)
			} else {
				report.warn(finding)
			}
		}
	}
}

// planBatches groups the stage's systems into parallel batches: walk the
// systems in topological order, placing each into the current batch
// unless an unfinished dependency or an access conflict holds it back.
// The walk order is deterministic, so the plan is too.
func planBatches(sc *stageConfig, flat *digraph, topo []int) [][]int {
	preds := make([][]int, len(sc.systems))
	for edge := range flat.edges {
		preds[edge[1]] = append(preds[edge[1]], edge[0])
	}

	placed := make([]bool, len(sc.systems))
	var batches [][]int
	remaining := append([]int(nil), topo...)

	for len(remaining) > 0 {
		var batch []int
		var next []int
		inBatch := make([]bool, len(sc.systems))

		for _, cand := range remaining {
			ready := true
			for _, p := range preds[cand] {
				if !placed[p] || inBatch[p] {
					ready = false
					break
				}
			}
			if !ready {
				next = append(next, cand)
				continue
			}
			conflict := false
			for _, m := range batch {
				if !sc.systems[cand].meta.access.IsCompatible(&sc.systems[m].meta.access) {
					conflict = true
					break
				}
			}
			if conflict {
				next = append(next, cand)
				continue
			}
			batch = append(batch, cand)
			inBatch[cand] = true
		}

		for _, idx := range batch {
			placed[idx] = true
		}
		batches = append(batches, batch)
		remaining = next
	}
	return batches
}
