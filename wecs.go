// Package wecs provides an archetype-based Entity Component System with
// change detection and a conflict-analyzed parallel schedule.
//
// WECS stores component data in column-oriented tables keyed by the
// exact component set of each entity and provides:
//   - Stable entity handles (index + generation) surviving relocation
//   - Tick-based change detection with wraparound-safe arithmetic
//   - Typed queries with With/Without/Optional/Or/Added/Changed terms
//   - Static read/write access analysis proving systems independent
//   - A staged schedule running non-conflicting systems in parallel
//   - Deferred structural commands applied at stage barriers
//
// # Quick Start
//
// Create a world, spawn entities, and run systems:
//
//	w := wecs.NewWorld()
//	w.Spawn(Position{X: 1}, Velocity{X: 2})
//
//	movement := wecs.NewQuery(wecs.Write[Position](), wecs.Read[Velocity]())
//
//	sched := wecs.NewSchedule("main")
//	sched.AddSystems(wecs.StageUpdate,
//	    wecs.NewSystem("movement", func(ctx *wecs.Ctx) {
//	        for it := movement.Iter(ctx); it.Next(); {
//	            pos := wecs.At[Position](it, 0)
//	            vel := wecs.At[Velocity](it, 1)
//	            pos.X += vel.X
//	        }
//	    }, movement))
//
//	if err := sched.Build(w); err != nil {
//	    panic(err)
//	}
//	sched.Run(w)
//
// # Components
//
// Components are plain Go structs stored by value:
//
//	type Health struct {
//	    Current int
//	    Max     int
//	}
//
//	e := w.Spawn(Health{100, 100})
//	health := wecs.Get[Health](w, e)
//	wecs.Insert(w, e, Shield{50})
//	wecs.Remove[Shield](w, e)
//
// # Queries
//
// Query terms declare what a system touches and which archetypes match:
//
//	wecs.Read[T]()      Shared access, T required
//	wecs.Write[T]()     Exclusive access, T required, stamps changed
//	wecs.With[T]()      Require T without accessing it
//	wecs.Without[T]()   Exclude archetypes holding T
//	wecs.Optional(t)    Keep matching archetypes missing t's component
//	wecs.Or(a, b)       Match archetypes satisfying either term
//	wecs.Added[T]()     Rows whose T appeared since the system last ran
//	wecs.Changed[T]()   Rows whose T mutated since the system last ran
//
// # Scheduling
//
// Systems declare their parameters; the schedule computes every
// system's access, reports conflicts between unordered systems, and
// groups compatible systems into parallel batches:
//
//	sched.AddSystems(wecs.StageUpdate,
//	    wecs.NewSystem("physics", physicsFn, physicsQuery).Before("render"),
//	    wecs.NewSystem("render", renderFn, renderQuery))
//
// Ordering cycles and malformed set hierarchies fail the build; every
// finding across the whole graph is collected into one report.
package wecs

// Version is the WECS version.
const Version = "1.0.0"
