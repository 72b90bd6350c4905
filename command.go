package wecs

import "reflect"

// Commands queues structural changes while systems run. A system never
// mutates storage layout directly; it records spawns, inserts, removes
// and despawns here, and the schedule applies them at the next stage
// barrier in the systems' deterministic order.
//
// Spawn hands out a real entity handle immediately through the world's
// reservation cursor, so commands recorded later in the same system can
// target it.
type Commands struct {
	world *World
	queue []func(*World)
}

func newCommands(w *World) *Commands {
	return &Commands{world: w}
}

// Spawn reserves an entity handle and queues the insertion of its
// components. The handle is valid immediately for further commands and
// for liveness checks, but carries no components until the barrier.
func (c *Commands) Spawn(components ...any) Entity {
	e := c.world.entities.reserve()
	if len(components) > 0 {
		c.queue = append(c.queue, func(w *World) {
			w.insertBoxed(e, components...)
		})
	}
	return e
}

// Insert queues adding or overwriting components on an entity. Stale
// handles make the command a no-op at apply time.
func (c *Commands) Insert(e Entity, components ...any) {
	c.queue = append(c.queue, func(w *World) {
		w.insertBoxed(e, components...)
	})
}

// Remove queues dropping components from an entity. Component types are
// taken from the given values; the values themselves are ignored, so
// zero values work: Remove(e, Velocity{}).
func (c *Commands) Remove(e Entity, components ...any) {
	c.queue = append(c.queue, func(w *World) {
		for _, v := range components {
			id, ok := w.registry.lookup(reflect.TypeOf(v))
			if !ok {
				continue
			}
			w.removeByID(e, id)
		}
	})
}

// Despawn queues removing the entity and all its components.
func (c *Commands) Despawn(e Entity) {
	c.queue = append(c.queue, func(w *World) {
		w.Despawn(e)
	})
}

// Do queues an arbitrary closure with exclusive world access. The
// closure must not retain the world past its call.
func (c *Commands) Do(fn func(*World)) {
	c.queue = append(c.queue, fn)
}

// Len returns the number of queued commands.
func (c *Commands) Len() int {
	return len(c.queue)
}

// apply materializes reservations and runs the queue in record order.
// Called with exclusive world access at a stage barrier. Flush runs even
// with an empty queue so bare Spawn() reservations still materialize.
func (c *Commands) apply(w *World) {
	w.Flush()
	for _, fn := range c.queue {
		fn(w)
	}
	c.queue = c.queue[:0]
}
