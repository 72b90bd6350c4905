package wecs

// System is the interface implemented by schedulable units of work.
// Run contains the system's logic and is called once per schedule pass.
type System interface {
	Run(ctx *Ctx)
}

// SystemFunc adapts a plain function to the System interface.
type SystemFunc func(ctx *Ctx)

// Run calls f.
func (f SystemFunc) Run(ctx *Ctx) { f(ctx) }

// Ctx carries everything a running system may touch: the world, the
// observer ticks driving change detection, and the system's command
// buffer. One Ctx is valid for one run of one system.
type Ctx struct {
	world    *World
	lastRun  Tick
	thisRun  Tick
	commands *Commands
}

// World returns the world the system runs against. Access through it
// must stay within the system's declared parameters; structural changes
// go through Commands.
func (c *Ctx) World() *World { return c.world }

// Commands returns the system's command buffer. Queued commands apply at
// the next stage barrier.
func (c *Ctx) Commands() *Commands { return c.commands }

// LastRun returns the tick at which this system previously ran, the
// baseline its change filters observe.
func (c *Ctx) LastRun() Tick { return c.lastRun }

// ThisRun returns the current pass's tick.
func (c *Ctx) ThisRun() Tick { return c.thisRun }

// Res returns the world's resource of type T through a running system's
// context, or nil if none was inserted.
func Res[T any](ctx *Ctx) *T {
	return Resource[T](ctx.world)
}

// ResMut returns the world's resource of type T and stamps it changed at
// the running pass's tick. Returns nil if none was inserted.
func ResMut[T any](ctx *Ctx) *T {
	cell := ctx.world.resourceLookup(typeOf[T]())
	if cell == nil {
		return nil
	}
	cell.checkOrigin(ctx.world)
	cell.ticks.Changed = ctx.thisRun
	return (*T)(cell.ptr)
}
