package wecs

import (
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// Execution of a built schedule. The plan computed by Build fixes both
// the total system order and the grouping into parallel batches; running
// the plan needs no locks around storage because every batch was proven
// conflict-free at build time.

// systemPanic captures the first panic recovered from a system so it can
// be re-raised on the schedule's run goroutine.
type systemPanic struct {
	system string
	value  any
	stack  []byte
}

// Run executes one full pass of the schedule against the world: every
// stage in order, each stage's batches in order, the systems of one
// batch concurrently on the worker pool. Commands queued by systems are
// applied at the stage barrier in the plan's deterministic order.
//
// The world's change tick advances once per pass; each system observes
// changes since its own previous run. A panic inside a system is
// re-raised here after the rest of its batch finished.
func (s *Schedule) Run(w *World) error {
	if !s.built {
		return &UninitializedError{Label: s.label}
	}
	if w.id != s.worldID {
		return &WorldMismatchError{Label: s.label}
	}
	s.startPool()

	thisRun := w.IncrementChangeTick()
	for st := StageFirst; st < stageCount; st++ {
		s.runStage(w, s.stages[st], thisRun)
	}
	w.lastChangeTick = thisRun
	w.maybeCheckTicks()
	return nil
}

// startPool launches the worker goroutines on first use.
func (s *Schedule) startPool() {
	s.poolOnce.Do(func() {
		s.workerPool = make(chan func(), s.workers*4)
		for i := 0; i < s.workers; i++ {
			s.workerWG.Add(1)
			go s.worker()
		}
	})
}

// worker executes submitted jobs until the pool closes.
func (s *Schedule) worker() {
	defer s.workerWG.Done()
	for fn := range s.workerPool {
		fn()
	}
}

// Stop shuts the worker pool down and waits for in-flight jobs. The
// schedule must not run again afterwards; build a new one instead.
func (s *Schedule) Stop() {
	s.stopOnce.Do(func() {
		// Mark the pool as started so a racing Run cannot relaunch it.
		s.poolOnce.Do(func() {})
		if s.workerPool != nil {
			close(s.workerPool)
			s.workerWG.Wait()
		}
	})
}

// runStage executes one stage's batches and applies the command barrier.
func (s *Schedule) runStage(w *World, sc *stageConfig, thisRun Tick) {
	plan := sc.plan
	for _, batch := range plan.batches {
		var wg sync.WaitGroup
		var mu sync.Mutex
		var failure *systemPanic

		// Thread-local systems stay on this goroutine; everything else
		// goes to the pool and runs alongside them.
		var local []*systemNode
		for _, idx := range batch {
			node := sc.systems[idx]
			if node.cfg.runIf != nil && !node.cfg.runIf(w) {
				continue
			}
			if node.meta.threadLocal {
				local = append(local, node)
				continue
			}
			wg.Add(1)
			job := func() {
				defer wg.Done()
				s.runSystem(w, node, thisRun, &mu, &failure)
			}
			select {
			case s.workerPool <- job:
			default:
				// Pool full, run inline.
				job()
			}
		}
		for _, node := range local {
			s.runSystem(w, node, thisRun, &mu, &failure)
		}
		wg.Wait()

		if failure != nil {
			s.handleSystemPanic(failure)
		}
	}

	// Stage barrier: materialize reservations and apply queued commands
	// in the plan's system order, so two passes with the same inputs
	// produce the same storage layout.
	for _, idx := range plan.order {
		sc.systems[idx].commands.apply(w)
	}
}

// runSystem executes one system with panic recovery. The system's change
// baseline advances only on successful completion.
func (s *Schedule) runSystem(w *World, node *systemNode, thisRun Tick, mu *sync.Mutex, failure **systemPanic) {
	defer func() {
		if r := recover(); r != nil {
			mu.Lock()
			if *failure == nil {
				*failure = &systemPanic{system: node.cfg.name, value: r, stack: debug.Stack()}
			}
			mu.Unlock()
		}
	}()

	ctx := &Ctx{
		world:    w,
		lastRun:  node.meta.lastRun,
		thisRun:  thisRun,
		commands: node.commands,
	}
	node.cfg.sys.Run(ctx)
	node.meta.lastRun = thisRun
}

// handleSystemPanic logs a recovered system panic with its stack and
// re-raises it on the run goroutine. A panicking system leaves storage
// in an unknown state, so the pass cannot continue.
func (s *Schedule) handleSystemPanic(p *systemPanic) {
	s.logger.Error("system panicked",
		zap.String("schedule", s.label),
		zap.String("system", p.system),
		zap.Any("panic", p.value),
		zap.ByteString("stack", p.stack))
	panic(fmt.Sprintf("wecs: panic in system %q: %v", p.system, p.value))
}
