package wecs_test

import (
	"sync/atomic"
	"testing"

	"github.com/oriumgames/wecs"
)

type Collision struct{ A, B wecs.Entity }

// go test -run ^TestEventsDoubleBuffer$ . -count 1
func TestEventsDoubleBuffer(t *testing.T) {
	var events wecs.Events[int]
	var reader wecs.EventReader[int]

	events.Send(1)
	events.Send(2)
	if got := reader.Read(&events); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("Read = %v, want [1 2]", got)
	}
	if got := reader.Read(&events); len(got) != 0 {
		t.Fatalf("second Read = %v, want empty", got)
	}

	// Events survive exactly one update.
	events.Send(3)
	events.Update()
	if got := reader.Read(&events); len(got) != 1 || got[0] != 3 {
		t.Fatalf("Read after update = %v, want [3]", got)
	}

	events.Update()
	events.Update()
	if got := reader.Read(&events); len(got) != 0 {
		t.Fatalf("Read after double update = %v, want empty", got)
	}
}

// go test -run ^TestEventsLateReaderSkipsDropped$ . -count 1
func TestEventsLateReaderSkipsDropped(t *testing.T) {
	var events wecs.Events[int]
	events.Send(1)
	events.Update() // 1 in history
	events.Send(2)
	events.Update() // 1 dropped, 2 in history
	events.Send(3)

	var late wecs.EventReader[int]
	if got := late.Read(&events); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("late Read = %v, want [2 3]", got)
	}
}

// go test -run ^TestEventsIndependentReaders$ . -count 1
func TestEventsIndependentReaders(t *testing.T) {
	var events wecs.Events[int]
	var r1, r2 wecs.EventReader[int]

	events.Send(1)
	if got := r1.Read(&events); len(got) != 1 {
		t.Fatalf("r1 Read = %v, want [1]", got)
	}
	// A second reader still sees the event r1 consumed.
	if got := r2.Read(&events); len(got) != 1 {
		t.Fatalf("r2 Read = %v, want [1]", got)
	}
	if r1.Pending(&events) != 0 || r2.Pending(&events) != 0 {
		t.Error("both readers should be caught up")
	}
}

// go test -run ^TestWorldEvents$ . -count 1
func TestWorldEvents(t *testing.T) {
	w := wecs.NewWorld()
	wecs.AddEvent[Collision](w)

	wecs.SendEvent(w, Collision{})
	ev := wecs.Resource[wecs.Events[Collision]](w)
	if ev == nil || ev.Len() != 1 {
		t.Fatalf("event channel holds %v, want 1 event", ev)
	}

	// Rotation twice drops the event.
	w.UpdateEvents()
	w.UpdateEvents()
	if ev.Len() != 0 {
		t.Errorf("after two updates %d events remain, want 0", ev.Len())
	}
}

// go test -run ^TestEventsThroughSchedule$ . -count 1
func TestEventsThroughSchedule(t *testing.T) {
	w := wecs.NewWorld()
	wecs.AddEvent[Collision](w)

	var received atomic.Int32
	var reader wecs.EventReader[Collision]

	s := wecs.NewSchedule("events")
	s.AddSystems(wecs.StageFirst,
		wecs.NewSystem("pump", func(ctx *wecs.Ctx) {
			ctx.World().UpdateEvents()
		}, wecs.ExclusiveAccess()),
	)
	s.AddSystems(wecs.StageUpdate,
		wecs.NewSystem("producer", func(ctx *wecs.Ctx) {
			wecs.SendEvent(ctx.World(), Collision{})
		}, wecs.WritesEvents[Collision]()).Before("consumer"),
		wecs.NewSystem("consumer", func(ctx *wecs.Ctx) {
			ev := wecs.Res[wecs.Events[Collision]](ctx)
			received.Add(int32(len(reader.Read(ev))))
		}, wecs.ReadsEvents[Collision]()),
	)
	if err := s.Build(w); err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer s.Stop()

	for i := 0; i < 3; i++ {
		if err := s.Run(w); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if received.Load() != 3 {
		t.Errorf("consumer received %d events, want 3", received.Load())
	}
}
