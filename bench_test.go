package wecs_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oriumgames/wecs"
)

type Transform struct{ Pos mgl64.Vec3 }
type Movement struct{ Vel mgl64.Vec3 }

func benchWorld(n int) *wecs.World {
	w := wecs.NewWorld()
	for i := 0; i < n; i++ {
		w.Spawn(
			Transform{Pos: mgl64.Vec3{float64(i), 0, 0}},
			Movement{Vel: mgl64.Vec3{1, 2, 3}},
		)
	}
	return w
}

func BenchmarkQueryIter(b *testing.B) {
	w := benchWorld(10_000)
	q := wecs.NewQuery(wecs.Write[Transform](), wecs.Read[Movement]())
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		for it := q.IterWorld(w); it.Next(); {
			tr := wecs.At[Transform](it, 0)
			mv := wecs.At[Movement](it, 1)
			tr.Pos = tr.Pos.Add(mv.Vel)
		}
	}
}

func BenchmarkQueryIterChanged(b *testing.B) {
	w := benchWorld(10_000)
	q := wecs.NewQuery(wecs.Read[Transform](), wecs.Changed[Transform]())
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		for it := q.IterWorld(w); it.Next(); {
			_ = wecs.At[Transform](it, 0)
		}
	}
}

func BenchmarkSpawnDespawn(b *testing.B) {
	w := wecs.NewWorld()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		e := w.Spawn(Transform{}, Movement{})
		w.Despawn(e)
	}
}

func BenchmarkGet(b *testing.B) {
	w := benchWorld(1)
	q := wecs.NewQuery(wecs.Read[Transform]())
	var e wecs.Entity
	for it := q.IterWorld(w); it.Next(); {
		e = it.Entity()
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = wecs.Get[Transform](w, e)
	}
}

func BenchmarkScheduleRun(b *testing.B) {
	w := benchWorld(10_000)

	move := wecs.NewQuery(wecs.Write[Transform](), wecs.Read[Movement]())
	observe := wecs.NewQuery(wecs.Read[Transform]())

	s := wecs.NewSchedule("bench")
	s.AddSystems(wecs.StageUpdate,
		wecs.NewSystem("move", func(ctx *wecs.Ctx) {
			for it := move.Iter(ctx); it.Next(); {
				tr := wecs.At[Transform](it, 0)
				mv := wecs.At[Movement](it, 1)
				tr.Pos = tr.Pos.Add(mv.Vel)
			}
		}, move).Before("observe"),
		wecs.NewSystem("observe", func(ctx *wecs.Ctx) {
			for it := observe.Iter(ctx); it.Next(); {
				_ = wecs.At[Transform](it, 0)
			}
		}, observe),
	)
	if err := s.Build(w); err != nil {
		b.Fatalf("Build: %v", err)
	}
	defer s.Stop()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := s.Run(w); err != nil {
			b.Fatalf("Run: %v", err)
		}
	}
}
