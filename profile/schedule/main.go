// Profiling:
// go build ./profile/schedule
// ./schedule [-config scenario.toml]
// go tool pprof -http=":8000" ./schedule cpu.pprof

package main

import (
	"flag"
	"log"

	"github.com/BurntSushi/toml"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/profile"

	"github.com/oriumgames/wecs"
)

type scenario struct {
	Entities   int `toml:"entities"`
	Iterations int `toml:"iterations"`
}

type transform struct{ Pos mgl64.Vec3 }
type movement struct{ Vel mgl64.Vec3 }
type health struct{ Current, Max int }

func main() {
	configPath := flag.String("config", "", "scenario TOML file")
	flag.Parse()

	sc := scenario{Entities: 100_000, Iterations: 1_000}
	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &sc); err != nil {
			log.Fatalf("load scenario: %v", err)
		}
	}

	w := wecs.NewWorld()
	for i := 0; i < sc.Entities; i++ {
		w.Spawn(transform{}, movement{Vel: mgl64.Vec3{1, 0, 0}}, health{100, 100})
	}

	move := wecs.NewQuery(wecs.Write[transform](), wecs.Read[movement]())
	regen := wecs.NewQuery(wecs.Write[health]())
	observe := wecs.NewQuery(wecs.Read[transform]())

	// move and regen touch disjoint components and run in parallel;
	// observe conflicts with move and is ordered after it.
	s := wecs.NewSchedule("profile")
	s.AddSystems(wecs.StageUpdate,
		wecs.NewSystem("move", func(ctx *wecs.Ctx) {
			for it := move.Iter(ctx); it.Next(); {
				tr := wecs.At[transform](it, 0)
				mv := wecs.At[movement](it, 1)
				tr.Pos = tr.Pos.Add(mv.Vel)
			}
		}, move).Before("observe"),
		wecs.NewSystem("regen", func(ctx *wecs.Ctx) {
			for it := regen.Iter(ctx); it.Next(); {
				hp := wecs.At[health](it, 0)
				if hp.Current < hp.Max {
					hp.Current++
				}
			}
		}, regen),
		wecs.NewSystem("observe", func(ctx *wecs.Ctx) {
			for it := observe.Iter(ctx); it.Next(); {
				_ = wecs.At[transform](it, 0)
			}
		}, observe),
	)
	if err := s.Build(w); err != nil {
		log.Fatalf("build schedule: %v", err)
	}
	defer s.Stop()

	defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	for i := 0; i < sc.Iterations; i++ {
		if err := s.Run(w); err != nil {
			log.Fatalf("run schedule: %v", err)
		}
	}
}
