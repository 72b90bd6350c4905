// Profiling:
// go build ./profile/iterate
// ./iterate [-config scenario.toml]
// go tool pprof -http=":8000" ./iterate cpu.pprof

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
type tag struct{}

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
		if i%2 == 0 {
			w.Spawn(transform{}, movement{Vel: mgl64.Vec3{1, 2, 3}}, tag{})
		} else {
			w.Spawn(transform{}, movement{Vel: mgl64.Vec3{1, 2, 3}})
		}
	}

	q := wecs.NewQuery(wecs.Write[transform](), wecs.Read[movement]())

	defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	for i := 0; i < sc.Iterations; i++ {
		for it := q.IterWorld(w); it.Next(); {
			tr := wecs.At[transform](it, 0)
			mv := wecs.At[movement](it, 1)
			tr.Pos = tr.Pos.Add(mv.Vel)
		}
	}
}
