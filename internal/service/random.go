package service

import (
	"math/rand/v2"
	"time"
)

// RandomSources holds the independent random streams of the planner.
type RandomSources struct {
	Exploration *rand.Rand
	Simulation  *rand.Rand
	Reordering  *rand.Rand
}

// NewRandomSources derives every stream from seed when one is given, so a
// fixed seed reproduces both the exploration and the simulation draws.
// Without a seed the streams are seeded from the clock.
func NewRandomSources(seed *int64) RandomSources {
	var base uint64
	if seed != nil {
		base = uint64(*seed)
	} else {
		base = uint64(time.Now().UnixNano())
	}
	return RandomSources{
		Exploration: rand.New(rand.NewPCG(base, 0x9e3779b97f4a7c15)),
		Simulation:  rand.New(rand.NewPCG(base, 0xbf58476d1ce4e5b9)),
		Reordering:  rand.New(rand.NewPCG(base, 0x94d049bb133111eb)),
	}
}
