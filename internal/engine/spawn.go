package engine

import (
	"fmt"
	"math/rand"

	"skyhunt/server/internal/arena"
)

const (
	// waypointCountMin and waypointCountMax bound the patrol route drawn
	// for a fresh spawn.
	waypointCountMin = 3
	waypointCountMax = 6

	// spawnMargin keeps spawn points just outside the visible playfield so
	// targets glide in instead of popping.
	spawnMargin = arena.TargetHalf * 2
)

// Spawner mints fresh targets with deterministic identities and seeded trait
// draws. Target IDs are sequential per spawner so identically seeded
// sessions produce identical populations.
type Spawner struct {
	bounds  arena.Config
	library *Library
	rng     *rand.Rand
	next    int
}

// NewSpawner builds a spawner drawing from its own labelled RNG stream.
func NewSpawner(bounds arena.Config, library *Library, rootSeed string) *Spawner {
	bounds = bounds.Normalized()
	return &Spawner{
		bounds:  bounds,
		library: library,
		rng:     arena.NewDeterministicRNG(rootSeed, "spawner"),
	}
}

// Spawn creates one target of the given archetype at the given AI level. The
// target enters at a playfield edge in the upper half with a fresh patrol
// route and its dwell timer armed.
func (s *Spawner) Spawn(archetype string, level int, tick uint64) (*Target, error) {
	if s == nil || s.library == nil {
		return nil, fmt.Errorf("engine: spawner not initialised")
	}
	cfg := s.library.ConfigForArchetype(archetype)
	if cfg == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownArchetype, archetype)
	}

	personality, err := GeneratePersonality(s.rng, cfg.Personality(), level)
	if err != nil {
		return nil, err
	}

	s.next++
	if level < 1 {
		level = 1
	}
	tgt := &Target{
		ID:          fmt.Sprintf("%s-%03d", cfg.Archetype(), s.next),
		Archetype:   cfg.Archetype(),
		SpawnTick:   tick,
		Level:       level,
		Personality: personality,
		State:       StateNormal,
		Pos:         s.entryPoint(),
		Lives:       cfg.Lives(),
		Score:       cfg.Points(level),
	}
	tgt.Blackboard.Waypoints = s.patrolRoute()
	EnterState(cfg, tgt, StateNormal, tick, s.rng)
	return tgt, nil
}

// entryPoint picks a spawn position just outside the left or right edge, in
// the upper half of the playfield.
func (s *Spawner) entryPoint() arena.Vec2 {
	x := -spawnMargin
	if s.rng.Float64() < 0.5 {
		x = s.bounds.Width + spawnMargin
	}
	y := arena.RandomRange(s.rng, arena.TargetHalf, s.bounds.Height/2)
	return arena.Vec2{X: x, Y: y}
}

// patrolRoute draws a short waypoint loop inside the playfield margins.
func (s *Spawner) patrolRoute() []arena.Vec2 {
	count := waypointCountMin + s.rng.Intn(waypointCountMax-waypointCountMin+1)
	route := make([]arena.Vec2, 0, count)
	for i := 0; i < count; i++ {
		route = append(route, arena.Vec2{
			X: arena.RandomRange(s.rng, arena.TargetHalf, s.bounds.Width-arena.TargetHalf),
			Y: arena.RandomRange(s.rng, arena.TargetHalf, s.bounds.Height-arena.TargetHalf),
		})
	}
	return route
}
