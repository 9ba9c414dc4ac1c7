package engine

import (
	"fmt"
	"time"

	"skyhunt/server/internal/arena"
)

// BehaviorState enumerates the six behaviour modes a target can occupy.
type BehaviorState uint8

const (
	StateNormal BehaviorState = iota
	StateEvasive
	StateAggressive
	StatePatrol
	StateHunt
	StateRetreat

	stateCount
)

var stateNames = [stateCount]string{
	StateNormal:     "Normal",
	StateEvasive:    "Evasive",
	StateAggressive: "Aggressive",
	StatePatrol:     "Patrol",
	StateHunt:       "Hunt",
	StateRetreat:    "Retreat",
}

// String returns the canonical state name. Unknown values panic: a state
// index outside the enumerated set is a logic bug, not a recoverable input.
func (s BehaviorState) String() string {
	if s >= stateCount {
		panic(fmt.Errorf("%w: index %d", ErrUnknownState, uint8(s)))
	}
	return stateNames[s]
}

// ParseBehaviorState resolves a state name from an authoring config.
func ParseBehaviorState(name string) (BehaviorState, error) {
	for idx, candidate := range stateNames {
		if candidate == name {
			return BehaviorState(idx), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownState, name)
}

// Personality holds the immutable trait triple drawn at spawn.
type Personality struct {
	Courage      float64 `json:"courage"`
	Intelligence float64 `json:"intelligence"`
	Agility      float64 `json:"agility"`
}

// Blackboard stores per-target AI memory owned exclusively by that target.
// It is discarded on despawn and never shared.
type Blackboard struct {
	StateEnteredTick uint64
	WaitUntil        uint64
	LastThreatTick   uint64
	DamagedTick      uint64

	Waypoints     []arena.Vec2
	WaypointIndex int
	RouteComplete bool

	Direction     float64 // horizontal facing, +1 or -1
	VerticalDrift float64
	LastEvasion   uint8 // heading bucket of the last evasion move
}

// Target is one AI-controlled duck. Personality never mutates after spawn;
// exactly one behaviour state is active at a time.
type Target struct {
	ID          string
	Archetype   string
	SpawnTick   uint64
	Level       int
	Personality Personality

	State BehaviorState
	Pos   arena.Vec2
	Vel   arena.Vec2
	Lives int
	Age   uint64
	Score int

	Blackboard Blackboard
}

// PlayerSample is the player pointer position supplied by the input
// collaborator each tick.
type PlayerSample struct {
	Pos   arena.Vec2
	Known bool
}

// PositionSample is one entry of the shared player-position history.
type PositionSample struct {
	Pos arena.Vec2
	At  time.Time
}

// ShotSample describes one shot event delivered since the previous tick.
type ShotSample struct {
	Pos arena.Vec2
	Hit bool
}

// Decision is the outcome of stepping one target for one tick. Despawn set
// means the target reached a retreat edge under a non-wrapping mode policy
// and must be removed by the caller; Step never assumes the target survives
// past its own return.
type Decision struct {
	State    BehaviorState
	Velocity arena.Vec2
	Despawn  bool
}
