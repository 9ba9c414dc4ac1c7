package engine

import (
	"errors"
	"reflect"
	"sort"
	"testing"
)

func TestLoadLibraryArchetypes(t *testing.T) {
	lib, err := LoadLibrary()
	if err != nil {
		t.Fatalf("load library: %v", err)
	}
	names := lib.Archetypes()
	sort.Strings(names)
	if !reflect.DeepEqual(names, []string{"boss", "duck"}) {
		t.Fatalf("unexpected archetypes: %v", names)
	}
	if lib.ConfigForArchetype("Duck") == nil {
		t.Fatalf("archetype lookup should be case-insensitive")
	}
	if lib.ConfigForArchetype("goose") != nil {
		t.Fatalf("unknown archetype should resolve to nil")
	}
}

func TestReachableStatesExact(t *testing.T) {
	cfg := GlobalLibrary.ConfigForArchetype("duck")
	if cfg == nil {
		t.Fatalf("duck config missing")
	}
	want := map[BehaviorState][]BehaviorState{
		StateNormal:     {StateEvasive, StateAggressive, StatePatrol},
		StateEvasive:    {StateNormal},
		StateAggressive: {StateRetreat},
		StatePatrol:     {StateHunt, StateNormal},
		StateHunt:       {StateRetreat, StateNormal},
		StateRetreat:    {StateNormal},
	}
	for from, expected := range want {
		got := cfg.ReachableStates(from)
		if !reflect.DeepEqual(got, expected) {
			t.Fatalf("%s: reachable %v, want %v", from, got, expected)
		}
	}
}

func TestCompileRequiresAllStates(t *testing.T) {
	authoring := minimalAuthoring()
	authoring.States = authoring.States[:stateCount-1]
	if _, err := compileConfig(authoring); err == nil {
		t.Fatalf("expected compile failure for missing state")
	}
}

func TestCompileRejectsUnknownNames(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*authoringConfig)
	}{
		{"state", func(a *authoringConfig) { a.States[0].ID = "Berserk" }},
		{"move", func(a *authoringConfig) { a.States[0].Move.Name = "teleport" }},
		{"condition", func(a *authoringConfig) { a.States[0].Transitions[0].Condition = "moonPhase" }},
		{"weight", func(a *authoringConfig) { a.States[0].Transitions[0].Weight = "luck" }},
		{"target state", func(a *authoringConfig) { a.States[0].Transitions[0].ToState = "Berserk" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			authoring := minimalAuthoring()
			tc.mutate(&authoring)
			if _, err := compileConfig(authoring); err == nil {
				t.Fatalf("expected compile failure for unknown %s", tc.name)
			}
		})
	}
}

func TestCompileRejectsInvalidPersonality(t *testing.T) {
	authoring := minimalAuthoring()
	authoring.Personality.Courage = TraitRange{Min: 0.9, Max: 0.1}
	_, err := compileConfig(authoring)
	if !errors.Is(err, ErrInvalidPersonalityRange) {
		t.Fatalf("expected ErrInvalidPersonalityRange, got %v", err)
	}
}

func TestPointsAndSpeedScaleWithLevel(t *testing.T) {
	cfg := GlobalLibrary.ConfigForArchetype("duck")
	if got := cfg.Points(1); got != 35 {
		t.Fatalf("level 1 points: got %d, want 35", got)
	}
	if got := cfg.Points(5); got != 75 {
		t.Fatalf("level 5 points: got %d, want 75", got)
	}
	if got := cfg.Speed(1); got != 115 {
		t.Fatalf("level 1 speed: got %v, want 115", got)
	}
	if got := cfg.Speed(4); got != 160 {
		t.Fatalf("level 4 speed: got %v, want 160", got)
	}
}

func TestBossCarriesMultipleLives(t *testing.T) {
	cfg := GlobalLibrary.ConfigForArchetype("boss")
	if cfg == nil {
		t.Fatalf("boss config missing")
	}
	if cfg.Lives() != 3 {
		t.Fatalf("boss lives: got %d, want 3", cfg.Lives())
	}
}

// minimalAuthoring builds a valid six-state config for compile tests.
func minimalAuthoring() authoringConfig {
	states := make([]authoringState, 0, stateCount)
	for idx := BehaviorState(0); idx < stateCount; idx++ {
		states = append(states, authoringState{
			ID:   idx.String(),
			Move: authoringMove{Name: "randomWalk", SpeedFactor: 1},
			Transitions: []authoringTransition{
				{Condition: "timerExpired", ToState: "Normal"},
			},
		})
	}
	return authoringConfig{
		Archetype:   "test",
		Lives:       1,
		BaseSpeed:   100,
		Personality: testRanges(),
		States:      states,
	}
}
