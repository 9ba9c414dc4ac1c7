package engine

import (
	"errors"
	"reflect"
	"testing"

	"skyhunt/server/internal/arena"
)

func TestSpawnDeterministicUnderSeed(t *testing.T) {
	bounds := arena.DefaultConfig()
	a := NewSpawner(bounds, GlobalLibrary, "seed-a")
	b := NewSpawner(bounds, GlobalLibrary, "seed-a")
	for i := 0; i < 20; i++ {
		ta, err := a.Spawn("duck", 2, uint64(i))
		if err != nil {
			t.Fatalf("spawn a: %v", err)
		}
		tb, err := b.Spawn("duck", 2, uint64(i))
		if err != nil {
			t.Fatalf("spawn b: %v", err)
		}
		if !reflect.DeepEqual(ta, tb) {
			t.Fatalf("spawn %d diverged:\n%+v\nvs\n%+v", i, ta, tb)
		}
	}
	other := NewSpawner(bounds, GlobalLibrary, "seed-b")
	tgt, err := other.Spawn("duck", 2, 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	first, err := NewSpawner(bounds, GlobalLibrary, "seed-a").Spawn("duck", 2, 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if tgt.Personality == first.Personality {
		t.Fatalf("different seeds should draw different personalities")
	}
}

func TestSpawnSequentialIDs(t *testing.T) {
	spawner := NewSpawner(arena.DefaultConfig(), GlobalLibrary, "ids")
	first, err := spawner.Spawn("duck", 1, 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	second, err := spawner.Spawn("boss", 1, 10)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if first.ID != "duck-001" {
		t.Fatalf("first id: got %q, want duck-001", first.ID)
	}
	if second.ID != "boss-002" {
		t.Fatalf("second id: got %q, want boss-002", second.ID)
	}
}

func TestSpawnUnknownArchetype(t *testing.T) {
	spawner := NewSpawner(arena.DefaultConfig(), GlobalLibrary, "seed")
	if _, err := spawner.Spawn("goose", 1, 0); !errors.Is(err, ErrUnknownArchetype) {
		t.Fatalf("expected ErrUnknownArchetype, got %v", err)
	}
}

func TestSpawnShape(t *testing.T) {
	bounds := arena.DefaultConfig()
	spawner := NewSpawner(bounds, GlobalLibrary, "shape")
	for i := 0; i < 50; i++ {
		tgt, err := spawner.Spawn("duck", 3, uint64(i))
		if err != nil {
			t.Fatalf("spawn: %v", err)
		}
		offLeft := tgt.Pos.X == -spawnMargin
		offRight := tgt.Pos.X == bounds.Width+spawnMargin
		if !offLeft && !offRight {
			t.Fatalf("spawn %d not at an edge: %+v", i, tgt.Pos)
		}
		if tgt.Pos.Y < arena.TargetHalf || tgt.Pos.Y > bounds.Height/2 {
			t.Fatalf("spawn %d outside upper half: %+v", i, tgt.Pos)
		}
		if tgt.State != StateNormal {
			t.Fatalf("spawn %d must start Normal, got %s", i, tgt.State)
		}
		if tgt.Lives != 1 {
			t.Fatalf("duck lives: got %d", tgt.Lives)
		}
		if tgt.Score != GlobalLibrary.ConfigForArchetype("duck").Points(3) {
			t.Fatalf("spawn %d score %d", i, tgt.Score)
		}
		if tgt.Blackboard.WaitUntil <= uint64(i) {
			t.Fatalf("spawn %d dwell timer not armed: %d", i, tgt.Blackboard.WaitUntil)
		}
		n := len(tgt.Blackboard.Waypoints)
		if n < waypointCountMin || n > waypointCountMax {
			t.Fatalf("spawn %d waypoint count %d", i, n)
		}
		for _, wp := range tgt.Blackboard.Waypoints {
			if !bounds.Contains(wp) {
				t.Fatalf("spawn %d waypoint outside playfield: %+v", i, wp)
			}
		}
	}
}
