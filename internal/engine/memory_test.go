package engine

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"skyhunt/server/internal/arena"
)

func testEvents() []MemoryEvent {
	return []MemoryEvent{
		{Shot: &ShotEvent{Pos: arena.Vec2{X: 100, Y: 100}, Hit: true}},
		{Shot: &ShotEvent{Pos: arena.Vec2{X: 100, Y: 110}, Hit: true}},
		{Shot: &ShotEvent{Pos: arena.Vec2{X: 500, Y: 300}, Hit: false}},
		{Evasion: &EvasionEvent{State: StateEvasive, PlayerBucket: 4, EscapeBucket: 0}},
		{Evasion: &EvasionEvent{State: StateEvasive, PlayerBucket: 4, EscapeBucket: 0}},
		{Evasion: &EvasionEvent{State: StateEvasive, PlayerBucket: 4, EscapeBucket: 2}},
		{Position: &PositionEvent{Sample: PositionSample{Pos: arena.Vec2{X: 320, Y: 240}, At: time.UnixMilli(1000)}}},
	}
}

func TestCommitOrderIndependence(t *testing.T) {
	events := testEvents()
	forward := NewSharedMemory(arena.DefaultConfig())
	forward.Commit(events)

	reversed := NewSharedMemory(arena.DefaultConfig())
	for i := len(events) - 1; i >= 0; i-- {
		reversed.Commit(events[i : i+1])
	}

	a, b := forward.Export(), reversed.Export()
	// Position appends keep arrival order; only one sample here, so the
	// counter state must match exactly.
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("commit order changed the store:\n%+v\nvs\n%+v", a, b)
	}
}

func TestAccuracyColdStartDefaults(t *testing.T) {
	memory := NewSharedMemory(arena.DefaultConfig())
	snap := memory.Snapshot()
	if snap.Accuracy != 0.5 {
		t.Fatalf("cold-start accuracy: got %v, want 0.5", snap.Accuracy)
	}
	if _, ok := snap.BestEvasion(StateEvasive, 3); ok {
		t.Fatalf("cold-start store must report no learned evasion")
	}
	if _, ok := snap.LastKnown(); ok {
		t.Fatalf("cold-start store must report no player sample")
	}
}

func TestAccuracyTracksShots(t *testing.T) {
	memory := NewSharedMemory(arena.DefaultConfig())
	memory.Commit(testEvents())
	snap := memory.Snapshot()
	want := 2.0 / 3.0
	if snap.Accuracy != want {
		t.Fatalf("accuracy: got %v, want %v", snap.Accuracy, want)
	}
	shots, hits := memory.Totals()
	if shots != 3 || hits != 2 {
		t.Fatalf("totals: got %d/%d, want 3/2", hits, shots)
	}
}

func TestSnapshotIsolatedFromLaterCommits(t *testing.T) {
	memory := NewSharedMemory(arena.DefaultConfig())
	memory.Commit(testEvents())
	snap := memory.Snapshot()

	memory.Commit([]MemoryEvent{
		{Shot: &ShotEvent{Pos: arena.Vec2{X: 50, Y: 50}, Hit: false}},
		{Evasion: &EvasionEvent{State: StateEvasive, PlayerBucket: 4, EscapeBucket: 2}},
		{Evasion: &EvasionEvent{State: StateEvasive, PlayerBucket: 4, EscapeBucket: 2}},
	})

	if snap.Accuracy != 2.0/3.0 {
		t.Fatalf("snapshot accuracy mutated after commit: %v", snap.Accuracy)
	}
	if heading, ok := snap.BestEvasion(StateEvasive, 4); !ok || heading != arena.BucketHeading(0) {
		t.Fatalf("snapshot evasion mutated after commit: %+v ok=%v", heading, ok)
	}
}

func TestBestEvasionPicksHighestCounter(t *testing.T) {
	memory := NewSharedMemory(arena.DefaultConfig())
	memory.Commit(testEvents())
	snap := memory.Snapshot()

	heading, ok := snap.BestEvasion(StateEvasive, 4)
	if !ok {
		t.Fatalf("expected a learned escape heading")
	}
	if heading != arena.BucketHeading(0) {
		t.Fatalf("best escape: got %+v, want bucket 0", heading)
	}
	if _, ok := snap.BestEvasion(StateHunt, 4); ok {
		t.Fatalf("counters must not bleed across states")
	}
}

func TestDangerScoreNormalized(t *testing.T) {
	bounds := arena.DefaultConfig()
	memory := NewSharedMemory(bounds)
	memory.Commit(testEvents())
	snap := memory.Snapshot()

	hot := bounds.RegionFor(arena.Vec2{X: 100, Y: 100})
	if got := snap.DangerScore(hot); got != 1 {
		t.Fatalf("hottest region must score 1, got %v", got)
	}
	if got := snap.DangerScore(arena.Region{Col: 7, Row: 5}); got != 0 {
		t.Fatalf("untouched region must score 0, got %v", got)
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	memory := NewSharedMemory(arena.DefaultConfig())
	for i := 0; i < HistoryCapacity+5; i++ {
		memory.RecordPlayerPosition(arena.Vec2{X: float64(i), Y: 0}, time.UnixMilli(int64(i)*100))
	}
	snap := memory.Snapshot()
	if len(snap.History) != HistoryCapacity {
		t.Fatalf("history length: got %d, want %d", len(snap.History), HistoryCapacity)
	}
	if snap.History[0].Pos.X != 5 {
		t.Fatalf("oldest surviving sample: got x=%v, want 5", snap.History[0].Pos.X)
	}
	last, ok := snap.LastKnown()
	if !ok || last.Pos.X != float64(HistoryCapacity+4) {
		t.Fatalf("last known sample wrong: %+v ok=%v", last, ok)
	}
}

func TestExportRestoreRoundTrip(t *testing.T) {
	source := NewSharedMemory(arena.DefaultConfig())
	source.Commit(testEvents())
	source.RecordPlayerPosition(arena.Vec2{X: 10, Y: 20}, time.UnixMilli(2000))

	restored := NewSharedMemory(arena.DefaultConfig())
	if err := restored.Restore(source.Export()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !reflect.DeepEqual(source.Export(), restored.Export()) {
		t.Fatalf("round trip diverged:\n%+v\nvs\n%+v", source.Export(), restored.Export())
	}
}

func TestRestoreRejectsUnknownState(t *testing.T) {
	memory := NewSharedMemory(arena.DefaultConfig())
	err := memory.Restore(SavedMemory{
		EvasionWins: []SavedEvasionWin{{State: "Berserk", Wins: 3}},
	})
	if err == nil {
		t.Fatalf("expected restore to fail for unknown state name")
	}
}

func TestExportDeterministicOrder(t *testing.T) {
	build := func() SavedMemory {
		memory := NewSharedMemory(arena.DefaultConfig())
		events := make([]MemoryEvent, 0, 40)
		for i := 0; i < 20; i++ {
			events = append(events, MemoryEvent{Shot: &ShotEvent{
				Pos: arena.Vec2{X: float64(i * 31 % 640), Y: float64(i * 53 % 480)},
				Hit: true,
			}})
			events = append(events, MemoryEvent{Evasion: &EvasionEvent{
				State:        StateEvasive,
				PlayerBucket: uint8(i % arena.HeadingBuckets),
				EscapeBucket: uint8((i * 3) % arena.HeadingBuckets),
			}})
		}
		memory.Commit(events)
		return memory.Export()
	}
	a, b := build(), build()
	if fmt.Sprintf("%+v", a) != fmt.Sprintf("%+v", b) {
		t.Fatalf("export ordering not deterministic")
	}
}
