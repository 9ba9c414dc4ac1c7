package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quasilyte/gdata/v2"

	"skyhunt/server/internal/arena"
	"skyhunt/server/internal/engine"
)

func newTestStore(t *testing.T, name string) *Store {
	t.Helper()
	appName := fmt.Sprintf("skyhunt_test_%s_%d", name, time.Now().UnixNano())
	manager, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		t.Skipf("no writable data dir: %v", err)
	}
	t.Cleanup(func() {
		if home, err := os.UserHomeDir(); err == nil {
			os.RemoveAll(filepath.Join(home, ".local", "share", appName))
		}
	})
	return NewStore(manager)
}

func sampleMemory() engine.SavedMemory {
	memory := engine.NewSharedMemory(arena.DefaultConfig())
	memory.Commit([]engine.MemoryEvent{
		{Shot: &engine.ShotEvent{Pos: arena.Vec2{X: 120, Y: 80}, Hit: true}},
		{Shot: &engine.ShotEvent{Pos: arena.Vec2{X: 400, Y: 300}, Hit: false}},
		{Evasion: &engine.EvasionEvent{State: engine.StateEvasive, PlayerBucket: 3, EscapeBucket: 7}},
	})
	memory.RecordPlayerPosition(arena.Vec2{X: 320, Y: 240}, time.UnixMilli(5000))
	return memory.Export()
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t, "roundtrip")
	want := sampleMemory()
	if err := store.SaveMemory(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.LoadMemory()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	restored := engine.NewSharedMemory(arena.DefaultConfig())
	if err := restored.Restore(got); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if fmt.Sprintf("%+v", restored.Export()) != fmt.Sprintf("%+v", want) {
		t.Fatalf("round trip diverged:\n%+v\nvs\n%+v", restored.Export(), want)
	}
}

func TestLoadMissingSaveIsEmpty(t *testing.T) {
	store := newTestStore(t, "missing")
	got, err := store.LoadMemory()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Shots != 0 || len(got.History) != 0 || len(got.DangerZones) != 0 {
		t.Fatalf("missing save should load empty, got %+v", got)
	}
}

func TestResetRemovesSave(t *testing.T) {
	store := newTestStore(t, "reset")
	if err := store.SaveMemory(sampleMemory()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, err := store.LoadMemory()
	if err != nil {
		t.Fatalf("load after reset: %v", err)
	}
	if got.Shots != 0 {
		t.Fatalf("reset did not clear the save: %+v", got)
	}
}

func TestDegradedStoreIsSilent(t *testing.T) {
	store := NewStore(nil)
	if err := store.SaveMemory(sampleMemory()); err != nil {
		t.Fatalf("degraded save must not error: %v", err)
	}
	got, err := store.LoadMemory()
	if err != nil {
		t.Fatalf("degraded load must not error: %v", err)
	}
	if got.Shots != 0 {
		t.Fatalf("degraded load must be empty, got %+v", got)
	}
}
