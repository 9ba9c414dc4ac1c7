package main

import (
	"reflect"
	"testing"
	"time"

	"skyhunt/server/internal/arena"
	"skyhunt/server/internal/policy"
)

const testDT = 1.0 / tickRate

func mustMode(t *testing.T, name string) policy.Mode {
	t.Helper()
	mode, ok := policy.GlobalCatalog.Mode(name)
	if !ok {
		t.Fatalf("mode %q missing from catalog", name)
	}
	return mode
}

func newTestSession(t *testing.T, modeName, seed string) *Session {
	t.Helper()
	session, err := NewSession(SessionConfig{
		Bounds: arena.Config{Seed: seed},
		Mode:   mustMode(t, modeName),
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return session
}

func TestSessionDeterministicUnderSeed(t *testing.T) {
	run := func() []StateMessage {
		session := newTestSession(t, "classic", "twin-seed")
		base := time.UnixMilli(1_700_000_000_000)
		states := make([]StateMessage, 0, 200)
		for i := 0; i < 200; i++ {
			session.PointerMoved(arena.Vec2{X: 320 + float64(i%40), Y: 240}, base.Add(time.Duration(i)*66*time.Millisecond))
			if i%37 == 0 {
				session.ShotFired(arena.Vec2{X: 100, Y: 100})
			}
			states = append(states, session.Advance(testDT))
		}
		return states
	}

	first := run()
	second := run()
	for i := range first {
		a, b := first[i], second[i]
		if a.Tick != b.Tick || a.Score != b.Score || a.Level != b.Level {
			t.Fatalf("tick %d diverged: %+v vs %+v", i, a, b)
		}
		if !reflect.DeepEqual(a.Targets, b.Targets) {
			t.Fatalf("tick %d target populations diverged:\n%+v\n%+v", i, a.Targets, b.Targets)
		}
	}
}

func TestShotDownsTargetAndScores(t *testing.T) {
	session := newTestSession(t, "classic", "marksman")

	var state StateMessage
	for i := 0; i < 50; i++ {
		state = session.Advance(testDT)
		if len(state.Targets) > 0 {
			break
		}
	}
	if len(state.Targets) == 0 {
		t.Fatal("no target spawned within 50 ticks")
	}

	victim := state.Targets[0]
	if victim.Lives != 1 {
		t.Fatalf("expected a one-life duck, got %d lives", victim.Lives)
	}
	if !session.ShotFired(arena.Vec2{X: victim.X, Y: victim.Y}) {
		t.Fatal("shot refused in unlimited-ammo mode")
	}

	after := session.Advance(testDT)
	if after.Score <= 0 {
		t.Fatalf("expected score after a hit, got %d", after.Score)
	}
	for _, tv := range after.Targets {
		if tv.ID == victim.ID {
			t.Fatalf("target %s survived a point-blank hit", victim.ID)
		}
	}
}

func TestAmmoBudgetRefusesWhenSpent(t *testing.T) {
	session := newTestSession(t, "precision", "budget")
	mode := session.Mode()
	if mode.Ammo <= 0 {
		t.Fatalf("precision mode should carry an ammo budget, got %d", mode.Ammo)
	}

	for i := 0; i < mode.Ammo; i++ {
		if !session.ShotFired(arena.Vec2{X: 1, Y: 1}) {
			t.Fatalf("shot %d refused with ammo remaining", i+1)
		}
	}
	if session.ShotFired(arena.Vec2{X: 1, Y: 1}) {
		t.Fatal("shot accepted after the ammo budget was spent")
	}
}

func TestTimedModeEndsWithTimeUp(t *testing.T) {
	session := newTestSession(t, "time_attack", "clock")
	limit := uint64(session.Mode().Duration().Seconds() * tickRate)

	var state StateMessage
	for i := uint64(0); i <= limit; i++ {
		state = session.Advance(testDT)
		if state.Over {
			break
		}
	}
	if !state.Over {
		t.Fatal("session still running past its time limit")
	}
	if state.Reason != "time_up" {
		t.Fatalf("expected reason time_up, got %q", state.Reason)
	}
	if !session.Over() {
		t.Fatal("Over() disagrees with the broadcast state")
	}
}

func TestFreezeHoldsTargetsButShotsLand(t *testing.T) {
	session := newTestSession(t, "classic", "pause")

	var state StateMessage
	for i := 0; i < 50; i++ {
		state = session.Advance(testDT)
		if len(state.Targets) > 0 {
			break
		}
	}
	if len(state.Targets) == 0 {
		t.Fatal("no target spawned within 50 ticks")
	}

	session.SetFrozen(true)
	frozen := session.Advance(testDT)
	if frozen.Tick != state.Tick+1 {
		t.Fatalf("freeze should not stop the clock: tick %d after %d", frozen.Tick, state.Tick)
	}
	if !reflect.DeepEqual(frozen.Targets, state.Targets) {
		t.Fatalf("frozen targets moved:\n%+v\n%+v", state.Targets, frozen.Targets)
	}

	// A frozen target is still shootable.
	victim := frozen.Targets[0]
	if !session.ShotFired(arena.Vec2{X: victim.X, Y: victim.Y}) {
		t.Fatal("shot refused while frozen")
	}
	after := session.Advance(testDT)
	for _, tv := range after.Targets {
		if tv.ID == victim.ID {
			t.Fatalf("target %s survived a hit while frozen", victim.ID)
		}
	}

	session.SetFrozen(false)
	resumed := session.Advance(testDT)
	if resumed.Tick != after.Tick+1 {
		t.Fatalf("resume expected tick %d, got %d", after.Tick+1, resumed.Tick)
	}
}

func TestEndDeliversSummary(t *testing.T) {
	done := make(chan Summary, 1)
	session, err := NewSession(SessionConfig{
		Bounds: arena.Config{Seed: "summary"},
		Mode:   mustMode(t, "classic"),
		OnEnd:  func(s Summary) { done <- s },
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		session.Advance(testDT)
	}
	session.ShotFired(arena.Vec2{X: 5, Y: 5})
	session.Advance(testDT)
	session.End("abandoned")
	session.Wait()

	// Wait returned, so the callback has already run.
	select {
	case summary := <-done:
		if summary.Reason != "abandoned" {
			t.Fatalf("expected reason abandoned, got %q", summary.Reason)
		}
		if summary.ID != session.ID() {
			t.Fatalf("summary carries wrong session id %q", summary.ID)
		}
		if summary.Shots != 1 {
			t.Fatalf("expected 1 shot in summary, got %d", summary.Shots)
		}
		if summary.TotalTicks != 11 {
			t.Fatalf("expected 11 ticks, got %d", summary.TotalTicks)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("summary never delivered")
	}

	// A second End must not re-fire the callback.
	session.End("server_shutdown")
	select {
	case <-done:
		t.Fatal("summary delivered twice")
	case <-time.After(50 * time.Millisecond):
	}
}
