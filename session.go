package main

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"skyhunt/server/internal/arena"
	"skyhunt/server/internal/engine"
	"skyhunt/server/internal/policy"
	"skyhunt/server/internal/telemetry"
	"skyhunt/server/logging"
	"skyhunt/server/logging/behavior"
	logsession "skyhunt/server/logging/session"
)

const (
	// hitRadius is the shot-to-target distance that counts as a hit.
	hitRadius = arena.TargetHalf * 1.5

	// evasionCreditRadius credits a nearby miss to an evading target as a
	// successful escape worth remembering.
	evasionCreditRadius = 120.0
)

// Summary is the final tally handed to the hub when a session ends.
type Summary struct {
	ID             string
	Seed           string
	Mode           string
	Reason         string
	Score          int
	Shots          int
	Hits           int
	TargetsDowned  int
	TargetsEscaped int
	BestLevel      int
	TotalTicks     uint64
	Memory         engine.SavedMemory
}

// Session runs one game: a population of AI targets against one shooter.
// All simulation state is guarded by mu; intake methods queue work and the
// tick applies it, so handler goroutines never touch targets directly.
type Session struct {
	mu sync.Mutex

	id     string
	seed   string
	mode   policy.Mode
	bounds arena.Config

	library *engine.Library
	spawner *engine.Spawner
	memory  *engine.SharedMemory
	scaler  *engine.Scaler
	rng     *rand.Rand

	publisher logging.Publisher
	metrics   telemetry.Metrics

	tick    uint64
	frozen  bool
	over    bool
	reason  string
	started time.Time

	targets map[string]*engine.Target

	pointer      engine.PlayerSample
	pendingShots []engine.ShotSample

	score          int
	shotsFired     int
	hits           int
	targetsDowned  int
	targetsEscaped int
	bestLevel      int
	ammoLeft       int

	spawnSerial   int
	nextSpawnTick uint64

	onEnd func(Summary)
	endWG sync.WaitGroup
}

// SessionConfig wires a session's collaborators.
type SessionConfig struct {
	Bounds    arena.Config
	Mode      policy.Mode
	Library   *engine.Library
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Restored  engine.SavedMemory
	OnEnd     func(Summary)
}

// NewSession builds a session. The seed drives every random draw, so two
// sessions with the same seed and the same inputs play out identically.
func NewSession(cfg SessionConfig) (*Session, error) {
	bounds := cfg.Bounds.Normalized()
	library := cfg.Library
	if library == nil {
		library = engine.GlobalLibrary
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	if library.ConfigForArchetype(cfg.Mode.Archetype) == nil {
		return nil, fmt.Errorf("session: mode %q names unknown archetype %q", cfg.Mode.Name, cfg.Mode.Archetype)
	}

	memory := engine.NewSharedMemory(bounds)
	if err := memory.Restore(cfg.Restored); err != nil {
		return nil, fmt.Errorf("session: restore memory: %w", err)
	}

	s := &Session{
		id:        uuid.NewString(),
		seed:      bounds.Seed,
		mode:      cfg.Mode,
		bounds:    bounds,
		library:   library,
		spawner:   engine.NewSpawner(bounds, library, bounds.Seed),
		memory:    memory,
		scaler:    engine.NewScaler(cfg.Mode.Scaling.Rule(), tickRate),
		rng:       arena.NewDeterministicRNG(bounds.Seed, "session"),
		publisher: publisher,
		metrics:   metrics,
		started:   time.Now(),
		targets:   make(map[string]*engine.Target),
		ammoLeft:  cfg.Mode.Ammo,
		bestLevel: 1,
		onEnd:     cfg.OnEnd,
	}

	logsession.Started(context.Background(), publisher, 0, logging.SessionRef(s.id), logsession.StartedPayload{
		Mode: cfg.Mode.Name,
		Seed: s.seed,
	})
	return s, nil
}

// ID returns the session identity used by the hub and the stat store.
func (s *Session) ID() string { return s.id }

// Mode returns the policy the session runs under.
func (s *Session) Mode() policy.Mode { return s.mode }

// PointerMoved records the shooter's pointer. The sample lands in shared
// memory immediately; targets observe it from the next tick's snapshot.
func (s *Session) PointerMoved(pos arena.Vec2, at time.Time) {
	s.mu.Lock()
	if s.over {
		s.mu.Unlock()
		return
	}
	s.pointer = engine.PlayerSample{Pos: pos, Known: true}
	s.mu.Unlock()
	s.memory.RecordPlayerPosition(pos, at)
}

// ShotFired queues a shot for the next tick. Returns false when the mode's
// ammo budget is spent.
func (s *Session) ShotFired(pos arena.Vec2) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.over {
		return false
	}
	if s.mode.Ammo > 0 {
		if s.ammoLeft == 0 {
			return false
		}
		s.ammoLeft--
	}
	s.pendingShots = append(s.pendingShots, engine.ShotSample{Pos: pos})
	return true
}

// SetFrozen toggles the freeze power-up: targets stop moving and deciding
// while the shooter keeps firing.
func (s *Session) SetFrozen(frozen bool) {
	s.mu.Lock()
	s.frozen = frozen
	s.mu.Unlock()
}

// Advance runs one tick: resolve queued shots, snapshot shared state, step
// every target against that snapshot, then commit the outcome journal. No
// target sees another target's decisions from the same tick.
func (s *Session) Advance(dt float64) StateMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.over {
		return s.stateLocked()
	}
	s.tick++
	ctxBg := context.Background()

	shots := s.resolveShotsLocked(ctxBg)

	// Frozen is the power-up collaborator's hook: targets hold in place
	// while shots keep landing.
	if s.frozen {
		journal := make([]engine.MemoryEvent, 0, len(shots))
		for i := range shots {
			shot := shots[i]
			journal = append(journal, engine.MemoryEvent{Shot: &engine.ShotEvent{Pos: shot.Pos, Hit: shot.Hit}})
		}
		s.memory.Commit(journal)
		s.checkLimitsLocked(ctxBg)
		return s.stateLocked()
	}

	snapshot := s.memory.Snapshot()
	forecast := engine.Predict(snapshot.History, engine.DefaultHorizon, s.bounds)
	level := s.scaler.EffectiveLevel(s.tick, snapshot.Accuracy)
	if level > s.bestLevel {
		prev := s.bestLevel
		s.bestLevel = level
		logsession.LevelRaised(ctxBg, s.publisher, s.tick, logging.SessionRef(s.id), logsession.LevelRaisedPayload{From: prev, To: level})
	}

	journal := make([]engine.MemoryEvent, 0, len(shots)+4)
	for i := range shots {
		shot := shots[i]
		journal = append(journal, engine.MemoryEvent{Shot: &engine.ShotEvent{Pos: shot.Pos, Hit: shot.Hit}})
	}

	stepCtx := engine.StepContext{
		Tick:         s.tick,
		DT:           dt,
		Bounds:       s.bounds,
		Player:       s.pointer,
		Forecast:     forecast,
		Memory:       snapshot,
		Shots:        shots,
		RNG:          s.rng,
		RetreatWraps: s.mode.RetreatWraps,
	}

	for _, id := range s.sortedTargetIDsLocked() {
		tgt := s.targets[id]
		cfg := s.library.ConfigForArchetype(tgt.Archetype)
		before := tgt.State

		ctx := stepCtx
		ctx.Level = tgt.Level
		decision := engine.Step(cfg, tgt, ctx)

		if decision.State != before {
			behavior.StateChanged(ctxBg, s.publisher, s.tick, logging.TargetRef(id), behavior.StateChangedPayload{
				From: before.String(),
				To:   decision.State.String(),
			})
		}
		if decision.Despawn {
			s.removeTargetLocked(ctxBg, id, "escaped")
			continue
		}

		tgt.Vel = decision.Velocity
		tgt.Pos = s.integrateLocked(tgt.Pos, tgt.Vel, dt)
		tgt.Age++

		// A miss that lands close to an evading target is a win worth
		// teaching the flock.
		if tgt.State == engine.StateEvasive {
			for _, shot := range shots {
				if shot.Hit || arena.Distance(shot.Pos, tgt.Pos) > evasionCreditRadius {
					continue
				}
				event := engine.EvasionEvent{
					State:        tgt.State,
					PlayerBucket: arena.HeadingBucket(arena.Vec2{X: shot.Pos.X - tgt.Pos.X, Y: shot.Pos.Y - tgt.Pos.Y}),
					EscapeBucket: tgt.Blackboard.LastEvasion,
				}
				journal = append(journal, engine.MemoryEvent{Evasion: &event})
				behavior.EvasionLearned(ctxBg, s.publisher, s.tick, logging.TargetRef(id), behavior.EvasionLearnedPayload{
					State:        event.State.String(),
					PlayerBucket: event.PlayerBucket,
					EscapeBucket: event.EscapeBucket,
				})
			}
		}
	}

	s.memory.Commit(journal)
	s.maybeSpawnLocked(ctxBg, level)
	s.metrics.Store("targets_active", uint64(len(s.targets)))
	s.checkLimitsLocked(ctxBg)

	return s.stateLocked()
}

// resolveShotsLocked drains the shot queue, scoring hits against the
// pre-step positions. Hits damage the nearest target inside hitRadius.
func (s *Session) resolveShotsLocked(ctx context.Context) []engine.ShotSample {
	if len(s.pendingShots) == 0 {
		return nil
	}
	shots := s.pendingShots
	s.pendingShots = nil

	for i := range shots {
		shot := &shots[i]
		s.shotsFired++

		victim := ""
		best := hitRadius
		for _, id := range s.sortedTargetIDsLocked() {
			d := arena.Distance(shot.Pos, s.targets[id].Pos)
			if d <= best {
				best = d
				victim = id
			}
		}
		logsession.ShotFired(ctx, s.publisher, s.tick, logging.SessionRef(s.id), logsession.ShotFiredPayload{
			X: shot.Pos.X, Y: shot.Pos.Y, Hit: victim != "",
		})
		if victim == "" {
			s.metrics.Add("shots_missed", 1)
			continue
		}

		shot.Hit = true
		s.hits++
		s.metrics.Add("shots_hit", 1)
		tgt := s.targets[victim]
		tgt.Lives--
		if tgt.Lives > 0 {
			tgt.Blackboard.DamagedTick = s.tick
			continue
		}
		s.score += tgt.Score
		s.targetsDowned++
		s.removeTargetLocked(ctx, victim, "downed")
	}
	return shots
}

func (s *Session) removeTargetLocked(ctx context.Context, id, reason string) {
	tgt, ok := s.targets[id]
	if !ok {
		return
	}
	delete(s.targets, id)
	if reason == "escaped" {
		s.targetsEscaped++
		s.metrics.Add("targets_escaped", 1)
	} else {
		s.metrics.Add("targets_downed", 1)
	}
	behavior.TargetDespawned(ctx, s.publisher, s.tick, logging.TargetRef(id), behavior.TargetDespawnedPayload{
		Reason: reason,
		Score:  tgt.Score,
	})
}

// integrateLocked applies one tick of motion. The vertical axis clamps to
// the playfield; the horizontal axis allows the spawn margin so targets can
// glide in from off screen.
func (s *Session) integrateLocked(pos, vel arena.Vec2, dt float64) arena.Vec2 {
	next := arena.Add(pos, arena.Scale(vel, dt))
	margin := arena.TargetHalf * 2
	next.X = arena.Clamp(next.X, -margin, s.bounds.Width+margin)
	next.Y = arena.Clamp(next.Y, arena.TargetHalf, s.bounds.Height-arena.TargetHalf)
	return next
}

func (s *Session) maybeSpawnLocked(ctx context.Context, level int) {
	if len(s.targets) >= s.mode.MaxConcurrent {
		return
	}
	if s.tick < s.nextSpawnTick {
		return
	}
	if s.mode.Ammo > 0 && s.ammoLeft == 0 {
		return
	}

	archetype := s.mode.Archetype
	s.spawnSerial++
	if s.mode.BossEvery > 0 && s.spawnSerial%s.mode.BossEvery == 0 {
		archetype = "boss"
	}

	tgt, err := s.spawner.Spawn(archetype, level, s.tick)
	if err != nil {
		s.metrics.Add("spawn_failures", 1)
		return
	}
	s.targets[tgt.ID] = tgt
	s.nextSpawnTick = s.tick + uint64(s.mode.SpawnInterval().Seconds()*tickRate)
	s.metrics.Add("targets_spawned", 1)

	behavior.TargetSpawned(ctx, s.publisher, s.tick, logging.TargetRef(tgt.ID), behavior.TargetSpawnedPayload{
		Archetype:    tgt.Archetype,
		Level:        tgt.Level,
		Courage:      tgt.Personality.Courage,
		Intelligence: tgt.Personality.Intelligence,
		Agility:      tgt.Personality.Agility,
	})
}

func (s *Session) checkLimitsLocked(ctx context.Context) {
	switch {
	case s.mode.Duration() > 0 && s.tick >= uint64(s.mode.Duration().Seconds()*tickRate):
		s.endLocked(ctx, "time_up")
	case s.mode.MissLimit > 0 && s.targetsEscaped >= s.mode.MissLimit:
		s.endLocked(ctx, "too_many_escapes")
	case s.mode.Ammo > 0 && s.ammoLeft == 0 && len(s.pendingShots) == 0 && len(s.targets) == 0:
		s.endLocked(ctx, "out_of_ammo")
	}
}

// End stops the session from outside the tick loop.
func (s *Session) End(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked(context.Background(), reason)
}

func (s *Session) endLocked(ctx context.Context, reason string) {
	if s.over {
		return
	}
	s.over = true
	s.reason = reason

	accuracy := 0.0
	if s.shotsFired > 0 {
		accuracy = float64(s.hits) / float64(s.shotsFired)
	}
	logsession.Ended(ctx, s.publisher, s.tick, logging.SessionRef(s.id), logsession.EndedPayload{
		Reason:   reason,
		Score:    s.score,
		Shots:    s.shotsFired,
		Hits:     s.hits,
		Accuracy: accuracy,
	})

	if s.onEnd != nil {
		summary := Summary{
			ID:             s.id,
			Seed:           s.seed,
			Mode:           s.mode.Name,
			Reason:         reason,
			Score:          s.score,
			Shots:          s.shotsFired,
			Hits:           s.hits,
			TargetsDowned:  s.targetsDowned,
			TargetsEscaped: s.targetsEscaped,
			BestLevel:      s.bestLevel,
			TotalTicks:     s.tick,
			Memory:         s.memory.Export(),
		}
		s.endWG.Add(1)
		go func() {
			defer s.endWG.Done()
			s.onEnd(summary)
		}()
	}
}

// Wait blocks until the end-of-session callback has finished. Callers use
// it to keep the final persistence write ahead of process exit.
func (s *Session) Wait() {
	s.endWG.Wait()
}

// Over reports whether the session has ended.
func (s *Session) Over() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.over
}

func (s *Session) sortedTargetIDsLocked() []string {
	ids := make([]string, 0, len(s.targets))
	for id := range s.targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// State returns the current snapshot for broadcast.
func (s *Session) State() StateMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() StateMessage {
	msg := StateMessage{
		Type:       "state",
		Session:    s.id,
		Tick:       s.tick,
		Score:      s.score,
		Level:      s.bestLevel,
		Ammo:       s.ammoLeft,
		Over:       s.over,
		Reason:     s.reason,
		ServerTime: time.Now().UnixMilli(),
	}
	for _, id := range s.sortedTargetIDsLocked() {
		tgt := s.targets[id]
		msg.Targets = append(msg.Targets, TargetView{
			ID:        tgt.ID,
			Archetype: tgt.Archetype,
			State:     tgt.State.String(),
			X:         tgt.Pos.X,
			Y:         tgt.Pos.Y,
			VX:        tgt.Vel.X,
			VY:        tgt.Vel.Y,
			Lives:     tgt.Lives,
		})
	}
	return msg
}
