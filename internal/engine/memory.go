package engine

import (
	"sort"
	"sync"
	"time"

	"skyhunt/server/internal/arena"
)

// HistoryCapacity bounds the shared player-position history. The oldest
// sample is evicted on overflow; running out of room is never an error.
const HistoryCapacity = 10

// coldStartAccuracy is assumed before the first recorded shot.
const coldStartAccuracy = 0.5

// EvasionKey identifies one evasion-pattern counter: a target in State saw
// the player approach from PlayerBucket and escaped toward EscapeBucket.
type EvasionKey struct {
	State        BehaviorState
	PlayerBucket uint8
	EscapeBucket uint8
}

// SharedMemory is the session-lifetime learning store shared by every
// target. All mutation is increment/append-only. Decisions within a tick
// read an immutable Snapshot; outcome events are journalled by the session
// and applied through Commit after every target has decided, so evaluation
// order inside a tick cannot feed back into that tick's decisions.
type SharedMemory struct {
	mu     sync.RWMutex
	bounds arena.Config

	history []PositionSample
	danger  map[arena.Region]uint64
	evasion map[EvasionKey]uint64
	shots   uint64
	hits    uint64
}

// NewSharedMemory builds an empty store for the given playfield.
func NewSharedMemory(bounds arena.Config) *SharedMemory {
	return &SharedMemory{
		bounds:  bounds.Normalized(),
		history: make([]PositionSample, 0, HistoryCapacity),
		danger:  make(map[arena.Region]uint64),
		evasion: make(map[EvasionKey]uint64),
	}
}

// MemoryEvent is one journalled outcome. Exactly one field is set.
type MemoryEvent struct {
	Shot     *ShotEvent
	Evasion  *EvasionEvent
	Position *PositionEvent
}

// ShotEvent records a shot fired at Pos. Hits increment the danger counter
// for the containing region and the accuracy numerator.
type ShotEvent struct {
	Pos arena.Vec2
	Hit bool
}

// EvasionEvent records a target surviving a nearby miss while in State.
type EvasionEvent struct {
	State        BehaviorState
	PlayerBucket uint8
	EscapeBucket uint8
}

// PositionEvent appends one player position sample.
type PositionEvent struct {
	Sample PositionSample
}

// Commit applies a batch of journalled events. Events are commutative
// increments and appends, so the final counters do not depend on the order
// targets were stepped within the tick.
func (m *SharedMemory) Commit(events []MemoryEvent) {
	if m == nil || len(events) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, event := range events {
		switch {
		case event.Shot != nil:
			m.shots++
			if event.Shot.Hit {
				m.hits++
				m.danger[m.bounds.RegionFor(event.Shot.Pos)]++
			}
		case event.Evasion != nil:
			m.evasion[EvasionKey{
				State:        event.Evasion.State,
				PlayerBucket: event.Evasion.PlayerBucket % arena.HeadingBuckets,
				EscapeBucket: event.Evasion.EscapeBucket % arena.HeadingBuckets,
			}]++
		case event.Position != nil:
			m.appendLocked(event.Position.Sample)
		}
	}
}

// RecordPlayerPosition appends a pointer sample outside the tick journal.
// The input collaborator calls this between ticks.
func (m *SharedMemory) RecordPlayerPosition(pos arena.Vec2, at time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.appendLocked(PositionSample{Pos: pos, At: at})
	m.mu.Unlock()
}

func (m *SharedMemory) appendLocked(sample PositionSample) {
	if len(m.history) == HistoryCapacity {
		copy(m.history, m.history[1:])
		m.history[HistoryCapacity-1] = sample
		return
	}
	m.history = append(m.history, sample)
}

// Totals reports the running shot counters for diagnostics.
func (m *SharedMemory) Totals() (shots, hits uint64) {
	if m == nil {
		return 0, 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shots, m.hits
}

// Snapshot returns an immutable pre-tick view safe for concurrent reads by
// every target stepped this tick.
func (m *SharedMemory) Snapshot() MemorySnapshot {
	if m == nil {
		return MemorySnapshot{Accuracy: coldStartAccuracy}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MemorySnapshot{
		History:  append([]PositionSample(nil), m.history...),
		Accuracy: coldStartAccuracy,
		danger:   make(map[arena.Region]uint64, len(m.danger)),
		evasion:  make(map[EvasionKey]uint64, len(m.evasion)),
	}
	if m.shots > 0 {
		snap.Accuracy = float64(m.hits) / float64(m.shots)
	}
	for region, strikes := range m.danger {
		snap.danger[region] = strikes
		if strikes > snap.maxStrikes {
			snap.maxStrikes = strikes
		}
	}
	for key, wins := range m.evasion {
		snap.evasion[key] = wins
	}
	return snap
}

// MemorySnapshot is a read-only copy of the shared store taken at the start
// of a tick.
type MemorySnapshot struct {
	History  []PositionSample
	Accuracy float64

	danger     map[arena.Region]uint64
	evasion    map[EvasionKey]uint64
	maxStrikes uint64
}

// DangerScore returns the normalised strike count for a region in [0,1].
// Unknown regions score zero.
func (s MemorySnapshot) DangerScore(region arena.Region) float64 {
	if s.maxStrikes == 0 {
		return 0
	}
	return float64(s.danger[region]) / float64(s.maxStrikes)
}

// BestEvasion returns the highest-scoring recorded escape direction for the
// given context. Cold start returns ok=false and the zero vector; callers
// fall back to the directly-away heading.
func (s MemorySnapshot) BestEvasion(state BehaviorState, playerBucket uint8) (arena.Vec2, bool) {
	playerBucket %= arena.HeadingBuckets
	bestWins := uint64(0)
	bestBucket := uint8(0)
	for escape := uint8(0); escape < arena.HeadingBuckets; escape++ {
		wins := s.evasion[EvasionKey{State: state, PlayerBucket: playerBucket, EscapeBucket: escape}]
		if wins > bestWins {
			bestWins = wins
			bestBucket = escape
		}
	}
	if bestWins == 0 {
		return arena.Vec2{}, false
	}
	return arena.BucketHeading(bestBucket), true
}

// LastKnown returns the most recent player sample.
func (s MemorySnapshot) LastKnown() (PositionSample, bool) {
	if len(s.History) == 0 {
		return PositionSample{}, false
	}
	return s.History[len(s.History)-1], true
}

// SavedMemory is the serialisable form handed to the persistence
// collaborator at session boundaries.
type SavedMemory struct {
	History     []SavedSample     `yaml:"history" json:"history"`
	DangerZones []SavedDangerZone `yaml:"dangerZones" json:"dangerZones"`
	EvasionWins []SavedEvasionWin `yaml:"evasionWins" json:"evasionWins"`
	Shots       uint64            `yaml:"shots" json:"shots"`
	Hits        uint64            `yaml:"hits" json:"hits"`
}

// SavedSample is one persisted history entry.
type SavedSample struct {
	X         float64 `yaml:"x" json:"x"`
	Y         float64 `yaml:"y" json:"y"`
	UnixMilli int64   `yaml:"at" json:"at"`
}

// SavedDangerZone is one persisted danger-zone counter.
type SavedDangerZone struct {
	Col     int    `yaml:"col" json:"col"`
	Row     int    `yaml:"row" json:"row"`
	Strikes uint64 `yaml:"strikes" json:"strikes"`
}

// SavedEvasionWin is one persisted evasion-pattern counter.
type SavedEvasionWin struct {
	State        string `yaml:"state" json:"state"`
	PlayerBucket uint8  `yaml:"playerBucket" json:"playerBucket"`
	EscapeBucket uint8  `yaml:"escapeBucket" json:"escapeBucket"`
	Wins         uint64 `yaml:"wins" json:"wins"`
}

// Export produces a deterministic serialisable copy of the store.
func (m *SharedMemory) Export() SavedMemory {
	if m == nil {
		return SavedMemory{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	saved := SavedMemory{Shots: m.shots, Hits: m.hits}
	for _, sample := range m.history {
		saved.History = append(saved.History, SavedSample{
			X:         sample.Pos.X,
			Y:         sample.Pos.Y,
			UnixMilli: sample.At.UnixMilli(),
		})
	}
	for region, strikes := range m.danger {
		saved.DangerZones = append(saved.DangerZones, SavedDangerZone{
			Col:     region.Col,
			Row:     region.Row,
			Strikes: strikes,
		})
	}
	sort.Slice(saved.DangerZones, func(i, j int) bool {
		a, b := saved.DangerZones[i], saved.DangerZones[j]
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	for key, wins := range m.evasion {
		saved.EvasionWins = append(saved.EvasionWins, SavedEvasionWin{
			State:        key.State.String(),
			PlayerBucket: key.PlayerBucket,
			EscapeBucket: key.EscapeBucket,
			Wins:         wins,
		})
	}
	sort.Slice(saved.EvasionWins, func(i, j int) bool {
		a, b := saved.EvasionWins[i], saved.EvasionWins[j]
		if a.State != b.State {
			return a.State < b.State
		}
		if a.PlayerBucket != b.PlayerBucket {
			return a.PlayerBucket < b.PlayerBucket
		}
		return a.EscapeBucket < b.EscapeBucket
	})
	return saved
}

// Restore replaces the store contents with a persisted copy. Counter values
// are taken as-is; an unknown state name fails loudly since it indicates a
// corrupt or hand-edited save.
func (m *SharedMemory) Restore(saved SavedMemory) error {
	if m == nil {
		return nil
	}
	history := make([]PositionSample, 0, HistoryCapacity)
	for _, sample := range saved.History {
		history = append(history, PositionSample{
			Pos: arena.Vec2{X: sample.X, Y: sample.Y},
			At:  time.UnixMilli(sample.UnixMilli),
		})
	}
	if len(history) > HistoryCapacity {
		history = history[len(history)-HistoryCapacity:]
	}
	danger := make(map[arena.Region]uint64, len(saved.DangerZones))
	for _, zone := range saved.DangerZones {
		danger[arena.Region{Col: zone.Col, Row: zone.Row}] += zone.Strikes
	}
	evasion := make(map[EvasionKey]uint64, len(saved.EvasionWins))
	for _, win := range saved.EvasionWins {
		state, err := ParseBehaviorState(win.State)
		if err != nil {
			return err
		}
		evasion[EvasionKey{
			State:        state,
			PlayerBucket: win.PlayerBucket % arena.HeadingBuckets,
			EscapeBucket: win.EscapeBucket % arena.HeadingBuckets,
		}] += win.Wins
	}

	m.mu.Lock()
	m.history = history
	m.danger = danger
	m.evasion = evasion
	m.shots = saved.Shots
	m.hits = saved.Hits
	m.mu.Unlock()
	return nil
}
