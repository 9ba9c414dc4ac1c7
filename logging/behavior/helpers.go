// Package behavior publishes structured events for target AI decisions.
package behavior

import (
	"context"

	"skyhunt/server/logging"
)

const (
	// EventStateChanged is emitted when a target switches behaviour state.
	EventStateChanged logging.EventType = "behavior.state_changed"
	// EventTargetSpawned is emitted when a fresh target enters the playfield.
	EventTargetSpawned logging.EventType = "behavior.target_spawned"
	// EventTargetDespawned is emitted when a target leaves play.
	EventTargetDespawned logging.EventType = "behavior.target_despawned"
	// EventEvasionLearned is emitted when a successful escape is recorded
	// into the shared memory.
	EventEvasionLearned logging.EventType = "behavior.evasion_learned"
)

// StateChangedPayload captures one behaviour transition.
type StateChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TargetSpawnedPayload captures spawn metadata for a new target.
type TargetSpawnedPayload struct {
	Archetype    string  `json:"archetype"`
	Level        int     `json:"level"`
	Courage      float64 `json:"courage"`
	Intelligence float64 `json:"intelligence"`
	Agility      float64 `json:"agility"`
}

// TargetDespawnedPayload captures why a target left play.
type TargetDespawnedPayload struct {
	Reason string `json:"reason"`
	Score  int    `json:"score,omitempty"`
}

// EvasionLearnedPayload captures one recorded escape.
type EvasionLearnedPayload struct {
	State        string `json:"state"`
	PlayerBucket uint8  `json:"playerBucket"`
	EscapeBucket uint8  `json:"escapeBucket"`
}

// StateChanged publishes a behaviour transition at debug severity; state
// churn is high-volume and usually only wanted during tuning.
func StateChanged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StateChangedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStateChanged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryBehavior,
		Payload:  payload,
	})
}

// TargetSpawned publishes a spawn event.
func TargetSpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload TargetSpawnedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTargetSpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryBehavior,
		Payload:  payload,
	})
}

// TargetDespawned publishes a despawn event.
func TargetDespawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload TargetDespawnedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTargetDespawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryBehavior,
		Payload:  payload,
	})
}

// EvasionLearned publishes a shared-memory learning event.
func EvasionLearned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EvasionLearnedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEvasionLearned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryBehavior,
		Payload:  payload,
	})
}
