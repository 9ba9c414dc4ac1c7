// Package session publishes structured events for session lifecycle and
// player actions.
package session

import (
	"context"

	"skyhunt/server/logging"
)

const (
	// EventStarted is emitted when a session begins ticking.
	EventStarted logging.EventType = "session.started"
	// EventEnded is emitted when a session stops, whatever the reason.
	EventEnded logging.EventType = "session.ended"
	// EventShotFired is emitted for every shot the player takes.
	EventShotFired logging.EventType = "session.shot_fired"
	// EventLevelRaised is emitted when the difficulty scaler moves up.
	EventLevelRaised logging.EventType = "session.level_raised"
)

// StartedPayload captures the parameters a session launched with.
type StartedPayload struct {
	Mode string `json:"mode"`
	Seed string `json:"seed"`
}

// EndedPayload captures the final tallies.
type EndedPayload struct {
	Reason   string  `json:"reason"`
	Score    int     `json:"score"`
	Shots    int     `json:"shots"`
	Hits     int     `json:"hits"`
	Accuracy float64 `json:"accuracy"`
}

// ShotFiredPayload captures one shot and its outcome.
type ShotFiredPayload struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Hit bool    `json:"hit"`
}

// LevelRaisedPayload captures a difficulty change.
type LevelRaisedPayload struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Started publishes a session start event.
func Started(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StartedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStarted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySession,
		Payload:  payload,
	})
}

// Ended publishes a session end event.
func Ended(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EndedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEnded,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySession,
		Payload:  payload,
	})
}

// ShotFired publishes a shot event at debug severity.
func ShotFired(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ShotFiredPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventShotFired,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySession,
		Payload:  payload,
	})
}

// LevelRaised publishes a difficulty change event.
func LevelRaised(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload LevelRaisedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventLevelRaised,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySession,
		Payload:  payload,
	})
}
