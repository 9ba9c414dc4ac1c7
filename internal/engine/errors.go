package engine

import "errors"

var (
	// ErrInvalidPersonalityRange reports a trait range that is inverted or
	// falls outside the unit interval. It indicates an authoring bug and is
	// surfaced immediately rather than clamped.
	ErrInvalidPersonalityRange = errors.New("engine: invalid personality range")

	// ErrUnknownState reports a behaviour state name outside the enumerated
	// set. Configs referencing one fail to compile; a corrupt runtime state
	// index panics instead of silently defaulting.
	ErrUnknownState = errors.New("engine: unknown behaviour state")

	// ErrUnknownArchetype reports a spawn request for a target type the
	// library has no compiled config for.
	ErrUnknownArchetype = errors.New("engine: unknown target archetype")
)
