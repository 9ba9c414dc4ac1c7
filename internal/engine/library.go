package engine

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed configs/*.json
var embeddedConfigs embed.FS

// GlobalLibrary provides the default authoring configs bundled with the
// server.
var GlobalLibrary = MustLoadLibrary()

// Library stores compiled behaviour configurations indexed by archetype.
type Library struct {
	configsByArchetype map[string]*CompiledConfig
}

// CompiledConfig captures the runtime state machine produced from an
// authoring configuration. States are indexed by BehaviorState; transitions
// keep authoring order, which encodes the survival-first priority
// (Retreat > Evasive > Hunt > Aggressive > Patrol > Normal).
type CompiledConfig struct {
	archetype     string
	lives         int
	basePoints    int
	baseSpeed     float64
	speedPerLevel float64
	personality   PersonalityRanges

	states [stateCount]compiledState

	moveParams       []moveParams
	transitionParams []transitionParams
}

type compiledState struct {
	present     bool
	durationMin uint64
	durationMax uint64
	move        compiledMove
	transitions []compiledTransition
}

type compiledMove struct {
	id         moveID
	paramIndex uint16
}

type compiledTransition struct {
	conditionID conditionID
	weightID    weightID
	paramIndex  uint16
	toState     BehaviorState
}

type moveParams struct {
	SpeedFactor float64
	JitterScale float64
}

type transitionParams struct {
	Radius        float64
	CooldownTicks uint64
	MinConfidence float64
}

type moveID uint8

type conditionID uint8

type weightID uint8

const (
	moveRandomWalk moveID = iota
	moveEvade
	movePursue
	movePatrol
	moveIntercept
	moveRetreat
)

const (
	conditionShotNearby conditionID = iota
	conditionTimerExpired
	conditionCalm
	conditionTookDamage
	conditionCourageFails
	conditionForecastNear
	conditionRouteComplete
	conditionEdgeReached
)

const (
	weightAlways weightID = iota
	weightCourage
	weightTimid
	weightAgility
	weightIntelligence
)

// MustLoadLibrary loads the embedded authoring configs or panics on failure.
func MustLoadLibrary() *Library {
	lib, err := LoadLibrary()
	if err != nil {
		panic(fmt.Errorf("engine: load library: %w", err))
	}
	return lib
}

// LoadLibrary loads the embedded authoring configs and compiles them into a
// runtime library instance.
func LoadLibrary() (*Library, error) {
	lib := &Library{configsByArchetype: make(map[string]*CompiledConfig)}

	entries, err := fs.ReadDir(embeddedConfigs, "configs")
	if err != nil {
		return nil, fmt.Errorf("engine: read configs: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := fs.ReadFile(embeddedConfigs, "configs/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("engine: read %q: %w", entry.Name(), err)
		}
		var authoring authoringConfig
		if err := json.Unmarshal(data, &authoring); err != nil {
			return nil, fmt.Errorf("engine: decode %q: %w", entry.Name(), err)
		}
		compiled, err := compileConfig(authoring)
		if err != nil {
			return nil, fmt.Errorf("engine: compile %q: %w", entry.Name(), err)
		}
		lib.configsByArchetype[compiled.archetype] = compiled
	}

	return lib, nil
}

// ConfigForArchetype retrieves the compiled configuration for the provided
// target archetype.
func (l *Library) ConfigForArchetype(archetype string) *CompiledConfig {
	if l == nil {
		return nil
	}
	key := strings.TrimSpace(strings.ToLower(archetype))
	return l.configsByArchetype[key]
}

// Archetypes lists the compiled archetype names.
func (l *Library) Archetypes() []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.configsByArchetype))
	for name := range l.configsByArchetype {
		out = append(out, name)
	}
	return out
}

// Archetype exposes the config's archetype name.
func (cfg *CompiledConfig) Archetype() string {
	if cfg == nil {
		return ""
	}
	return cfg.archetype
}

// Lives returns the spawn life count (1 for regular ducks, more for bosses).
func (cfg *CompiledConfig) Lives() int {
	if cfg == nil || cfg.lives < 1 {
		return 1
	}
	return cfg.lives
}

// Points returns the score value for a target spawned at the given AI level.
func (cfg *CompiledConfig) Points(level int) int {
	if cfg == nil {
		return 0
	}
	if level < 1 {
		level = 1
	}
	return cfg.basePoints + level*10
}

// Speed returns the base movement speed for the given AI level before state
// and trait factors apply.
func (cfg *CompiledConfig) Speed(level int) float64 {
	if cfg == nil {
		return 0
	}
	if level < 1 {
		level = 1
	}
	return cfg.baseSpeed + cfg.speedPerLevel*float64(level)
}

// Personality exposes the configured trait ranges.
func (cfg *CompiledConfig) Personality() PersonalityRanges {
	if cfg == nil {
		return PersonalityRanges{}
	}
	return cfg.personality
}

// ReachableStates returns the exact set of transition targets declared for
// the given state, in authoring priority order.
func (cfg *CompiledConfig) ReachableStates(from BehaviorState) []BehaviorState {
	if cfg == nil || from >= stateCount {
		return nil
	}
	state := cfg.states[from]
	out := make([]BehaviorState, 0, len(state.transitions))
	seen := [stateCount]bool{}
	for _, transition := range state.transitions {
		if seen[transition.toState] {
			continue
		}
		seen[transition.toState] = true
		out = append(out, transition.toState)
	}
	return out
}

func compileConfig(authoring authoringConfig) (*CompiledConfig, error) {
	archetype := strings.TrimSpace(strings.ToLower(authoring.Archetype))
	if archetype == "" {
		return nil, fmt.Errorf("missing archetype")
	}
	if err := authoring.Personality.Validate(); err != nil {
		return nil, err
	}

	compiled := &CompiledConfig{
		archetype:     archetype,
		lives:         authoring.Lives,
		basePoints:    authoring.BasePoints,
		baseSpeed:     authoring.BaseSpeed,
		speedPerLevel: authoring.SpeedPerLevel,
		personality:   authoring.Personality,
	}
	if compiled.lives < 1 {
		compiled.lives = 1
	}
	if compiled.baseSpeed <= 0 {
		compiled.baseSpeed = 100
	}

	for _, state := range authoring.States {
		id, err := ParseBehaviorState(strings.TrimSpace(state.ID))
		if err != nil {
			return nil, err
		}
		if compiled.states[id].present {
			return nil, fmt.Errorf("duplicate state %q", state.ID)
		}

		moveID, err := parseMoveID(state.Move.Name)
		if err != nil {
			return nil, fmt.Errorf("state %q move: %w", state.ID, err)
		}
		compiled.moveParams = append(compiled.moveParams, moveParams{
			SpeedFactor: state.Move.SpeedFactor,
			JitterScale: state.Move.Jitter,
		})

		cs := compiledState{
			present:     true,
			durationMin: state.DurationMinTicks,
			durationMax: state.DurationMaxTicks,
			move: compiledMove{
				id:         moveID,
				paramIndex: uint16(len(compiled.moveParams) - 1),
			},
			transitions: make([]compiledTransition, 0, len(state.Transitions)),
		}

		for _, transition := range state.Transitions {
			cond, err := parseConditionID(transition.Condition)
			if err != nil {
				return nil, fmt.Errorf("state %q transition: %w", state.ID, err)
			}
			weight, err := parseWeightID(transition.Weight)
			if err != nil {
				return nil, fmt.Errorf("state %q transition: %w", state.ID, err)
			}
			target, err := ParseBehaviorState(strings.TrimSpace(transition.ToState))
			if err != nil {
				return nil, fmt.Errorf("state %q transition: %w", state.ID, err)
			}
			compiled.transitionParams = append(compiled.transitionParams, transitionParams{
				Radius:        transition.Radius,
				CooldownTicks: transition.CooldownTicks,
				MinConfidence: transition.MinConfidence,
			})
			cs.transitions = append(cs.transitions, compiledTransition{
				conditionID: cond,
				weightID:    weight,
				paramIndex:  uint16(len(compiled.transitionParams) - 1),
				toState:     target,
			})
		}

		compiled.states[id] = cs
	}

	for idx := range compiled.states {
		if !compiled.states[idx].present {
			return nil, fmt.Errorf("state %q not defined", stateNames[idx])
		}
	}

	return compiled, nil
}

func parseMoveID(name string) (moveID, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "randomwalk":
		return moveRandomWalk, nil
	case "evade":
		return moveEvade, nil
	case "pursue":
		return movePursue, nil
	case "patrol":
		return movePatrol, nil
	case "intercept":
		return moveIntercept, nil
	case "retreat":
		return moveRetreat, nil
	default:
		return 0, fmt.Errorf("unknown move %q", name)
	}
}

func parseConditionID(name string) (conditionID, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "shotnearby":
		return conditionShotNearby, nil
	case "timerexpired":
		return conditionTimerExpired, nil
	case "calm":
		return conditionCalm, nil
	case "tookdamage":
		return conditionTookDamage, nil
	case "couragefails":
		return conditionCourageFails, nil
	case "forecastnear":
		return conditionForecastNear, nil
	case "routecomplete":
		return conditionRouteComplete, nil
	case "edgereached":
		return conditionEdgeReached, nil
	default:
		return 0, fmt.Errorf("unknown condition %q", name)
	}
}

func parseWeightID(name string) (weightID, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "always":
		return weightAlways, nil
	case "courage":
		return weightCourage, nil
	case "timid":
		return weightTimid, nil
	case "agility":
		return weightAgility, nil
	case "intelligence":
		return weightIntelligence, nil
	default:
		return 0, fmt.Errorf("unknown weight %q", name)
	}
}

type authoringConfig struct {
	Archetype     string            `json:"archetype"`
	Lives         int               `json:"lives"`
	BasePoints    int               `json:"base_points"`
	BaseSpeed     float64           `json:"base_speed"`
	SpeedPerLevel float64           `json:"speed_per_level"`
	Personality   PersonalityRanges `json:"personality"`
	States        []authoringState  `json:"states"`
}

type authoringState struct {
	ID               string                `json:"id"`
	DurationMinTicks uint64                `json:"duration_min_ticks,omitempty"`
	DurationMaxTicks uint64                `json:"duration_max_ticks,omitempty"`
	Move             authoringMove         `json:"move"`
	Transitions      []authoringTransition `json:"transitions"`
}

type authoringMove struct {
	Name        string  `json:"name"`
	SpeedFactor float64 `json:"speed_factor,omitempty"`
	Jitter      float64 `json:"jitter,omitempty"`
}

type authoringTransition struct {
	Condition     string  `json:"if"`
	ToState       string  `json:"to"`
	Weight        string  `json:"weight,omitempty"`
	Radius        float64 `json:"radius,omitempty"`
	CooldownTicks uint64  `json:"cooldown_ticks,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
}
