package engine

import "time"

const (
	// MinLevel and MaxLevelCap bound every AI level the engine hands out.
	MinLevel    = 1
	MaxLevelCap = 10

	// hotStreakAccuracy is the shared-memory accuracy above which the
	// scaler grants one bonus level, and coldStreakAccuracy the floor
	// below which it deducts one.
	hotStreakAccuracy  = 0.75
	coldStreakAccuracy = 0.25
)

// ScalingRule describes how a game mode levels its targets over time.
type ScalingRule struct {
	StartLevel int           `yaml:"startLevel" json:"startLevel"`
	MaxLevel   int           `yaml:"maxLevel" json:"maxLevel"`
	Step       int           `yaml:"step" json:"step"`
	Interval   time.Duration `yaml:"interval" json:"interval"`
}

// Normalized clamps a rule into the supported level window. A zero Interval
// disables time scaling entirely.
func (r ScalingRule) Normalized() ScalingRule {
	out := r
	if out.StartLevel < MinLevel {
		out.StartLevel = MinLevel
	}
	if out.MaxLevel < out.StartLevel {
		out.MaxLevel = out.StartLevel
	}
	if out.MaxLevel > MaxLevelCap {
		out.MaxLevel = MaxLevelCap
	}
	if out.Step < 0 {
		out.Step = 0
	}
	return out
}

// Scaler converts elapsed session time into the AI level applied to fresh
// spawns. The issued level is a ratchet: once a level has been handed out,
// the scaler never issues a lower one for the rest of the session, even if
// the shooter's accuracy cools off.
type Scaler struct {
	rule     ScalingRule
	tickRate int
	issued   int
}

// NewScaler builds a scaler for the given rule at the session tick rate.
func NewScaler(rule ScalingRule, tickRate int) *Scaler {
	if tickRate < 1 {
		tickRate = 1
	}
	return &Scaler{rule: rule.Normalized(), tickRate: tickRate}
}

// LevelAt returns the time-scaled level for a tick. It never decreases as
// the tick grows and never exceeds the rule's MaxLevel.
func (s *Scaler) LevelAt(tick uint64) int {
	if s == nil {
		return MinLevel
	}
	level := s.rule.StartLevel
	intervalTicks := uint64(s.rule.Interval.Seconds() * float64(s.tickRate))
	if intervalTicks > 0 && s.rule.Step > 0 {
		level += s.rule.Step * int(tick/intervalTicks)
	}
	if level > s.rule.MaxLevel {
		level = s.rule.MaxLevel
	}
	return level
}

// EffectiveLevel folds player performance into the time-scaled level. A hot
// streak bumps the level by one, a cold streak drops it by one, always
// staying inside the rule's window and never below a level already issued.
func (s *Scaler) EffectiveLevel(tick uint64, accuracy float64) int {
	if s == nil {
		return MinLevel
	}
	level := s.LevelAt(tick)
	switch {
	case accuracy >= hotStreakAccuracy:
		level++
	case accuracy <= coldStreakAccuracy:
		level--
	}
	if level < s.rule.StartLevel {
		level = s.rule.StartLevel
	}
	if level > s.rule.MaxLevel {
		level = s.rule.MaxLevel
	}
	if level < s.issued {
		level = s.issued
	}
	s.issued = level
	return level
}
