package engine

import (
	"fmt"
	"math/rand"
)

// TraitRange bounds one personality trait draw.
type TraitRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PersonalityRanges describes the configured trait ranges for an archetype.
// LevelShift raises the lower bound of every range per AI level above one,
// narrowing the draw toward the configured maximum.
type PersonalityRanges struct {
	Courage      TraitRange `json:"courage"`
	Intelligence TraitRange `json:"intelligence"`
	Agility      TraitRange `json:"agility"`
	LevelShift   float64    `json:"level_shift"`
}

// Validate rejects inverted ranges and bounds outside the unit interval.
// A failure is a configuration bug and is fatal at library compile time.
func (r PersonalityRanges) Validate() error {
	for _, entry := range []struct {
		name string
		tr   TraitRange
	}{
		{"courage", r.Courage},
		{"intelligence", r.Intelligence},
		{"agility", r.Agility},
	} {
		if entry.tr.Min < 0 || entry.tr.Max > 1 || entry.tr.Min >= entry.tr.Max {
			return fmt.Errorf("%w: %s [%v,%v]", ErrInvalidPersonalityRange, entry.name, entry.tr.Min, entry.tr.Max)
		}
	}
	if r.LevelShift < 0 {
		return fmt.Errorf("%w: level shift %v", ErrInvalidPersonalityRange, r.LevelShift)
	}
	return nil
}

// At returns the ranges effective for the given AI level. Both bounds shift
// upward proportionally to the level, capped at the configured maxima so the
// range narrows rather than escaping its ceiling.
func (r PersonalityRanges) At(level int) PersonalityRanges {
	if level < 1 {
		level = 1
	}
	shift := r.LevelShift * float64(level-1)
	shifted := r
	shifted.Courage = shiftRange(r.Courage, shift)
	shifted.Intelligence = shiftRange(r.Intelligence, shift)
	shifted.Agility = shiftRange(r.Agility, shift)
	return shifted
}

func shiftRange(tr TraitRange, shift float64) TraitRange {
	min := tr.Min + shift
	if min > tr.Max {
		min = tr.Max
	}
	return TraitRange{Min: min, Max: tr.Max}
}

// GeneratePersonality draws the trait triple for a fresh spawn. Draws are
// independent and deterministic under a seeded rng. The returned values never
// leave the level-adjusted ranges.
func GeneratePersonality(rng *rand.Rand, ranges PersonalityRanges, level int) (Personality, error) {
	if err := ranges.Validate(); err != nil {
		return Personality{}, err
	}
	at := ranges.At(level)
	return Personality{
		Courage:      drawTrait(rng, at.Courage),
		Intelligence: drawTrait(rng, at.Intelligence),
		Agility:      drawTrait(rng, at.Agility),
	}, nil
}

func drawTrait(rng *rand.Rand, tr TraitRange) float64 {
	if tr.Max <= tr.Min || rng == nil {
		return tr.Min
	}
	return tr.Min + rng.Float64()*(tr.Max-tr.Min)
}
