package arena

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// DeterministicSeedValue derives a stable int64 seed from a root seed string
// and a subsystem label so independent subsystems draw from disjoint streams.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewDeterministicRNG builds a rand.Rand seeded for the given subsystem.
func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

// RandomAngle draws a heading in [0, 2π).
func RandomAngle(rng *rand.Rand) float64 {
	if rng == nil {
		return 0
	}
	return rng.Float64() * 2 * math.Pi
}

// RandomRange draws a value uniformly from [min, max].
func RandomRange(rng *rand.Rand, min, max float64) float64 {
	if max <= min || rng == nil {
		return min
	}
	return min + rng.Float64()*(max-min)
}

// RandomUnitVector draws a uniformly distributed direction.
func RandomUnitVector(rng *rand.Rand) Vec2 {
	angle := RandomAngle(rng)
	return Vec2{X: math.Cos(angle), Y: math.Sin(angle)}
}
