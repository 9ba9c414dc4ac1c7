package engine

import (
	"math"
	"time"

	"skyhunt/server/internal/arena"
)

// DefaultHorizon is how far ahead the predictor projects player movement.
const DefaultHorizon = 2 * time.Second

// confidenceSpeedScale converts velocity spread (px/s) into confidence decay.
// A spread equal to the scale halves the confidence.
const confidenceSpeedScale = 40.0

// Forecast is the predictor output consumed by Hunt targeting.
type Forecast struct {
	Position   arena.Vec2
	Confidence float64
}

// Predict extrapolates the player position horizon into the future from the
// shared position history. With fewer than two samples there is no velocity
// estimate: one sample forecasts that position, an empty history forecasts
// the playfield centre, both at zero confidence. Otherwise the forecast is a
// constant-velocity projection of the mean sample-to-sample velocity, clamped
// to the playfield, with confidence falling as the observed velocities
// disagree. A player moving at constant velocity yields that exact projection.
func Predict(history []PositionSample, horizon time.Duration, bounds arena.Config) Forecast {
	bounds = bounds.Normalized()
	if len(history) == 0 {
		return Forecast{Position: bounds.Center()}
	}
	last := history[len(history)-1]
	if len(history) == 1 {
		return Forecast{Position: bounds.ClampPoint(last.Pos)}
	}

	velocities := make([]arena.Vec2, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		dt := history[i].At.Sub(history[i-1].At).Seconds()
		if dt <= 0 {
			continue
		}
		delta := arena.Vec2{
			X: history[i].Pos.X - history[i-1].Pos.X,
			Y: history[i].Pos.Y - history[i-1].Pos.Y,
		}
		velocities = append(velocities, arena.Scale(delta, 1/dt))
	}
	if len(velocities) == 0 {
		return Forecast{Position: bounds.ClampPoint(last.Pos)}
	}

	mean := arena.Vec2{}
	for _, v := range velocities {
		mean = arena.Add(mean, v)
	}
	mean = arena.Scale(mean, 1/float64(len(velocities)))

	spread := 0.0
	for _, v := range velocities {
		spread += math.Hypot(v.X-mean.X, v.Y-mean.Y)
	}
	spread /= float64(len(velocities))

	seconds := horizon.Seconds()
	projected := arena.Add(last.Pos, arena.Scale(mean, seconds))
	return Forecast{
		Position:   bounds.ClampPoint(projected),
		Confidence: 1 / (1 + spread/confidenceSpeedScale),
	}
}
