package engine

import (
	"math"
	"testing"
	"time"

	"skyhunt/server/internal/arena"
)

func samplesAt(start arena.Vec2, velocity arena.Vec2, count int, interval time.Duration) []PositionSample {
	out := make([]PositionSample, 0, count)
	at := time.UnixMilli(0)
	for i := 0; i < count; i++ {
		dt := float64(i) * interval.Seconds()
		out = append(out, PositionSample{
			Pos: arena.Vec2{X: start.X + velocity.X*dt, Y: start.Y + velocity.Y*dt},
			At:  at.Add(time.Duration(i) * interval),
		})
	}
	return out
}

func TestPredictEmptyHistory(t *testing.T) {
	bounds := arena.DefaultConfig()
	forecast := Predict(nil, DefaultHorizon, bounds)
	if forecast.Confidence != 0 {
		t.Fatalf("no history must forecast at zero confidence, got %v", forecast.Confidence)
	}
	if forecast.Position != bounds.Center() {
		t.Fatalf("no history must forecast the centre, got %+v", forecast.Position)
	}
}

func TestPredictSingleSample(t *testing.T) {
	history := []PositionSample{{Pos: arena.Vec2{X: 200, Y: 150}, At: time.UnixMilli(0)}}
	forecast := Predict(history, DefaultHorizon, arena.DefaultConfig())
	if forecast.Confidence != 0 {
		t.Fatalf("single sample carries no velocity, confidence must be 0, got %v", forecast.Confidence)
	}
	if forecast.Position != history[0].Pos {
		t.Fatalf("single sample must forecast in place, got %+v", forecast.Position)
	}
}

func TestPredictConstantVelocityExact(t *testing.T) {
	velocity := arena.Vec2{X: 30, Y: -10}
	history := samplesAt(arena.Vec2{X: 100, Y: 300}, velocity, 5, 200*time.Millisecond)
	forecast := Predict(history, 2*time.Second, arena.DefaultConfig())

	last := history[len(history)-1].Pos
	want := arena.Vec2{X: last.X + velocity.X*2, Y: last.Y + velocity.Y*2}
	if math.Abs(forecast.Position.X-want.X) > 1e-6 || math.Abs(forecast.Position.Y-want.Y) > 1e-6 {
		t.Fatalf("constant velocity forecast: got %+v, want %+v", forecast.Position, want)
	}
	if forecast.Confidence != 1 {
		t.Fatalf("zero spread must yield full confidence, got %v", forecast.Confidence)
	}
}

func TestPredictClampsToPlayfield(t *testing.T) {
	bounds := arena.DefaultConfig()
	history := samplesAt(arena.Vec2{X: 600, Y: 240}, arena.Vec2{X: 200, Y: 0}, 4, 100*time.Millisecond)
	forecast := Predict(history, 2*time.Second, bounds)
	if forecast.Position.X != bounds.Width-arena.TargetHalf {
		t.Fatalf("forecast must clamp at the playfield edge, got %+v", forecast.Position)
	}
}

func TestPredictNoisyHistoryLowersConfidence(t *testing.T) {
	at := time.UnixMilli(0)
	zigzag := []PositionSample{
		{Pos: arena.Vec2{X: 300, Y: 200}, At: at},
		{Pos: arena.Vec2{X: 340, Y: 260}, At: at.Add(200 * time.Millisecond)},
		{Pos: arena.Vec2{X: 290, Y: 180}, At: at.Add(400 * time.Millisecond)},
		{Pos: arena.Vec2{X: 350, Y: 250}, At: at.Add(600 * time.Millisecond)},
	}
	noisy := Predict(zigzag, DefaultHorizon, arena.DefaultConfig())
	steady := Predict(samplesAt(arena.Vec2{X: 300, Y: 200}, arena.Vec2{X: 40, Y: 0}, 4, 200*time.Millisecond), DefaultHorizon, arena.DefaultConfig())
	if noisy.Confidence >= steady.Confidence {
		t.Fatalf("erratic movement must lower confidence: noisy %v, steady %v", noisy.Confidence, steady.Confidence)
	}
	if noisy.Confidence <= 0 || noisy.Confidence >= 1 {
		t.Fatalf("noisy confidence outside (0,1): %v", noisy.Confidence)
	}
}

func TestPredictIgnoresNonAdvancingClock(t *testing.T) {
	at := time.UnixMilli(0)
	history := []PositionSample{
		{Pos: arena.Vec2{X: 100, Y: 100}, At: at},
		{Pos: arena.Vec2{X: 200, Y: 100}, At: at}, // duplicate timestamp
	}
	forecast := Predict(history, DefaultHorizon, arena.DefaultConfig())
	if forecast.Confidence != 0 {
		t.Fatalf("no usable velocity sample, confidence must be 0, got %v", forecast.Confidence)
	}
	if forecast.Position != (arena.Vec2{X: 200, Y: 100}) {
		t.Fatalf("forecast should hold the newest sample, got %+v", forecast.Position)
	}
}
