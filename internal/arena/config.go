package arena

import "strings"

const (
	DefaultSeed   = "skyhunt"
	DefaultWidth  = 640.0
	DefaultHeight = 480.0

	// TargetHalf is the half-extent used when clamping targets to the
	// playfield so sprites never leave the visible area entirely.
	TargetHalf = 16.0
)

// Config describes the playfield a session runs in.
type Config struct {
	Seed   string  `json:"seed"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Normalized fills zero values with defaults and trims the seed.
func (cfg Config) Normalized() Config {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = DefaultSeed
	}
	if normalized.Width <= 0 {
		normalized.Width = DefaultWidth
	}
	if normalized.Height <= 0 {
		normalized.Height = DefaultHeight
	}
	return normalized
}

// DefaultConfig returns the stock 640x480 playfield.
func DefaultConfig() Config {
	return Config{Seed: DefaultSeed, Width: DefaultWidth, Height: DefaultHeight}
}

// ClampPoint keeps p inside the playfield with a TargetHalf margin.
func (cfg Config) ClampPoint(p Vec2) Vec2 {
	return Vec2{
		X: Clamp(p.X, TargetHalf, cfg.Width-TargetHalf),
		Y: Clamp(p.Y, TargetHalf, cfg.Height-TargetHalf),
	}
}

// Center returns the playfield midpoint.
func (cfg Config) Center() Vec2 {
	return Vec2{X: cfg.Width / 2, Y: cfg.Height / 2}
}

// Contains reports whether p lies inside the playfield including margins.
func (cfg Config) Contains(p Vec2) bool {
	return p.X >= TargetHalf && p.X <= cfg.Width-TargetHalf &&
		p.Y >= TargetHalf && p.Y <= cfg.Height-TargetHalf
}
