package arena

import (
	"math"
	"testing"
)

func TestRegionForClampsToGrid(t *testing.T) {
	cfg := DefaultConfig()

	inside := cfg.RegionFor(Vec2{X: 100, Y: 100})
	if inside.Col != 1 || inside.Row != 1 {
		t.Fatalf("expected cell (1,1), got (%d,%d)", inside.Col, inside.Row)
	}

	negative := cfg.RegionFor(Vec2{X: -50, Y: -50})
	if negative.Col != 0 || negative.Row != 0 {
		t.Fatalf("expected clamp to (0,0), got (%d,%d)", negative.Col, negative.Row)
	}

	cols := int(math.Ceil(cfg.Width / RegionSize))
	rows := int(math.Ceil(cfg.Height / RegionSize))
	far := cfg.RegionFor(Vec2{X: cfg.Width + 500, Y: cfg.Height + 500})
	if far.Col != cols-1 || far.Row != rows-1 {
		t.Fatalf("expected clamp to (%d,%d), got (%d,%d)", cols-1, rows-1, far.Col, far.Row)
	}
}

func TestHeadingBucketSectors(t *testing.T) {
	cases := []struct {
		name   string
		v      Vec2
		bucket uint8
	}{
		{"east", Vec2{X: 1, Y: 0}, 0},
		{"north-east", Vec2{X: 1, Y: 1}, 1},
		{"north", Vec2{X: 0, Y: 1}, 2},
		{"west", Vec2{X: -1, Y: 0}, 4},
		{"south", Vec2{X: 0, Y: -1}, 6},
		{"zero", Vec2{}, 0},
	}
	for _, tc := range cases {
		if got := HeadingBucket(tc.v); got != tc.bucket {
			t.Errorf("%s: expected bucket %d, got %d", tc.name, tc.bucket, got)
		}
	}
}

func TestBucketHeadingRoundTrip(t *testing.T) {
	for bucket := uint8(0); bucket < HeadingBuckets; bucket++ {
		dir := BucketHeading(bucket)
		if got := HeadingBucket(dir); got != bucket {
			t.Errorf("bucket %d round-tripped to %d", bucket, got)
		}
	}
}

func TestClampPoint(t *testing.T) {
	cfg := DefaultConfig()
	p := cfg.ClampPoint(Vec2{X: -100, Y: 900})
	if p.X != TargetHalf || p.Y != cfg.Height-TargetHalf {
		t.Fatalf("unexpected clamp result %+v", p)
	}
	if !cfg.Contains(p) {
		t.Fatalf("clamped point should be inside the playfield")
	}
}
