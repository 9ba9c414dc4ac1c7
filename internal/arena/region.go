package arena

import "math"

const (
	// RegionSize is the edge length of one danger-zone grid cell.
	RegionSize = 80.0

	// HeadingBuckets partitions the compass into coarse direction classes
	// for evasion-pattern bookkeeping.
	HeadingBuckets = 8
)

// Region identifies one cell of the discretised playfield grid.
type Region struct {
	Col int `json:"col" yaml:"col"`
	Row int `json:"row" yaml:"row"`
}

// RegionFor maps a playfield position to its grid cell. Positions outside the
// playfield clamp to the border cells so stray samples never mint unbounded
// keys.
func (cfg Config) RegionFor(p Vec2) Region {
	cols := int(math.Ceil(cfg.Width / RegionSize))
	rows := int(math.Ceil(cfg.Height / RegionSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	col := int(p.X / RegionSize)
	row := int(p.Y / RegionSize)
	if col < 0 {
		col = 0
	} else if col >= cols {
		col = cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= rows {
		row = rows - 1
	}
	return Region{Col: col, Row: row}
}

// RegionCenter returns the midpoint of a grid cell in playfield coordinates.
func RegionCenter(r Region) Vec2 {
	return Vec2{
		X: (float64(r.Col) + 0.5) * RegionSize,
		Y: (float64(r.Row) + 0.5) * RegionSize,
	}
}

// HeadingBucket classifies a direction vector into one of HeadingBuckets
// sectors, bucket 0 centred on the positive X axis. The zero vector maps to
// bucket 0.
func HeadingBucket(v Vec2) uint8 {
	if v.X == 0 && v.Y == 0 {
		return 0
	}
	angle := math.Atan2(v.Y, v.X)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	sector := 2 * math.Pi / HeadingBuckets
	bucket := int(math.Floor((angle + sector/2) / sector))
	return uint8(bucket % HeadingBuckets)
}

// BucketHeading returns the unit vector at the centre of a heading bucket.
func BucketHeading(bucket uint8) Vec2 {
	sector := 2 * math.Pi / HeadingBuckets
	angle := float64(bucket%HeadingBuckets) * sector
	return Vec2{X: math.Cos(angle), Y: math.Sin(angle)}
}
