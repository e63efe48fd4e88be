package geo

import (
	"fmt"
	"math"

	apperrors "github.com/civicmaps/civicroute/internal/errors"
)

// earthRadiusMeters is the mean Earth radius used for great-circle math.
const earthRadiusMeters = 6371000.0

// Bounds represents a geographic bounding box (WGS 84).
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// Validate checks the box for NaN/Inf coordinates, out-of-range values
// and inverted extents. Returns ErrInvalidBounds on any violation.
func (b Bounds) Validate() error {
	for _, v := range []float64{b.MinLat, b.MaxLat, b.MinLng, b.MaxLng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.ErrInvalidBounds
		}
	}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLng < -180 || b.MaxLng > 180 {
		return apperrors.ErrInvalidBounds
	}
	if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
		return apperrors.ErrInvalidBounds
	}
	return nil
}

// Contains reports whether the point lies inside the box, inclusive of
// the boundary.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Around returns a square box of the given radius (in degrees) centered
// on a point. Used for endpoint snapping and penalty application.
func Around(lat, lng, radiusDeg float64) Bounds {
	return Bounds{
		MinLat: lat - radiusDeg,
		MaxLat: lat + radiusDeg,
		MinLng: lng - radiusDeg,
		MaxLng: lng + radiusDeg,
	}
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Cell identifies one fixed-size grid partition of lat/lng space. Cells
// are ephemeral cache partitions derived from coordinates, not domain
// entities.
type Cell struct {
	X int // floor(lat / cellSize)
	Y int // floor(lng / cellSize)
}

// CellAt returns the cell owning the given point.
func CellAt(lat, lng, cellSize float64) Cell {
	return Cell{
		X: int(math.Floor(lat / cellSize)),
		Y: int(math.Floor(lng / cellSize)),
	}
}

// Key returns the deterministic cache-key fragment for the cell.
func (c Cell) Key() string {
	return fmt.Sprintf("%d:%d", c.X, c.Y)
}

// Bounds returns the coordinate range covered by the cell.
func (c Cell) Bounds(cellSize float64) Bounds {
	return Bounds{
		MinLat: float64(c.X) * cellSize,
		MaxLat: float64(c.X+1) * cellSize,
		MinLng: float64(c.Y) * cellSize,
		MaxLng: float64(c.Y+1) * cellSize,
	}
}

// CoverCells returns every cell overlapping the box, including cells that
// only partially overlap. Cell coverage is necessary but not sufficient
// for membership: callers still filter results against the exact box.
func CoverCells(b Bounds, cellSize float64) []Cell {
	minX := int(math.Floor(b.MinLat / cellSize))
	maxX := int(math.Floor(b.MaxLat / cellSize))
	minY := int(math.Floor(b.MinLng / cellSize))
	maxY := int(math.Floor(b.MaxLng / cellSize))

	cells := make([]Cell, 0, (maxX-minX+1)*(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			cells = append(cells, Cell{X: x, Y: y})
		}
	}
	return cells
}

// CellCount returns how many cells CoverCells would produce without
// materializing them, so oversized queries can short-circuit.
func CellCount(b Bounds, cellSize float64) int {
	minX := int(math.Floor(b.MinLat / cellSize))
	maxX := int(math.Floor(b.MaxLat / cellSize))
	minY := int(math.Floor(b.MinLng / cellSize))
	maxY := int(math.Floor(b.MaxLng / cellSize))
	return (maxX - minX + 1) * (maxY - minY + 1)
}
