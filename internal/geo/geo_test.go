package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/civicmaps/civicroute/internal/errors"
)

func TestBoundsValidate(t *testing.T) {
	tests := []struct {
		name    string
		bounds  Bounds
		wantErr bool
	}{
		{"valid", Bounds{MinLat: 40.0, MaxLat: 40.1, MinLng: -74.1, MaxLng: -74.0}, false},
		{"point box", Bounds{MinLat: 40.0, MaxLat: 40.0, MinLng: -74.0, MaxLng: -74.0}, false},
		{"inverted lat", Bounds{MinLat: 40.1, MaxLat: 40.0, MinLng: -74.1, MaxLng: -74.0}, true},
		{"inverted lng", Bounds{MinLat: 40.0, MaxLat: 40.1, MinLng: -74.0, MaxLng: -74.1}, true},
		{"lat out of range", Bounds{MinLat: -91, MaxLat: 40, MinLng: 0, MaxLng: 1}, true},
		{"lng out of range", Bounds{MinLat: 0, MaxLat: 1, MinLng: 0, MaxLng: 181}, true},
		{"nan", Bounds{MinLat: math.NaN(), MaxLat: 40, MinLng: 0, MaxLng: 1}, true},
		{"inf", Bounds{MinLat: 0, MaxLat: math.Inf(1), MinLng: 0, MaxLng: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bounds.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidBounds)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBoundsContains(t *testing.T) {
	b := Bounds{MinLat: 10, MaxLat: 20, MinLng: 30, MaxLng: 40}

	assert.True(t, b.Contains(15, 35))
	assert.True(t, b.Contains(10, 30), "boundary is inclusive")
	assert.True(t, b.Contains(20, 40), "boundary is inclusive")
	assert.False(t, b.Contains(9.999, 35))
	assert.False(t, b.Contains(15, 40.001))
}

func TestAround(t *testing.T) {
	b := Around(40.0, -74.0, 0.01)

	assert.InDelta(t, 39.99, b.MinLat, 1e-9)
	assert.InDelta(t, 40.01, b.MaxLat, 1e-9)
	assert.InDelta(t, -74.01, b.MinLng, 1e-9)
	assert.InDelta(t, -73.99, b.MaxLng, 1e-9)
}

func TestHaversine(t *testing.T) {
	// One degree of latitude is ~111.2 km everywhere.
	d := Haversine(0, 0, 1, 0)
	assert.InDelta(t, 111195, d, 100)

	// NYC to LA, known to be ~3936 km.
	d = Haversine(40.7128, -74.0060, 34.0522, -118.2437)
	assert.InDelta(t, 3936000, d, 10000)

	assert.Zero(t, Haversine(40.0, -74.0, 40.0, -74.0))

	// Symmetry.
	assert.InDelta(t,
		Haversine(40.7, -74.0, 40.8, -73.9),
		Haversine(40.8, -73.9, 40.7, -74.0), 1e-9)
}

func TestCellAt(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		want     Cell
	}{
		{"positive", 40.7128, -74.0060, Cell{X: 4071, Y: -7401}},
		{"origin", 0, 0, Cell{X: 0, Y: 0}},
		{"negative floors down", -0.001, -0.001, Cell{X: -1, Y: -1}},
		{"exact boundary", 40.71, -74.01, Cell{X: 4071, Y: -7401}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CellAt(tt.lat, tt.lng, 0.01))
		})
	}
}

func TestCellKeyDeterministic(t *testing.T) {
	c := CellAt(40.7128, -74.0060, 0.01)
	assert.Equal(t, "4071:-7401", c.Key())
	assert.Equal(t, c.Key(), CellAt(40.7128, -74.0060, 0.01).Key())
}

func TestCellBoundsRoundTrip(t *testing.T) {
	cellSize := 0.01
	c := CellAt(40.7128, -74.0060, cellSize)
	b := c.Bounds(cellSize)

	assert.True(t, b.Contains(40.7128, -74.0060), "cell bounds must contain the originating point")
	assert.InDelta(t, cellSize, b.MaxLat-b.MinLat, 1e-9)
	assert.InDelta(t, cellSize, b.MaxLng-b.MinLng, 1e-9)
}

func TestCoverCells(t *testing.T) {
	// A box spanning 2 cells in lat and 3 in lng.
	b := Bounds{MinLat: 0.005, MaxLat: 0.015, MinLng: 0.005, MaxLng: 0.025}

	cells := CoverCells(b, 0.01)
	require.Len(t, cells, 6)
	assert.Equal(t, len(cells), CellCount(b, 0.01))

	// Every covered point maps back into the returned set.
	owning := CellAt(0.012, 0.021, 0.01)
	assert.Contains(t, cells, owning)
}

func TestCellCountTinyBox(t *testing.T) {
	b := Bounds{MinLat: 40.001, MaxLat: 40.002, MinLng: -74.002, MaxLng: -74.001}
	assert.Equal(t, 1, CellCount(b, 0.01))
}

func TestCellCountLargeBox(t *testing.T) {
	// A whole-city box blows well past any reasonable per-query cap.
	b := Bounds{MinLat: 40.0, MaxLat: 41.0, MinLng: -74.5, MaxLng: -73.5}
	assert.Greater(t, CellCount(b, 0.01), 10000)
}
