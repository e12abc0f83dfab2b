package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBorough(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Manhattan", Manhattan},
		{"  brooklyn ", Brooklyn},
		{"The Bronx", Bronx},
		{"staten island", StatenIsland},
		{"Staten", StatenIsland},
		{"citywide", Citywide},
		{"Hoboken", Citywide},
		{"", Citywide},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeBorough(tt.in))
		})
	}
}

func TestInTargetArea(t *testing.T) {
	atlas := DefaultAtlas()

	// Midtown is in the Manhattan box.
	assert.True(t, atlas.InTargetArea(40.7580, -73.9855, Manhattan))
	// Box edges are inclusive.
	assert.True(t, atlas.InTargetArea(40.70, -74.02, Manhattan))
	// St. George is not.
	assert.False(t, atlas.InTargetArea(40.5795, -74.1502, Manhattan))
	assert.True(t, atlas.InTargetArea(40.5795, -74.1502, StatenIsland))

	// Citywide and unknown targets cover everything.
	assert.True(t, atlas.InTargetArea(40.5795, -74.1502, Citywide))
	assert.True(t, atlas.InTargetArea(40.5795, -74.1502, "all"))
	assert.True(t, atlas.InTargetArea(40.5795, -74.1502, "Atlantis"))
}

func TestBoroughAt(t *testing.T) {
	atlas := DefaultAtlas()

	assert.Equal(t, Manhattan, atlas.BoroughAt(40.7580, -73.9855))
	assert.Equal(t, StatenIsland, atlas.BoroughAt(40.5795, -74.1502))
	assert.Equal(t, Bronx, atlas.BoroughAt(40.85, -73.86))
	// Far north-west corner of the grid is outside every borough.
	assert.Equal(t, "", atlas.BoroughAt(40.91, -74.25))
}

func TestIsOverWater(t *testing.T) {
	assert.True(t, IsOverWater(40.75, -74.03), "Hudson")
	assert.True(t, IsOverWater(40.75, -73.95), "East River")
	assert.True(t, IsOverWater(40.60, -74.03), "Harbor")
	assert.False(t, IsOverWater(40.7580, -73.9855), "Times Square")
}

func TestZones(t *testing.T) {
	atlas := DefaultAtlas()

	manhattan := atlas.Zones("transport", Manhattan)
	require.Len(t, manhattan, 4)
	assert.Equal(t, "Broadway", manhattan[0].Name)
	assert.InDelta(t, 40.7589, manhattan[0].Lat, 1e-9)
	assert.InDelta(t, -73.9857, manhattan[0].Lon, 1e-9)

	all := atlas.Zones("transport", Citywide)
	assert.Len(t, all, 4+3+3+2+2)

	assert.Empty(t, atlas.Zones("transport", "Atlantis"))
	assert.Empty(t, atlas.Zones("aviation", Manhattan))
	assert.Len(t, atlas.Landmarks.Hotspots, 3)
}

func TestLoadBoundaries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "borough_boundaries.geojson")
	// A triangle for Manhattan, and a feature the atlas does not know.
	body := `{
  "type": "FeatureCollection",
  "features": [
    {"properties": {"boro_name": "Manhattan"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[-74.02,40.70],[-73.93,40.70],[-74.02,40.80],[-74.02,40.70]]]]}},
    {"properties": {"boro_name": "Hoboken"},
     "geometry": {"type": "Polygon", "coordinates": [[[-74.05,40.73],[-74.02,40.73],[-74.02,40.75],[-74.05,40.73]]]}}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	atlas := DefaultAtlas()
	n, err := atlas.LoadBoundaries(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m, ok := atlas.Borough(Manhattan)
	require.True(t, ok)
	assert.True(t, m.Contains(40.72, -74.00))
	// Inside the box but outside the triangle.
	assert.False(t, m.Contains(40.79, -73.94))
	// Targeting still uses the box.
	assert.True(t, atlas.InTargetArea(40.79, -73.94, Manhattan))
}

func TestLoadBoundariesMissingFile(t *testing.T) {
	atlas := DefaultAtlas()
	_, err := atlas.LoadBoundaries(filepath.Join(t.TempDir(), "nope.geojson"))
	assert.Error(t, err)
}
