package grid

import (
	"math"
	"math/rand"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/geo"
)

const (
	// DefaultSeed makes the baseline reproducible across restarts.
	DefaultSeed = 42

	baseEmission   = 20.0
	baselineNoise  = 5.0
	stationProxy   = 2.5
	stationWindow  = 2
	stationKeep    = 0.7
	stationBlend   = 0.3
	hotspotRadius  = 0.05
	boroughRadius  = 0.1
	waterReduction = 0.1
)

// Station is a ground measurement blended into the baseline.
type Station struct {
	Lat  float64
	Lon  float64
	PM25 float64
}

// NewBaseline synthesises the city's emission field from borough centres and
// hotspots, then adds seeded Gaussian noise.
func NewBaseline(atlas *geo.Atlas, res int, seed int64) *Grid {
	g := New(geo.NYCBounds, res)
	rng := rand.New(rand.NewSource(seed))
	for i, lat := range g.Lats {
		for j, lon := range g.Lons {
			v := emissionAt(atlas, lat, lon) + rng.NormFloat64()*baselineNoise
			g.Values[i][j] = math.Max(0, v)
		}
	}
	return g
}

func emissionAt(atlas *geo.Atlas, lat, lon float64) float64 {
	var intensity float64
	for _, b := range atlas.Boroughs {
		d := geo.Distance(lat, lon, b.Center.Lat, b.Center.Lon)
		if d < boroughRadius {
			intensity += b.Intensity * 50
		} else {
			intensity += b.Intensity * 30 / (d * 100)
		}
	}
	for _, h := range atlas.Landmarks.Hotspots {
		d := geo.Distance(lat, lon, h.Lat, h.Lon)
		if d < hotspotRadius {
			intensity += h.Weight / (d + 0.01)
		}
	}
	if geo.IsOverWater(lat, lon) {
		intensity *= waterReduction
	}
	return baseEmission + intensity
}

// BlendStations nudges the cells around each station towards a PM2.5 derived
// proxy. Stations outside the grid are ignored.
func (g *Grid) BlendStations(stations []Station) int {
	blended := 0
	n := len(g.Lats)
	m := len(g.Lons)
	for _, s := range stations {
		if !g.Bounds.Contains(s.Lat, s.Lon) {
			continue
		}
		proxy := s.PM25 * stationProxy
		li := nearest(g.Lats, s.Lat)
		lj := nearest(g.Lons, s.Lon)
		for i := max(0, li-stationWindow); i < min(n, li+stationWindow+1); i++ {
			for j := max(0, lj-stationWindow); j < min(m, lj+stationWindow+1); j++ {
				di := float64(i - li)
				dj := float64(j - lj)
				weight := math.Exp(-(di*di + dj*dj) / 2)
				g.Values[i][j] = g.Values[i][j]*stationKeep + proxy*stationBlend*weight
			}
		}
		blended++
	}
	return blended
}

// ValueAt returns the value of the cell nearest to lat, lon. ok is false
// outside the grid.
func (g *Grid) ValueAt(lat, lon float64) (value float64, ok bool) {
	if !g.Bounds.Contains(lat, lon) {
		return 0, false
	}
	return g.Values[nearest(g.Lats, lat)][nearest(g.Lons, lon)], true
}

func nearest(axis []float64, v float64) int {
	best := 0
	bestD := math.Inf(1)
	for i, a := range axis {
		if d := math.Abs(a - v); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
