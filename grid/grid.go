// Package grid builds the synthetic emissions grid and applies interventions
// to it.
package grid

import (
	"github.com/stuartleeks/nyc-co2-sim/sim-api/geo"
)

const DefaultResolution = 50

// Grid holds emission values in kg CO₂/km²/day. Values[i][j] is the cell at
// Lats[i] (south to north) and Lons[j] (west to east).
type Grid struct {
	Bounds geo.Bounds  `json:"bounds"`
	Lats   []float64   `json:"lats"`
	Lons   []float64   `json:"lons"`
	Values [][]float64 `json:"values"`
}

// Point is one grid cell in flattened form.
type Point struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Value float64 `json:"value"`
}

// New returns a zeroed res×res grid over bounds.
func New(bounds geo.Bounds, res int) *Grid {
	if res < 2 {
		res = 2
	}
	g := &Grid{
		Bounds: bounds,
		Lats:   linspace(bounds.South, bounds.North, res),
		Lons:   linspace(bounds.West, bounds.East, res),
		Values: make([][]float64, res),
	}
	for i := range g.Values {
		g.Values[i] = make([]float64, res)
	}
	return g
}

func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// Points flattens the grid latitude-major.
func (g *Grid) Points() []Point {
	points := make([]Point, 0, len(g.Lats)*len(g.Lons))
	for i, lat := range g.Lats {
		for j, lon := range g.Lons {
			points = append(points, Point{Lat: lat, Lon: lon, Value: g.Values[i][j]})
		}
	}
	return points
}

func (g *Grid) Clone() *Grid {
	c := &Grid{
		Bounds: g.Bounds,
		Lats:   append([]float64(nil), g.Lats...),
		Lons:   append([]float64(nil), g.Lons...),
		Values: make([][]float64, len(g.Values)),
	}
	for i, row := range g.Values {
		c.Values[i] = append([]float64(nil), row...)
	}
	return c
}

func (g *Grid) Total() float64 {
	var total float64
	for _, row := range g.Values {
		for _, v := range row {
			total += v
		}
	}
	return total
}

func (g *Grid) Max() float64 {
	var m float64
	for _, row := range g.Values {
		for _, v := range row {
			if v > m {
				m = v
			}
		}
	}
	return m
}

// Resolution is the number of cells per side.
func (g *Grid) Resolution() int {
	return len(g.Lats)
}
