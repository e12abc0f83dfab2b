package geo

import "math"

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Bounds is an axis-aligned lat/lon box. Membership is inclusive on all edges.
type Bounds struct {
	South float64 `json:"south"`
	North float64 `json:"north"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// NYCBounds covers the five boroughs and is the extent of every emissions grid.
var NYCBounds = Bounds{
	South: 40.49,
	North: 40.92,
	West:  -74.26,
	East:  -73.70,
}

func (b Bounds) Contains(lat, lon float64) bool {
	return b.South <= lat && lat <= b.North && b.West <= lon && lon <= b.East
}

// Distance is the planar distance in degrees. Every falloff radius in the
// model is expressed in degrees, so no geodesic correction is applied.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Sqrt((lat1-lat2)*(lat1-lat2) + (lon1-lon2)*(lon1-lon2))
}

// IsOverWater approximates the Hudson, the East River and the Upper Bay.
func IsOverWater(lat, lon float64) bool {
	// Hudson River
	if lon < -74.02 && 40.70 < lat && lat < 40.88 {
		return true
	}
	// East River
	if -73.98 < lon && lon < -73.93 && 40.70 < lat && lat < 40.80 {
		return true
	}
	// New York Harbor
	if lat < 40.62 && -74.05 < lon && lon < -74.00 {
		return true
	}
	return false
}

// IsNearWater is used for port and shipping interventions.
func IsNearWater(lat, lon float64) bool {
	return IsOverWater(lat, lon)
}
