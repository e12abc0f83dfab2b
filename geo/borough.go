package geo

import (
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

const (
	Manhattan    = "Manhattan"
	Brooklyn     = "Brooklyn"
	Queens       = "Queens"
	Bronx        = "Bronx"
	StatenIsland = "Staten Island"
	Citywide     = "citywide"
)

// BoroughNames lists the boroughs in the order used for lookups and for
// concatenating citywide landmark tables.
var BoroughNames = []string{Manhattan, Brooklyn, Queens, Bronx, StatenIsland}

// Borough is one of the five NYC boroughs. Box is the coarse extent used by
// the emission model; the polygon starts as that box and may be replaced by a
// real boundary loaded from GeoJSON.
type Borough struct {
	Name      string
	Center    Point
	Intensity float64
	AreaKm2   float64
	Box       Bounds

	polygon *geom.Polygon
	isBox   bool
}

func newBorough(name string, center Point, intensity, areaKm2 float64, box Bounds) Borough {
	return Borough{
		Name:      name,
		Center:    center,
		Intensity: intensity,
		AreaKm2:   areaKm2,
		Box:       box,
		polygon:   boxPolygon(box),
		isBox:     true,
	}
}

func boxPolygon(b Bounds) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{b.West, b.South},
		{b.East, b.South},
		{b.East, b.North},
		{b.West, b.North},
		{b.West, b.South},
	}})
}

// Contains reports whether the point lies within the borough. Box boroughs
// include their edges; loaded polygons use a ring test.
func (b Borough) Contains(lat, lon float64) bool {
	c := geom.Coord{lon, lat}
	if !b.polygon.Bounds().OverlapsPoint(geom.XY, c) {
		return false
	}
	if b.isBox {
		return true
	}
	for i := 0; i < b.polygon.NumLinearRings(); i++ {
		inRing := xy.IsPointInRing(geom.XY, c, b.polygon.LinearRing(i).FlatCoords())
		if i == 0 && !inRing {
			return false
		}
		if i > 0 && inRing {
			// inside a hole
			return false
		}
	}
	return true
}

// Polygon returns the borough boundary.
func (b Borough) Polygon() *geom.Polygon {
	return b.polygon
}

func defaultBoroughs() []Borough {
	return []Borough{
		newBorough(Manhattan, Point{40.7831, -73.9712}, 1.5, 59.1, Bounds{40.70, 40.80, -74.02, -73.93}),
		newBorough(Brooklyn, Point{40.6782, -73.9442}, 1.2, 251.0, Bounds{40.57, 40.70, -74.05, -73.82}),
		newBorough(Queens, Point{40.7282, -73.7949}, 1.0, 461.0, Bounds{40.54, 40.80, -74.05, -73.70}),
		newBorough(Bronx, Point{40.8448, -73.8648}, 1.1, 149.0, Bounds{40.78, 40.92, -73.95, -73.77}),
		newBorough(StatenIsland, Point{40.5795, -74.1502}, 0.7, 151.5, Bounds{40.49, 40.65, -74.26, -74.05}),
	}
}

// NormalizeBorough maps free text onto a canonical borough name. Anything it
// does not recognise is treated as citywide.
func NormalizeBorough(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "the ")
	switch v {
	case "manhattan":
		return Manhattan
	case "brooklyn":
		return Brooklyn
	case "queens":
		return Queens
	case "bronx":
		return Bronx
	case "staten island", "staten", "staten-island":
		return StatenIsland
	}
	return Citywide
}

// IsCitywide reports whether a target covers every cell.
func IsCitywide(target string) bool {
	t := strings.ToLower(strings.TrimSpace(target))
	return t == Citywide || t == "all" || t == "nyc" || t == ""
}
