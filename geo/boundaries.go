package geo

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/twpayne/go-geom"
)

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

var boroughNameProperties = []string{"boro_name", "BoroName", "borough", "name"}

// LoadBoundaries replaces the box polygons of any borough found in a GeoJSON
// FeatureCollection. Boroughs missing from the file keep their box. It
// returns the number of boroughs updated.
func (a *Atlas) LoadBoundaries(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var fc featureCollection
	if err := json.Unmarshal(b, &fc); err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	updated := 0
	for _, f := range fc.Features {
		name := ""
		for _, key := range boroughNameProperties {
			if v, ok := f.Properties[key].(string); ok && v != "" {
				name = v
				break
			}
		}
		canonical := NormalizeBorough(name)
		if canonical == Citywide {
			continue
		}
		polygon, err := polygonFromGeoJSON(f.Geometry)
		if err != nil {
			return updated, fmt.Errorf("borough %s: %w", canonical, err)
		}
		for i := range a.Boroughs {
			if a.Boroughs[i].Name == canonical {
				a.Boroughs[i].polygon = polygon
				a.Boroughs[i].isBox = false
				updated++
			}
		}
	}
	return updated, nil
}

// polygonFromGeoJSON accepts a Polygon or a MultiPolygon geometry. For a
// MultiPolygon only the first polygon is kept.
func polygonFromGeoJSON(raw json.RawMessage) (*geom.Polygon, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("error parsing geometry: %w", err)
	}

	var rings [][][]float64
	switch head.Type {
	case "Polygon":
		var g struct {
			Coordinates [][][]float64 `json:"coordinates"`
		}
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("error parsing polygon: %w", err)
		}
		rings = g.Coordinates
	case "MultiPolygon":
		var g struct {
			Coordinates [][][][]float64 `json:"coordinates"`
		}
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("error parsing multipolygon: %w", err)
		}
		if len(g.Coordinates) == 0 {
			return nil, fmt.Errorf("empty MultiPolygon coordinates")
		}
		rings = g.Coordinates[0]
	default:
		return nil, fmt.Errorf("unsupported geometry type: %s", head.Type)
	}
	if len(rings) == 0 || len(rings[0]) < 4 {
		return nil, fmt.Errorf("empty polygon coordinates")
	}

	coords := make([][]geom.Coord, len(rings))
	for i, ring := range rings {
		coords[i] = make([]geom.Coord, len(ring))
		for j, c := range ring {
			if len(c) < 2 {
				return nil, fmt.Errorf("invalid coordinate in ring %d", i)
			}
			coords[i][j] = geom.Coord{c[0], c[1]}
		}
	}
	polygon, err := geom.NewPolygon(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, fmt.Errorf("error creating polygon: %w", err)
	}
	return polygon, nil
}
