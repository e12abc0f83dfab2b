package geo

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed landmarks.yaml
var landmarksYAML []byte

// Landmark is a named point with a model weight. Depending on the table the
// weight is a hotspot intensity, a corridor intensity or a zone density.
type Landmark struct {
	Name   string  `yaml:"name" json:"name"`
	Lat    float64 `yaml:"lat" json:"lat"`
	Lon    float64 `yaml:"lon" json:"lon"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Landmarks holds the baseline hotspots and the per-sector zone tables,
// keyed by sector and then by borough.
type Landmarks struct {
	Hotspots []Landmark                       `yaml:"hotspots"`
	Zones    map[string]map[string][]Landmark `yaml:"zones"`
}

// ParseLandmarks decodes a landmark table.
func ParseLandmarks(b []byte) (*Landmarks, error) {
	var l Landmarks
	if err := yaml.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("failed to parse landmarks: %w", err)
	}
	return &l, nil
}

// Atlas bundles the borough geometry with the landmark tables.
type Atlas struct {
	Boroughs  []Borough
	Landmarks *Landmarks
}

// DefaultAtlas returns box boroughs and the embedded landmark tables.
func DefaultAtlas() *Atlas {
	l, err := ParseLandmarks(landmarksYAML)
	if err != nil {
		panic(err)
	}
	return &Atlas{
		Boroughs:  defaultBoroughs(),
		Landmarks: l,
	}
}

// Borough looks up a borough by canonical name.
func (a *Atlas) Borough(name string) (Borough, bool) {
	for _, b := range a.Boroughs {
		if b.Name == name {
			return b, true
		}
	}
	return Borough{}, false
}

// InTargetArea reports whether an intervention aimed at target applies to the
// point. Targeting always uses the borough box, even when a real boundary has
// been loaded. Unknown targets apply everywhere.
func (a *Atlas) InTargetArea(lat, lon float64, target string) bool {
	if IsCitywide(target) {
		return true
	}
	b, ok := a.Borough(target)
	if !ok {
		return true
	}
	return b.Box.Contains(lat, lon)
}

// BoroughAt returns the first borough containing the point, or "" when the
// point falls outside all of them. Borough boxes overlap, so declaration
// order decides.
func (a *Atlas) BoroughAt(lat, lon float64) string {
	for _, b := range a.Boroughs {
		if b.Contains(lat, lon) {
			return b.Name
		}
	}
	return ""
}

// Zones returns the landmark table for a sector and borough. Citywide
// targets get every borough's list in BoroughNames order.
func (a *Atlas) Zones(sector, borough string) []Landmark {
	table := a.Landmarks.Zones[strings.ToLower(sector)]
	if table == nil {
		return nil
	}
	if IsCitywide(borough) {
		var all []Landmark
		for _, name := range BoroughNames {
			all = append(all, table[name]...)
		}
		return all
	}
	return table[borough]
}
