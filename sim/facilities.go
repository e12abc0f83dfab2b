package sim

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/grid"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/sectors"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/stats"
)

var ErrUnknownSector = errors.New("no facility data for sector")

const facilitySource = "Reference facilities + Synthetic Grid"

// Facility is a reference facility with the baseline emission of the cell
// it sits in.
type Facility struct {
	sectors.SpatialPoint
	Value   float64 `json:"value"`
	Borough string  `json:"borough"`
}

type FacilityReport struct {
	Sector      string            `json:"sector"`
	Facilities  []Facility        `json:"facilities"`
	Statistics  stats.Statistics  `json:"statistics"`
	Formatted   map[string]string `json:"formatted_statistics"`
	DataQuality DataQuality       `json:"data_quality"`
	Metadata    Metadata          `json:"metadata"`
}

// Facilities lists the known facilities of a sector inside the grid, with
// statistics over their baseline cell values.
func (s *Service) Facilities(sector string) (FacilityReport, error) {
	sector = strings.ToLower(strings.TrimSpace(sector))
	if !slices.Contains(sectors.FacilitySectors, sector) {
		return FacilityReport{}, fmt.Errorf("%w: %q", ErrUnknownSector, sector)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.baseline == nil {
		return FacilityReport{}, ErrNotLoaded
	}

	facilities := []Facility{}
	points := []grid.Point{}
	for _, p := range s.calc.SpatialPoints(sector) {
		v, ok := s.baseline.ValueAt(p.Lat, p.Lon)
		if !ok {
			continue
		}
		facilities = append(facilities, Facility{SpatialPoint: p, Value: v, Borough: s.atlas.BoroughAt(p.Lat, p.Lon)})
		points = append(points, grid.Point{Lat: p.Lat, Lon: p.Lon, Value: v})
	}

	st := s.engine.Compute(points, nil, "facilities:"+sector)
	return FacilityReport{
		Sector:      sector,
		Facilities:  facilities,
		Statistics:  st,
		Formatted:   stats.Format(st),
		DataQuality: s.dataQuality(facilitySource, baselineConfident, len(points)),
		Metadata:    s.metadata(facilitySource),
	}, nil
}
