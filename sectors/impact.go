package sectors

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/data"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/geo"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/intervention"
)

const (
	hoursPerYear           = 8760
	avgMilesPerVehicle     = 8000
	buildingsCitywide      = 30_000_000
	industryCitywide       = 5_000_000
	genericCitywide        = 50_000_000
	streetTrees            = 683788
	treeTonsPerYear        = 20.0 / 1000
	defaultNaturePercent   = 20
	buildingSampleCacheTTL = 10 * time.Minute
)

// Share of building emissions by borough, used without LL84 data.
var buildingBoroughShare = map[string]float64{
	geo.Manhattan:    0.45,
	geo.Brooklyn:     0.25,
	geo.Queens:       0.18,
	geo.Bronx:        0.08,
	geo.StatenIsland: 0.04,
}

// Impact is the annual effect of an intervention in metric tons of CO₂.
type Impact struct {
	Sector              string             `json:"sector"`
	BaselineTons        float64            `json:"baseline_tons_co2"`
	ReducedTons         float64            `json:"reduced_tons_co2"`
	AnnualSavingsTons   float64            `json:"annual_savings_tons_co2"`
	PercentageReduction float64            `json:"percentage_reduction"`
	Direction           string             `json:"direction"`
	IsIncrease          bool               `json:"is_increase"`
	Extra               map[string]float64 `json:"extra,omitempty"`
}

// Calculator turns interventions into annual tonnage.
type Calculator struct {
	ref          *Reference
	buildingsCSV string
	samples      *data.Cache[string, BuildingSample]
	logger       *zap.Logger
}

func NewCalculator(ref *Reference, buildingsCSV string, logger *zap.Logger) *Calculator {
	return &Calculator{
		ref:          ref,
		buildingsCSV: buildingsCSV,
		samples:      data.NewCache[string, BuildingSample](buildingSampleCacheTTL),
		logger:       logger,
	}
}

func (c *Calculator) Reference() *Reference {
	return c.ref
}

// Impact dispatches on the intervention's sector.
func (c *Calculator) Impact(iv intervention.Intervention) Impact {
	var imp Impact
	switch iv.Sector {
	case intervention.SectorAviation:
		imp = scale(c.aviationBaseline(iv), iv)
	case intervention.SectorBuildings:
		imp = c.buildings(iv)
	case intervention.SectorTransport:
		imp = scale(c.transportBaseline(iv), iv)
	case intervention.SectorEnergy:
		mwh := c.ref.Energy.NYCPowerGrid.AverageDemandMW * hoursPerYear
		imp = scale(mwh*c.ref.Energy.EmissionsFactors.GridAverageKgCO2PerMWh/1000, iv)
		imp.Extra = map[string]float64{"annual_mwh": mwh}
	case intervention.SectorIndustry:
		imp = scale(c.industryBaseline(iv), iv)
	case intervention.SectorNature:
		imp = nature(iv)
	default:
		imp = scale(genericCitywide, iv)
	}
	imp.Sector = iv.Sector
	return imp
}

// scale applies the signed reduction to a baseline. Negative reductions
// raise emissions.
func scale(baseline float64, iv intervention.Intervention) Impact {
	reduced := baseline * (1 - iv.ReductionPercent/100)
	direction := iv.Direction
	if direction == "" {
		direction = intervention.DirectionDecrease
		if iv.ReductionPercent < 0 {
			direction = intervention.DirectionIncrease
		}
	}
	return Impact{
		BaselineTons:        baseline,
		ReducedTons:         reduced,
		AnnualSavingsTons:   baseline - reduced,
		PercentageReduction: math.Abs(iv.ReductionPercent),
		Direction:           direction,
		IsIncrease:          direction == intervention.DirectionIncrease,
	}
}

// TargetAirports picks the airports an aviation intervention covers.
func TargetAirports(iv intervention.Intervention) []string {
	loc := strings.ToLower(iv.SpecificLocation)
	text := iv.Description + " " + iv.Prompt
	switch {
	case strings.Contains(loc, "jfk") || intervention.ContainsKeyword(text, "jfk"):
		return []string{"JFK"}
	case strings.Contains(loc, "laguardia") || intervention.ContainsKeyword(text, "laguardia", "lga"):
		return []string{"LaGuardia"}
	}
	return []string{"JFK", "LaGuardia"}
}

func (c *Calculator) aviationBaseline(iv intervention.Intervention) float64 {
	lto := c.ref.Aviation.AircraftEmissions.LandingTakeoffCycle
	var total float64
	for _, airport := range TargetAirports(iv) {
		ops, ok := c.ref.Aviation.AirportOperations[airport]
		if !ok {
			continue
		}
		total += ops.AnnualOperations * ops.NarrowBodyPercentage * lto.NarrowBodyKgCO2 / 1000
		total += ops.AnnualOperations * ops.WideBodyPercentage * lto.WideBodyKgCO2 / 1000
		total += ops.AnnualOperations * ops.RegionalPercentage * lto.RegionalJetKgCO2 / 1000
	}
	return total
}

func (c *Calculator) transportBaseline(iv intervention.Intervention) float64 {
	t := c.ref.Transport
	switch iv.Subsector {
	case "taxis":
		fleet := t.TaxiFleet.YellowCabs + t.TaxiFleet.ForHireVehicles
		km := t.TaxiFleet.AverageDailyMiles * 365 * MilesToKm
		return fleet * km * GasolineKgPerKm / 1000
	case "bus":
		km := t.BusFleet.AverageDailyMilesPerBus * 365 * MilesToKm
		return t.BusFleet.MTABuses * km * DieselKgPerKm / 1000
	}
	fuel := t.NYCVehicleRegistrations.ByFuelType
	km := avgMilesPerVehicle * MilesToKm
	return (fuel.Gasoline*GasolineKgPerKm +
		fuel.Diesel*DieselKgPerKm +
		fuel.Hybrid*HybridKgPerKm +
		fuel.Electric*ElectricKgPerKm) * km / 1000
}

func (c *Calculator) industryBaseline(iv intervention.Intervention) float64 {
	if iv.Subsector != "waste" {
		return industryCitywide
	}
	w := c.ref.Waste
	return w.WasteGeneration.AnnualTons.Total * w.DisposalMethods.LandfillPercentage * w.Emissions.LandfillMethaneTonsPerTonWaste
}

func (c *Calculator) buildings(iv intervention.Intervention) Impact {
	sample, err := c.buildingSample(iv.Borough)
	if err != nil {
		c.logger.Debug("building sample unavailable, using estimate", zap.Error(err))
	}
	if sample != nil && sample.BaselineTons > 0 {
		imp := scale(sample.BaselineTons, iv)
		imp.Extra = map[string]float64{"buildings_analyzed": float64(sample.Rows)}
		return imp
	}

	baseline := float64(buildingsCitywide)
	if share, ok := buildingBoroughShare[iv.Borough]; ok {
		baseline *= share
	}
	return scale(baseline, iv)
}

func (c *Calculator) buildingSample(borough string) (*BuildingSample, error) {
	if c.buildingsCSV == "" {
		return nil, nil
	}
	if s := c.samples.Get(borough); s != nil {
		return s, nil
	}
	s, err := ReadBuildingSample(c.buildingsCSV, borough, BuildingSampleRows)
	if err != nil {
		return nil, err
	}
	c.samples.Set(borough, s)
	return s, nil
}

func nature(iv intervention.Intervention) Impact {
	magnitude := math.Abs(iv.ReductionPercent)
	if magnitude == 0 {
		magnitude = defaultNaturePercent
	}
	trees := streetTrees * magnitude / 100
	sequestered := trees * treeTonsPerYear
	return Impact{
		BaselineTons:        0,
		ReducedTons:         -sequestered,
		AnnualSavingsTons:   sequestered,
		PercentageReduction: magnitude,
		Direction:           intervention.DirectionDecrease,
		Extra:               map[string]float64{"trees_planted": trees},
	}
}

// Maritime is a facility category with no grid sector of its own.
const Maritime = "maritime"

// FacilitySectors lists the sectors with known facility locations.
var FacilitySectors = []string{
	intervention.SectorAviation,
	intervention.SectorEnergy,
	intervention.SectorIndustry,
	Maritime,
}

// SpatialPoint is a facility location with a display intensity. Source names
// the reference file it came from.
type SpatialPoint struct {
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Intensity float64 `json:"intensity"`
	Source    string  `json:"source"`
}

// SpatialPoints lists the known facilities for a sector.
func (c *Calculator) SpatialPoints(sector string) []SpatialPoint {
	var out []SpatialPoint
	addFacilities := func(fs []Facility, intensity float64, source string) {
		for _, f := range fs {
			if f.Location == nil {
				continue
			}
			out = append(out, SpatialPoint{Name: f.Name, Lat: f.Location.Lat, Lon: f.Location.Lon, Intensity: intensity, Source: source})
		}
	}

	switch sector {
	case intervention.SectorAviation:
		for _, code := range sortedKeys(c.ref.Airports.AirportCodes) {
			a := c.ref.Airports.AirportCodes[code]
			out = append(out, SpatialPoint{Name: code, Lat: a.Lat, Lon: a.Lon, Intensity: 1.0, Source: airportFile})
		}
	case intervention.SectorEnergy:
		addFacilities(c.ref.Energy.MajorSubstations, 0.8, energyFile)
	case intervention.SectorIndustry:
		addFacilities(c.ref.Industry.PowerPlants, 0.7, industryFile)
		addFacilities(c.ref.Industry.WasteFacilities, 0.7, industryFile)
		addFacilities(c.ref.Industry.Manufacturing, 0.7, industryFile)
	case Maritime:
		for _, name := range sortedKeys(c.ref.Maritime.Facilities) {
			f := c.ref.Maritime.Facilities[name]
			if f.Location == nil {
				continue
			}
			out = append(out, SpatialPoint{Name: name, Lat: f.Location.Lat, Lon: f.Location.Lon, Intensity: 0.9, Source: maritimeFile})
		}
	}
	return out
}
