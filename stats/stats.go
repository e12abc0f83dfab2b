// Package stats derives summary, spatial, health and economic figures from an
// emissions grid.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/geo"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/grid"
)

const (
	kgToTons          = 0.001
	carKgPerDay       = 4.6
	treeKgPerYear     = 22.0
	healthCostPerTon  = 150.0
	kmPerDegree       = 111.0
	sectorReduction   = 0.3
	confidenceScore   = 0.85
	freshnessFormat   = "2006-01-02 15:04:05"
	notApplicableText = "N/A"
)

// Share of emissions attributed to each sector in the breakdown.
var sectorShares = []struct {
	name  string
	share float64
}{
	{"buildings", 0.45},
	{"transport", 0.30},
	{"industry", 0.15},
	{"energy", 0.10},
}

type BoroughStats struct {
	TotalEmissions    float64 `json:"total_emissions"`
	AverageEmissions  float64 `json:"average_emissions"`
	EmissionDensity   float64 `json:"emission_density"`
	PercentageOfTotal float64 `json:"percentage_of_total"`
	Cells             int     `json:"cells"`
}

type SectorStats struct {
	TotalEmissions     float64 `json:"total_emissions"`
	AverageEmissions   float64 `json:"average_emissions"`
	PercentageOfTotal  float64 `json:"percentage_of_total"`
	ReductionPotential float64 `json:"reduction_potential"`
}

// Comparison is only present when a baseline was supplied.
type Comparison struct {
	TotalReduction   float64 `json:"total_reduction"`
	PercentReduction float64 `json:"percent_reduction"`
	ImprovementScore float64 `json:"improvement_score"`
}

type Statistics struct {
	Label string `json:"label"`

	TotalEmissions   float64 `json:"total_emissions"`
	AverageEmissions float64 `json:"average_emissions"`
	MedianEmissions  float64 `json:"median_emissions"`
	MinEmissions     float64 `json:"min_emissions"`
	MaxEmissions     float64 `json:"max_emissions"`
	StdDeviation     float64 `json:"std_deviation"`

	Percentile25 float64 `json:"percentile_25"`
	Percentile75 float64 `json:"percentile_75"`
	Percentile90 float64 `json:"percentile_90"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`

	TotalAreaKm2      float64 `json:"total_area_km2"`
	EmissionsPerKm2   float64 `json:"emissions_per_km2"`
	HighEmissionZones int     `json:"high_emission_zones"`
	LowEmissionZones  int     `json:"low_emission_zones"`

	BoroughStats map[string]BoroughStats `json:"borough_stats"`
	SectorStats  map[string]SectorStats  `json:"sector_stats"`

	DataFreshness   string  `json:"data_freshness"`
	ConfidenceScore float64 `json:"confidence_score"`

	CO2EquivalentTons     float64 `json:"co2_equivalent_tons"`
	EquivalentCarsPerDay  int64   `json:"equivalent_cars_per_day"`
	EquivalentTreesNeeded int64   `json:"equivalent_trees_needed"`
	CarbonFootprintScore  string  `json:"carbon_footprint_score"`

	EstimatedPrematureDeaths float64 `json:"estimated_premature_deaths"`
	EstimatedAsthmaCases     float64 `json:"estimated_asthma_cases"`
	AirQualityIndex          string  `json:"air_quality_index"`

	EstimatedHealthCosts float64 `json:"estimated_health_costs"`
	ProductivityLoss     float64 `json:"productivity_loss"`
	PropertyValueImpact  float64 `json:"property_value_impact"`

	Comparison *Comparison `json:"comparison,omitempty"`
}

// Engine computes statistics. Borough membership comes from the atlas.
type Engine struct {
	atlas *geo.Atlas
	now   func() time.Time
}

func NewEngine(atlas *geo.Atlas) *Engine {
	return &Engine{atlas: atlas, now: time.Now}
}

// Compute summarises points. When baseline is non-empty a comparison is
// included.
func (e *Engine) Compute(points, baseline []grid.Point, label string) Statistics {
	if len(points) == 0 {
		return Empty(label)
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	total := sum(values)
	mean := total / float64(len(values))

	s := Statistics{
		Label:            label,
		TotalEmissions:   total,
		AverageEmissions: mean,
		MedianEmissions:  Percentile(sorted, 50),
		MinEmissions:     sorted[0],
		MaxEmissions:     sorted[len(sorted)-1],
		StdDeviation:     stddev(values, mean),
		Percentile25:     Percentile(sorted, 25),
		Percentile75:     Percentile(sorted, 75),
		Percentile90:     Percentile(sorted, 90),
		Percentile95:     Percentile(sorted, 95),
		Percentile99:     Percentile(sorted, 99),
		DataFreshness:    e.now().Format(freshnessFormat),
		ConfidenceScore:  confidenceScore,
	}

	e.spatial(&s, points, values)
	s.BoroughStats = e.boroughs(points, total)
	s.SectorStats = sectors(total, len(values))
	environment(&s, total)
	health(&s, total, mean)
	economic(&s, total)

	if len(baseline) > 0 {
		var baseTotal float64
		for _, p := range baseline {
			baseTotal += p.Value
		}
		c := &Comparison{TotalReduction: baseTotal - total}
		if baseTotal != 0 {
			c.PercentReduction = c.TotalReduction / baseTotal * 100
		}
		c.ImprovementScore = c.PercentReduction / 10
		s.Comparison = c
	}
	return s
}

// Empty is the zeroed result for an empty grid.
func Empty(label string) Statistics {
	return Statistics{
		Label:                label,
		BoroughStats:         map[string]BoroughStats{},
		SectorStats:          map[string]SectorStats{},
		CarbonFootprintScore: notApplicableText,
		AirQualityIndex:      notApplicableText,
	}
}

func (e *Engine) spatial(s *Statistics, points []grid.Point, values []float64) {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	var latSum float64
	for _, p := range points {
		minLat, maxLat = math.Min(minLat, p.Lat), math.Max(maxLat, p.Lat)
		minLon, maxLon = math.Min(minLon, p.Lon), math.Max(maxLon, p.Lon)
		latSum += p.Lat
	}
	meanLat := latSum / float64(len(points))
	s.TotalAreaKm2 = (maxLat - minLat) * (maxLon - minLon) * kmPerDegree * kmPerDegree * math.Cos(meanLat*math.Pi/180)
	if s.TotalAreaKm2 > 0 {
		s.EmissionsPerKm2 = s.TotalEmissions / s.TotalAreaKm2
	}

	p90 := s.Percentile90
	p10 := Percentile(sortedCopy(values), 10)
	for _, v := range values {
		if v > p90 {
			s.HighEmissionZones++
		}
		if v < p10 {
			s.LowEmissionZones++
		}
	}
}

func (e *Engine) boroughs(points []grid.Point, total float64) map[string]BoroughStats {
	out := make(map[string]BoroughStats, len(e.atlas.Boroughs))
	for _, b := range e.atlas.Boroughs {
		out[b.Name] = BoroughStats{}
	}
	for _, p := range points {
		name := e.atlas.BoroughAt(p.Lat, p.Lon)
		if name == "" {
			continue
		}
		bs := out[name]
		bs.TotalEmissions += p.Value
		bs.Cells++
		out[name] = bs
	}
	for _, b := range e.atlas.Boroughs {
		bs := out[b.Name]
		if bs.Cells > 0 {
			bs.AverageEmissions = bs.TotalEmissions / float64(bs.Cells)
		}
		if b.AreaKm2 > 0 {
			bs.EmissionDensity = bs.TotalEmissions / b.AreaKm2
		}
		if total != 0 {
			bs.PercentageOfTotal = bs.TotalEmissions / total * 100
		}
		out[b.Name] = bs
	}
	return out
}

func sectors(total float64, n int) map[string]SectorStats {
	out := make(map[string]SectorStats, len(sectorShares))
	for _, sh := range sectorShares {
		t := total * sh.share
		out[sh.name] = SectorStats{
			TotalEmissions:     t,
			AverageEmissions:   t / float64(n),
			PercentageOfTotal:  sh.share * 100,
			ReductionPotential: t * sectorReduction,
		}
	}
	return out
}

func environment(s *Statistics, totalKg float64) {
	tons := totalKg * kgToTons
	s.CO2EquivalentTons = tons
	s.EquivalentCarsPerDay = int64(totalKg / carKgPerDay)
	s.EquivalentTreesNeeded = int64(totalKg / (treeKgPerYear / 365))
	s.CarbonFootprintScore = CarbonGrade(tons)
}

// CarbonGrade rates daily tonnage from A to F.
func CarbonGrade(tons float64) string {
	switch {
	case tons < 1000:
		return "A"
	case tons < 5000:
		return "B"
	case tons < 10000:
		return "C"
	case tons < 20000:
		return "D"
	}
	return "F"
}

func health(s *Statistics, totalKg, mean float64) {
	s.EstimatedPrematureDeaths = totalKg * 0.0001
	s.EstimatedAsthmaCases = totalKg * 0.001
	s.AirQualityIndex = AirQualityLabel(mean)
}

func AirQualityLabel(mean float64) string {
	switch {
	case mean < 50:
		return "Good"
	case mean < 100:
		return "Moderate"
	case mean < 150:
		return "Unhealthy for Sensitive Groups"
	case mean < 200:
		return "Unhealthy"
	}
	return "Hazardous"
}

func economic(s *Statistics, totalKg float64) {
	s.EstimatedHealthCosts = totalKg * kgToTons * healthCostPerTon
	s.ProductivityLoss = s.EstimatedHealthCosts * 0.3
	s.PropertyValueImpact = s.EstimatedHealthCosts * 0.1
}

// Percentile interpolates linearly between closest ranks of sorted values.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

func sortedCopy(values []float64) []float64 {
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	return s
}

func sum(values []float64) float64 {
	var t float64
	for _, v := range values {
		t += v
	}
	return t
}

// stddev is the population standard deviation.
func stddev(values []float64, mean float64) float64 {
	var acc float64
	for _, v := range values {
		acc += (v - mean) * (v - mean)
	}
	return math.Sqrt(acc / float64(len(values)))
}
