package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/geo"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/grid"
)

func newTestEngine() *Engine {
	e := NewEngine(geo.DefaultAtlas())
	e.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return e
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.Equal(t, 1.0, Percentile(sorted, 0))
	assert.Equal(t, 4.0, Percentile(sorted, 100))
	assert.InDelta(t, 2.5, Percentile(sorted, 50), 1e-9)
	assert.InDelta(t, 1.75, Percentile(sorted, 25), 1e-9)
	assert.Equal(t, 0.0, Percentile(nil, 50))
}

func TestComputeBasic(t *testing.T) {
	points := []grid.Point{
		{Lat: 40.7128, Lon: -74.0060, Value: 100},
		{Lat: 40.7589, Lon: -73.9857, Value: 250},
		{Lat: 40.6782, Lon: -73.9442, Value: 180},
		{Lat: 40.5795, Lon: -74.1502, Value: 70},
	}
	s := newTestEngine().Compute(points, nil, "baseline")

	assert.Equal(t, "baseline", s.Label)
	assert.InDelta(t, 600, s.TotalEmissions, 1e-9)
	assert.InDelta(t, 150, s.AverageEmissions, 1e-9)
	assert.InDelta(t, 140, s.MedianEmissions, 1e-9)
	assert.Equal(t, 70.0, s.MinEmissions)
	assert.Equal(t, 250.0, s.MaxEmissions)
	assert.InDelta(t, 70.36, s.StdDeviation, 0.01)
	assert.Equal(t, "2024-05-06 07:08:09", s.DataFreshness)
	assert.Nil(t, s.Comparison)

	assert.Equal(t, 1, s.HighEmissionZones)
	assert.Equal(t, 1, s.LowEmissionZones)
	assert.Greater(t, s.TotalAreaKm2, 0.0)

	assert.InDelta(t, 350, s.BoroughStats[geo.Manhattan].TotalEmissions, 1e-9)
	assert.Equal(t, 2, s.BoroughStats[geo.Manhattan].Cells)
	assert.InDelta(t, 70, s.BoroughStats[geo.StatenIsland].TotalEmissions, 1e-9)
	assert.InDelta(t, 180, s.BoroughStats[geo.Brooklyn].TotalEmissions, 1e-9)
	assert.InDelta(t, 350.0/59.1, s.BoroughStats[geo.Manhattan].EmissionDensity, 1e-9)

	require.Len(t, s.SectorStats, 4)
	assert.InDelta(t, 45, s.SectorStats["buildings"].PercentageOfTotal, 1e-9)
	assert.InDelta(t, 600*0.45*0.3, s.SectorStats["buildings"].ReductionPotential, 1e-9)

	assert.InDelta(t, 0.6, s.CO2EquivalentTons, 1e-9)
	assert.Equal(t, int64(130), s.EquivalentCarsPerDay)
	assert.Equal(t, "A", s.CarbonFootprintScore)
	assert.Equal(t, "Unhealthy", s.AirQualityIndex)
	assert.InDelta(t, 90, s.EstimatedHealthCosts, 1e-9)
	assert.InDelta(t, 27, s.ProductivityLoss, 1e-9)
}

func TestComputeComparison(t *testing.T) {
	baseline := []grid.Point{{Lat: 40.7, Lon: -74, Value: 100}, {Lat: 40.8, Lon: -73.9, Value: 100}}
	current := []grid.Point{{Lat: 40.7, Lon: -74, Value: 80}, {Lat: 40.8, Lon: -73.9, Value: 90}}

	s := newTestEngine().Compute(current, baseline, "transport")
	require.NotNil(t, s.Comparison)
	assert.InDelta(t, 30, s.Comparison.TotalReduction, 1e-9)
	assert.InDelta(t, 15, s.Comparison.PercentReduction, 1e-9)
	assert.InDelta(t, 1.5, s.Comparison.ImprovementScore, 1e-9)
}

func TestComputeEmpty(t *testing.T) {
	s := newTestEngine().Compute(nil, nil, "x")
	assert.Equal(t, "N/A", s.CarbonFootprintScore)
	assert.Equal(t, "N/A", s.AirQualityIndex)
	assert.Zero(t, s.TotalEmissions)
	assert.NotNil(t, s.BoroughStats)
}

func TestGrades(t *testing.T) {
	assert.Equal(t, "A", CarbonGrade(999))
	assert.Equal(t, "B", CarbonGrade(1000))
	assert.Equal(t, "C", CarbonGrade(9999))
	assert.Equal(t, "D", CarbonGrade(10000))
	assert.Equal(t, "F", CarbonGrade(20000))

	assert.Equal(t, "Good", AirQualityLabel(10))
	assert.Equal(t, "Moderate", AirQualityLabel(50))
	assert.Equal(t, "Unhealthy for Sensitive Groups", AirQualityLabel(120))
	assert.Equal(t, "Hazardous", AirQualityLabel(250))
}

func TestFormat(t *testing.T) {
	s := Statistics{
		TotalEmissions:       1234567.4,
		AverageEmissions:     42.24,
		CO2EquivalentTons:    1234.56,
		EquivalentCarsPerDay: 268384,
		CarbonFootprintScore: "B",
		AirQualityIndex:      "Moderate",
		EstimatedHealthCosts: 185184.6,
		ConfidenceScore:      0.85,
		HighEmissionZones:    1250,
		Comparison:           &Comparison{TotalReduction: 5000, PercentReduction: 12.34},
	}
	f := Format(s)
	assert.Equal(t, "1,234,567 kg CO₂/day", f["total_emissions"])
	assert.Equal(t, "42.2 kg CO₂/km²/day", f["average_emissions"])
	assert.Equal(t, "1,234.6 tons CO₂/day", f["co2_tons"])
	assert.Equal(t, "268,384 cars/day", f["equivalent_cars"])
	assert.Equal(t, "Grade: B", f["carbon_score"])
	assert.Equal(t, "AQI: Moderate", f["air_quality"])
	assert.Equal(t, "$185,185/year", f["health_costs"])
	assert.Equal(t, "85.0%", f["confidence_score"])
	assert.Equal(t, "1,250 zones", f["high_emission_zones"])
	assert.Equal(t, "12.3%", f["percent_reduction"])
}
