package stats

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

const densityUnit = "kg CO₂/km²/day"

func commaInt(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}

// Format renders statistics as display strings keyed like the JSON fields.
func Format(s Statistics) map[string]string {
	out := map[string]string{
		"total_emissions":   commaInt(s.TotalEmissions) + " kg CO₂/day",
		"average_emissions": fmt.Sprintf("%.1f %s", s.AverageEmissions, densityUnit),
		"median_emissions":  fmt.Sprintf("%.1f %s", s.MedianEmissions, densityUnit),
		"min_emissions":     fmt.Sprintf("%.1f %s", s.MinEmissions, densityUnit),
		"max_emissions":     fmt.Sprintf("%.0f %s", s.MaxEmissions, densityUnit),
		"std_deviation":     fmt.Sprintf("%.1f %s", s.StdDeviation, densityUnit),

		"percentile_25": fmt.Sprintf("%.1f %s", s.Percentile25, densityUnit),
		"percentile_75": fmt.Sprintf("%.1f %s", s.Percentile75, densityUnit),
		"percentile_90": fmt.Sprintf("%.1f %s", s.Percentile90, densityUnit),
		"percentile_95": fmt.Sprintf("%.1f %s", s.Percentile95, densityUnit),
		"percentile_99": fmt.Sprintf("%.1f %s", s.Percentile99, densityUnit),

		"total_area":          fmt.Sprintf("%.1f km²", s.TotalAreaKm2),
		"emissions_per_km2":   fmt.Sprintf("%.1f %s", s.EmissionsPerKm2, densityUnit),
		"high_emission_zones": humanize.Comma(int64(s.HighEmissionZones)) + " zones",
		"low_emission_zones":  humanize.Comma(int64(s.LowEmissionZones)) + " zones",

		"co2_tons":         humanize.FormatFloat("#,###.#", s.CO2EquivalentTons) + " tons CO₂/day",
		"equivalent_cars":  humanize.Comma(s.EquivalentCarsPerDay) + " cars/day",
		"equivalent_trees": humanize.Comma(s.EquivalentTreesNeeded) + " trees needed",
		"carbon_score":     "Grade: " + s.CarbonFootprintScore,

		"premature_deaths": fmt.Sprintf("%.2f deaths/year", s.EstimatedPrematureDeaths),
		"asthma_cases":     fmt.Sprintf("%.1f cases/year", s.EstimatedAsthmaCases),
		"air_quality":      "AQI: " + s.AirQualityIndex,

		"health_costs":      "$" + commaInt(s.EstimatedHealthCosts) + "/year",
		"productivity_loss": "$" + commaInt(s.ProductivityLoss) + "/year",
		"property_impact":   "$" + commaInt(s.PropertyValueImpact) + "/year",

		"data_freshness":   s.DataFreshness,
		"confidence_score": fmt.Sprintf("%.1f%%", s.ConfidenceScore*100),
	}
	if s.Comparison != nil {
		out["total_reduction"] = commaInt(s.Comparison.TotalReduction) + " kg CO₂/day"
		out["percent_reduction"] = fmt.Sprintf("%.1f%%", s.Comparison.PercentReduction)
	}
	return out
}
