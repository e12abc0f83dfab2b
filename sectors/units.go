// Package sectors estimates the annual tonnage affected by an intervention
// from sector reference data.
package sectors

import "strings"

// Length
const (
	MilesToKm    = 1.609344
	FeetToMeters = 0.3048
	MetersToFeet = 3.28084
	KmToMiles    = 0.621371
)

// Area
const (
	SqFtToSqM  = 0.09290304
	SqMToSqFt  = 10.7639
	SqMiToSqKm = 2.589988
	SqKmToSqMi = 0.386102
)

// Energy
const (
	BTUToKWh  = 0.000293071
	KBTUToKWh = 0.293071
	KWhToBTU  = 3412.14
	KWhToKBTU = 3.41214
)

// Mass
const (
	PoundsToKg          = 0.453592
	KgToPounds          = 2.20462
	ShortTonToMetricTon = 0.907185
)

// NYCGridKgPerKWh is the typical carbon intensity of the city's grid mix.
const NYCGridKgPerKWh = 0.35

// Tailpipe factors in kg CO₂ per km, derived from the EPA per-mile values.
const (
	GasolineKgPerKm = 0.39 / MilesToKm
	DieselKgPerKm   = 0.41 / MilesToKm
	HybridKgPerKm   = 0.22 / MilesToKm
	ElectricKgPerKm = 0.15 / MilesToKm
)

const (
	UnitKBTU    = "kbtu"
	UnitKWh     = "kwh"
	UnitSqFt    = "sq_ft"
	UnitSqM     = "sq_m"
	UnitMiles   = "miles"
	UnitKm      = "km"
	UnitUnknown = "unknown"
)

// DetectUnit guesses the unit of an LL84 or NYC Open Data column from its
// name.
func DetectUnit(column string) string {
	c := strings.ToLower(column)
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(c, s) {
				return true
			}
		}
		return false
	}
	switch {
	case has("kbtu", "btu"):
		return UnitKBTU
	case has("kwh", "kilowatt"):
		return UnitKWh
	case has("sq_ft", "sqft", "_ft"):
		return UnitSqFt
	case has("sq_m", "sqm", "_m2"):
		return UnitSqM
	case has("mile", "vmt"):
		return UnitMiles
	case has("km", "kilometer", "vkt"):
		return UnitKm
	}
	return UnitUnknown
}
