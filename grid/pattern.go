package grid

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strings"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/geo"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/intervention"
)

// Share of urban CO₂ attributed to each grid sector.
var sectorFactors = map[string]float64{
	intervention.SectorTransport: 0.35,
	intervention.SectorBuildings: 0.45,
	intervention.SectorIndustry:  0.20,
	intervention.SectorAll:       1.0,
}

const defaultSectorFactor = 0.35

func SectorFactor(sector string) float64 {
	if f, ok := sectorFactors[sector]; ok {
		return f
	}
	return defaultSectorFactor
}

// Commercial core where green roofs pay off most.
var commercialCore = geo.Bounds{South: 40.70, North: 40.80, West: -74.02, East: -73.93}

type zoneModel struct {
	radius  float64
	falloff float64
	floor   float64
	noiseMu float64
	noiseSd float64
	boost   func(text string, lat, lon float64) float64
}

var zoneModels = map[string]zoneModel{
	intervention.SectorTransport: {
		radius: 0.03, falloff: 20, noiseMu: 0.2, noiseSd: 0.1,
		boost: func(text string, _, _ float64) float64 {
			switch {
			case intervention.ContainsKeyword(text, "taxi", "cab"):
				return 1.5
			case intervention.ContainsKeyword(text, "bus"):
				return 1.2
			case intervention.ContainsKeyword(text, "ev", "electric"):
				return 1.3
			}
			return 1
		},
	},
	intervention.SectorBuildings: {
		radius: 0.04, falloff: 15, noiseMu: 0.15, noiseSd: 0.08,
		boost: func(text string, lat, lon float64) float64 {
			switch {
			case intervention.ContainsKeyword(text, "solar", "panel"):
				return 1.3
			case intervention.ContainsKeyword(text, "green", "roof"):
				if commercialCore.South < lat && lat < commercialCore.North &&
					commercialCore.West < lon && lon < commercialCore.East {
					return 1.4
				}
				return 1.1
			case intervention.ContainsKeyword(text, "insulation", "heating"):
				return 1.2
			}
			return 1
		},
	},
	intervention.SectorIndustry: {
		radius: 0.05, falloff: 12, noiseMu: 0.1, noiseSd: 0.05,
		boost: func(text string, lat, lon float64) float64 {
			switch {
			case intervention.ContainsKeyword(text, "manufacturing"):
				return 1.3
			case intervention.ContainsKeyword(text, "port", "shipping"):
				if geo.IsNearWater(lat, lon) {
					return 1.5
				}
				return 1
			case intervention.ContainsKeyword(text, "airport"):
				return 1.4
			}
			return 1
		},
	},
	intervention.SectorEnergy: {
		radius: 0.03, falloff: 20, floor: 0.8, noiseMu: 0.1, noiseSd: 0.05,
		boost: func(text string, _, _ float64) float64 {
			switch {
			case intervention.ContainsKeyword(text, "solar", "renewable"):
				return 1.2
			case intervention.ContainsKeyword(text, "grid", "power"):
				return 1.1
			}
			return 1
		},
	},
}

// baseIntensity is the pattern strength for a reduction, using its magnitude
// so increases get the same shape as decreases.
func baseIntensity(percent float64) float64 {
	return math.Min(math.Abs(percent)/100, 1)
}

func patternSeed(sector, description string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(sector + "_" + description))
	return int64(h.Sum64() & math.MaxInt64)
}

// Pattern returns the per-cell intensity of an intervention without an
// explicit spatial pattern. Values for cells outside the target area are
// present but unused.
func Pattern(atlas *geo.Atlas, lats, lons []float64, iv intervention.Intervention) [][]float64 {
	sector := iv.GridSector()
	base := baseIntensity(iv.ReductionPercent)
	pattern := make([][]float64, len(lats))
	for i := range pattern {
		pattern[i] = make([]float64, len(lons))
	}

	model, ok := zoneModels[sector]
	if !ok {
		return citywidePattern(atlas, pattern, lats, lons, iv.Borough, base)
	}

	for i := range pattern {
		for j := range pattern[i] {
			pattern[i][j] = model.floor * base
		}
	}

	zones := atlas.Zones(sector, iv.Borough)
	text := strings.ToLower(iv.KeywordText())
	for i, lat := range lats {
		for j, lon := range lons {
			if !atlas.InTargetArea(lat, lon, iv.Borough) {
				continue
			}
			for _, z := range zones {
				d := geo.Distance(lat, lon, z.Lat, z.Lon)
				if d < model.radius {
					pattern[i][j] += z.Weight * base * (1 - d*model.falloff)
				}
			}
			pattern[i][j] *= model.boost(text, lat, lon)
		}
	}

	rng := rand.New(rand.NewSource(patternSeed(sector, iv.Description)))
	for i := range pattern {
		for j := range pattern[i] {
			v := pattern[i][j] + model.noiseMu + rng.NormFloat64()*model.noiseSd
			pattern[i][j] = math.Max(0, math.Min(2, v))
		}
	}
	return pattern
}

// citywidePattern applies the same strength everywhere, with denser boroughs
// weighted up.
func citywidePattern(atlas *geo.Atlas, pattern [][]float64, lats, lons []float64, borough string, base float64) [][]float64 {
	boost := 1.0
	switch borough {
	case geo.Manhattan:
		boost = 1.3
	case geo.Brooklyn:
		boost = 1.1
	}
	for i, lat := range lats {
		for j, lon := range lons {
			pattern[i][j] = base
			if atlas.InTargetArea(lat, lon, borough) {
				pattern[i][j] *= boost
			}
		}
	}
	return pattern
}
