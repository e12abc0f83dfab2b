package grid

import (
	"fmt"
	"hash/fnv"
	"math"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/geo"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/intervention"
)

const (
	patternRadius    = 0.08
	patternFalloff   = 12
	patternMinImpact = 0.3
	patternAmplify   = 3
	patternMinFactor = 0.01
	zoneMinFactor    = 0.05
)

// Apply returns a copy of baseline with the intervention applied. The
// baseline is never modified and the result depends only on its inputs.
func Apply(atlas *geo.Atlas, baseline *Grid, iv intervention.Intervention) *Grid {
	out := baseline.Clone()
	eff := iv.ReductionPercent / 100 * SectorFactor(iv.GridSector())

	if len(iv.SpatialPattern) > 0 {
		applySpatialPattern(atlas, out, iv, eff)
		return out
	}

	pattern := Pattern(atlas, out.Lats, out.Lons, iv)
	for i, lat := range out.Lats {
		for j, lon := range out.Lons {
			if !atlas.InTargetArea(lat, lon, iv.Borough) {
				continue
			}
			out.Values[i][j] *= math.Max(zoneMinFactor, 1-eff*pattern[i][j])
		}
	}
	return out
}

func applySpatialPattern(atlas *geo.Atlas, g *Grid, iv intervention.Intervention, eff float64) {
	for _, p := range iv.SpatialPattern {
		for i, lat := range g.Lats {
			for j, lon := range g.Lons {
				if !atlas.InTargetArea(lat, lon, iv.Borough) {
					continue
				}
				d := geo.Distance(lat, lon, p.Lat, p.Lon)
				if d >= patternRadius {
					continue
				}
				impact := math.Max(patternMinImpact, p.Intensity*(1-d*patternFalloff))
				g.Values[i][j] *= math.Max(patternMinFactor, 1-eff*impact*patternAmplify)
				g.Values[i][j] *= variation(lat, lon, p.Lat, p.Lon)
			}
		}
	}
}

// variation is a stable per-cell factor in [0.7, 1.3).
func variation(lat, lon, plat, plon float64) float64 {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%.3f_%.3f_%.3f_%.3f", lat, lon, plat, plon)
	return 0.7 + float64(h.Sum32()%1000)/1000*0.6
}
