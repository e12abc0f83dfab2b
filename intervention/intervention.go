package intervention

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/geo"
)

var ErrEmptyPrompt = errors.New("prompt is empty")

const (
	SectorTransport = "transport"
	SectorBuildings = "buildings"
	SectorIndustry  = "industry"
	SectorEnergy    = "energy"
	SectorAviation  = "aviation"
	SectorNature    = "nature"
	SectorAll       = "all"
)

var Sectors = []string{SectorTransport, SectorBuildings, SectorIndustry, SectorEnergy, SectorAviation, SectorNature, SectorAll}

const (
	DirectionDecrease = "decrease"
	DirectionIncrease = "increase"
)

const (
	SourceLLM   = "llm"
	SourceRules = "rules"
)

// PatternPoint is a model-supplied focus of the intervention. Intensity is
// roughly 0..1.
type PatternPoint struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Intensity float64 `json:"intensity"`
}

// Intervention is a structured sustainability action. ReductionPercent is
// negative for interventions that increase emissions.
type Intervention struct {
	Borough          string            `json:"borough"`
	Sector           string            `json:"sector"`
	ReductionPercent float64           `json:"reduction_percent"`
	Description      string            `json:"description"`
	Direction        string            `json:"direction"`
	Subsector        string            `json:"subsector,omitempty"`
	SpecificLocation string            `json:"specific_location,omitempty"`
	SpatialPattern   []PatternPoint    `json:"spatial_pattern,omitempty"`
	Analysis         map[string]string `json:"ai_analysis,omitempty"`
	Source           string            `json:"source"`
	Prompt           string            `json:"prompt,omitempty"`
}

// KeywordText is the text searched for pattern-selecting keywords such as
// "taxi" or "solar".
func (iv Intervention) KeywordText() string {
	return iv.Description + " " + iv.Prompt
}

// GridSector is the sector whose spatial model drives the grid. Aviation is
// modelled with the industrial zones (which include both airports) and
// nature-based work is spread citywide.
func (iv Intervention) GridSector() string {
	switch iv.Sector {
	case SectorAviation:
		return SectorIndustry
	case SectorNature:
		return SectorAll
	}
	return iv.Sector
}

// NormalizeSector maps free text onto a known sector, defaulting to transport.
func NormalizeSector(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "transportation", "transit", "vehicles":
		return SectorTransport
	case "building":
		return SectorBuildings
	case "industrial":
		return SectorIndustry
	case "power", "electricity":
		return SectorEnergy
	case "airport", "airports", "flights":
		return SectorAviation
	case "trees", "green space", "parks":
		return SectorNature
	case "citywide", "everything":
		return SectorAll
	}
	for _, s := range Sectors {
		if v == s {
			return s
		}
	}
	return SectorTransport
}

// Normalize canonicalises names, clamps the magnitude and fills derived
// fields. Pattern points outside the city are dropped.
func (iv *Intervention) Normalize() {
	iv.Borough = geo.NormalizeBorough(iv.Borough)
	iv.Sector = NormalizeSector(iv.Sector)
	if math.IsNaN(iv.ReductionPercent) {
		iv.ReductionPercent = 0
	}
	iv.ReductionPercent = math.Max(-100, math.Min(100, iv.ReductionPercent))

	switch strings.ToLower(iv.Direction) {
	case DirectionIncrease:
		iv.Direction = DirectionIncrease
		if iv.ReductionPercent > 0 {
			iv.ReductionPercent = -iv.ReductionPercent
		}
	case DirectionDecrease:
		iv.Direction = DirectionDecrease
	default:
		iv.Direction = DirectionDecrease
		if iv.ReductionPercent < 0 {
			iv.Direction = DirectionIncrease
		}
	}

	kept := iv.SpatialPattern[:0]
	for _, p := range iv.SpatialPattern {
		if geo.NYCBounds.Contains(p.Lat, p.Lon) {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		kept = nil
	}
	iv.SpatialPattern = kept

	if strings.TrimSpace(iv.Description) == "" {
		iv.Description = Describe(iv.Sector, iv.Borough, iv.ReductionPercent)
	}
}

// Describe builds the human readable summary used when no description is
// available. A negative percent reads as an increase.
func Describe(sector, borough string, percent float64) string {
	location := borough
	if geo.IsCitywide(borough) {
		location = "NYC"
	}
	change := "reduction"
	if percent < 0 {
		change = "increase"
		percent = -percent
	}
	return fmt.Sprintf("%.0f%% %s emission %s in %s", percent, sector, change, location)
}

// CacheKey identifies equivalent prompts.
func CacheKey(prompt string) string {
	return strings.Join(strings.Fields(strings.ToLower(prompt)), " ")
}
