package intervention

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/geo"
)

const (
	defaultReductionPercent = 20.0
	maxRuleReductionPercent = 60.0
	// Converting X% of a fleet cuts its emissions by roughly 0.8X%.
	conversionFactor = 0.8
)

var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// RuleParser classifies prompts with keyword tables. It never fails on a
// non-empty prompt.
type RuleParser struct{}

func (RuleParser) Parse(_ context.Context, prompt string) (Intervention, error) {
	if strings.TrimSpace(prompt) == "" {
		return Intervention{}, ErrEmptyPrompt
	}
	lower := strings.ToLower(prompt)

	borough := geo.Citywide
	for _, b := range geo.BoroughNames {
		if strings.Contains(lower, strings.ToLower(b)) {
			borough = b
			break
		}
	}

	sector, ok := DetectSector(prompt)
	if !ok {
		sector = SectorTransport
	}

	reduction := defaultReductionPercent
	if m := percentPattern.FindStringSubmatch(prompt); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			reduction = v
			if ContainsKeyword(prompt, "convert", "replace") {
				reduction *= conversionFactor
			}
		}
	} else {
		switch {
		case ContainsKeyword(prompt, "all"):
			reduction = 50
		case ContainsKeyword(prompt, "half"):
			reduction = 25
		case ContainsKeyword(prompt, "double", "increase"):
			reduction = 30
		}
	}
	reduction = math.Min(reduction, maxRuleReductionPercent)

	iv := Intervention{
		Borough:          borough,
		Sector:           sector,
		ReductionPercent: reduction,
		Direction:        DirectionDecrease,
		Subsector:        DetectSubsector(prompt),
		Description:      Describe(sector, borough, reduction),
		Source:           SourceRules,
		Prompt:           prompt,
	}
	if strings.Contains(lower, "jfk") {
		iv.SpecificLocation = "JFK"
	} else if strings.Contains(lower, "laguardia") || ContainsKeyword(prompt, "lga") {
		iv.SpecificLocation = "LaGuardia"
	}
	return iv, nil
}
