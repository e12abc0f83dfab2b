package intervention

import (
	"strings"
	"unicode"
)

// ContainsKeyword reports whether text mentions any of the keywords. Keywords
// of three letters or fewer must match a whole word, optionally with a plural
// "s", so that "ev" matches "EVs" but not "every".
func ContainsKeyword(text string, keywords ...string) bool {
	lower := strings.ToLower(text)
	var words []string
	for _, kw := range keywords {
		if len(kw) > 3 {
			if strings.Contains(lower, kw) {
				return true
			}
			continue
		}
		if words == nil {
			words = strings.FieldsFunc(lower, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r)
			})
		}
		for _, w := range words {
			if w == kw || w == kw+"s" {
				return true
			}
		}
	}
	return false
}

type sectorKeywords struct {
	sector   string
	keywords []string
}

// sectorTables is checked in order; the first table with a match wins.
var sectorTables = []sectorKeywords{
	{SectorTransport, []string{"taxi", "cab", "bus", "car", "vehicle", "ev", "traffic", "transport"}},
	{SectorBuildings, []string{"building", "solar", "panel", "heating", "cooling", "hvac", "insulation"}},
	{SectorIndustry, []string{"industry", "industrial", "factory", "manufacturing"}},
	{SectorAviation, []string{"airport", "flight", "plane", "jfk", "laguardia", "aviation"}},
	{SectorEnergy, []string{"energy", "power", "electricity", "grid"}},
	{SectorNature, []string{"tree", "park", "forest"}},
}

// DetectSector returns the first sector whose keywords appear in text.
func DetectSector(text string) (string, bool) {
	for _, t := range sectorTables {
		if ContainsKeyword(text, t.keywords...) {
			return t.sector, true
		}
	}
	return "", false
}

// DetectSubsector picks a finer-grained fleet or waste stream.
func DetectSubsector(text string) string {
	switch {
	case ContainsKeyword(text, "taxi", "cab"):
		return "taxis"
	case ContainsKeyword(text, "bus"):
		return "bus"
	case ContainsKeyword(text, "waste", "landfill", "garbage", "trash"):
		return "waste"
	}
	return ""
}
