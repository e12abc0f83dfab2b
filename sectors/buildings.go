package sectors

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

const (
	// BuildingSampleRows is how many LL84 rows are read per estimate.
	BuildingSampleRows = 5000
	// ll84Buildings is the number of buildings covered by Local Law 84.
	ll84Buildings = 64169
)

// BuildingSample is a borough's LL84 baseline estimate.
type BuildingSample struct {
	Rows         int     `json:"rows"`
	Column       string  `json:"column"`
	Unit         string  `json:"unit"`
	BaselineTons float64 `json:"baseline_tons"`
}

// ReadBuildingSample reads up to maxRows rows of an LL84 energy and water
// CSV, filters them to borough and estimates citywide building emissions. A
// GHG column is scaled to all LL84 buildings; otherwise an energy column is
// converted through the grid factor.
func ReadBuildingSample(path, borough string, maxRows int) (*BuildingSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read LL84 header: %w", err)
	}
	boroughCol, ghgCol, energyCol := -1, -1, -1
	for i, name := range header {
		lower := strings.ToLower(strings.TrimSpace(name))
		switch {
		case lower == "borough" && boroughCol < 0:
			boroughCol = i
		case (strings.Contains(lower, "ghg") || strings.Contains(lower, "emissions")) && ghgCol < 0:
			ghgCol = i
		case (strings.Contains(lower, "energy") || strings.Contains(lower, "eui")) && energyCol < 0:
			energyCol = i
		}
	}
	if ghgCol < 0 && energyCol < 0 {
		return nil, errors.New("LL84 file has no emissions or energy column")
	}

	filter := strings.ToLower(borough)
	filtering := boroughCol >= 0 && filter != "" && !strings.EqualFold(borough, "citywide")

	var rows int
	var ghgSum, energySum float64
	for read := 0; read < maxRows; read++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read LL84 row: %w", err)
		}
		if filtering && (boroughCol >= len(rec) || !strings.Contains(strings.ToLower(rec[boroughCol]), filter)) {
			continue
		}
		rows++
		ghgSum += numericField(rec, ghgCol)
		energySum += numericField(rec, energyCol)
	}
	if rows == 0 {
		return nil, errors.New("no LL84 rows matched")
	}

	if ghgCol >= 0 && ghgSum > 0 {
		return &BuildingSample{
			Rows:         rows,
			Column:       header[ghgCol],
			Unit:         "tons",
			BaselineTons: ghgSum / float64(rows) * ll84Buildings,
		}, nil
	}
	if energyCol < 0 {
		return nil, errors.New("LL84 emissions column is empty")
	}
	unit := DetectUnit(header[energyCol])
	kwh := energySum
	if unit == UnitKBTU {
		kwh = energySum * KBTUToKWh
	}
	return &BuildingSample{
		Rows:         rows,
		Column:       header[energyCol],
		Unit:         unit,
		BaselineTons: kwh * NYCGridKgPerKWh / 1000,
	}, nil
}

// numericField parses a cell, treating blanks and "Not Available" as zero.
func numericField(rec []string, col int) float64 {
	if col < 0 || col >= len(rec) {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(rec[col]), ",", ""), 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
