package sim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/data"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/geo"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/grid"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/intervention"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/metrics"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/openaq"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/sectors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStations struct {
	stations []openaq.Station
	err      error
	calls    int
}

func (f *fakeStations) Latest(context.Context) ([]openaq.Station, error) {
	f.calls++
	return f.stations, f.err
}

const testResolution = 20

func newService(t *testing.T, parser intervention.Parser) *Service {
	t.Helper()
	if parser == nil {
		parser = intervention.NewFallbackParser(nil, zap.NewNop())
	}
	return New(geo.DefaultAtlas(), parser, data.NewHistory(""), metrics.New(), time.Minute, zaptest.NewLogger(t))
}

func loadedService(t *testing.T, opts LoadOptions) *Service {
	t.Helper()
	s := newService(t, nil)
	if opts.Resolution == 0 {
		opts.Resolution = testResolution
	}
	if opts.Seed == 0 {
		opts.Seed = grid.DefaultSeed
	}
	require.NoError(t, s.Load(context.Background(), opts))
	return s
}

func TestNotLoaded(t *testing.T) {
	s := newService(t, nil)

	_, err := s.Baseline()
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = s.Simulate(context.Background(), "solar in Queens")
	assert.ErrorIs(t, err, ErrNotLoaded)

	h := s.Health()
	assert.Equal(t, "starting", h.Status)
	assert.False(t, h.DataStatus.BaselineAvailable)
}

func TestLoadWithoutOptionalData(t *testing.T) {
	dir := t.TempDir()
	s := loadedService(t, LoadOptions{
		DataDir:        dir,
		BoundariesFile: filepath.Join(dir, "missing.geojson"),
	})

	b, err := s.Baseline()
	require.NoError(t, err)
	assert.Len(t, b.Grid, testResolution*testResolution)
	assert.Equal(t, syntheticSource, b.Metadata.Source)
	assert.Equal(t, "kg CO₂/km²/day", b.Metadata.Unit)
	assert.Equal(t, geo.NYCBounds, b.Metadata.Bounds)
	assert.Equal(t, 0, b.DataQuality.Stations)
	assert.Nil(t, b.Statistics.Comparison)
	assert.InDelta(t, b.Field.Total(), b.Statistics.TotalEmissions, 1e-6)
	assert.NotEmpty(t, b.Formatted["total_emissions"])
	assert.Equal(t, b.Field.Max(), s.ScaleMax())

	boroughs := map[string]bool{}
	for _, c := range b.Grid {
		boroughs[c.Borough] = true
	}
	assert.True(t, boroughs[geo.Manhattan])
}

func TestLoadBlendsStations(t *testing.T) {
	src := &fakeStations{stations: []openaq.Station{
		{Lat: 40.758, Lon: -73.9855, Value: 30, Unit: "µg/m³", Location: "Midtown"},
		{Lat: 51.5, Lon: -0.12, Value: 30, Location: "London"},
	}}
	s := loadedService(t, LoadOptions{DataDir: t.TempDir(), Stations: src})

	b, err := s.Baseline()
	require.NoError(t, err)
	assert.Equal(t, 1, b.DataQuality.Stations)
	assert.Equal(t, baselineSource, b.Metadata.Source)

	stations, err := s.Stations(context.Background())
	require.NoError(t, err)
	assert.Len(t, stations, 2)
}

func TestLoadSurvivesStationFailure(t *testing.T) {
	src := &fakeStations{err: errors.New("unreachable")}
	s := loadedService(t, LoadOptions{DataDir: t.TempDir(), Stations: src})

	b, err := s.Baseline()
	require.NoError(t, err)
	assert.Equal(t, 0, b.DataQuality.Stations)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, "degraded", s.Health().Components["openaq"])
}

func TestStationsRecoverHealth(t *testing.T) {
	src := &fakeStations{err: errors.New("unreachable")}
	s := loadedService(t, LoadOptions{DataDir: t.TempDir(), Stations: src})

	stations, err := s.Stations(context.Background())
	require.Error(t, err)
	assert.NotNil(t, stations)
	assert.Empty(t, stations)
	assert.Equal(t, "degraded", s.Health().Components["openaq"])

	src.err = nil
	src.stations = []openaq.Station{{Lat: 40.758, Lon: -73.9855, Value: 12}}
	stations, err = s.Stations(context.Background())
	require.NoError(t, err)
	assert.Len(t, stations, 1)
	assert.Equal(t, "active", s.Health().Components["openaq"])
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newService(t, nil)
	err := s.Load(ctx, LoadOptions{
		DataDir:    t.TempDir(),
		Resolution: testResolution,
		Stations:   &fakeStations{err: context.Canceled},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadBoundaries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boroughs.geojson")
	geojson := `{"type":"FeatureCollection","features":[{"type":"Feature",
"properties":{"boro_name":"Manhattan"},
"geometry":{"type":"Polygon","coordinates":[[[-74.02,40.70],[-73.91,40.70],[-73.91,40.88],[-74.02,40.88],[-74.02,40.70]]]}}]}`
	require.NoError(t, os.WriteFile(path, []byte(geojson), 0o644))

	s := loadedService(t, LoadOptions{DataDir: dir, BoundariesFile: path})
	assert.Equal(t, 1, s.Health().DataStatus.BoundaryPolygons)
}

func TestSimulate(t *testing.T) {
	s := loadedService(t, LoadOptions{DataDir: t.TempDir()})
	ctx := context.Background()

	res, err := s.Simulate(ctx, "Convert 30% of taxis to EVs in Manhattan")
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, geo.Manhattan, res.Intervention.Borough)
	assert.Equal(t, intervention.SectorTransport, res.Intervention.Sector)
	assert.Equal(t, intervention.SourceRules, res.DataQuality.Parser)
	assert.Len(t, res.Grid, testResolution*testResolution)
	require.NotNil(t, res.Statistics.Comparison)
	assert.Greater(t, res.Statistics.Comparison.PercentReduction, 0.0)
	assert.Equal(t, intervention.SectorTransport, res.Impact.Sector)
	assert.Greater(t, res.Impact.AnnualSavingsTons, 0.0)
	assert.Equal(t, simulationSource, res.Metadata.Source)

	b, err := s.Baseline()
	require.NoError(t, err)
	assert.Less(t, res.Field.Total(), b.Field.Total())

	recs, err := s.History(10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, res.ID, recs[0].ID)
	assert.InDelta(t, b.Field.Total(), recs[0].BaselineTotal, 1e-6)
	assert.InDelta(t, res.Field.Total(), recs[0].SimulatedTotal, 1e-6)
}

func TestSimulateCachesByPrompt(t *testing.T) {
	s := loadedService(t, LoadOptions{DataDir: t.TempDir()})
	ctx := context.Background()

	first, err := s.Simulate(ctx, "Add solar panels to all Brooklyn buildings")
	require.NoError(t, err)
	second, err := s.Simulate(ctx, "  add SOLAR panels to all brooklyn buildings ")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, s.Health().DataStatus.Simulations)
	assert.Equal(t, 1, s.Health().DataStatus.CachedResults)
}

func TestSimulateEmptyPrompt(t *testing.T) {
	s := loadedService(t, LoadOptions{DataDir: t.TempDir()})
	_, err := s.Simulate(context.Background(), "  ")
	assert.ErrorIs(t, err, intervention.ErrEmptyPrompt)
}

func TestReplay(t *testing.T) {
	s := loadedService(t, LoadOptions{DataDir: t.TempDir()})

	res, err := s.Simulate(context.Background(), "Plant a million trees in the Bronx")
	require.NoError(t, err)

	replayed, err := s.Replay(res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, replayed.ID)
	assert.Equal(t, res.Field.Values, replayed.Field.Values)
	assert.Equal(t, res.Statistics.TotalEmissions, replayed.Statistics.TotalEmissions)

	_, err = s.Replay("missing")
	assert.ErrorIs(t, err, data.ErrNotFound)
}

type fakeCompleter struct{ err error }

func (f fakeCompleter) Name() string { return "fake" }

func (f fakeCompleter) CompleteWithSystem(context.Context, string, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return `{"borough":"Queens","sector":"aviation","reduction_percent":15,"specific_location":"JFK"}`, nil
}

func TestSimulateWithModel(t *testing.T) {
	parser := intervention.NewFallbackParser(intervention.NewLLMParser(fakeCompleter{}, zap.NewNop()), zap.NewNop())
	s := newService(t, parser)
	require.NoError(t, s.Load(context.Background(), LoadOptions{DataDir: t.TempDir(), Resolution: testResolution}))

	res, err := s.Simulate(context.Background(), "Electrify ground operations at JFK")
	require.NoError(t, err)
	assert.Equal(t, intervention.SourceLLM, res.Intervention.Source)
	assert.Equal(t, modelConfident, res.DataQuality.Confidence)
	assert.Equal(t, "llm+rules", s.Health().Components["parser"])
}

func TestHealth(t *testing.T) {
	s := loadedService(t, LoadOptions{DataDir: t.TempDir(), Stations: &fakeStations{}})
	h := s.Health()
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "rules", h.Components["parser"])
	assert.Equal(t, "active", h.Components["openaq"])
	assert.True(t, h.DataStatus.BaselineAvailable)
	assert.Equal(t, testResolution*testResolution, h.DataStatus.GridPoints)
}

func TestFacilities(t *testing.T) {
	s := loadedService(t, LoadOptions{DataDir: t.TempDir()})

	report, err := s.Facilities("Aviation")
	require.NoError(t, err)
	assert.Equal(t, intervention.SectorAviation, report.Sector)
	require.Len(t, report.Facilities, 2)
	jfk := report.Facilities[0]
	assert.Equal(t, "JFK", jfk.Name)
	assert.Equal(t, geo.Queens, jfk.Borough)
	assert.Equal(t, "aviation/airport_info.json", jfk.Source)
	assert.Greater(t, jfk.Value, 0.0)
	assert.Equal(t, "facilities:aviation", report.Statistics.Label)
	assert.InDelta(t, report.Facilities[0].Value+report.Facilities[1].Value, report.Statistics.TotalEmissions, 1e-6)
	assert.Equal(t, 2, report.DataQuality.DataPoints)
	assert.Equal(t, facilitySource, report.Metadata.Source)

	report, err = s.Facilities(sectors.Maritime)
	require.NoError(t, err)
	assert.Empty(t, report.Facilities)
	assert.NotNil(t, report.Facilities)

	_, err = s.Facilities(intervention.SectorTransport)
	assert.ErrorIs(t, err, ErrUnknownSector)
}

func TestFacilitiesNotLoaded(t *testing.T) {
	_, err := newService(t, nil).Facilities(intervention.SectorEnergy)
	assert.ErrorIs(t, err, ErrNotLoaded)
}
