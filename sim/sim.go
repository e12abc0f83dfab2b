// Package sim ties the parser, the grid model, the statistics engine and the
// sector calculator into the operations the API and CLI expose.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/data"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/geo"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/grid"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/intervention"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/metrics"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/openaq"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/sectors"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/stats"
)

var ErrNotLoaded = errors.New("baseline not loaded")

const (
	city              = "New York City"
	unit              = "kg CO₂/km²/day"
	baselineSource    = "OpenAQ + Synthetic Grid"
	syntheticSource   = "Synthetic Grid"
	simulationSource  = "Simulated"
	baselineLabel     = "baseline"
	baselineConfident = 0.85
	modelConfident    = 0.90
	rulesConfident    = 0.75
)

// Cell is a grid value tagged with the borough it falls in.
type Cell struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Value   float64 `json:"value"`
	Borough string  `json:"borough"`
}

type Metadata struct {
	City      string         `json:"city"`
	Unit      string         `json:"unit"`
	Source    string         `json:"source"`
	Bounds    geo.Bounds     `json:"bounds"`
	Timestamp data.Timestamp `json:"timestamp"`
}

type DataQuality struct {
	Source           string         `json:"source"`
	Confidence       float64        `json:"confidence"`
	DataPoints       int            `json:"data_points"`
	Stations         int            `json:"stations"`
	BoundaryPolygons int            `json:"boundary_polygons"`
	ReferenceFiles   []string       `json:"reference_files"`
	Parser           string         `json:"parser,omitempty"`
	LastUpdated      data.Timestamp `json:"last_updated"`
}

// Baseline is the unmodified city grid.
type Baseline struct {
	Grid        []Cell            `json:"grid"`
	Statistics  stats.Statistics  `json:"statistics"`
	Formatted   map[string]string `json:"formatted_statistics"`
	DataQuality DataQuality       `json:"data_quality"`
	Metadata    Metadata          `json:"metadata"`
	Field       *grid.Grid        `json:"-"`
}

// Result is one simulated intervention.
type Result struct {
	ID           string                    `json:"id"`
	Grid         []Cell                    `json:"grid"`
	Intervention intervention.Intervention `json:"intervention"`
	Analysis     map[string]string         `json:"ai_analysis,omitempty"`
	Statistics   stats.Statistics          `json:"statistics"`
	Formatted    map[string]string         `json:"formatted_statistics"`
	Impact       sectors.Impact            `json:"impact"`
	DataQuality  DataQuality               `json:"data_quality"`
	Metadata     Metadata                  `json:"metadata"`
	Field        *grid.Grid                `json:"-"`
}

// LoadOptions says where startup data comes from. A nil Stations source
// means no live measurements.
type LoadOptions struct {
	DataDir        string
	BoundariesFile string
	BuildingsCSV   string
	Resolution     int
	Seed           int64
	Stations       openaq.Source
}

type Service struct {
	atlas   *geo.Atlas
	parser  intervention.Parser
	history *data.History
	metrics *metrics.Metrics
	engine  *stats.Engine
	results *data.Cache[string, Result]
	logger  *zap.Logger

	mutex      sync.RWMutex
	stationSrc openaq.Source
	stationErr error
	baseline   *grid.Grid
	cells      []Cell
	baseStats  stats.Statistics
	calc       *sectors.Calculator
	stations   int
	boundaries int
	loadedAt   data.Timestamp
}

func New(atlas *geo.Atlas, parser intervention.Parser, history *data.History, m *metrics.Metrics, cacheTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		atlas:   atlas,
		parser:  parser,
		history: history,
		metrics: m,
		engine:  stats.NewEngine(atlas),
		results: data.NewCache[string, Result](cacheTTL),
		logger:  logger,
	}
}

// Load reads reference data, borough boundaries and live stations in
// parallel, then builds the baseline grid. Missing optional inputs are
// logged and skipped.
func (s *Service) Load(ctx context.Context, opts LoadOptions) error {
	if opts.Resolution <= 0 {
		opts.Resolution = grid.DefaultResolution
	}

	var (
		ref        *sectors.Reference
		stations   []openaq.Station
		stationErr error
		boundaries int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ref = sectors.LoadReference(opts.DataDir, s.logger)
		return nil
	})
	g.Go(func() error {
		if opts.Stations == nil {
			return nil
		}
		var err error
		stations, err = opts.Stations.Latest(gctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("continuing without OpenAQ stations", zap.Error(err))
			stations = nil
			stationErr = err
		}
		return nil
	})
	g.Go(func() error {
		if opts.BoundariesFile == "" {
			return nil
		}
		n, err := s.atlas.LoadBoundaries(opts.BoundariesFile)
		switch {
		case err == nil:
			boundaries = n
			s.logger.Info("loaded borough boundaries", zap.String("file", opts.BoundariesFile), zap.Int("boroughs", n))
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Debug("no borough boundaries file, using boxes", zap.String("file", opts.BoundariesFile))
		default:
			s.logger.Warn("failed to load borough boundaries", zap.String("file", opts.BoundariesFile), zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to load startup data: %w", err)
	}

	baseline := grid.NewBaseline(s.atlas, opts.Resolution, opts.Seed)
	readings := make([]grid.Station, 0, len(stations))
	for _, st := range stations {
		readings = append(readings, grid.Station{Lat: st.Lat, Lon: st.Lon, PM25: st.Value})
	}
	blended := baseline.BlendStations(readings)

	points := baseline.Points()
	baseStats := s.engine.Compute(points, nil, baselineLabel)

	s.mutex.Lock()
	s.stationSrc = opts.Stations
	s.stationErr = stationErr
	s.baseline = baseline
	s.cells = s.label(points)
	s.baseStats = baseStats
	s.calc = sectors.NewCalculator(ref, opts.BuildingsCSV, s.logger)
	s.stations = blended
	s.boundaries = boundaries
	s.loadedAt = data.Now()
	s.mutex.Unlock()

	s.metrics.SetBaseline(blended, baseline.Total())
	s.logger.Info("baseline ready",
		zap.Int("resolution", opts.Resolution),
		zap.Int("stations", blended),
		zap.Float64("total", baseline.Total()))
	return nil
}

func (s *Service) label(points []grid.Point) []Cell {
	cells := make([]Cell, len(points))
	for i, p := range points {
		cells[i] = Cell{Lat: p.Lat, Lon: p.Lon, Value: p.Value, Borough: s.atlas.BoroughAt(p.Lat, p.Lon)}
	}
	return cells
}

func (s *Service) metadata(source string) Metadata {
	return Metadata{
		City:      city,
		Unit:      unit,
		Source:    source,
		Bounds:    geo.NYCBounds,
		Timestamp: s.loadedAt,
	}
}

func (s *Service) dataQuality(source string, confidence float64, points int) DataQuality {
	var files []string
	if s.calc != nil {
		files = s.calc.Reference().Loaded
	}
	return DataQuality{
		Source:           source,
		Confidence:       confidence,
		DataPoints:       points,
		Stations:         s.stations,
		BoundaryPolygons: s.boundaries,
		ReferenceFiles:   files,
		LastUpdated:      data.Now(),
	}
}

func (s *Service) Baseline() (Baseline, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.baseline == nil {
		return Baseline{}, ErrNotLoaded
	}
	source := syntheticSource
	if s.stations > 0 {
		source = baselineSource
	}
	return Baseline{
		Grid:        s.cells,
		Statistics:  s.baseStats,
		Formatted:   stats.Format(s.baseStats),
		DataQuality: s.dataQuality(source, baselineConfident, len(s.cells)),
		Metadata:    s.metadata(source),
		Field:       s.baseline,
	}, nil
}

// ScaleMax is the colour scale ceiling shared by every heatmap so images
// stay comparable.
func (s *Service) ScaleMax() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.baseline == nil {
		return 0
	}
	return s.baseline.Max()
}

// Simulate parses the prompt, applies it to the baseline and records it.
// Repeated prompts within the cache TTL return the earlier result.
func (s *Service) Simulate(ctx context.Context, prompt string) (Result, error) {
	start := time.Now()

	key := intervention.CacheKey(prompt)
	if cached := s.results.Get(key); cached != nil {
		s.metrics.CacheHit()
		s.logger.Debug("simulation cache hit", zap.String("id", cached.ID))
		return *cached, nil
	}

	iv, err := s.parser.Parse(ctx, prompt)
	if err != nil {
		return Result{}, err
	}
	if mp, ok := s.parser.(interface{ UsesModel() bool }); ok && mp.UsesModel() && iv.Source == intervention.SourceRules {
		s.metrics.LLMFallback()
	}

	res, err := s.run(iv)
	if err != nil {
		return Result{}, err
	}

	rec, err := s.history.Add(data.SimulationRecord{
		Prompt:           prompt,
		Intervention:     iv,
		BaselineTotal:    s.baselineTotal(),
		SimulatedTotal:   res.Field.Total(),
		PercentReduction: res.Statistics.Comparison.PercentReduction,
	})
	if err != nil {
		s.logger.Warn("failed to record simulation", zap.String("id", rec.ID), zap.Error(err))
	}
	res.ID = rec.ID
	s.results.Set(key, &res)

	s.metrics.ObserveSimulation(iv.Sector, iv.Source, time.Since(start))
	s.logger.Info("simulation complete",
		zap.String("id", res.ID),
		zap.String("sector", iv.Sector),
		zap.String("borough", iv.Borough),
		zap.Float64("reduction_percent", iv.ReductionPercent),
		zap.Float64("percent_reduction", res.Statistics.Comparison.PercentReduction))
	return res, nil
}

// Replay regenerates a stored simulation. The grid model is deterministic so
// the result matches the original run against the same baseline.
func (s *Service) Replay(id string) (Result, error) {
	rec, err := s.history.Get(id)
	if err != nil {
		return Result{}, err
	}
	res, err := s.run(rec.Intervention)
	if err != nil {
		return Result{}, err
	}
	res.ID = rec.ID
	return res, nil
}

func (s *Service) run(iv intervention.Intervention) (Result, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.baseline == nil {
		return Result{}, ErrNotLoaded
	}

	simulated := grid.Apply(s.atlas, s.baseline, iv)
	points := simulated.Points()
	st := s.engine.Compute(points, s.baseline.Points(), iv.Sector)

	confidence := rulesConfident
	if iv.Source == intervention.SourceLLM {
		confidence = modelConfident
	}
	dq := s.dataQuality(simulationSource, confidence, len(points))
	dq.Parser = iv.Source

	return Result{
		Grid:         s.label(points),
		Intervention: iv,
		Analysis:     iv.Analysis,
		Statistics:   st,
		Formatted:    stats.Format(st),
		Impact:       s.calc.Impact(iv),
		DataQuality:  dq,
		Metadata:     s.metadata(simulationSource),
		Field:        simulated,
	}, nil
}

func (s *Service) baselineTotal() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.baseline.Total()
}

func (s *Service) Record(id string) (*data.SimulationRecord, error) {
	return s.history.Get(id)
}

func (s *Service) History(limit int) ([]data.SimulationRecord, error) {
	return s.history.List(limit)
}

// Stations returns the live OpenAQ readings. It is empty when the source is
// disabled. The outcome of the fetch is reported by Health.
func (s *Service) Stations(ctx context.Context) ([]openaq.Station, error) {
	s.mutex.RLock()
	src := s.stationSrc
	s.mutex.RUnlock()
	if src == nil {
		return []openaq.Station{}, nil
	}
	stations, err := src.Latest(ctx)
	if ctx.Err() == nil {
		s.mutex.Lock()
		s.stationErr = err
		s.mutex.Unlock()
	}
	if stations == nil {
		stations = []openaq.Station{}
	}
	return stations, err
}

type DataStatus struct {
	BaselineAvailable bool     `json:"baseline_available"`
	GridPoints        int      `json:"grid_points"`
	Stations          int      `json:"stations"`
	BoundaryPolygons  int      `json:"boundary_polygons"`
	ReferenceFiles    []string `json:"reference_files"`
	Simulations       int      `json:"simulations"`
	CachedResults     int      `json:"cached_results"`
}

type Health struct {
	Status     string            `json:"status"`
	Timestamp  data.Timestamp    `json:"timestamp"`
	Components map[string]string `json:"components"`
	DataStatus DataStatus        `json:"data_status"`
}

func (s *Service) Health() Health {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	parser := "rules"
	if mp, ok := s.parser.(interface{ UsesModel() bool }); ok && mp.UsesModel() {
		parser = "llm+rules"
	}
	openaqStatus := "disabled"
	switch {
	case s.stationSrc != nil && s.stationErr != nil:
		openaqStatus = "degraded"
	case s.stationSrc != nil:
		openaqStatus = "active"
	}
	status := "healthy"
	gridStatus := "active"
	if s.baseline == nil {
		status = "starting"
		gridStatus = "loading"
	}

	ds := DataStatus{
		BaselineAvailable: s.baseline != nil,
		GridPoints:        len(s.cells),
		Stations:          s.stations,
		BoundaryPolygons:  s.boundaries,
		Simulations:       s.history.Count(),
		CachedResults:     s.results.Len(),
	}
	if s.calc != nil {
		ds.ReferenceFiles = s.calc.Reference().Loaded
	}

	return Health{
		Status:    status,
		Timestamp: data.Now(),
		Components: map[string]string{
			"grid":   gridStatus,
			"parser": parser,
			"stats":  "active",
			"openaq": openaqStatus,
		},
		DataStatus: ds,
	}
}
