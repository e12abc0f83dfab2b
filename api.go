package main

import (
	"bytes"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"go.uber.org/zap"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/data"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/grid"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/intervention"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/openaq"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/sim"
)

const (
	serviceName      = "NYC CO₂ Emissions Simulator"
	imageCacheTTL    = 10 * time.Minute
	maxRequestBytes  = 64 << 10
	defaultListLimit = 20
	heatmapTitle     = "NYC CO2 emissions"
)

type ApiRouter struct {
	svc               *sim.Service
	appInsightsClient appinsights.TelemetryClient
	logger            *zap.Logger
	// etags maps an Etag to the image key it was rendered for
	etags  *data.Cache[string, string]
	images *data.Cache[string, []byte]
}

// NewApiRouter accepts a nil appInsightsClient when telemetry is disabled.
func NewApiRouter(svc *sim.Service, appInsightsClient appinsights.TelemetryClient, logger *zap.Logger) *ApiRouter {
	if svc == nil {
		panic("svc is required")
	}
	return &ApiRouter{
		svc:               svc,
		appInsightsClient: appInsightsClient,
		logger:            logger,
		etags:             data.NewCache[string, string](imageCacheTTL),
		images:            data.NewCache[string, []byte](imageCacheTTL),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, intervention.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, data.ErrNotFound), errors.Is(err, sim.ErrUnknownSector):
		return http.StatusNotFound
	case errors.Is(err, sim.ErrNotLoaded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (api *ApiRouter) Hello(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Not Found"))
		return
	}
	writeJSON(w, struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Version string `json:"version"`
	}{
		Status:  "healthy",
		Service: serviceName,
		Version: version,
	})
}

func (api *ApiRouter) HealthGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, struct {
		sim.Health
		Version string `json:"version"`
	}{
		Health:  api.svc.Health(),
		Version: version,
	})
}

func (api *ApiRouter) BaselineGet(w http.ResponseWriter, r *http.Request) {
	baseline, err := api.svc.Baseline()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, baseline)
}

func (api *ApiRouter) SimulatePost(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Prompt string `json:"prompt"`
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&request)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := api.svc.Simulate(r.Context(), request.Prompt)
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			api.logger.Error("simulation failed", zap.String("prompt", request.Prompt), zap.Error(err))
		}
		http.Error(w, err.Error(), code)
		return
	}
	writeJSON(w, result)
}

func (api *ApiRouter) SimulationsGet(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, fmt.Sprintf("invalid limit %q", s), http.StatusBadRequest)
			return
		}
		limit = n
	}
	records, err := api.svc.History(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, struct {
		Simulations []data.SimulationRecord `json:"simulations"`
		Count       int                     `json:"count"`
	}{
		Simulations: records,
		Count:       len(records),
	})
}

func (api *ApiRouter) SimulationGet(w http.ResponseWriter, r *http.Request) {
	record, err := api.svc.Record(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, record)
}

func (api *ApiRouter) OpenAQGet(w http.ResponseWriter, r *http.Request) {
	// A failed fetch is served as an empty list.
	stations, err := api.svc.Stations(r.Context())
	if err != nil {
		api.logger.Warn("serving OpenAQ without stations", zap.Error(err))
	}
	writeJSON(w, struct {
		Stations []openaq.Station `json:"stations"`
		Count    int              `json:"count"`
	}{
		Stations: stations,
		Count:    len(stations),
	})
}

func (api *ApiRouter) FacilitiesGet(w http.ResponseWriter, r *http.Request) {
	report, err := api.svc.Facilities(r.PathValue("sector"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, report)
}

func (api *ApiRouter) trackCacheEvent(cacheHit bool, reason string) {
	if api.appInsightsClient == nil {
		return
	}
	e := appinsights.NewEventTelemetry("cache-hit")
	e.Properties["cache-hit"] = fmt.Sprintf("%t", cacheHit)
	e.Properties["reason"] = reason
	api.appInsightsClient.Track(e)
}

func (api *ApiRouter) BaselineImageGet(w http.ResponseWriter, r *http.Request, telemetry *appinsights.RequestTelemetry) {
	baseline, err := api.svc.Baseline()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	key := "baseline@" + baseline.Metadata.Timestamp.Time().Format(time.RFC3339)
	api.serveHeatmap(w, r, telemetry, key, func() (*grid.Grid, string, error) {
		return baseline.Field, "Baseline, " + baseline.Metadata.Source, nil
	})
}

func (api *ApiRouter) SimulationImageGet(w http.ResponseWriter, r *http.Request, telemetry *appinsights.RequestTelemetry) {
	id := r.PathValue("id")
	telemetry.Properties["simulation-id"] = id

	baseline, err := api.svc.Baseline()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	key := "simulation/" + id + "@" + baseline.Metadata.Timestamp.Time().Format(time.RFC3339)
	api.serveHeatmap(w, r, telemetry, key, func() (*grid.Grid, string, error) {
		result, err := api.svc.Replay(id)
		if err != nil {
			return nil, "", err
		}
		return result.Field, result.Intervention.Description, nil
	})
}

// checkNotModified answers 304 when the caller's Etag was issued for key.
func (api *ApiRouter) checkNotModified(w http.ResponseWriter, r *http.Request, telemetry *appinsights.RequestTelemetry, key string) bool {
	ifNoneMatch := r.Header.Get("If-None-Match")
	if ifNoneMatch == "" {
		api.trackCacheEvent(false, "If-None-Match header not set")
		return false
	}
	telemetry.Properties["If-None-Match"] = ifNoneMatch

	cachedKey := api.etags.Get(ifNoneMatch)
	if cachedKey == nil {
		api.trackCacheEvent(false, "no cached data")
		return false
	}
	if *cachedKey != key {
		api.trackCacheEvent(false, "image has changed")
		telemetry.Properties["cache-invalid"] = "image has changed"
		return false
	}
	api.trackCacheEvent(true, "no-significant-change")
	w.Header().Set("Etag", ifNoneMatch)
	w.WriteHeader(http.StatusNotModified)
	return true
}

// serveHeatmap writes the PNG for key, rendering it with render only when it
// is not already cached.
func (api *ApiRouter) serveHeatmap(w http.ResponseWriter, r *http.Request, telemetry *appinsights.RequestTelemetry, key string, render func() (*grid.Grid, string, error)) {
	if api.checkNotModified(w, r, telemetry, key) {
		return
	}

	bufBytes := api.images.Get(key)
	if bufBytes == nil {
		g, subtitle, err := render()
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		dc, err := drawHeatmap(g, api.svc.ScaleMax(), heatmapTitle, subtitle)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// Can't use multiwriter here because we need the hash to set
		// the etag header before writing the image to the response
		buf := new(bytes.Buffer)
		if err := dc.EncodePNG(buf); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		b := buf.Bytes()
		bufBytes = &b
		api.images.Set(key, bufBytes)
	}

	hash := sha1.New()
	hash.Write(*bufBytes)
	hashValue := fmt.Sprintf("%x", hash.Sum(nil))

	api.etags.Set(hashValue, &key)
	api.logger.Debug("rendered heatmap", zap.String("key", key), zap.String("etag", hashValue))
	telemetry.Properties["Etag"] = hashValue

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Etag", hashValue)
	_, _ = w.Write(*bufBytes)
}
