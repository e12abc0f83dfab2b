// Package openaq fetches recent PM2.5 readings around New York City from the
// OpenAQ API.
package openaq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/data"
)

const (
	DefaultURL = "https://api.openaq.org/v2/latest"
	CacheTTL   = time.Hour

	nycCoordinates = "40.7128,-74.0060"
	searchRadius   = "50000"
	resultLimit    = "100"
)

// Station is one PM2.5 measurement.
type Station struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
	Location string  `json:"location"`
}

type latestResponse struct {
	Results []struct {
		Location    string `json:"location"`
		Coordinates *struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"coordinates"`
		Measurements []struct {
			Parameter string  `json:"parameter"`
			Value     float64 `json:"value"`
			Unit      string  `json:"unit"`
		} `json:"measurements"`
	} `json:"results"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return NewClientWithHTTP(baseURL, apiKey, &http.Client{Timeout: 10 * time.Second})
}

func NewClientWithHTTP(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}
}

// Latest returns the current PM2.5 stations within 50km of the city centre.
func (c *Client) Latest(ctx context.Context) ([]Station, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid OpenAQ URL: %w", err)
	}
	q := u.Query()
	q.Set("limit", resultLimit)
	q.Set("parameter", "pm25")
	q.Set("coordinates", nycCoordinates)
	q.Set("radius", searchRadius)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OpenAQ request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAQ returned status %d", resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode OpenAQ response: %w", err)
	}

	stations := []Station{}
	for _, r := range body.Results {
		if r.Coordinates == nil {
			continue
		}
		location := r.Location
		if location == "" {
			location = "Unknown"
		}
		for _, m := range r.Measurements {
			if m.Parameter != "pm25" {
				continue
			}
			stations = append(stations, Station{
				Lat:      r.Coordinates.Latitude,
				Lon:      r.Coordinates.Longitude,
				Value:    m.Value,
				Unit:     m.Unit,
				Location: location,
			})
		}
	}
	return stations, nil
}

// Source provides station readings.
type Source interface {
	Latest(ctx context.Context) ([]Station, error)
}

// CachedSource keeps the last successful fetch for an hour.
type CachedSource struct {
	source Source
	cache  *data.Cache[string, []Station]
	logger *zap.Logger
}

const cacheKey = "latest"

func NewCachedSource(source Source, ttl time.Duration, logger *zap.Logger) *CachedSource {
	return &CachedSource{
		source: source,
		cache:  data.NewCache[string, []Station](ttl),
		logger: logger,
	}
}

// Latest returns cached stations when fresh. On a fetch error it returns an
// empty list alongside the error so callers can carry on without stations.
func (s *CachedSource) Latest(ctx context.Context) ([]Station, error) {
	if cached := s.cache.Get(cacheKey); cached != nil {
		return *cached, nil
	}
	stations, err := s.source.Latest(ctx)
	if err != nil {
		s.logger.Warn("OpenAQ fetch failed", zap.Error(err))
		return []Station{}, err
	}
	s.logger.Info("fetched OpenAQ measurements", zap.Int("count", len(stations)))
	s.cache.Set(cacheKey, &stations)
	return stations, nil
}
