package appinsightsutils

import (
	"fmt"
	"net/http"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"go.uber.org/zap"
)

// RequestObserver receives one call per completed request.
type RequestObserver interface {
	ObserveRequest(route, method string, code int, elapsed time.Duration)
}

// ServeMuxWithTrace records every request to Application Insights (when a
// client is configured), to the observer and to the log. It also answers
// CORS preflight requests.
type ServeMuxWithTrace struct {
	*http.ServeMux
	appInsightsClient appinsights.TelemetryClient
	observer          RequestObserver
	logger            *zap.Logger
}

// NewServeMuxWithTrace accepts a nil appInsightsClient or observer.
func NewServeMuxWithTrace(appInsightsClient appinsights.TelemetryClient, observer RequestObserver, logger *zap.Logger) *ServeMuxWithTrace {
	return &ServeMuxWithTrace{
		ServeMux:          http.NewServeMux(),
		appInsightsClient: appInsightsClient,
		observer:          observer,
		logger:            logger,
	}
}

func (mux *ServeMuxWithTrace) Handle(pattern string, handler http.Handler) {
	mux.ServeMux.HandleFunc(pattern, mux.trace(pattern, func(w http.ResponseWriter, r *http.Request, _ *appinsights.RequestTelemetry) {
		handler.ServeHTTP(w, r)
	}))
}
func (mux *ServeMuxWithTrace) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	mux.ServeMux.HandleFunc(pattern, mux.trace(pattern, func(w http.ResponseWriter, r *http.Request, _ *appinsights.RequestTelemetry) {
		handler(w, r)
	}))
}
func (mux *ServeMuxWithTrace) HandleFuncWithContext(pattern string, handler func(http.ResponseWriter, *http.Request, *appinsights.RequestTelemetry)) {
	mux.ServeMux.HandleFunc(pattern, mux.trace(pattern, handler))
}

func (mux *ServeMuxWithTrace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "*")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	mux.ServeMux.ServeHTTP(w, r)
}

func (mux *ServeMuxWithTrace) trace(name string, fn func(http.ResponseWriter, *http.Request, *appinsights.RequestTelemetry)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheme := "https"
		if r.TLS == nil {
			scheme = "http"
		}
		telemetry := appinsights.NewRequestTelemetry(r.Method, fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path), 0*time.Second, "200")
		startTime := time.Now().UTC()

		wrappedResponseWriter := NewResponseWriterWithStatusCode(w)
		fn(wrappedResponseWriter, r, telemetry)

		duration := time.Since(startTime)
		statusCode := wrappedResponseWriter.StatusCode()
		telemetry.Duration = duration
		telemetry.ResponseCode = fmt.Sprintf("%d", statusCode)
		telemetry.Success = statusCode < http.StatusBadRequest
		telemetry.Name = name

		if mux.appInsightsClient != nil {
			mux.appInsightsClient.Track(telemetry)
		}
		if mux.observer != nil {
			mux.observer.ObserveRequest(name, r.Method, statusCode, duration)
		}
		mux.logger.Info("request",
			zap.String("route", name),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", statusCode),
			zap.Int("bytes", wrappedResponseWriter.BytesWritten()),
			zap.Duration("duration", duration))
	}
}
