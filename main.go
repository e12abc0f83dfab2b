package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/appinsightsutils"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/config"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/data"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/geo"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/grid"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/intervention"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/llm"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/metrics"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/openaq"
	"github.com/stuartleeks/nyc-co2-sim/sim-api/sim"
)

// Set with -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_, err := os.Stat(".env")
	if err == nil {
		err := godotenv.Load()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error loading .env file")
			os.Exit(1)
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "co2sim",
		Short:        "Simulate the effect of sustainability interventions on NYC CO₂ emissions",
		Version:      version,
		SilenceUsage: true,
		RunE:         runServe,
	}
	flags := root.PersistentFlags()
	flags.String("data-dir", config.GetDataDir(), "Directory holding reference data and history")
	flags.String("log-level", config.GetLogLevel(), "Log level (debug, info, warn, error)")
	flags.String("llm-provider", config.GetLLMProvider(), "Prompt parser model: anthropic, gemini or none")
	flags.Int("grid-resolution", config.GetGridResolution(), "Cells per side of the emissions grid")
	bindFlag(flags.Lookup("data-dir"), config.KeyDataDir)
	bindFlag(flags.Lookup("log-level"), config.KeyLogLevel)
	bindFlag(flags.Lookup("llm-provider"), config.KeyLLMProvider)
	bindFlag(flags.Lookup("grid-resolution"), config.KeyGridResolution)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  runServe,
	}
	serve.Flags().Int("port", config.GetPort(), "Port to listen on")
	bindFlag(serve.Flags().Lookup("port"), config.KeyPort)

	simulate := &cobra.Command{
		Use:   "simulate <prompt>",
		Short: "Run one simulation and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSimulate,
	}
	simulate.Flags().String("png", "", "Write the simulated heatmap to this file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "co2sim %s (commit %s)\n", version, commit)
		},
	}

	root.AddCommand(serve, simulate, versionCmd)
	return root
}

func bindFlag(flag *pflag.Flag, key string) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func newLogger() (*zap.Logger, error) {
	level := strings.ToLower(config.GetLogLevel())
	logConfig := zap.NewProductionConfig()
	if level == "debug" {
		logConfig = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logConfig.Level = lvl
	return logConfig.Build()
}

func llmConfig() llm.Config {
	cfg := llm.Config{Provider: config.GetLLMProvider()}
	switch strings.ToLower(cfg.Provider) {
	case llm.ProviderAnthropic:
		cfg.APIKey = config.GetAnthropicAPIKey()
		cfg.Model = config.GetAnthropicModel()
		cfg.BaseURL = config.GetAnthropicURL()
	case llm.ProviderGemini:
		cfg.APIKey = config.GetGeminiAPIKey()
		cfg.Model = config.GetGeminiModel()
	}
	return cfg
}

// newService wires the parser, history and data sources and loads the
// baseline.
func newService(ctx context.Context, logger *zap.Logger) (*sim.Service, *metrics.Metrics, error) {
	client, err := llm.NewClient(ctx, llmConfig(), logger)
	if err != nil {
		return nil, nil, err
	}
	var primary intervention.Parser
	if client != nil {
		primary = intervention.NewLLMParser(client, logger)
	}
	parser := intervention.NewFallbackParser(primary, logger)

	m := metrics.New()
	svc := sim.New(geo.DefaultAtlas(), parser, data.NewHistory(config.GetHistoryFile()), m, config.GetCacheTTL(), logger)

	var stations openaq.Source
	if config.GetOpenAQEnabled() {
		stations = openaq.NewCachedSource(openaq.NewClient(config.GetOpenAQURL(), config.GetOpenAQAPIKey()), openaq.CacheTTL, logger)
	}
	dataDir := config.GetDataDir()
	err = svc.Load(ctx, sim.LoadOptions{
		DataDir:        dataDir,
		BoundariesFile: config.GetBoundariesFile(),
		BuildingsCSV:   filepath.Join(dataDir, "buildings", "ll84_energy_water.csv"),
		Resolution:     config.GetGridResolution(),
		Seed:           grid.DefaultSeed,
		Stations:       stations,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, m, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("server starting", zap.Int("pid", os.Getpid()), zap.String("version", version))
	logger.Info("data directory", zap.String("path", config.GetDataDir()))
	logger.Info("history file", zap.String("path", config.GetHistoryFile()))

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, m, err := newService(ctx, logger)
	if err != nil {
		return err
	}

	address := fmt.Sprintf(":%d", config.GetPort())
	if err := serveAPI(ctx, address, svc, m, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newAppInsightsClient(logger *zap.Logger) appinsights.TelemetryClient {
	appInsightsInstrumentationKey := config.GetApplicationInsightsInstrumentationKey()
	if appInsightsInstrumentationKey == "" {
		logger.Info("application insights instrumentation key not set, telemetry disabled")
		return nil
	}

	telemetryConfig := appinsights.NewTelemetryConfiguration(appInsightsInstrumentationKey)
	// Configure how many items can be sent in one call to the data collector:
	telemetryConfig.MaxBatchSize = 8192
	// Configure the maximum delay before sending queued telemetry:
	telemetryConfig.MaxBatchInterval = 2 * time.Second

	appInsightsClient := appinsights.NewTelemetryClientFromConfig(telemetryConfig)
	appInsightsClient.Context().Tags.Cloud().SetRole("co2sim-api")
	return appInsightsClient
}

func serveAPI(ctx context.Context, address string, svc *sim.Service, m *metrics.Metrics, logger *zap.Logger) error {
	logger.Info("listening", zap.String("address", address))
	l, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	appInsightsClient := newAppInsightsClient(logger)
	mux := appinsightsutils.NewServeMuxWithTrace(appInsightsClient, m, logger)
	registerHandlers(mux, NewApiRouter(svc, appInsightsClient, logger), m)
	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		if appInsightsClient != nil {
			<-appInsightsClient.Channel().Close(shutdownTimeout)
		}
	}()
	return server.Serve(l)
}

func registerHandlers(mux *appinsightsutils.ServeMuxWithTrace, api *ApiRouter, m *metrics.Metrics) {
	mux.HandleFunc("GET /", api.Hello)
	mux.HandleFunc("GET /api/health", api.HealthGet)
	mux.HandleFunc("GET /api/baseline", api.BaselineGet)
	mux.HandleFuncWithContext("GET /api/baseline/image", api.BaselineImageGet)
	mux.HandleFunc("POST /api/simulate", api.SimulatePost)
	mux.HandleFunc("GET /api/simulations", api.SimulationsGet)
	mux.HandleFunc("GET /api/simulations/{id}", api.SimulationGet)
	mux.HandleFuncWithContext("GET /api/simulations/{id}/image", api.SimulationImageGet)
	mux.HandleFunc("GET /api/openaq", api.OpenAQGet)
	mux.HandleFunc("GET /api/sectors/{sector}/facilities", api.FacilitiesGet)
	mux.Handle("GET /metrics", m.Handler())
}
