package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	KeyPort               = "port"
	KeyDataDir            = "data_dir"
	KeyHistoryFile        = "history_file"
	KeyBoundariesFile     = "boundaries_file"
	KeyGridResolution     = "grid_resolution"
	KeyLLMProvider        = "llm_provider"
	KeyAnthropicAPIKey    = "anthropic_api_key"
	KeyAnthropicModel     = "anthropic_model"
	KeyAnthropicURL       = "anthropic_url"
	KeyGeminiAPIKey       = "gemini_api_key"
	KeyGeminiModel        = "gemini_model"
	KeyOpenAQEnabled      = "openaq_enabled"
	KeyOpenAQURL          = "openaq_url"
	KeyOpenAQAPIKey       = "openaq_api_key"
	KeyCacheTTL           = "cache_ttl"
	KeyLogLevel           = "log_level"
	KeyInstrumentationKey = "applicationinsights_instrumentation_key"
)

func init() {
	SetDefaults(viper.GetViper())
}

// SetDefaults registers defaults on v and binds every key to its upper-case
// environment variable.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, 8000)
	v.SetDefault(KeyDataDir, "data")
	v.SetDefault(KeyGridResolution, 50)
	v.SetDefault(KeyLLMProvider, "anthropic")
	v.SetDefault(KeyAnthropicModel, "claude-3-5-haiku-latest")
	v.SetDefault(KeyAnthropicURL, "https://api.anthropic.com/v1")
	v.SetDefault(KeyGeminiModel, "gemini-2.0-flash")
	v.SetDefault(KeyOpenAQEnabled, true)
	v.SetDefault(KeyOpenAQURL, "https://api.openaq.org/v2/latest")
	v.SetDefault(KeyCacheTTL, 10*time.Minute)
	v.SetDefault(KeyLogLevel, "info")
	v.AutomaticEnv()
}

func GetPort() int {
	return viper.GetInt(KeyPort)
}

func GetDataDir() string {
	return viper.GetString(KeyDataDir)
}

func GetHistoryFile() string {
	p := viper.GetString(KeyHistoryFile)
	if p == "" {
		p = filepath.Join(GetDataDir(), "history.json")
	}
	return p
}

func GetBoundariesFile() string {
	p := viper.GetString(KeyBoundariesFile)
	if p == "" {
		p = filepath.Join(GetDataDir(), "geo", "borough_boundaries.geojson")
	}
	return p
}

func GetGridResolution() int {
	return viper.GetInt(KeyGridResolution)
}

func GetLLMProvider() string {
	return viper.GetString(KeyLLMProvider)
}

func GetAnthropicAPIKey() string {
	return viper.GetString(KeyAnthropicAPIKey)
}

func GetAnthropicModel() string {
	return viper.GetString(KeyAnthropicModel)
}

func GetAnthropicURL() string {
	return viper.GetString(KeyAnthropicURL)
}

func GetGeminiAPIKey() string {
	return viper.GetString(KeyGeminiAPIKey)
}

func GetGeminiModel() string {
	return viper.GetString(KeyGeminiModel)
}

func GetOpenAQEnabled() bool {
	return viper.GetBool(KeyOpenAQEnabled)
}

func GetOpenAQURL() string {
	return viper.GetString(KeyOpenAQURL)
}

func GetOpenAQAPIKey() string {
	return viper.GetString(KeyOpenAQAPIKey)
}

func GetCacheTTL() time.Duration {
	return viper.GetDuration(KeyCacheTTL)
}

func GetLogLevel() string {
	return viper.GetString(KeyLogLevel)
}

func GetApplicationInsightsInstrumentationKey() string {
	return viper.GetString(KeyInstrumentationKey)
}
