package config

import (
	"time"

	"github.com/spf13/viper"
)

// Advisor providers understood by the advisory endpoint.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderGemini = "gemini"
)

// Config holds the application configuration
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFormat   string

	AdvisorProvider     string
	AdvisorModel        string
	AdvisorTemperature  float64
	AdvisorMaxTokens    int
	AdvisorTimeout      time.Duration
	AdvisorStrictSchema bool

	OpenAIAPIKey  string
	OpenAIBaseURL string

	AzureOpenAIEndpoint           string
	AzureOpenAIAPIKey             string
	AzureOpenAIAPIVersion         string
	AzureOpenAIChatDeploymentName string

	GeminiAPIKey string

	OTLPEndpoint string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ADVISOR_PROVIDER", ProviderOpenAI)
	v.SetDefault("ADVISOR_MODEL", "gpt-4o-mini")
	v.SetDefault("ADVISOR_TEMPERATURE", 0.2)
	v.SetDefault("ADVISOR_MAX_TOKENS", 1500)
	// Vercelの関数は60秒で打ち切られるため、AI呼び出しはそれより前に終わらせる。
	v.SetDefault("ADVISOR_TIMEOUT", 55*time.Second)
	v.SetDefault("ADVISOR_STRICT_SCHEMA", true)
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("AZURE_OPENAI_API_VERSION", "2024-06-01")

	return &Config{
		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFormat:   v.GetString("LOG_FORMAT"),

		AdvisorProvider:     v.GetString("ADVISOR_PROVIDER"),
		AdvisorModel:        v.GetString("ADVISOR_MODEL"),
		AdvisorTemperature:  v.GetFloat64("ADVISOR_TEMPERATURE"),
		AdvisorMaxTokens:    v.GetInt("ADVISOR_MAX_TOKENS"),
		AdvisorTimeout:      v.GetDuration("ADVISOR_TIMEOUT"),
		AdvisorStrictSchema: v.GetBool("ADVISOR_STRICT_SCHEMA"),

		OpenAIAPIKey:  v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL: v.GetString("OPENAI_BASE_URL"),

		AzureOpenAIEndpoint:           v.GetString("AZURE_OPENAI_ENDPOINT"),
		AzureOpenAIAPIKey:             v.GetString("AZURE_OPENAI_API_KEY"),
		AzureOpenAIAPIVersion:         v.GetString("AZURE_OPENAI_API_VERSION"),
		AzureOpenAIChatDeploymentName: v.GetString("AZURE_OPENAI_CHAT_DEPLOYMENT_NAME"),

		GeminiAPIKey: v.GetString("GEMINI_API_KEY"),

		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

// AdvisorCredential は選択中のプロバイダーの認証情報と、その環境変数名を返します。
func (c *Config) AdvisorCredential() (key string, envName string) {
	switch c.AdvisorProvider {
	case ProviderAzure:
		return c.AzureOpenAIAPIKey, "AZURE_OPENAI_API_KEY"
	case ProviderGemini:
		return c.GeminiAPIKey, "GEMINI_API_KEY"
	default:
		return c.OpenAIAPIKey, "OPENAI_API_KEY"
	}
}
