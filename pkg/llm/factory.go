package llm

import (
	"context"
	"fmt"
	"strings"

	config "moagem-api/configs"
)

// NewFromConfig は設定で選択されたプロバイダーのクライアントを作成します。
// 認証情報が空でもOpenAI/Azureのクライアントは作成され、呼び出し時にエラーになります。
func NewFromConfig(ctx context.Context, cfg *config.Config) (ChatClient, error) {
	opts := Options{
		Model:       cfg.AdvisorModel,
		Temperature: float32(cfg.AdvisorTemperature),
		MaxTokens:   cfg.AdvisorMaxTokens,
		JSONMode:    true,
	}

	switch cfg.AdvisorProvider {
	case config.ProviderOpenAI, "":
		return NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, opts), nil
	case config.ProviderAzure:
		return NewAzureOpenAIClient(
			cfg.AzureOpenAIEndpoint,
			cfg.AzureOpenAIAPIKey,
			cfg.AzureOpenAIAPIVersion,
			cfg.AzureOpenAIChatDeploymentName,
			opts,
		), nil
	case config.ProviderGemini:
		// ADVISOR_MODELの既定値はOpenAI用なので、Gemini側の既定モデルに任せる
		if strings.HasPrefix(opts.Model, "gpt-") {
			opts.Model = ""
		}
		client, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("provedor de IA desconhecido: %q", cfg.AdvisorProvider)
	}
}
