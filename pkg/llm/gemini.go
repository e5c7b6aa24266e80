package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient はGoogle GenAI SDK経由でGeminiモデルを呼び出します。
type GeminiClient struct {
	client *genai.Client
	opts   Options
}

// NewGeminiClient は新しいGeminiクライアントを作成します。
func NewGeminiClient(ctx context.Context, apiKey string, opts Options) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY é obrigatória")
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("falha ao criar cliente GenAI: %w", err)
	}

	return &GeminiClient{client: client, opts: opts}, nil
}

// Model は使用するモデル名を返します。
func (c *GeminiClient) Model() string {
	return c.opts.Model
}

// Complete はシステム指示付きでコンテンツを生成し、本文テキストを返します。
func (c *GeminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	temperature := c.opts.Temperature
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       &temperature,
		MaxOutputTokens:   int32(c.opts.MaxTokens),
	}
	if c.opts.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	result, err := c.client.Models.GenerateContent(ctx, c.opts.Model, genai.Text(user), config)
	if err != nil {
		return "", fmt.Errorf("chamada ao Gemini falhou: %w", err)
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
