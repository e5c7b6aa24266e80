package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient はOpenAI互換のChat Completions REST APIへのリクエストを管理します。
// azureDeploymentが設定されている場合はAzure OpenAIのデプロイメントURLと認証ヘッダーを使います。
type OpenAIClient struct {
	baseURL         string
	apiKey          string
	apiVersion      string
	azureDeployment string
	opts            Options
	httpClient      *http.Client
}

// NewOpenAIClient はOpenAI用のクライアントを作成します。baseURLは https://api.openai.com/v1 など。
func NewOpenAIClient(baseURL, apiKey string, opts Options) *OpenAIClient {
	return &OpenAIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		opts:    opts,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// NewAzureOpenAIClient はAzure OpenAI用のクライアントを作成します。
func NewAzureOpenAIClient(endpoint, apiKey, apiVersion, deploymentName string, opts Options) *OpenAIClient {
	if opts.Model == "" {
		opts.Model = deploymentName
	}
	return &OpenAIClient{
		baseURL:         strings.TrimSuffix(endpoint, "/"),
		apiKey:          apiKey,
		apiVersion:      apiVersion,
		azureDeployment: deploymentName,
		opts:            opts,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// --- データ構造定義 ---

// ChatMessage チャットメッセージ
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat レスポンス形式の指定
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatCompletionRequest チャット補完リクエスト
type ChatCompletionRequest struct {
	Model          string          `json:"model,omitempty"`
	Messages       []ChatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float32         `json:"temperature"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatCompletionResponse チャット補完レスポンス
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// --- メソッド定義 ---

// Model は使用するモデル名（Azureではデプロイメント名）を返します。
func (c *OpenAIClient) Model() string {
	return c.opts.Model
}

// Complete はsystem + userの2メッセージでチャット補完を実行し、最初の選択肢の本文を返します。
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	request := ChatCompletionRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	}
	if c.azureDeployment == "" {
		request.Model = c.opts.Model
	}
	if c.opts.JSONMode {
		request.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	var response ChatCompletionResponse
	if err := c.doRequest(ctx, c.completionsURL(), request, &response); err != nil {
		return "", fmt.Errorf("chamada à API de chat falhou: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return response.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) completionsURL() string {
	if c.azureDeployment != "" {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			c.baseURL, c.azureDeployment, c.apiVersion)
	}
	return c.baseURL + "/chat/completions"
}

// doRequest はHTTPリクエストの実行と基本的なレスポンス処理を行う共通メソッドです。
func (c *OpenAIClient) doRequest(ctx context.Context, url string, requestData interface{}, responseData interface{}) error {
	if c.apiKey == "" {
		return fmt.Errorf("API key não configurada")
	}

	requestBody, err := json.Marshal(requestData)
	if err != nil {
		return fmt.Errorf("falha ao serializar requisição: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("falha ao criar requisição HTTP: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.azureDeployment != "" {
		req.Header.Set("api-key", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("falha ao executar requisição HTTP: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("falha ao ler resposta: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			return fmt.Errorf("erro da API (status: %d): %s", resp.StatusCode, errorResp.Error.Message)
		}
		return fmt.Errorf("erro da API (status: %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, responseData); err != nil {
		return fmt.Errorf("falha ao decodificar resposta: %w", err)
	}

	return nil
}
