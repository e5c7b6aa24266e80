package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	config "moagem-api/configs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClientComplete(t *testing.T) {
	var received ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"{\"status\":\"OK\"}"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL+"/v1/", "sk-test", Options{Model: "gpt-4o-mini", Temperature: 0.2, MaxTokens: 100, JSONMode: true})
	text, err := client.Complete(context.Background(), "sistema", "usuario")

	require.NoError(t, err)
	assert.Equal(t, `{"status":"OK"}`, text)
	assert.Equal(t, "gpt-4o-mini", received.Model)
	require.Len(t, received.Messages, 2)
	assert.Equal(t, ChatMessage{Role: "system", Content: "sistema"}, received.Messages[0])
	assert.Equal(t, ChatMessage{Role: "user", Content: "usuario"}, received.Messages[1])
	require.NotNil(t, received.ResponseFormat)
	assert.Equal(t, "json_object", received.ResponseFormat.Type)
}

func TestAzureOpenAIClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/moagem-gpt/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "az-key", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "model", "azure routes by deployment, not by model field")

		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client := NewAzureOpenAIClient(server.URL+"/", "az-key", "2024-06-01", "moagem-gpt", Options{})
	text, err := client.Complete(context.Background(), "s", "u")

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, "moagem-gpt", client.Model())
}

func TestOpenAIClientErrors(t *testing.T) {
	t.Run("api error message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
		}))
		defer server.Close()

		_, err := NewOpenAIClient(server.URL, "k", Options{}).Complete(context.Background(), "s", "u")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
		assert.Contains(t, err.Error(), "Rate limit reached")
	})

	t.Run("empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer server.Close()

		_, err := NewOpenAIClient(server.URL, "k", Options{}).Complete(context.Background(), "s", "u")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewOpenAIClient("http://127.0.0.1:0", "", Options{}).Complete(context.Background(), "s", "u")
		assert.Error(t, err)
	})
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{
		AdvisorProvider: config.ProviderOpenAI,
		AdvisorModel:    "gpt-4o-mini",
		OpenAIBaseURL:   "https://api.openai.com/v1",
	}
	client, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)
	assert.Equal(t, "gpt-4o-mini", client.Model())

	cfg.AdvisorProvider = config.ProviderAzure
	cfg.AzureOpenAIChatDeploymentName = "dep"
	client, err = NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)

	cfg.AdvisorProvider = config.ProviderGemini
	_, err = NewFromConfig(context.Background(), cfg)
	assert.Error(t, err, "gemini without key cannot build a client")

	cfg.AdvisorProvider = "anthropic"
	_, err = NewFromConfig(context.Background(), cfg)
	assert.Error(t, err)
}
