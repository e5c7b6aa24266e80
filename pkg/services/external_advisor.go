package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	config "moagem-api/configs"
	"moagem-api/pkg/llm"
	"moagem-api/pkg/metrics"
	"moagem-api/pkg/models"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// 縮退レスポンスに切り替えた理由
const (
	FallbackReasonParse     = "parse"
	FallbackReasonNotObject = "not_object"
	FallbackReasonSchema    = "schema"
)

// ExternalAdvisorOptions は外部アドバイザーの動作設定です。
type ExternalAdvisorOptions struct {
	// Credential はプロバイダーのAPIキー、CredentialEnv はその環境変数名です。
	Credential    string
	CredentialEnv string
	// Timeout が0の場合、呼び出し側のcontext以外に期限を設けません。
	Timeout time.Duration
	// StrictSchema が有効な場合、JSONとして解析できても形が合わなければ縮退レスポンスにします。
	StrictSchema bool
}

// ExternalAdvisor は固定プロンプトで外部LLMに推奨を問い合わせます。
type ExternalAdvisor struct {
	client       llm.ChatClient
	systemPrompt string
	schema       *gojsonschema.Schema
	opts         ExternalAdvisorOptions
	logger       *zap.Logger
	tracer       trace.Tracer
}

// NewExternalAdvisor は新しいExternalAdvisorを作成します。clientがnilの場合、CheckConfigが失敗します。
func NewExternalAdvisor(client llm.ChatClient, prompt *config.AdvisorPromptConfig, opts ExternalAdvisorOptions, logger *zap.Logger) (*ExternalAdvisor, error) {
	if prompt == nil {
		return nil, fmt.Errorf("prompt do assessor não carregado")
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(config.RecommendationSchema()))
	if err != nil {
		return nil, fmt.Errorf("schema de recomendação inválido: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &ExternalAdvisor{
		client:       client,
		systemPrompt: prompt.BuildSystemPrompt(),
		schema:       schema,
		opts:         opts,
		logger:       logger.Named("advisor"),
		tracer:       otel.Tracer("moagem-api/advisor"),
	}, nil
}

func (a *ExternalAdvisor) Name() string { return "ia" }

// CheckConfig は認証情報とクライアントが揃っているかを確認します。外部呼び出しは行いません。
func (a *ExternalAdvisor) CheckConfig() error {
	if a.opts.Credential == "" {
		return newNotConfiguredError("%s não configurada no ambiente", a.credentialEnv())
	}
	if a.client == nil {
		return newNotConfiguredError("cliente de IA indisponível para o provedor configurado")
	}
	return nil
}

func (a *ExternalAdvisor) credentialEnv() string {
	if a.opts.CredentialEnv == "" {
		return "API key"
	}
	return a.opts.CredentialEnv
}

// SystemPrompt は送信するシステム指示を返します。
func (a *ExternalAdvisor) SystemPrompt() string {
	return a.systemPrompt
}

// Advise はシナリオをJSONとしてユーザーメッセージに載せ、アドバイザーの応答を解釈します。
// 応答がJSONとして解釈できない場合はエラーにせず縮退レスポンスを返します。
func (a *ExternalAdvisor) Advise(ctx context.Context, req models.ScenarioRequest) (map[string]interface{}, error) {
	if err := a.CheckConfig(); err != nil {
		return nil, err
	}

	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	model := a.client.Model()
	ctx, span := a.tracer.Start(ctx, "advisor.complete", trace.WithAttributes(
		attribute.String("llm.model", model),
		attribute.Int("scenario.realizado", len(req.Realizado)),
		attribute.Int("scenario.futuro", len(req.Futuro)),
	))
	defer span.End()

	userPayload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("falha ao serializar cenário: %w", err)
	}

	start := time.Now()
	raw, err := a.client.Complete(ctx, a.systemPrompt, string(userPayload))
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "advisor call failed")
		metrics.AdvisorCalls.WithLabelValues(model, "error").Inc()
		metrics.AdvisorCallDuration.WithLabelValues("error").Observe(elapsed.Seconds())
		a.logger.Error("❌ IA呼び出しに失敗", zap.String("model", model), zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, fmt.Errorf("falha ao consultar a IA: %w", err)
	}

	payload, reason := a.Interpret(req.Motivo, raw)
	outcome := "ok"
	if reason != "" {
		outcome = "fallback"
		metrics.AdvisorFallbacks.WithLabelValues(reason).Inc()
		span.SetAttributes(attribute.String("advisor.fallback_reason", reason))
		a.logger.Warn("⚠️ IA応答を解釈できないため縮退レスポンスを返します",
			zap.String("reason", reason),
			zap.Int("raw_length", len(raw)),
		)
	}
	metrics.AdvisorCalls.WithLabelValues(model, outcome).Inc()
	metrics.AdvisorCallDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())

	a.logger.Info("✅ IA応答を受信",
		zap.String("model", model),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
	)
	return payload, nil
}

// Interpret はアドバイザーの生テキストをレスポンス用ペイロードに変換します。
// 2番目の戻り値は縮退レスポンスに切り替えた理由で、解釈に成功した場合は空文字列です。
func (a *ExternalAdvisor) Interpret(motivo, raw string) (map[string]interface{}, string) {
	parsed, err := decodeJSONDocument(stripMarkdownCodeFences(raw))
	if err != nil {
		return models.FallbackRecommendation(motivo, raw).Payload(), FallbackReasonParse
	}

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return models.FallbackRecommendation(motivo, raw).Payload(), FallbackReasonNotObject
	}

	if a.opts.StrictSchema {
		result, err := a.schema.Validate(gojsonschema.NewGoLoader(obj))
		if err != nil || !result.Valid() {
			if result != nil {
				errs := make([]string, 0, len(result.Errors()))
				for _, desc := range result.Errors() {
					errs = append(errs, desc.String())
				}
				a.logger.Debug("schema mismatch", zap.Strings("errors", errs))
			}
			return models.FallbackRecommendation(motivo, raw).Payload(), FallbackReasonSchema
		}
	}

	return obj, ""
}

// decodeJSONDocument は1つのJSON文書だけを受け付けます。数値は元の表記のまま保持します。
func decodeJSONDocument(text string) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("conteúdo extra após o JSON")
	}
	return v, nil
}

// stripMarkdownCodeFences は ```json ... ``` のようなコードフェンスを取り除きます。
func stripMarkdownCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}

	firstNewline := strings.Index(trimmed, "\n")
	if firstNewline == -1 {
		return s
	}
	lastFence := strings.LastIndex(trimmed, "```")
	if lastFence <= firstNewline {
		return s
	}
	return strings.TrimSpace(trimmed[firstNewline+1 : lastFence])
}
