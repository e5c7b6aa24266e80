package server

import (
	"context"
	"fmt"

	config "moagem-api/configs"
	"moagem-api/pkg/handlers"
	"moagem-api/pkg/llm"
	"moagem-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// シナリオエンドポイントのパス
const (
	MockScenarioPath     = "/api/analisar"
	ExternalScenarioPath = "/api/analisar-ia"
)

// Advisors はルーターに登録するアドバイザーの組です。
type Advisors struct {
	Mock     services.ScenarioAdvisor
	External services.ScenarioAdvisor
}

// BuildAdvisors は設定からモックと外部IAのアドバイザーを作成します。
// プロバイダーのクライアントが作れない場合も起動は続け、外部IAのリクエストは設定エラーとして応答します。
func BuildAdvisors(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Advisors, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	prompt, err := config.LoadAdvisorPrompt()
	if err != nil {
		return Advisors{}, fmt.Errorf("falha ao carregar prompt do assessor: %w", err)
	}

	var client llm.ChatClient
	if c, err := llm.NewFromConfig(ctx, cfg); err != nil {
		logger.Warn("⚠️ IAクライアントを初期化できませんでした",
			zap.String("provider", cfg.AdvisorProvider),
			zap.Error(err),
		)
	} else {
		client = c
	}

	// 環境変数はインスタンスごとに固定なので、認証情報は起動時に一度だけ読む
	credential, credentialEnv := cfg.AdvisorCredential()
	external, err := services.NewExternalAdvisor(client, prompt, services.ExternalAdvisorOptions{
		Credential:    credential,
		CredentialEnv: credentialEnv,
		Timeout:       cfg.AdvisorTimeout,
		StrictSchema:  cfg.AdvisorStrictSchema,
	}, logger)
	if err != nil {
		return Advisors{}, err
	}

	return Advisors{Mock: services.NewMockAdvisor(), External: external}, nil
}

// NewRouter は設定からアドバイザーを組み立て、Ginエンジンを返します。
func NewRouter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gin.Engine, error) {
	advisors, err := BuildAdvisors(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewRouterWithAdvisors(cfg, logger, advisors), nil
}

// NewRouterWithAdvisors はミドルウェアとルートを登録したGinエンジンを返します。
func NewRouterWithAdvisors(cfg *config.Config, logger *zap.Logger, advisors Advisors) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg != nil && cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	monitoringService := services.NewMonitoringService(services.DefaultMonitoringCapacity, logger.Named("http"))
	planilhaService := services.NewPlanilhaService(logger)

	mockHandler := handlers.NewScenarioHandler(advisors.Mock, planilhaService, logger)
	externalHandler := handlers.NewScenarioHandler(advisors.External, planilhaService, logger)
	healthHandler := handlers.NewHealthHandler(advisors.Mock, advisors.External)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

	// ミドルウェアの登録
	r.Use(monitoringService.LoggingMiddleware())
	r.Use(handlers.Recovery(logger))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"POST", "OPTIONS"},
		AllowHeaders:    []string{handlers.AllowHeaders},
	}))

	// ヘルスチェックとメトリクス
	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// シナリオAPI。メソッドの判定はハンドラー側で行う
	r.Any(MockScenarioPath, mockHandler.Handle)
	r.Any(ExternalScenarioPath, externalHandler.Handle)
	// Anyは標準メソッドしか登録しないため、拡張メソッドもここからハンドラーに渡す
	r.NoRoute(func(c *gin.Context) {
		switch c.Request.URL.Path {
		case MockScenarioPath:
			mockHandler.Handle(c)
		case ExternalScenarioPath:
			externalHandler.Handle(c)
		}
	})

	// モニタリングAPI
	v1 := r.Group("/api/v1")
	{
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	return r
}
