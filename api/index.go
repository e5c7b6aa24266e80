package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	config "moagem-api/configs"
	"moagem-api/pkg/logger"
	"moagem-api/pkg/observability"
	"moagem-api/pkg/server"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// スパン送信を待つ上限
const flushTimeout = 2 * time.Second

var (
	app      http.Handler
	setupErr error
	once     sync.Once
	tracing  bool
	appLog   = zap.NewNop()
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (http.Handler, error) {
	once.Do(func() {
		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()
		log := logger.New(cfg.LogLevel, cfg.LogFormat)
		appLog = log

		ctx := context.Background()
		// 関数インスタンスは明示的に停止されないため、shutdownの代わりにリクエストごとにフラッシュする
		if _, err := observability.SetupTracing(ctx, cfg); err != nil {
			log.Warn("⚠️ トレーシングを初期化できませんでした", zap.Error(err))
		} else {
			tracing = cfg.OTLPEndpoint != ""
		}

		var r *gin.Engine
		r, setupErr = server.NewRouter(ctx, cfg, log)
		if setupErr != nil {
			log.Error("❌ アプリケーションの初期化に失敗しました", zap.Error(setupErr))
			return
		}
		app = r

		log.Info("🟢 アプリケーションを初期化しました",
			zap.String("environment", cfg.Environment),
			zap.String("provider", cfg.AdvisorProvider),
		)
	})
	return app, setupErr
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	h, err := setupApp()
	if err != nil {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"ok":false,"error":"Falha","detail":"inicialização do servidor falhou"}`))
		return
	}
	h.ServeHTTP(w, r)

	if tracing {
		flushSpans()
	}
}

// flushSpans はインスタンスが凍結される前にバッファ中のスパンを送信します。
func flushSpans() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := observability.ForceFlush(ctx); err != nil {
		appLog.Warn("⚠️ スパンを送信できませんでした", zap.Error(err))
	}
}
