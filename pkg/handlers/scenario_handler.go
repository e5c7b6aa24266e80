package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"moagem-api/pkg/metrics"
	"moagem-api/pkg/models"
	"moagem-api/pkg/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CORSの固定値。ブラウザのプリフライトにはcorsミドルウェアも同じ値で応答する。
const (
	AllowOrigin  = "*"
	AllowMethods = "POST, OPTIONS"
	AllowHeaders = "Content-Type"
)

// ScenarioHandler はシナリオを受け取り、アドバイザーの推奨を返すエンドポイントです。
// モックと外部IAの2つのルートは、アドバイザーだけが異なる同じハンドラーを使います。
type ScenarioHandler struct {
	advisor  services.ScenarioAdvisor
	planilha *services.PlanilhaService
	logger   *zap.Logger
}

// NewScenarioHandler は新しいScenarioHandlerを作成します。
func NewScenarioHandler(advisor services.ScenarioAdvisor, planilha *services.PlanilhaService, logger *zap.Logger) *ScenarioHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if planilha == nil {
		planilha = services.NewPlanilhaService(logger)
	}
	return &ScenarioHandler{
		advisor:  advisor,
		planilha: planilha,
		logger:   logger.Named("scenario").With(zap.String("advisor", advisor.Name())),
	}
}

// Handle はPOSTされたシナリオを処理します。
func (h *ScenarioHandler) Handle(c *gin.Context) {
	setCORSHeaders(c)

	if c.Request.Method == http.MethodOptions {
		h.count("preflight")
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	if c.Request.Method != http.MethodPost {
		h.count("method_not_allowed")
		c.JSON(http.StatusMethodNotAllowed, gin.H{"ok": false, "error": "Use POST"})
		return
	}

	if err := h.advisor.CheckConfig(); err != nil {
		h.count("not_configured")
		h.requestLogger(c).Error("❌ アドバイザーが設定されていません", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	raw, err := h.readScenario(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	req := models.NewScenarioRequest(raw)

	payload, err := h.advisor.Advise(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	body := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["ok"] = true

	h.count("ok")
	h.requestLogger(c).Info("✅ シナリオを処理しました",
		zap.Int("realizado", len(req.Realizado)),
		zap.Int("futuro", len(req.Futuro)),
	)
	c.JSON(http.StatusOK, body)
}

// readScenario はJSONボディまたはmultipartのスプレッドシートを読み込みます。
// 空のボディやオブジェクト以外のJSONは空のシナリオとして扱います。
func (h *ScenarioHandler) readScenario(c *gin.Context) (map[string]interface{}, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return h.readPlanilha(c)
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, fmt.Errorf("falha ao ler corpo da requisição: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("JSON inválido no corpo da requisição: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("JSON inválido no corpo da requisição: conteúdo extra após o objeto")
	}

	obj, _ := decoded.(map[string]interface{})
	return obj, nil
}

func (h *ScenarioHandler) readPlanilha(c *gin.Context) (map[string]interface{}, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxPlanilhaSize)
	if err := c.Request.ParseMultipartForm(services.MaxPlanilhaSize); err != nil {
		return nil, fmt.Errorf("falha ao ler formulário: %w", err)
	}

	fields := make(map[string]string)
	for key, values := range c.Request.MultipartForm.Value {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}

	file, header, err := c.Request.FormFile("planilha")
	if errors.Is(err, http.ErrMissingFile) {
		return h.planilha.BuildScenario(fields, "", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("falha ao obter a planilha: %w", err)
	}
	defer file.Close()

	return h.planilha.BuildScenario(fields, header.Filename, file)
}

func (h *ScenarioHandler) fail(c *gin.Context, err error) {
	h.count("error")
	h.requestLogger(c).Error("❌ シナリオの処理に失敗しました", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Falha", "detail": err.Error()})
}

func (h *ScenarioHandler) count(result string) {
	metrics.ScenarioRequests.WithLabelValues(h.advisor.Name(), result).Inc()
}

func (h *ScenarioHandler) requestLogger(c *gin.Context) *zap.Logger {
	if id := c.GetString("request_id"); id != "" {
		return h.logger.With(zap.String("request_id", id))
	}
	return h.logger
}

func setCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", AllowOrigin)
	c.Header("Access-Control-Allow-Methods", AllowMethods)
	c.Header("Access-Control-Allow-Headers", AllowHeaders)
}

// Recovery はパニックを {ok:false, error:"Falha", detail} の500レスポンスに変換するミドルウェアです。
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered interface{}) {
		logger.Error("💥 パニックから復帰しました",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
		)
		setCORSHeaders(c)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"ok":     false,
			"error":  "Falha",
			"detail": fmt.Sprint(recovered),
		})
	})
}
