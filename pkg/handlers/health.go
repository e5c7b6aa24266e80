package handlers

import (
	"net/http"

	"moagem-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// HealthHandler は外部のヘルスチェッカーに応答します。
type HealthHandler struct {
	advisors []services.ScenarioAdvisor
}

// NewHealthHandler は新しいHealthHandlerを生成します。
func NewHealthHandler(advisors ...services.ScenarioAdvisor) *HealthHandler {
	return &HealthHandler{advisors: advisors}
}

// HealthCheck はプロセスの生存と、各アドバイザーの設定状況を返します。
// アドバイザーが未設定でもプロセス自体は正常なので200を返します。
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	configured := make(map[string]bool, len(h.advisors))
	for _, advisor := range h.advisors {
		configured[advisor.Name()] = advisor.CheckConfig() == nil
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "advisors": configured})
}
