package services

import (
	"context"
	"fmt"

	"moagem-api/pkg/models"
)

// MockSugestoes はモック応答に常に含まれる2つの固定提案です。
var MockSugestoes = []string{
	"Se a projeção entrar em risco, reduzir preventivo antes de encostar no crítico.",
	"Se o cenário virar positivo, rampear em degraus para aproveitar a oportunidade.",
}

const mockInformativoTemplate = `Informativo %s

Recebido no backend:
- densidade: %s
- estoque: %s conj
- motivo: %s

Realizado: %d linhas
Futuro: %d linhas

✅ API no ar. Próximo passo: plugar IA real aqui.`

// MockAdvisor は外部サービスを呼ばずに、受け取った値を埋め込んだ固定の要約を返します。
type MockAdvisor struct{}

// NewMockAdvisor は新しいMockAdvisorを作成します。
func NewMockAdvisor() *MockAdvisor {
	return &MockAdvisor{}
}

func (m *MockAdvisor) Name() string { return "mock" }

func (m *MockAdvisor) CheckConfig() error { return nil }

// Advise はテンプレートに値を差し込んだ informativo と固定の sugestoes を返します。
func (m *MockAdvisor) Advise(_ context.Context, req models.ScenarioRequest) (map[string]interface{}, error) {
	return map[string]interface{}{
		"informativo": FormatMockInformativo(req),
		"sugestoes":   append([]string(nil), MockSugestoes...),
	}, nil
}

// FormatMockInformativo はモック応答のテキストを組み立てます。
func FormatMockInformativo(req models.ScenarioRequest) string {
	unidade := "—"
	if req.Unidade != nil {
		unidade = *req.Unidade
	}

	return fmt.Sprintf(mockInformativoTemplate,
		unidade,
		models.FormatNumber(req.Densidade, "—"),
		models.FormatNumber(req.EstoqueAtualConj, "—"),
		req.Motivo,
		len(req.Realizado),
		len(req.Futuro),
	)
}
