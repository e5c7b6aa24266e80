package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	config "moagem-api/configs"
	"moagem-api/pkg/models"
	"moagem-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubAdvisor は呼び出しを記録するテスト用アドバイザー
type stubAdvisor struct {
	configErr error
	payload   map[string]interface{}
	err       error
	panicWith interface{}
	calls     int
	last      models.ScenarioRequest
}

func (s *stubAdvisor) Name() string       { return "stub" }
func (s *stubAdvisor) CheckConfig() error { return s.configErr }

func (s *stubAdvisor) Advise(_ context.Context, req models.ScenarioRequest) (map[string]interface{}, error) {
	s.calls++
	s.last = req
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	return s.payload, s.err
}

// stubChatClient は固定のテキストを返すLLMクライアント
type stubChatClient struct {
	reply string
}

func (c *stubChatClient) Complete(context.Context, string, string) (string, error) {
	return c.reply, nil
}

func (c *stubChatClient) Model() string { return "stub-model" }

func newTestRouter(advisor services.ScenarioAdvisor) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(nil))
	r.Any("/api/analisar", NewScenarioHandler(advisor, nil, nil).Handle)
	return r
}

func serve(r *gin.Engine, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/analisar", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func assertCORS(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
}

func TestScenarioHandlerPreflight(t *testing.T) {
	advisor := &stubAdvisor{configErr: errors.New("sem chave")}
	r := newTestRouter(advisor)

	for _, body := range []string{"", "{", `{"unidade":"X"}`} {
		w := serve(r, http.MethodOptions, body)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
		assertCORS(t, w)
	}
	assert.Zero(t, advisor.calls)
}

func TestScenarioHandlerMethodNotAllowed(t *testing.T) {
	advisor := &stubAdvisor{}
	r := newTestRouter(advisor)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		w := serve(r, method, `{"motivo":"x"}`)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		assert.Equal(t, map[string]interface{}{"ok": false, "error": "Use POST"}, decodeBody(t, w))
		assertCORS(t, w)
	}
	assert.Zero(t, advisor.calls)
}

func TestScenarioHandlerConfigurationGate(t *testing.T) {
	prompt, err := config.LoadAdvisorPrompt()
	require.NoError(t, err)
	client := &stubChatClient{reply: "{}"}
	external, err := services.NewExternalAdvisor(client, prompt, services.ExternalAdvisorOptions{CredentialEnv: "OPENAI_API_KEY"}, nil)
	require.NoError(t, err)

	w := serve(newTestRouter(external), http.MethodPost, `{"motivo":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]interface{}{
		"ok":    false,
		"error": "OPENAI_API_KEY não configurada no ambiente",
	}, decodeBody(t, w))
	assertCORS(t, w)
}

func TestScenarioHandlerMock(t *testing.T) {
	r := newTestRouter(services.NewMockAdvisor())

	w := serve(r, http.MethodPost, `{
		"unidade": "Usina A",
		"densidade": "1.5",
		"estoqueAtualConj": 30,
		"motivo": "chuva",
		"realizado": [{}, {}],
		"futuro": [{}]
	}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["ok"])
	informativo := body["informativo"].(string)
	assert.Contains(t, informativo, "Informativo Usina A")
	assert.Contains(t, informativo, "- densidade: 1.5")
	assert.Contains(t, informativo, "- estoque: 30 conj")
	assert.Contains(t, informativo, "Realizado: 2 linhas")
	assert.Contains(t, informativo, "Futuro: 1 linhas")
	assert.Len(t, body["sugestoes"], 2)
	assertCORS(t, w)
}

func TestScenarioHandlerEmptyAndNonObjectBodies(t *testing.T) {
	for _, raw := range []string{"", "   ", "null", "[1,2]", `"texto"`, "42"} {
		advisor := &stubAdvisor{payload: map[string]interface{}{}}
		w := serve(newTestRouter(advisor), http.MethodPost, raw)

		require.Equal(t, http.StatusOK, w.Code, "body %q", raw)
		assert.Equal(t, map[string]interface{}{"ok": true}, decodeBody(t, w))
		require.Equal(t, 1, advisor.calls)
		assert.Nil(t, advisor.last.Unidade)
		assert.Empty(t, advisor.last.Realizado)
		assert.Empty(t, advisor.last.Motivo)
	}
}

func TestScenarioHandlerInvalidJSON(t *testing.T) {
	advisor := &stubAdvisor{payload: map[string]interface{}{}}
	w := serve(newTestRouter(advisor), http.MethodPost, `{"unidade": `)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Falha", body["error"])
	assert.NotEmpty(t, body["detail"])
	assert.Zero(t, advisor.calls)
}

func TestScenarioHandlerOKCannotBeOverridden(t *testing.T) {
	advisor := &stubAdvisor{payload: map[string]interface{}{"ok": false, "status": "OK"}}
	w := serve(newTestRouter(advisor), http.MethodPost, `{}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "OK", body["status"])
}

func TestScenarioHandlerAdvisorError(t *testing.T) {
	advisor := &stubAdvisor{err: errors.New("HTTP 502 do provedor")}
	w := serve(newTestRouter(advisor), http.MethodPost, `{}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]interface{}{
		"ok":     false,
		"error":  "Falha",
		"detail": "HTTP 502 do provedor",
	}, decodeBody(t, w))
}

func TestScenarioHandlerPanic(t *testing.T) {
	advisor := &stubAdvisor{panicWith: "estado inesperado"}
	w := serve(newTestRouter(advisor), http.MethodPost, `{}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]interface{}{
		"ok":     false,
		"error":  "Falha",
		"detail": "estado inesperado",
	}, decodeBody(t, w))
	assertCORS(t, w)
}

func TestScenarioHandlerExternalFallback(t *testing.T) {
	prompt, err := config.LoadAdvisorPrompt()
	require.NoError(t, err)

	raw := "Não consegui gerar JSON hoje."
	external, err := services.NewExternalAdvisor(&stubChatClient{reply: raw}, prompt, services.ExternalAdvisorOptions{Credential: "k", StrictSchema: true}, nil)
	require.NoError(t, err)

	w := serve(newTestRouter(external), http.MethodPost, `{"motivo":"Quebra na moenda"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{
		"ok":                true,
		"motivo_melhorado":  "Quebra na moenda",
		"status":            "ALERTA",
		"hora_critica":      "—",
		"conduta_chip":      "Manter",
		"plano_moagem":      []interface{}{},
		"acoes_imediatas":   []interface{}{models.FallbackDiagnostic},
		"informativo_final": raw,
	}, decodeBody(t, w))
}

func TestScenarioHandlerExternalMergesObject(t *testing.T) {
	prompt, err := config.LoadAdvisorPrompt()
	require.NoError(t, err)

	reply := `{"motivo_melhorado":"m","status":"CRITICO","hora_critica":"16:00","conduta_chip":"Reduzir",` +
		`"plano_moagem":[{"hora":"14:00","moagem_sugerida_tph":500,"justificativa":"j"}],` +
		`"acoes_imediatas":["a"],"informativo_final":"f","confianca":0.8}`
	external, err := services.NewExternalAdvisor(&stubChatClient{reply: reply}, prompt, services.ExternalAdvisorOptions{Credential: "k", StrictSchema: true}, nil)
	require.NoError(t, err)

	w := serve(newTestRouter(external), http.MethodPost, `{}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "CRITICO", body["status"])
	assert.Equal(t, 0.8, body["confianca"], "unknown keys are kept")
	plano := body["plano_moagem"].([]interface{})
	assert.Equal(t, 500.0, plano[0].(map[string]interface{})["moagem_sugerida_tph"])
}

func TestScenarioHandlerMultipartPlanilha(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("unidade", "Usina B"))
	require.NoError(t, mw.WriteField("densidade", "1,2"))
	require.NoError(t, mw.WriteField("motivo", "manutenção"))
	part, err := mw.CreateFormFile("planilha", "turno.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("tipo,hora,agricolaTph\nrealizado,08:00,500\nfuturo,09:00,520\nfuturo,10:00,530\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	advisor := &stubAdvisor{payload: map[string]interface{}{}}
	req := httptest.NewRequest(http.MethodPost, "/api/analisar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	newTestRouter(advisor).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, advisor.last.Unidade)
	assert.Equal(t, "Usina B", *advisor.last.Unidade)
	require.NotNil(t, advisor.last.Densidade)
	assert.Equal(t, 1.2, *advisor.last.Densidade)
	assert.Equal(t, "manutenção", advisor.last.Motivo)
	assert.Len(t, advisor.last.Realizado, 1)
	assert.Len(t, advisor.last.Futuro, 2)
}

func TestScenarioHandlerMultipartUnsupportedFile(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("planilha", "turno.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analisar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	newTestRouter(&stubAdvisor{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Falha", body["error"])
	assert.Contains(t, body["detail"], ".xlsx")
}

func TestScenarioHandlerMockNonObjectRows(t *testing.T) {
	w := serve(newTestRouter(services.NewMockAdvisor()), http.MethodPost,
		`{"unidade":"X","densidade":1.5,"estoqueAtualConj":100,"motivo":"teste","realizado":[1,2],"futuro":[1,2,3]}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["ok"])
	informativo := body["informativo"].(string)
	for _, want := range []string{"X", "1.5", "100 conj", "teste", "Realizado: 2 linhas", "Futuro: 3 linhas"} {
		assert.Contains(t, informativo, want)
	}
	assert.Equal(t, []interface{}{services.MockSugestoes[0], services.MockSugestoes[1]}, body["sugestoes"])
}

func TestScenarioHandlerNumericCoercion(t *testing.T) {
	r := newTestRouter(services.NewMockAdvisor())

	asString := serve(r, http.MethodPost, `{"densidade":"1.5"}`)
	asNumber := serve(r, http.MethodPost, `{"densidade":1.5}`)
	require.Equal(t, http.StatusOK, asString.Code)
	assert.JSONEq(t, asNumber.Body.String(), asString.Body.String())

	invalid := serve(r, http.MethodPost, `{"densidade":"abc","estoqueAtualConj":true}`)
	require.Equal(t, http.StatusOK, invalid.Code)
	informativo := decodeBody(t, invalid)["informativo"].(string)
	assert.Contains(t, informativo, "- densidade: —")
	assert.Contains(t, informativo, "- estoque: — conj")
}
