package models

// RealizadoRow 実績（realizado）の時間別データ
type RealizadoRow struct {
	Hora         string   `json:"hora"`
	EstoqueConj  *float64 `json:"estoqueConj"`
	AgricolaTph  *float64 `json:"agricolaTph"`
	IndustriaTph *float64 `json:"industriaTph"`
}

// FuturoRow 予測（futuro）の時間別データ
type FuturoRow struct {
	Hora         string   `json:"hora"`
	AgricolaTph  *float64 `json:"agricolaTph"`
	IndustriaTph *float64 `json:"industriaTph"`
}

// ScenarioRequest は生産ユニットのシナリオを表すリクエストです。
// すべてのフィールドは任意で、欠損値は個別にデフォルト化されます。
type ScenarioRequest struct {
	Unidade          *string                `json:"unidade"`
	Sigla            *string                `json:"sigla"`
	Densidade        *float64               `json:"densidade"`
	ParamsUnidade    map[string]interface{} `json:"paramsUnidade"`
	EstoqueAtualConj *float64               `json:"estoqueAtualConj"`
	Realizado        []RealizadoRow         `json:"realizado"`
	Futuro           []FuturoRow            `json:"futuro"`
	Motivo           string                 `json:"motivo"`
}

// NewScenarioRequest はデコード済みのJSONオブジェクトからScenarioRequestを組み立てます。
// rawがnilでも空のリクエストを返します。
func NewScenarioRequest(raw map[string]interface{}) ScenarioRequest {
	req := ScenarioRequest{
		Unidade:          coerceOptionalString(raw["unidade"]),
		Sigla:            coerceOptionalString(raw["sigla"]),
		Densidade:        CoerceFiniteNumber(raw["densidade"]),
		EstoqueAtualConj: CoerceFiniteNumber(raw["estoqueAtualConj"]),
		Motivo:           coerceString(raw["motivo"]),
		Realizado:        []RealizadoRow{},
		Futuro:           []FuturoRow{},
	}

	if params, ok := raw["paramsUnidade"].(map[string]interface{}); ok {
		req.ParamsUnidade = params
	}

	// 配列でない値は長さ0として扱う。要素がオブジェクトでなくても件数は保持する。
	if items, ok := raw["realizado"].([]interface{}); ok {
		for _, item := range items {
			row, _ := item.(map[string]interface{})
			req.Realizado = append(req.Realizado, RealizadoRow{
				Hora:         coerceString(row["hora"]),
				EstoqueConj:  CoerceFiniteNumber(row["estoqueConj"]),
				AgricolaTph:  CoerceFiniteNumber(row["agricolaTph"]),
				IndustriaTph: CoerceFiniteNumber(row["industriaTph"]),
			})
		}
	}

	if items, ok := raw["futuro"].([]interface{}); ok {
		for _, item := range items {
			row, _ := item.(map[string]interface{})
			req.Futuro = append(req.Futuro, FuturoRow{
				Hora:         coerceString(row["hora"]),
				AgricolaTph:  CoerceFiniteNumber(row["agricolaTph"]),
				IndustriaTph: CoerceFiniteNumber(row["industriaTph"]),
			})
		}
	}

	return req
}

// PlanoMoagemStep 段階的な圧搾（moagem）計画の1ステップ
type PlanoMoagemStep struct {
	Hora              string  `json:"hora"`
	MoagemSugeridaTph float64 `json:"moagem_sugerida_tph"`
	Justificativa     string  `json:"justificativa"`
}

// リスク分類
const (
	StatusOK      = "OK"
	StatusAlerta  = "ALERTA"
	StatusCritico = "CRITICO"
)

// 推奨アクションのラベル
const (
	CondutaManter          = "Manter"
	CondutaReduzir         = "Reduzir"
	CondutaAumentar        = "Aumentar"
	CondutaReduzirAumentar = "Reduzir e depois Aumentar"
)

// HoraCriticaNenhuma はリスクのピークが無いことを示すhora_criticaの値です。
const HoraCriticaNenhuma = "—"

// FallbackDiagnostic はAIの応答を解釈できなかった時にacoes_imediatasへ入れる固定文言です。
const FallbackDiagnostic = "Não foi possível interpretar a resposta da IA em JSON. Verifique o informativo bruto."

// ScenarioRecommendation は外部アドバイザーから期待される推奨の形です。
type ScenarioRecommendation struct {
	MotivoMelhorado  string            `json:"motivo_melhorado"`
	Status           string            `json:"status"`
	HoraCritica      string            `json:"hora_critica"`
	CondutaChip      string            `json:"conduta_chip"`
	PlanoMoagem      []PlanoMoagemStep `json:"plano_moagem"`
	AcoesImediatas   []string          `json:"acoes_imediatas"`
	InformativoFinal string            `json:"informativo_final"`
}

// FallbackRecommendation はアドバイザーの出力を解釈できない場合の縮退レスポンスを作成します。
func FallbackRecommendation(motivo, raw string) ScenarioRecommendation {
	return ScenarioRecommendation{
		MotivoMelhorado:  motivo,
		Status:           StatusAlerta,
		HoraCritica:      HoraCriticaNenhuma,
		CondutaChip:      CondutaManter,
		PlanoMoagem:      []PlanoMoagemStep{},
		AcoesImediatas:   []string{FallbackDiagnostic},
		InformativoFinal: raw,
	}
}

// Payload はレスポンスボディへマージするためのマップを返します。
func (r ScenarioRecommendation) Payload() map[string]interface{} {
	plano := r.PlanoMoagem
	if plano == nil {
		plano = []PlanoMoagemStep{}
	}
	acoes := r.AcoesImediatas
	if acoes == nil {
		acoes = []string{}
	}
	return map[string]interface{}{
		"motivo_melhorado":  r.MotivoMelhorado,
		"status":            r.Status,
		"hora_critica":      r.HoraCritica,
		"conduta_chip":      r.CondutaChip,
		"plano_moagem":      plano,
		"acoes_imediatas":   acoes,
		"informativo_final": r.InformativoFinal,
	}
}
