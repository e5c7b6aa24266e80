package services

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// MaxPlanilhaSize はアップロードできるスプレッドシートの上限です。
const MaxPlanilhaSize = 10 << 20 // 10MB

// ErrUnsupportedPlanilha はサポートされていないファイル形式を示します。
var ErrUnsupportedPlanilha = errors.New("formato de planilha não suportado, envie .xlsx ou .csv")

// フォームで受け付けるシナリオ項目
var planilhaFormFields = []string{"unidade", "sigla", "densidade", "estoqueAtualConj", "motivo"}

// PlanilhaService はアップロードされた時間別データ（.xlsx / .csv）をシナリオに変換します。
type PlanilhaService struct {
	logger *zap.Logger
}

// NewPlanilhaService は新しいPlanilhaServiceを作成します。
func NewPlanilhaService(logger *zap.Logger) *PlanilhaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanilhaService{logger: logger.Named("planilha")}
}

// BuildScenario はフォーム項目とスプレッドシートから、JSONボディと同じ形のマップを組み立てます。
// 数値の正規化は models.NewScenarioRequest に任せます。
func (s *PlanilhaService) BuildScenario(fields map[string]string, fileName string, r io.Reader) (map[string]interface{}, error) {
	raw := make(map[string]interface{})
	for _, key := range planilhaFormFields {
		if v, ok := fields[key]; ok {
			raw[key] = v
		}
	}
	for _, key := range []string{"densidade", "estoqueAtualConj"} {
		if v, ok := fields[key]; ok {
			raw[key] = normalizeDecimal(strings.TrimSpace(v))
		}
	}

	if params := strings.TrimSpace(fields["paramsUnidade"]); params != "" {
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(params), &decoded); err != nil {
			return nil, fmt.Errorf("paramsUnidade inválido: %w", err)
		}
		raw["paramsUnidade"] = decoded
	}

	// ファイルが無いフォームは項目だけのシナリオになる
	if r == nil {
		return raw, nil
	}

	realizado, futuro, err := s.ParseRows(fileName, r)
	if err != nil {
		return nil, err
	}
	raw["realizado"] = realizado
	raw["futuro"] = futuro
	return raw, nil
}

// ParseRows はファイルを読み、tipo列に応じて実績行と予測行に振り分けます。
func (s *PlanilhaService) ParseRows(fileName string, r io.Reader) (realizado, futuro []interface{}, err error) {
	rows, err := readPlanilha(fileName, r)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < 1 {
		return nil, nil, fmt.Errorf("planilha sem linha de cabeçalho")
	}

	header := rows[0]
	tipoIdx := findIndex(header, "tipo", "type", "serie")
	horaIdx := findIndex(header, "hora", "horario", "horário", "hour")
	estoqueIdx := findIndex(header, "estoqueConj", "estoque_conj", "estoque", "conj")
	agricolaIdx := findIndex(header, "agricolaTph", "agricola_tph", "agricola", "agrícola")
	industriaIdx := findIndex(header, "industriaTph", "industria_tph", "industria", "indústria", "moagem")

	if horaIdx == -1 {
		s.logger.Warn("❌ hora列が見つかりません", zap.Strings("header", header))
		return nil, nil, fmt.Errorf("coluna 'hora' não encontrada no cabeçalho: %v", header)
	}

	realizado = []interface{}{}
	futuro = []interface{}{}
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}

		entry := map[string]interface{}{
			"hora":         cell(row, horaIdx),
			"agricolaTph":  numericCell(row, agricolaIdx),
			"industriaTph": numericCell(row, industriaIdx),
		}

		switch strings.ToLower(cell(row, tipoIdx)) {
		case "futuro", "previsto":
			futuro = append(futuro, entry)
		default:
			entry["estoqueConj"] = numericCell(row, estoqueIdx)
			realizado = append(realizado, entry)
		}
	}

	s.logger.Info("📊 スプレッドシートを読み込みました",
		zap.String("file", fileName),
		zap.Int("realizado", len(realizado)),
		zap.Int("futuro", len(futuro)),
	)
	return realizado, futuro, nil
}

func readPlanilha(fileName string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("falha ao ler arquivo Excel: %w", err)
		}
		defer f.Close()

		rows, err := f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, fmt.Errorf("falha ao ler linhas da planilha: %w", err)
		}
		return rows, nil
	case ".csv":
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		rows, err := reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("falha ao analisar CSV: %w", err)
		}
		// 「;」区切りのCSVにも対応する
		if len(rows) > 0 && len(rows[0]) == 1 && strings.Contains(rows[0][0], ";") {
			for i, row := range rows {
				if len(row) == 1 {
					rows[i] = strings.Split(row[0], ";")
				}
			}
		}
		return rows, nil
	default:
		return nil, ErrUnsupportedPlanilha
	}
}

// findIndex は候補名のいずれかに一致する列のインデックスを返します。大文字小文字は区別しません。
func findIndex(header []string, candidates ...string) int {
	for _, candidate := range candidates {
		for i, item := range header {
			if strings.EqualFold(strings.TrimSpace(item), candidate) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// numericCell は空セルをnullとして返します。
func numericCell(row []string, idx int) interface{} {
	v := cell(row, idx)
	if v == "" {
		return nil
	}
	return normalizeDecimal(v)
}

// normalizeDecimal は「1,5」のような小数点のカンマを「.」に置き換えます。
func normalizeDecimal(v string) string {
	if strings.Count(v, ",") == 1 && !strings.Contains(v, ".") {
		return strings.Replace(v, ",", ".", 1)
	}
	return v
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
