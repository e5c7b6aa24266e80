package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Vercelのビルドでは作業ディレクトリが保証されないため、設定ファイルはバイナリに埋め込む。
var (
	//go:embed advisor_prompt.yaml
	advisorPromptYAML []byte

	//go:embed recommendation.schema.json
	recommendationSchemaJSON []byte
)

// AdvisorPromptConfig はadvisor_prompt.yamlの構造を定義
type AdvisorPromptConfig struct {
	System struct {
		Role     string `yaml:"role"`
		Version  string `yaml:"version"`
		Language string `yaml:"language"`
	} `yaml:"system"`

	Context string   `yaml:"context"`
	Rules   []string `yaml:"rules"`

	Output struct {
		Instruction string `yaml:"instruction"`
		Schema      string `yaml:"schema"`
	} `yaml:"output"`
}

var (
	promptOnce   sync.Once
	cachedPrompt *AdvisorPromptConfig
	promptErr    error
)

// LoadAdvisorPrompt は埋め込まれたYAMLからプロンプト設定を読み込む
func LoadAdvisorPrompt() (*AdvisorPromptConfig, error) {
	promptOnce.Do(func() {
		cachedPrompt, promptErr = ParseAdvisorPrompt(advisorPromptYAML)
	})
	return cachedPrompt, promptErr
}

// ParseAdvisorPrompt はYAMLバイト列をプロンプト設定に変換する
func ParseAdvisorPrompt(data []byte) (*AdvisorPromptConfig, error) {
	var cfg AdvisorPromptConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("YAMLのパースに失敗: %w", err)
	}
	if len(cfg.Rules) == 0 {
		return nil, fmt.Errorf("プロンプト設定にルールがありません")
	}
	if strings.TrimSpace(cfg.Output.Schema) == "" {
		return nil, fmt.Errorf("プロンプト設定に出力スキーマがありません")
	}
	return &cfg, nil
}

// BuildSystemPrompt は設定からシステムプロンプトを構築
func (c *AdvisorPromptConfig) BuildSystemPrompt() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Você é %s.\n\n", c.System.Role))

	if c.Context != "" {
		sb.WriteString(c.Context)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Regras:\n")
	for i, rule := range c.Rules {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, rule))
	}
	sb.WriteString("\n")

	sb.WriteString(c.Output.Instruction)
	sb.WriteString("\n")
	sb.WriteString(c.Output.Schema)
	sb.WriteString("\n")

	return sb.String()
}

// RecommendationSchema は推奨レスポンスのJSON Schemaを返す
func RecommendationSchema() []byte {
	return recommendationSchemaJSON
}
