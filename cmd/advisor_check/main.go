package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	config "moagem-api/configs"
	"moagem-api/pkg/logger"
	"moagem-api/pkg/models"
	"moagem-api/pkg/server"
	"moagem-api/pkg/services"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type checkOptions struct {
	file        string
	mock        bool
	timeout     time.Duration
	printPrompt bool
	envFile     string
}

// NewRootCmd はシナリオを1件アドバイザーに送り、結果を表示するコマンドを返します。
func NewRootCmd() *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "advisor_check",
		Short: "Envia um cenário para o assessor configurado e imprime a resposta",
		Long: "Lê um cenário em JSON (ou uma planilha .xlsx/.csv) e executa o mesmo fluxo do endpoint " +
			"/api/analisar-ia, sem servidor HTTP. Útil para validar credenciais e o prompt.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "arquivo do cenário (.json, .xlsx ou .csv); vazio = cenário vazio")
	cmd.Flags().BoolVar(&opts.mock, "mock", false, "usar o assessor simulado em vez da IA")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "sobrescreve ADVISOR_TIMEOUT")
	cmd.Flags().BoolVar(&opts.printPrompt, "print-prompt", false, "imprime o prompt de sistema e sai")
	cmd.Flags().StringVar(&opts.envFile, "env", ".env", "arquivo .env opcional")

	return cmd
}

func runCheck(ctx context.Context, out io.Writer, opts *checkOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.envFile != "" {
		// 無くてもよい
		_ = godotenv.Load(opts.envFile)
	}

	cfg := config.LoadConfig()
	if opts.timeout > 0 {
		cfg.AdvisorTimeout = opts.timeout
	}
	log := logger.New(cfg.LogLevel, "console")
	defer func() { _ = log.Sync() }()

	if opts.printPrompt {
		prompt, err := config.LoadAdvisorPrompt()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, prompt.BuildSystemPrompt())
		return err
	}

	raw, err := readScenarioFile(opts.file, log)
	if err != nil {
		return err
	}
	req := models.NewScenarioRequest(raw)

	var advisor services.ScenarioAdvisor
	if opts.mock {
		advisor = services.NewMockAdvisor()
	} else {
		advisors, err := server.BuildAdvisors(ctx, cfg, log)
		if err != nil {
			return err
		}
		advisor = advisors.External
	}

	if err := advisor.CheckConfig(); err != nil {
		return err
	}

	start := time.Now()
	payload, err := advisor.Advise(ctx, req)
	if err != nil {
		return err
	}
	log.Info("アドバイザーの応答", zap.String("advisor", advisor.Name()), zap.Duration("elapsed", time.Since(start)))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(payload)
}

func readScenarioFile(path string, log *zap.Logger) (map[string]interface{}, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("falha ao abrir %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".csv":
		return services.NewPlanilhaService(log).BuildScenario(nil, path, f)
	default:
		var decoded interface{}
		if err := json.NewDecoder(f).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("JSON inválido em %s: %w", path, err)
		}
		obj, _ := decoded.(map[string]interface{})
		return obj, nil
	}
}
