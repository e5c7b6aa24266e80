package services

import (
	"context"
	"errors"
	"fmt"

	"moagem-api/pkg/models"
)

// ErrAdvisorNotConfigured は外部アドバイザーの認証情報が未設定であることを示します。
var ErrAdvisorNotConfigured = errors.New("assessor de IA não configurado")

// notConfiguredError はレスポンスにそのまま出せるメッセージを持ち、ErrAdvisorNotConfigured として判定されます。
type notConfiguredError struct {
	msg string
}

func (e *notConfiguredError) Error() string { return e.msg }

func (e *notConfiguredError) Is(target error) bool { return target == ErrAdvisorNotConfigured }

func newNotConfiguredError(format string, args ...interface{}) error {
	return &notConfiguredError{msg: fmt.Sprintf(format, args...)}
}

// ScenarioAdvisor はシナリオエンドポイントが利用するアドバイザーの差し替え可能な実装です。
// MockAdvisor と ExternalAdvisor の2種類があり、ハンドラー生成時に選択されます。
type ScenarioAdvisor interface {
	// Name はメトリクスとログに使う短い名前です。
	Name() string
	// CheckConfig は外部呼び出しの前に設定を検証します。
	CheckConfig() error
	// Advise はレスポンスボディへマージするペイロードを返します。
	Advise(ctx context.Context, req models.ScenarioRequest) (map[string]interface{}, error)
}
