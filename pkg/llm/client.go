// Package llm は外部のテキスト生成サービス（OpenAI / Azure OpenAI / Gemini）への
// チャット形式のリクエストをまとめます。
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse はプロバイダーが本文を返さなかった場合のエラーです。
var ErrEmptyResponse = errors.New("IAからの応答が空です")

// ChatClient はシステム指示とユーザーメッセージの2メッセージで補完を取得します。
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
}

// Options は各プロバイダー共通の生成パラメータです。
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
	// JSONMode はプロバイダーにJSONオブジェクトのみを返すよう要求します。
	JSONMode bool
}
