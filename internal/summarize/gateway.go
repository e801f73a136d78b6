package summarize

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nao1215/summarygate/internal/apperror"
	"github.com/nao1215/summarygate/internal/session"
)

// Authenticator はAuthorizationヘッダーから呼び出し元を認証する。
type Authenticator interface {
	Authenticate(authHeader string) (*session.Principal, error)
}

// QuotaConsumer は呼び出し1回分のクォータを消費する。
type QuotaConsumer interface {
	Consume(ctx context.Context, subject string) (int64, error)
}

// Params はバックエンドに渡す生成パラメータ。
type Params struct {
	// Model はモデル名。
	Model string
	// Temperature は生成の温度。
	Temperature float64
	// MaxTokens は生成する最大トークン数。
	MaxTokens int
}

// DefaultParams は既定の生成パラメータ。
var DefaultParams = Params{
	Model:       "llama-3.3-70b-versatile",
	Temperature: 0.2,
	MaxTokens:   700,
}

// Request は要約リクエスト。
type Request struct {
	// Text は要約対象の本文。
	Text string
	// Style は出力形式。
	Style Style
}

// Result は要約結果。
type Result struct {
	// Summary は整形済みの要約。空になることはない。
	Summary string
	// Subject は呼び出し元のユーザー識別子。
	Subject string
	// Used は当日の利用回数（今回の呼び出しを含む）。
	Used int64
}

// Gateway は認証・クォータ・プロンプト組み立て・バックエンド呼び出しを調停する。
type Gateway struct {
	auth    Authenticator
	quota   QuotaConsumer
	backend Backend
	params  Params
	logger  *slog.Logger
}

// NewGateway は新しいGatewayを生成する。
func NewGateway(auth Authenticator, quota QuotaConsumer, backend Backend, params Params, logger *slog.Logger) *Gateway {
	if params.Model == "" {
		params.Model = DefaultParams.Model
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = DefaultParams.MaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		auth:    auth,
		quota:   quota,
		backend: backend,
		params:  params,
		logger:  logger,
	}
}

// Summarize はリクエストを検証・認証し、クォータを消費してから要約を生成する。
// いずれかのステージが失敗した時点でそのエラーを返し、以降のステージは実行しない。
func (g *Gateway) Summarize(ctx context.Context, authHeader string, req Request) (*Result, error) {
	const op = "summarize.Summarize"

	if strings.TrimSpace(req.Text) == "" {
		return nil, apperror.InvalidInput(op, "texto inválido")
	}

	principal, err := g.auth.Authenticate(authHeader)
	if err != nil {
		return nil, err
	}

	used, err := g.quota.Consume(ctx, principal.Subject)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(req.Style, req.Text)
	raw, err := g.backend.Complete(ctx, CompletionRequest{
		Model:       g.params.Model,
		Temperature: g.params.Temperature,
		MaxTokens:   g.params.MaxTokens,
		Messages:    prompt.Messages(),
	})
	if err != nil {
		if apperror.KindOf(err) == apperror.KindInternal {
			err = apperror.Upstream(op, 0, err)
		}
		return nil, err
	}

	summary := Normalize(req.Style, raw)
	if summary == "" {
		return nil, apperror.New(apperror.KindEmptyResult, op, nil)
	}

	g.logger.InfoContext(ctx, "要約を生成しました",
		"subject", principal.Subject,
		"style", req.Style.String(),
		"used", used,
		"input_chars", len([]rune(req.Text)),
	)
	return &Result{Summary: summary, Subject: principal.Subject, Used: used}, nil
}
