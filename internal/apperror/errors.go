package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind はエラーの分類を表す。
type Kind int

const (
	// KindInternal は分類されない内部エラー。
	KindInternal Kind = iota
	// KindUnauthenticated はトークンの欠落・不正・期限切れ等の認証エラー。
	KindUnauthenticated
	// KindInvalidInput はリクエスト内容の検証エラー。
	KindInvalidInput
	// KindQuotaExceeded は1日あたりの利用上限を超えたことを表す。
	KindQuotaExceeded
	// KindUpstream は要約バックエンドや鍵セット取得など外部サービスのエラー。
	KindUpstream
	// KindEmptyResult はバックエンドが利用可能な内容を返さなかったことを表す。
	KindEmptyResult
	// KindQuotaBackend はクォータストアに到達できないことを表す。
	KindQuotaBackend
)

// String はKindの名前を返す。ログ出力用。
func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidInput:
		return "invalid_input"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindUpstream:
		return "upstream"
	case KindEmptyResult:
		return "empty_result"
	case KindQuotaBackend:
		return "quota_backend"
	default:
		return "internal"
	}
}

// ErrUnknownKey は鍵セットにトークンの鍵IDと一致する鍵が存在しないことを表す。
var ErrUnknownKey = errors.New("一致する鍵IDが鍵セットに存在しません")

// Error はパイプラインの各ステージが返すタグ付きエラー。
type Error struct {
	// Kind はエラーの分類。
	Kind Kind
	// Op は失敗した操作名（例: "identity.Verify"）。
	Op string
	// Message はKindの既定メッセージを上書きするワイヤーメッセージ。空なら既定値を使う。
	Message string
	// Err は内部的な原因。レスポンスには含めない。
	Err error
	// Status は上流サービスのHTTPステータス。0なら不明。
	Status int
}

// Error はエラー文字列を返す。
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap は内部的な原因を返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// New は指定したKindのエラーを生成する。
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Unauthenticated は認証エラーを生成する。
func Unauthenticated(op string, err error) *Error {
	return New(KindUnauthenticated, op, err)
}

// InvalidInput は入力検証エラーを生成する。messageはそのままレスポンスに使われる。
func InvalidInput(op, message string) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: message}
}

// Upstream は外部サービスのエラーを生成する。statusは上流のHTTPステータス（不明なら0）。
func Upstream(op string, status int, err error) *Error {
	return &Error{Kind: KindUpstream, Op: op, Err: err, Status: status}
}

// KindOf はエラーチェーン中のErrorのKindを返す。Errorを含まない場合はKindInternal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is はエラーチェーン中にkindのErrorが含まれるかを返す。
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// StatusOf はエラーに対応するHTTPステータスコードを返す。
func StatusOf(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindUpstream:
		return http.StatusBadGateway
	case KindEmptyResult:
		return http.StatusInternalServerError
	case KindQuotaBackend:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// MessageOf はレスポンスに含めるエラーメッセージを返す。
// 認証エラーは原因にかかわらず常に同じメッセージになる。
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" && e.Kind != KindUnauthenticated {
		return e.Message
	}
	switch KindOf(err) {
	case KindUnauthenticated:
		return "não autenticado"
	case KindInvalidInput:
		return "requisição inválida"
	case KindQuotaExceeded:
		return "Limite diário atingido"
	case KindUpstream:
		return "falha no serviço de resumo"
	case KindEmptyResult:
		return "resumo vazio"
	case KindQuotaBackend:
		return "serviço de cota indisponível"
	default:
		return "erro interno"
	}
}
