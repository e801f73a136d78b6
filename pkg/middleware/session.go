package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/summarygate/internal/apperror"
	"github.com/nao1215/summarygate/internal/session"
)

// contextKeyPrincipal はGinコンテキストに認証済みの呼び出し元を格納するキー。
const contextKeyPrincipal = "principal"

// Authenticator はAuthorizationヘッダーから呼び出し元を認証する。
type Authenticator interface {
	Authenticate(authHeader string) (*session.Principal, error)
}

// SessionAuth はセッショントークンを検証するGinミドルウェアを返す。
// 失敗時は原因にかかわらず同じ401レスポンスを返し、原因はログにのみ出力する。
func SessionAuth(auth Authenticator, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		principal, err := auth.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			logger.WarnContext(c.Request.Context(), "セッショントークンの検証に失敗しました",
				"request_id", GetRequestID(c),
				"error", err,
			)
			c.AbortWithStatusJSON(apperror.StatusOf(err), gin.H{
				"error": apperror.MessageOf(err),
			})
			return
		}

		c.Set(contextKeyPrincipal, principal)
		c.Next()
	}
}

// GetPrincipal はGinコンテキストから認証済みの呼び出し元を取得する。
// SessionAuthミドルウェアが事前に適用されている必要がある。
func GetPrincipal(c *gin.Context) (*session.Principal, bool) {
	v, ok := c.Get(contextKeyPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*session.Principal)
	return p, ok
}
