package middleware

import (
	"log/slog"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/summarygate/pkg/httpclient"
)

// contextKeyRequestID はGinコンテキストにリクエストIDを格納するキー。
const contextKeyRequestID = "request_id"

// requestIDPattern はクライアントから受け入れる X-Request-ID の形式。
// 外部サービスにもそのまま伝播するため、英数字とハイフンの128文字までに限る。
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,128}$`)

// RequestID はリクエストIDを付与するGinミドルウェアを返す。
// クライアントが妥当な X-Request-ID を送った場合はそれを使い、なければUUIDを生成する。
// IDはレスポンスヘッダーとリクエストのコンテキストに設定される。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(httpclient.HeaderRequestID)
		if !requestIDPattern.MatchString(id) {
			id = uuid.NewString()
		}

		c.Set(contextKeyRequestID, id)
		c.Header(httpclient.HeaderRequestID, id)
		c.Request = c.Request.WithContext(httpclient.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// GetRequestID はGinコンテキストからリクエストIDを取得する。
func GetRequestID(c *gin.Context) string {
	return c.GetString(contextKeyRequestID)
}

// RequestLogger はリクエストごとに1行のアクセスログを出力するGinミドルウェアを返す。
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "リクエストを処理しました",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", GetRequestID(c),
		)
	}
}
