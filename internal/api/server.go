package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/summarygate/internal/identity"
	"github.com/nao1215/summarygate/internal/session"
	"github.com/nao1215/summarygate/internal/summarize"
	"github.com/nao1215/summarygate/pkg/middleware"
)

// IdentityVerifier は外部IDトークンを検証する。
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*identity.ExternalIdentity, error)
}

// TokenIssuer はセッショントークンを発行する。
type TokenIssuer interface {
	Issue(id *identity.ExternalIdentity) (*session.Token, error)
}

// Summarizer は要約パイプラインを実行する。
type Summarizer interface {
	Summarize(ctx context.Context, authHeader string, req summarize.Request) (*summarize.Result, error)
}

// Dependencies はServerが利用する協調オブジェクト。
type Dependencies struct {
	// Verifier は外部IDトークンの検証器。
	Verifier IdentityVerifier
	// Issuer はセッショントークンの発行器。
	Issuer TokenIssuer
	// Authenticator はセッショントークンの検証器。
	Authenticator middleware.Authenticator
	// Summarizer は要約ゲートウェイ。
	Summarizer Summarizer
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// Logger は構造化ロガー。nilの場合はslog.Default()を使う。
	Logger *slog.Logger
}

// Server はsummarygateのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// deps は協調オブジェクト。
	deps Dependencies
	// logger は構造化ロガー。
	logger *slog.Logger
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout time.Duration
}

// NewServer は新しいServerを生成する。
func NewServer(port string, deps Dependencies) (*Server, error) {
	if deps.Verifier == nil || deps.Issuer == nil || deps.Authenticator == nil || deps.Summarizer == nil {
		return nil, errors.New("サーバーの依存オブジェクトが不足しています")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(deps.AllowedOrigins))

	s := &Server{
		router:          router,
		port:            port,
		deps:            deps,
		logger:          logger,
		shutdownTimeout: 10 * time.Second,
	}
	s.setupRoutes()

	return s, nil
}

// SetShutdownTimeout はグレースフルシャットダウンの待ち時間を設定する。
func (s *Server) SetShutdownTimeout(d time.Duration) {
	if d > 0 {
		s.shutdownTimeout = d
	}
}

// Handler はテストや埋め込み用にHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTPサーバーを起動します", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("HTTPサーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// POST以外は空のボディで405
	s.router.NoMethod(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusMethodNotAllowed)
	})

	api := s.router.Group("/api")
	{
		api.POST("/auth-google", s.handleAuthGoogle())
		api.POST("/summarize", s.handleSummarize())
		api.GET("/me", middleware.SessionAuth(s.deps.Authenticator, s.logger), s.handleMe())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "summarygate"})
	})
}
