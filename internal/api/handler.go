package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/summarygate/internal/apperror"
	"github.com/nao1215/summarygate/internal/summarize"
	"github.com/nao1215/summarygate/pkg/middleware"
)

// authGoogleRequest はIDトークン交換のリクエストボディ。
type authGoogleRequest struct {
	// IDToken はGoogleが発行したIDトークン。
	IDToken string `json:"idToken"`
}

// authGoogleResponse はIDトークン交換のレスポンスボディ。
type authGoogleResponse struct {
	// AppJWT は発行したセッショントークン。
	AppJWT string `json:"appJwt"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// summarizeOptions は要約のオプション。
type summarizeOptions struct {
	// Style は出力形式（texto / topicos / mesclado）。文字列以外は未知の値として扱う。
	Style any `json:"style"`
}

// summarizeRequest は要約のリクエストボディ。
type summarizeRequest struct {
	// Text は要約対象の本文。
	Text string `json:"text"`
	// Options は要約のオプション。形が不正でもリクエストは拒否しない。
	Options json.RawMessage `json:"options"`
}

// summarizeResponse は要約のレスポンスボディ。
type summarizeResponse struct {
	// Summary は生成した要約。
	Summary string `json:"summary"`
}

// meResponse は呼び出し元情報のレスポンスボディ。
type meResponse struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Exp   int64  `json:"exp"`
}

// handleAuthGoogle はGoogle IDトークンをセッショントークンに交換するハンドラを返す。
func (s *Server) handleAuthGoogle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req authGoogleRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.IDToken) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "idToken ausente"})
			return
		}

		id, err := s.deps.Verifier.Verify(c.Request.Context(), req.IDToken)
		if err != nil {
			s.writeError(c, err)
			return
		}

		token, err := s.deps.Issuer.Issue(id)
		if err != nil {
			s.writeError(c, apperror.New(apperror.KindInternal, "api.handleAuthGoogle", err))
			return
		}

		s.logger.InfoContext(c.Request.Context(), "セッショントークンを発行しました",
			"subject", id.Subject,
			"expires_at", token.ExpiresAt,
			"request_id", middleware.GetRequestID(c),
		)
		c.JSON(http.StatusOK, authGoogleResponse{AppJWT: token.Value, Email: id.Email})
	}
}

// handleSummarize は要約ハンドラを返す。
func (s *Server) handleSummarize() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req summarizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, apperror.InvalidInput("api.handleSummarize", "texto inválido"))
			return
		}

		style := parseStyle(req.Options)

		result, err := s.deps.Summarizer.Summarize(c.Request.Context(), c.GetHeader("Authorization"), summarize.Request{
			Text:  req.Text,
			Style: style,
		})
		if err != nil {
			s.writeError(c, err)
			return
		}

		c.Header("X-Quota-Used", strconv.FormatInt(result.Used, 10))
		c.JSON(http.StatusOK, summarizeResponse{Summary: result.Summary})
	}
}

// parseStyle はoptionsから出力形式を取り出す。
// optionsやstyleの形が想定外の場合は既定の形式になる。
func parseStyle(raw json.RawMessage) summarize.Style {
	var opts summarizeOptions
	if len(raw) == 0 || json.Unmarshal(raw, &opts) != nil {
		return summarize.StyleHybrid
	}
	name, _ := opts.Style.(string)
	return summarize.ParseStyle(name)
}

// handleMe は認証済みの呼び出し元を返すハンドラを返す。
func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := middleware.GetPrincipal(c)
		if !ok {
			s.writeError(c, apperror.Unauthenticated("api.handleMe", nil))
			return
		}
		c.JSON(http.StatusOK, meResponse{Sub: p.Subject, Email: p.Email, Exp: p.ExpiresAt.Unix()})
	}
}

// writeError はエラーをログに出力し、種類に応じたステータスと {error} を返す。
// 原因の詳細はログにのみ出力する。
func (s *Server) writeError(c *gin.Context, err error) {
	status := apperror.StatusOf(err)
	attrs := []any{
		"kind", apperror.KindOf(err).String(),
		"status", status,
		"path", c.Request.URL.Path,
		"request_id", middleware.GetRequestID(c),
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "リクエストの処理に失敗しました", attrs...)
	} else {
		s.logger.WarnContext(c.Request.Context(), "リクエストを拒否しました", attrs...)
	}
	c.JSON(status, gin.H{"error": apperror.MessageOf(err)})
}
