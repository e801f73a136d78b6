package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/summarygate/internal/identity"
	"github.com/nao1215/summarygate/internal/session"
)

// testSecret はテスト用のセッション署名鍵。
var testSecret = []byte("test-secret-key-for-unit-tests")

// TestSessionAuth はSessionAuthミドルウェアを検証する。
func TestSessionAuth(t *testing.T) {
	t.Parallel()

	issuer, err := session.NewIssuer(testSecret, nil)
	if err != nil {
		t.Fatalf("NewIssuer()でエラーが発生: %v", err)
	}
	auth, err := session.NewAuthenticator(testSecret, nil)
	if err != nil {
		t.Fatalf("NewAuthenticator()でエラーが発生: %v", err)
	}
	token, err := issuer.Issue(&identity.ExternalIdentity{Subject: "user-1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("Issue()でエラーが発生: %v", err)
	}

	newRouter := func() *gin.Engine {
		router := gin.New()
		router.Use(SessionAuth(auth, nil))
		router.GET("/api/me", func(c *gin.Context) {
			p, ok := GetPrincipal(c)
			if !ok {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "no principal"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"sub": p.Subject, "email": p.Email})
		})
		return router
	}

	t.Run("有効なトークンで呼び出し元がコンテキストに設定されること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token.Value)
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["sub"] != "user-1" || body["email"] != "user@example.com" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("不正なヘッダーはすべて同じ401レスポンスになること", func(t *testing.T) {
		t.Parallel()

		var bodies []string
		for _, header := range []string{"", token.Value, "Bearer invalid", "Bearer " + token.Value + "x"} {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			newRouter().ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("header=%q: ステータスコード = %d, want %d", header, w.Code, http.StatusUnauthorized)
			}
			bodies = append(bodies, w.Body.String())
		}
		for _, b := range bodies[1:] {
			if b != bodies[0] {
				t.Errorf("レスポンスが統一されていない: %q != %q", b, bodies[0])
			}
		}
	})

	t.Run("GetPrincipalはミドルウェアなしでは取得できないこと", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if _, ok := GetPrincipal(c); ok {
			t.Error("ミドルウェアなしで呼び出し元が取得できてしまう")
		}
	})
}
