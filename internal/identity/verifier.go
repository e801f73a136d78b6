package identity

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/summarygate/internal/apperror"
)

// GoogleIssuers はGoogleのIDトークンとして受け入れるiss値。
var GoogleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// GoogleJWKSURL はGoogleの公開鍵セットのURL。
const GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// ExternalIdentity は外部IDトークンの検証に成功した場合にのみ生成されるアイデンティティ。
type ExternalIdentity struct {
	// Subject はIDプロバイダー内のユーザー識別子（sub）。
	Subject string
	// Email はユーザーのメールアドレス。
	Email string
	// Issuer はトークンの発行者（iss）。
	Issuer string
	// Audience はトークンの対象（aud）。
	Audience string
	// Expiry は外部トークンの有効期限。
	Expiry time.Time
}

// KeyFinder は鍵IDから検証用の公開鍵を返す。
type KeyFinder interface {
	FindByKeyID(ctx context.Context, kid string) (crypto.PublicKey, error)
}

// idTokenClaims は外部IDトークンのクレーム。
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Verifier は外部IDトークンを検証する。
type Verifier struct {
	keys     KeyFinder
	issuers  []string
	audience string
	now      func() time.Time
}

// NewVerifier は新しいVerifierを生成する。
// audienceは期待するaud（GoogleのクライアントID）、issuersは受け入れるissの一覧。
func NewVerifier(keys KeyFinder, audience string, issuers []string, now func() time.Time) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("鍵セットが指定されていません")
	}
	if audience == "" {
		return nil, errors.New("audienceが指定されていません")
	}
	if len(issuers) == 0 {
		issuers = GoogleIssuers
	}
	if now == nil {
		now = time.Now
	}
	return &Verifier{keys: keys, issuers: issuers, audience: audience, now: now}, nil
}

// Verify はIDトークンの署名・発行者・audience・有効期限を検証する。
// 鍵セットの取得自体に失敗した場合はKindUpstream、それ以外の失敗はすべて
// KindUnauthenticatedのエラーを返す。
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*ExternalIdentity, error) {
	const op = "identity.Verify"

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)

	claims := &idTokenClaims{}
	_, err := parser.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("kidヘッダーがありません: %w", apperror.ErrUnknownKey)
		}
		return v.keys.FindByKeyID(ctx, kid)
	})
	if err != nil {
		if apperror.Is(err, apperror.KindUpstream) {
			return nil, err
		}
		return nil, apperror.Unauthenticated(op, err)
	}

	if !slices.Contains(v.issuers, claims.Issuer) {
		return nil, apperror.Unauthenticated(op, fmt.Errorf("想定外の発行者: %q", claims.Issuer))
	}
	if claims.Subject == "" {
		return nil, apperror.Unauthenticated(op, errors.New("subがありません"))
	}

	return &ExternalIdentity{
		Subject:  claims.Subject,
		Email:    claims.Email,
		Issuer:   claims.Issuer,
		Audience: v.audience,
		Expiry:   claims.ExpiresAt.Time,
	}, nil
}
