package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/summarygate/internal/apperror"
	"github.com/nao1215/summarygate/internal/identity"
)

// TTL はセッショントークンの有効期間。
const TTL = 15 * time.Minute

// bearerPrefix はAuthorizationヘッダーに必須のプレフィックス。
const bearerPrefix = "Bearer "

// Claims はセッショントークンのクレーム。
// sub・iat・expと、Emailのみを持つ。
type Claims struct {
	jwt.RegisteredClaims
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// Token は発行されたセッショントークン。
type Token struct {
	// Value は署名済みのトークン文字列。
	Value string
	// IssuedAt は発行時刻。
	IssuedAt time.Time
	// ExpiresAt は有効期限。
	ExpiresAt time.Time
}

// Issuer はセッショントークンを発行する。
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer は新しいIssuerを生成する。secretは空であってはならない。
func NewIssuer(secret []byte, now func() time.Time) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("セッショントークンの署名鍵が空です")
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: secret, now: now}, nil
}

// Issue は検証済みの外部アイデンティティからセッショントークンを発行する。
// 外部トークンのissuerやaudience等はトークンに含めない。
func (i *Issuer) Issue(id *identity.ExternalIdentity) (*Token, error) {
	if id == nil || id.Subject == "" {
		return nil, errors.New("subjectのないアイデンティティにはトークンを発行できません")
	}

	issuedAt := i.now()
	expiresAt := issuedAt.Add(TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: id.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("セッショントークンの署名に失敗: %w", err)
	}
	return &Token{
		Value:     signed,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Principal は認証済みの呼び出し元を表す。
type Principal struct {
	// Subject はユーザーの一意識別子。
	Subject string
	// Email はユーザーのメールアドレス。
	Email string
	// ExpiresAt はセッショントークンの有効期限。
	ExpiresAt time.Time
}

// Authenticator はセッショントークンを検証する。
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator は新しいAuthenticatorを生成する。
func NewAuthenticator(secret []byte, now func() time.Time) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("セッショントークンの署名鍵が空です")
	}
	if now == nil {
		now = time.Now
	}
	return &Authenticator{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(now),
		),
	}, nil
}

// Authenticate はAuthorizationヘッダーの値を検証し、呼び出し元を返す。
// 失敗時は原因にかかわらずKindUnauthenticatedのエラーを返す。
func (a *Authenticator) Authenticate(authHeader string) (*Principal, error) {
	const op = "session.Authenticate"

	tokenString, found := strings.CutPrefix(authHeader, bearerPrefix)
	if !found {
		return nil, apperror.Unauthenticated(op, errors.New("Bearer プレフィックスがありません"))
	}

	claims := &Claims{}
	token, err := a.parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, apperror.Unauthenticated(op, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, apperror.Unauthenticated(op, errors.New("subjectのないトークン"))
	}

	return &Principal{
		Subject:   claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
