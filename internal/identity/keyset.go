package identity

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/summarygate/internal/apperror"
	"github.com/nao1215/summarygate/pkg/httpclient"
)

const (
	// DefaultKeySetTTL は鍵セットのキャッシュ有効期間の既定値。
	DefaultKeySetTTL = time.Hour
	// minRefreshInterval は未知の鍵IDによる再取得の最小間隔。
	minRefreshInterval = time.Minute
	// refreshTimeout は共有される取得1回あたりの上限。
	refreshTimeout = 10 * time.Second
	// fetchFailedMessage は鍵セットを取得できなかった場合のワイヤーメッセージ。
	fetchFailedMessage = "falha ao obter chaves de verificação"
)

// rawKeySet はJWKSエンドポイントのレスポンス。鍵は1つずつ解釈する。
type rawKeySet struct {
	Keys []json.RawMessage `json:"keys"`
}

// KeySource は鍵セットの取得元。
type KeySource interface {
	// GetJSON は指定パスのJSONをresultにデシリアライズする。
	GetJSON(ctx context.Context, path string, result any) error
}

// KeySet はIDプロバイダーの公開鍵セットをキャッシュする。
// 複数のゴルーチンから同時に使用できる。
type KeySet struct {
	source KeySource
	path   string
	ttl    time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	keys      map[string]crypto.PublicKey
	fetchedAt time.Time

	group singleflight.Group
}

// NewKeySet は新しいKeySetを生成する。
// sourceのベースURLにpathを連結したURLからJWKSを取得する。
func NewKeySet(source KeySource, path string, ttl time.Duration, now func() time.Time) *KeySet {
	if ttl <= 0 {
		ttl = DefaultKeySetTTL
	}
	if now == nil {
		now = time.Now
	}
	return &KeySet{
		source: source,
		path:   path,
		ttl:    ttl,
		now:    now,
		keys:   map[string]crypto.PublicKey{},
	}
}

// NewRemoteKeySet はJWKSのURLから鍵セットを生成する。fetchTimeoutは取得1回あたりの上限。
func NewRemoteKeySet(jwksURL string, ttl, fetchTimeout time.Duration) *KeySet {
	return NewKeySet(httpclient.New(jwksURL, httpclient.WithTimeout(fetchTimeout)), "", ttl, nil)
}

// Refresh はJWKSエンドポイントから鍵セットを再取得してキャッシュを置き換える。
// 同時に呼ばれた場合、取得は1回にまとめられる。取得自体は呼び出し元の
// キャンセルから切り離されており、ctxが終了した呼び出し元だけが待機をやめる。
func (s *KeySet) Refresh(ctx context.Context) error {
	ch := s.group.DoChan("refresh", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, s.refresh(fetchCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("鍵セットの取得待ちを中断: %w", ctx.Err())
	}
}

func (s *KeySet) refresh(ctx context.Context) error {
	const op = "identity.KeySet.Refresh"

	var set rawKeySet
	if err := s.source.GetJSON(ctx, s.path, &set); err != nil {
		status := 0
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			status = statusErr.StatusCode
		}
		e := apperror.Upstream(op, status, fmt.Errorf("鍵セットの取得に失敗: %w", err))
		e.Message = fetchFailedMessage
		return e
	}

	keys := make(map[string]crypto.PublicKey, len(set.Keys))
	for _, raw := range set.Keys {
		var k jose.JSONWebKey
		if err := k.UnmarshalJSON(raw); err != nil {
			// 解釈できない鍵は無視し、残りの鍵で検証を続ける
			continue
		}
		if k.KeyID == "" || (k.Use != "" && k.Use != "sig") || !k.IsPublic() || !k.Valid() {
			continue
		}
		keys[k.KeyID] = k.Key
	}

	s.mu.Lock()
	s.keys = keys
	s.fetchedAt = s.now()
	s.mu.Unlock()
	return nil
}

// FindByKeyID は鍵IDに一致する公開鍵を返す。
// キャッシュが期限切れなら再取得し、未知の鍵IDなら最小間隔を空けて一度だけ再取得する。
// それでも見つからない場合はapperror.ErrUnknownKeyを返す。
func (s *KeySet) FindByKeyID(ctx context.Context, kid string) (crypto.PublicKey, error) {
	key, fresh, recent := s.lookup(kid)
	if key != nil && fresh {
		return key, nil
	}

	if !fresh || !recent {
		if err := s.Refresh(ctx); err != nil {
			return nil, err
		}
		key, _, _ = s.lookup(kid)
	}
	if key == nil {
		return nil, fmt.Errorf("kid=%q: %w", kid, apperror.ErrUnknownKey)
	}
	return key, nil
}

// lookup はキャッシュから鍵を引く。freshはTTL内かどうか、recentは最小再取得間隔内かどうか。
func (s *KeySet) lookup(kid string) (crypto.PublicKey, bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.fetchedAt.IsZero() {
		return nil, false, false
	}
	age := s.now().Sub(s.fetchedAt)
	return s.keys[kid], age < s.ttl, age < minRefreshInterval
}
