package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nao1215/summarygate/pkg/httpclient"
)

// JSONPoster はJSONボディをPOSTしてレスポンスをデシリアライズする。
type JSONPoster interface {
	PostJSON(ctx context.Context, path string, body any, result any) error
}

// UpstashStore はUpstash REST APIをバックエンドとするStore。
// /multi-exec エンドポイントでINCRとEXPIREをトランザクションとして実行する。
type UpstashStore struct {
	client JSONPoster
}

// NewUpstashStore はREST URLとトークンからUpstashStoreを生成する。
func NewUpstashStore(restURL, token string, timeout time.Duration) (*UpstashStore, error) {
	if restURL == "" || token == "" {
		return nil, errors.New("UpstashのREST URLとトークンが必要です")
	}
	return &UpstashStore{
		client: httpclient.New(restURL, httpclient.WithBearerToken(token), httpclient.WithTimeout(timeout)),
	}, nil
}

// upstashResult は/multi-execのレスポンス要素。
type upstashResult struct {
	Result any    `json:"result"`
	Error  string `json:"error"`
}

// IncrWithExpire はkeyのカウンタを1増やし、有効期限をttlに設定する。
func (s *UpstashStore) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	commands := [][]string{
		{"INCR", key},
		{"EXPIRE", key, strconv.FormatInt(int64(ttl/time.Second), 10)},
	}

	var results []upstashResult
	if err := s.client.PostJSON(ctx, "/multi-exec", commands, &results); err != nil {
		return 0, fmt.Errorf("Upstashのカウンタ更新に失敗: key=%s: %w", key, err)
	}
	if len(results) != len(commands) {
		return 0, fmt.Errorf("Upstashのレスポンス件数が不正: got %d, want %d", len(results), len(commands))
	}
	for _, r := range results {
		if r.Error != "" {
			return 0, fmt.Errorf("Upstashのコマンドが失敗: %s", r.Error)
		}
	}

	switch v := results[0].Result.(type) {
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("INCRの結果が数値ではありません: %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("INCRの結果の型が不正: %T", v)
	}
}
