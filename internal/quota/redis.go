package quota

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore はRedisをバックエンドとするStore。
type RedisStore struct {
	client goredis.UniversalClient
}

// NewRedisStore はRedisに接続し、疎通を確認してからRedisStoreを返す。
func NewRedisStore(ctx context.Context, addr, password string) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient は既存のクライアントからRedisStoreを生成する。
func NewRedisStoreFromClient(client goredis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// IncrWithExpire はMULTI/EXECでINCRとEXPIREを1回のラウンドトリップで実行する。
func (s *RedisStore) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("Redisのカウンタ更新に失敗: key=%s: %w", key, err)
	}
	return incr.Val(), nil
}

// Close はRedisとの接続を閉じる。
func (s *RedisStore) Close() error {
	return s.client.Close()
}
