// summarygateのエントリポイント。
// GoogleのIDトークンをセッショントークンに交換し、認証と日次クォータを経て
// LLMによる要約を提供するHTTPサーバーを起動する。
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nao1215/summarygate/internal/api"
	"github.com/nao1215/summarygate/internal/config"
	"github.com/nao1215/summarygate/internal/identity"
	"github.com/nao1215/summarygate/internal/quota"
	"github.com/nao1215/summarygate/internal/session"
	"github.com/nao1215/summarygate/internal/summarize"
)

// purgeInterval はSQLiteストアの期限切れカウンタを削除する間隔。
const purgeInterval = time.Hour

func main() {
	configPath := pflag.StringP("config", "c", "", "YAML設定ファイルのパス")
	port := pflag.StringP("port", "p", "", "リッスンポート（PORT環境変数より優先）")
	pflag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, *port, logger); err != nil {
		logger.Error("summarygateの実行に失敗しました", "error", err)
		os.Exit(1)
	}
}

// run は設定を読み込み、依存オブジェクトを組み立ててサーバーを起動する。
func run(configPath, port string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	tracker, err := quota.NewTracker(store, cfg.Quota.DailyLimit, nil)
	if err != nil {
		return err
	}

	secret := []byte(cfg.SessionSecret)
	issuer, err := session.NewIssuer(secret, nil)
	if err != nil {
		return err
	}
	auth, err := session.NewAuthenticator(secret, nil)
	if err != nil {
		return err
	}

	keys := identity.NewRemoteKeySet(cfg.Google.JWKSURL, cfg.Google.KeyCacheTTL, cfg.Google.FetchTimeout)
	if err := keys.Refresh(ctx); err != nil {
		// 起動時の取得失敗は致命的ではない。最初の検証時に再取得する
		logger.Warn("公開鍵セットの初回取得に失敗しました", "error", err)
	}
	verifier, err := identity.NewVerifier(keys, cfg.Google.ClientID, identity.GoogleIssuers, nil)
	if err != nil {
		return err
	}

	backend := summarize.NewChatClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Timeout)
	gateway := summarize.NewGateway(auth, tracker, backend, summarize.Params{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logger)

	server, err := api.NewServer(cfg.Port, api.Dependencies{
		Verifier:       verifier,
		Issuer:         issuer,
		Authenticator:  auth,
		Summarizer:     gateway,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("サーバーの初期化に失敗: %w", err)
	}
	server.SetShutdownTimeout(cfg.ShutdownTimeout)

	logger.Info("summarygateを起動します",
		"port", cfg.Port,
		"quota_backend", cfg.Quota.Backend,
		"daily_limit", tracker.Limit(),
		"model", cfg.LLM.Model,
	)
	return server.Run(ctx)
}

// openStore は設定に応じたクォータストアを開く。戻り値の関数で後始末する。
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (quota.Store, func(), error) {
	switch cfg.Quota.Backend {
	case config.BackendUpstash:
		store, err := quota.NewUpstashStore(cfg.Quota.UpstashURL, cfg.Quota.UpstashToken, cfg.Quota.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	case config.BackendRedis:
		store, err := quota.NewRedisStore(ctx, cfg.Quota.RedisAddr, cfg.Quota.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("Redis接続のクローズに失敗しました", "error", err)
			}
		}, nil

	case config.BackendSQLite:
		store, err := quota.OpenSQLiteStore(ctx, cfg.Quota.SQLitePath, nil)
		if err != nil {
			return nil, nil, err
		}
		janitorCtx, cancel := context.WithCancel(ctx)
		go purgeLoop(janitorCtx, store, logger)
		return store, func() {
			cancel()
			if err := store.Close(); err != nil {
				logger.Warn("SQLite接続のクローズに失敗しました", "error", err)
			}
		}, nil

	case config.BackendMemory:
		logger.Warn("メモリ上のクォータストアを使用します。再起動でカウンタは失われます")
		return quota.NewMemoryStore(nil), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("未知のクォータバックエンドです: %q", cfg.Quota.Backend)
	}
}

// purgeLoop は期限切れのカウンタを定期的に削除する。
func purgeLoop(ctx context.Context, store *quota.SQLiteStore, logger *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Purge(ctx)
			if err != nil {
				logger.Warn("期限切れカウンタの削除に失敗しました", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("期限切れカウンタを削除しました", "count", n)
			}
		}
	}
}
