// Package config はsummarygateの設定を読み込む。
// 任意のYAMLファイルを読み込んだ後、環境変数で上書きする。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// クォータストアの種類。
const (
	// BackendUpstash はUpstash RedisのREST APIを使う。
	BackendUpstash = "upstash"
	// BackendRedis はRedisに直接接続する。
	BackendRedis = "redis"
	// BackendSQLite はローカルのSQLiteファイルを使う。
	BackendSQLite = "sqlite"
	// BackendMemory はプロセス内のメモリを使う。単一インスタンスの開発用。
	BackendMemory = "memory"
)

// Config はアプリケーション全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `yaml:"port"`
	// SessionSecret はセッショントークンのHMAC署名鍵。
	SessionSecret string `yaml:"session_secret"`
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string `yaml:"allowed_origins"`
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Google はGoogle IDトークン検証の設定。
	Google GoogleConfig `yaml:"google"`
	// Quota は日次クォータの設定。
	Quota QuotaConfig `yaml:"quota"`
	// LLM は要約バックエンドの設定。
	LLM LLMConfig `yaml:"llm"`
}

// GoogleConfig はIDトークン検証の設定。
type GoogleConfig struct {
	// ClientID はIDトークンのaudienceとして期待するOAuthクライアントID。
	ClientID string `yaml:"client_id"`
	// JWKSURL は公開鍵セットの取得先。
	JWKSURL string `yaml:"jwks_url"`
	// KeyCacheTTL は公開鍵セットのキャッシュ期間。
	KeyCacheTTL time.Duration `yaml:"key_cache_ttl"`
	// FetchTimeout は公開鍵セット取得のタイムアウト。
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// QuotaConfig はクォータストアの設定。
type QuotaConfig struct {
	// Backend はストアの種類。空の場合は他の設定から推定する。
	Backend string `yaml:"backend"`
	// DailyLimit は1ユーザー1日あたりの上限回数。
	DailyLimit int `yaml:"daily_limit"`
	// UpstashURL はUpstash REST APIのURL。
	UpstashURL string `yaml:"upstash_url"`
	// UpstashToken はUpstash REST APIのトークン。
	UpstashToken string `yaml:"upstash_token"`
	// RedisAddr はRedisのアドレス。
	RedisAddr string `yaml:"redis_addr"`
	// RedisPassword はRedisのパスワード。
	RedisPassword string `yaml:"redis_password"`
	// SQLitePath はSQLiteファイルのパス。
	SQLitePath string `yaml:"sqlite_path"`
	// Timeout はストアへのリクエストのタイムアウト。
	Timeout time.Duration `yaml:"timeout"`
}

// LLMConfig はチャット補完バックエンドの設定。
type LLMConfig struct {
	// BaseURL はOpenAI互換APIのベースURL。
	BaseURL string `yaml:"base_url"`
	// APIKey はAPIキー。
	APIKey string `yaml:"api_key"`
	// Model はモデル名。
	Model string `yaml:"model"`
	// Temperature はサンプリング温度。
	Temperature float64 `yaml:"temperature"`
	// MaxTokens は生成トークン数の上限。
	MaxTokens int `yaml:"max_tokens"`
	// Timeout はバックエンド呼び出しのタイムアウト。
	Timeout time.Duration `yaml:"timeout"`
}

// Default はデフォルト値で埋めた設定を返す。
func Default() *Config {
	return &Config{
		Port:            "8080",
		AllowedOrigins:  []string{"*"},
		ShutdownTimeout: 10 * time.Second,
		Google: GoogleConfig{
			JWKSURL:      "https://www.googleapis.com/oauth2/v3/certs",
			KeyCacheTTL:  time.Hour,
			FetchTimeout: 5 * time.Second,
		},
		Quota: QuotaConfig{
			DailyLimit: 100,
			SQLitePath: "summarygate.db",
			Timeout:    3 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.2,
			MaxTokens:   700,
			Timeout:     30 * time.Second,
		},
	}
}

// Load は設定を読み込む。pathが空の場合はファイルを読まない。
// 優先順位は 環境変数 > YAMLファイル > デフォルト値。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルのパースに失敗: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Quota.Backend = cfg.resolveBackend()
	return cfg, nil
}

// applyEnv は環境変数の値で設定を上書きする。
func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.SessionSecret, "APP_JWT_SECRET")
	setString(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&c.Quota.Backend, "QUOTA_BACKEND")
	setString(&c.Quota.UpstashURL, "UPSTASH_REDIS_REST_URL")
	setString(&c.Quota.UpstashToken, "UPSTASH_REDIS_REST_TOKEN")
	setString(&c.Quota.RedisAddr, "REDIS_ADDR")
	setString(&c.Quota.RedisPassword, "REDIS_PASSWORD")
	setString(&c.Quota.SQLitePath, "SQLITE_PATH")
	setString(&c.LLM.APIKey, "GROQ_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.LLM.Model, "LLM_MODEL")

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	}

	if v := os.Getenv("QUOTA_DAILY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUOTA_DAILY_LIMIT の値が不正です: %w", err)
		}
		c.Quota.DailyLimit = n
	}
	return nil
}

// resolveBackend はクォータストアの種類を決定する。
// 明示されていない場合は Upstash > Redis > SQLite の順に選ぶ。
func (c *Config) resolveBackend() string {
	if b := strings.ToLower(strings.TrimSpace(c.Quota.Backend)); b != "" {
		return b
	}
	switch {
	case c.Quota.UpstashURL != "":
		return BackendUpstash
	case c.Quota.RedisAddr != "":
		return BackendRedis
	default:
		return BackendSQLite
	}
}

// Validate は必須項目と値の範囲を検証する。
func (c *Config) Validate() error {
	var errs []error
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("APP_JWT_SECRET が設定されていません"))
	}
	if c.Google.ClientID == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID が設定されていません"))
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("GROQ_API_KEY が設定されていません"))
	}
	if c.Quota.DailyLimit <= 0 {
		errs = append(errs, fmt.Errorf("quota.daily_limit は正の値である必要があります: %d", c.Quota.DailyLimit))
	}

	switch c.Quota.Backend {
	case BackendUpstash:
		if c.Quota.UpstashURL == "" || c.Quota.UpstashToken == "" {
			errs = append(errs, errors.New("UPSTASH_REDIS_REST_URL と UPSTASH_REDIS_REST_TOKEN の両方が必要です"))
		}
	case BackendRedis:
		if c.Quota.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR が設定されていません"))
		}
	case BackendSQLite:
		if c.Quota.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH が設定されていません"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("未知のクォータバックエンドです: %q", c.Quota.Backend))
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
