package quota

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nao1215/summarygate/pkg/migration"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// incrementSQL は期限切れの行をリセットしつつカウンタを1増やし、増加後の値を返す。
// 単一文のため、同一キーへの同時更新はSQLiteが直列化する。
const incrementSQL = `
INSERT INTO quota_counters (key, count, expires_at) VALUES (?, 1, ?)
ON CONFLICT(key) DO UPDATE SET
    count = CASE WHEN quota_counters.expires_at <= ? THEN 1 ELSE quota_counters.count + 1 END,
    expires_at = excluded.expires_at
RETURNING count`

// SQLiteStore はSQLiteをバックエンドとするStore。単一インスタンス構成向け。
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteStore はSQLiteデータベースを開き、マイグレーションを適用する。
func OpenSQLiteStore(ctx context.Context, dsn string, now func() time.Time) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// 書き込みは1接続に直列化する
	db.SetMaxOpenConns(1)

	if err := migration.Run(ctx, db, migrationFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &SQLiteStore{db: db, now: now}, nil
}

// IncrWithExpire はkeyのカウンタを1増やし、有効期限をttlに設定する。
func (s *SQLiteStore) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.now()
	var count int64
	err := s.db.QueryRowContext(ctx, incrementSQL, key, now.Add(ttl).UnixMilli(), now.UnixMilli()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("SQLiteのカウンタ更新に失敗: key=%s: %w", key, err)
	}
	return count, nil
}

// Purge は期限切れのカウンタを削除し、削除件数を返す。
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM quota_counters WHERE expires_at <= ?", s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("期限切れカウンタの削除に失敗: %w", err)
	}
	return res.RowsAffected()
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
