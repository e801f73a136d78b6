package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/summarygate/internal/apperror"
)

const (
	// DefaultDailyLimit は1日あたりの呼び出し上限の既定値。
	DefaultDailyLimit = 100
	// CounterTTL はカウンタキーの有効期間。
	CounterTTL = 24 * time.Hour
)

// Store はアトミックな「インクリメントして有効期限を設定する」操作を提供する。
type Store interface {
	// IncrWithExpire はkeyのカウンタを1増やし、有効期限をttlに設定して増加後の値を返す。
	// インクリメントと有効期限の設定は1回のアトミックな操作でなければならない。
	IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Tracker はユーザーごとの日次カウンタを管理する。
type Tracker struct {
	store Store
	limit int64
	now   func() time.Time
}

// NewTracker は新しいTrackerを生成する。limitが0以下なら既定値を使う。
func NewTracker(store Store, limit int, now func() time.Time) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("クォータストアが指定されていません")
	}
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: store, limit: int64(limit), now: now}, nil
}

// Key はsubjectの当日（UTC）のカウンタキーを返す。
func (t *Tracker) Key(subject string) string {
	return CounterKey(subject, t.now())
}

// CounterKey はsubjectとその時刻のUTC日付からカウンタキーを組み立てる。
func CounterKey(subject string, at time.Time) string {
	return fmt.Sprintf("rl:%s:%s", subject, at.UTC().Format(time.DateOnly))
}

// Increment はsubjectの当日のカウンタを1増やし、増加後の値を返す。
// ストアのエラーはKindQuotaBackendとして返す。
func (t *Tracker) Increment(ctx context.Context, subject string) (int64, error) {
	const op = "quota.Increment"

	if subject == "" {
		return 0, apperror.New(apperror.KindInternal, op, errors.New("subjectが空です"))
	}
	count, err := t.store.IncrWithExpire(ctx, t.Key(subject), CounterTTL)
	if err != nil {
		return 0, apperror.New(apperror.KindQuotaBackend, op, err)
	}
	return count, nil
}

// Consume は1回分の利用を記録し、上限を超えた場合はKindQuotaExceededのエラーを返す。
// 上限ちょうどの呼び出しは許可される。
func (t *Tracker) Consume(ctx context.Context, subject string) (int64, error) {
	count, err := t.Increment(ctx, subject)
	if err != nil {
		return 0, err
	}
	if count > t.limit {
		return count, apperror.New(apperror.KindQuotaExceeded, "quota.Consume",
			fmt.Errorf("subject=%s count=%d limit=%d", subject, count, t.limit))
	}
	return count, nil
}

// Limit は1日あたりの上限を返す。
func (t *Tracker) Limit() int64 {
	return t.limit
}
