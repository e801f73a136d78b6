package quota

import (
	"context"
	"sync"
	"time"
)

// memorySweepInterval は期限切れカウンタをまとめて削除する最小間隔。
const memorySweepInterval = time.Minute

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore はプロセス内でカウンタを保持するStore。
// 複数インスタンスでは共有されないため、開発・テスト用途に限る。
type MemoryStore struct {
	mu        sync.Mutex
	counters  map[string]*memoryCounter
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryStore は新しいMemoryStoreを生成する。
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{counters: map[string]*memoryCounter{}, now: now, lastSweep: now()}
}

// IncrWithExpire はkeyのカウンタを1増やし、有効期限をttlに更新する。
func (m *MemoryStore) IncrWithExpire(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = &memoryCounter{}
		m.counters[key] = c
	}
	c.count++
	c.expiresAt = now.Add(ttl)

	if now.Sub(m.lastSweep) >= memorySweepInterval {
		m.sweep(now)
	}
	return c.count, nil
}

// sweep は期限切れのカウンタを削除する。呼び出し元がmuを保持していること。
func (m *MemoryStore) sweep(now time.Time) {
	for k, c := range m.counters {
		if !now.Before(c.expiresAt) {
			delete(m.counters, k)
		}
	}
	m.lastSweep = now
}
