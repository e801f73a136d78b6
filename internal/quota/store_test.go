package quota

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

// TestRedisStore はRedisStoreを検証する。
func TestRedisStore(t *testing.T) {
	t.Parallel()

	t.Run("インクリメントと有効期限が設定されること", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		store, err := NewRedisStore(context.Background(), mr.Addr(), "")
		if err != nil {
			t.Fatalf("NewRedisStore()でエラーが発生: %v", err)
		}
		t.Cleanup(func() { store.Close() })

		for want := int64(1); want <= 3; want++ {
			got, err := store.IncrWithExpire(context.Background(), "rl:user-1:2026-03-10", CounterTTL)
			if err != nil {
				t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
			}
			if got != want {
				t.Errorf("IncrWithExpire() = %d, want %d", got, want)
			}
		}
		if ttl := mr.TTL("rl:user-1:2026-03-10"); ttl != CounterTTL {
			t.Errorf("TTL = %v, want %v", ttl, CounterTTL)
		}
	})

	t.Run("有効期限が切れるとカウントがリセットされること", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		store := NewRedisStoreFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
		t.Cleanup(func() { store.Close() })

		if _, err := store.IncrWithExpire(context.Background(), "k", time.Hour); err != nil {
			t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
		}
		mr.FastForward(time.Hour)

		got, err := store.IncrWithExpire(context.Background(), "k", time.Hour)
		if err != nil {
			t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
		}
		if got != 1 {
			t.Errorf("期限切れ後のカウント = %d, want 1", got)
		}
	})

	t.Run("Redisが停止している場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("miniredisの起動に失敗: %v", err)
		}
		store := NewRedisStoreFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1}))
		t.Cleanup(func() { store.Close() })
		mr.Close()

		if _, err := store.IncrWithExpire(context.Background(), "k", time.Hour); err == nil {
			t.Fatal("IncrWithExpire()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できないアドレスではNewRedisStoreが失敗すること", func(t *testing.T) {
		t.Parallel()

		if _, err := NewRedisStore(context.Background(), "127.0.0.1:1", ""); err == nil {
			t.Fatal("NewRedisStore()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestUpstashStore はUpstashStoreを検証する。
func TestUpstashStore(t *testing.T) {
	t.Parallel()

	t.Run("multi-execでINCRとEXPIREを送信すること", func(t *testing.T) {
		t.Parallel()

		var (
			gotPath   string
			gotAuth   string
			gotBody   [][]string
			bodyError error
		)
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			raw, _ := io.ReadAll(r.Body)
			bodyError = json.Unmarshal(raw, &gotBody)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"result":7},{"result":1}]`))
		}))
		defer ts.Close()

		store, err := NewUpstashStore(ts.URL, "upstash-token", time.Second)
		if err != nil {
			t.Fatalf("NewUpstashStore()でエラーが発生: %v", err)
		}

		got, err := store.IncrWithExpire(context.Background(), "rl:user-1:2026-03-10", CounterTTL)
		if err != nil {
			t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
		}
		if got != 7 {
			t.Errorf("IncrWithExpire() = %d, want 7", got)
		}
		if gotPath != "/multi-exec" {
			t.Errorf("Path = %q, want %q", gotPath, "/multi-exec")
		}
		if gotAuth != "Bearer upstash-token" {
			t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer upstash-token")
		}
		if bodyError != nil {
			t.Fatalf("リクエストボディのパースに失敗: %v", bodyError)
		}
		want := [][]string{{"INCR", "rl:user-1:2026-03-10"}, {"EXPIRE", "rl:user-1:2026-03-10", "86400"}}
		if len(gotBody) != 2 || len(gotBody[0]) != 2 || len(gotBody[1]) != 3 {
			t.Fatalf("コマンド = %v, want %v", gotBody, want)
		}
		for i := range want {
			for j := range want[i] {
				if gotBody[i][j] != want[i][j] {
					t.Errorf("コマンド[%d][%d] = %q, want %q", i, j, gotBody[i][j], want[i][j])
				}
			}
		}
	})

	t.Run("コマンドエラーや不正な応答はエラーになること", func(t *testing.T) {
		t.Parallel()

		responses := map[string]string{
			"コマンドエラー": `[{"error":"WRONGTYPE"},{"result":0}]`,
			"件数不足":    `[{"result":1}]`,
			"数値でない結果": `[{"result":"abc"},{"result":1}]`,
			"JSONでない": `oops`,
		}
		for name, body := range responses {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(body))
			}))
			store, err := NewUpstashStore(ts.URL, "token", time.Second)
			if err != nil {
				t.Fatalf("NewUpstashStore()でエラーが発生: %v", err)
			}
			if _, err := store.IncrWithExpire(context.Background(), "k", CounterTTL); err == nil {
				t.Errorf("%s: エラーになるべき", name)
			}
			ts.Close()
		}
	})

	t.Run("サーバーエラーはエラーになること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer ts.Close()

		store, err := NewUpstashStore(ts.URL, "token", time.Second)
		if err != nil {
			t.Fatalf("NewUpstashStore()でエラーが発生: %v", err)
		}
		if _, err := store.IncrWithExpire(context.Background(), "k", CounterTTL); err == nil {
			t.Fatal("IncrWithExpire()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("URLかトークンが空ならエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := NewUpstashStore("", "token", time.Second); err == nil {
			t.Error("URLが空でもエラーにならない")
		}
		if _, err := NewUpstashStore("https://example.upstash.io", "", time.Second); err == nil {
			t.Error("トークンが空でもエラーにならない")
		}
	})
}

// TestSQLiteStore はSQLiteStoreを検証する。
func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	open := func(t *testing.T, clock *testClock) *SQLiteStore {
		t.Helper()

		store, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "quota.db"), clock.now)
		if err != nil {
			t.Fatalf("OpenSQLiteStore()でエラーが発生: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	}

	t.Run("インクリメントした値が返ること", func(t *testing.T) {
		t.Parallel()

		store := open(t, &testClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)})
		for want := int64(1); want <= 3; want++ {
			got, err := store.IncrWithExpire(context.Background(), "rl:user-1:2026-03-10", CounterTTL)
			if err != nil {
				t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
			}
			if got != want {
				t.Errorf("IncrWithExpire() = %d, want %d", got, want)
			}
		}
	})

	t.Run("有効期限切れの行は1からやり直すこと", func(t *testing.T) {
		t.Parallel()

		clock := &testClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
		store := open(t, clock)

		for i := 0; i < 3; i++ {
			if _, err := store.IncrWithExpire(context.Background(), "k", time.Hour); err != nil {
				t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
			}
		}
		clock.set(clock.now().Add(time.Hour))

		got, err := store.IncrWithExpire(context.Background(), "k", time.Hour)
		if err != nil {
			t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
		}
		if got != 1 {
			t.Errorf("期限切れ後のカウント = %d, want 1", got)
		}
	})

	t.Run("Purgeで期限切れの行のみ削除されること", func(t *testing.T) {
		t.Parallel()

		clock := &testClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
		store := open(t, clock)

		if _, err := store.IncrWithExpire(context.Background(), "short", time.Minute); err != nil {
			t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
		}
		if _, err := store.IncrWithExpire(context.Background(), "long", CounterTTL); err != nil {
			t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
		}
		clock.set(clock.now().Add(time.Hour))

		n, err := store.Purge(context.Background())
		if err != nil {
			t.Fatalf("Purge()でエラーが発生: %v", err)
		}
		if n != 1 {
			t.Errorf("削除件数 = %d, want 1", n)
		}
	})

	t.Run("同時呼び出しでも取りこぼしがないこと", func(t *testing.T) {
		t.Parallel()

		store := open(t, &testClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)})

		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.IncrWithExpire(context.Background(), "k", CounterTTL); err != nil {
					t.Errorf("IncrWithExpire()でエラーが発生: %v", err)
				}
			}()
		}
		wg.Wait()

		got, err := store.IncrWithExpire(context.Background(), "k", CounterTTL)
		if err != nil {
			t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
		}
		if got != n+1 {
			t.Errorf("最終カウント = %d, want %d", got, n+1)
		}
	})
}

// TestMemoryStore はMemoryStoreを検証する。
func TestMemoryStore(t *testing.T) {
	t.Parallel()

	t.Run("有効期限が切れるとカウントがリセットされること", func(t *testing.T) {
		t.Parallel()

		clock := &testClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
		store := NewMemoryStore(clock.now)

		for want := int64(1); want <= 2; want++ {
			got, err := store.IncrWithExpire(context.Background(), "rl:u:2026-03-10", time.Hour)
			if err != nil {
				t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
			}
			if got != want {
				t.Errorf("IncrWithExpire() = %d, want %d", got, want)
			}
		}

		clock.set(clock.now().Add(time.Hour))
		if got, _ := store.IncrWithExpire(context.Background(), "rl:u:2026-03-10", time.Hour); got != 1 {
			t.Errorf("期限切れ後のIncrWithExpire() = %d, want 1", got)
		}
	})

	t.Run("期限切れのカウンタは一定間隔ごとにまとめて削除されること", func(t *testing.T) {
		t.Parallel()

		clock := &testClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
		store := NewMemoryStore(clock.now)
		ctx := context.Background()

		for _, key := range []string{"rl:a:2026-03-10", "rl:b:2026-03-10", "rl:c:2026-03-10"} {
			if _, err := store.IncrWithExpire(ctx, key, 10*time.Second); err != nil {
				t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
			}
		}

		// 期限は切れているが削除間隔に達していないため残る
		clock.set(clock.now().Add(30 * time.Second))
		if _, err := store.IncrWithExpire(ctx, "rl:d:2026-03-10", time.Hour); err != nil {
			t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
		}
		if got := store.size(); got != 4 {
			t.Errorf("削除間隔前の件数 = %d, want 4", got)
		}

		clock.set(clock.now().Add(memorySweepInterval))
		if _, err := store.IncrWithExpire(ctx, "rl:d:2026-03-10", time.Hour); err != nil {
			t.Fatalf("IncrWithExpire()でエラーが発生: %v", err)
		}
		if got := store.size(); got != 1 {
			t.Errorf("削除間隔後の件数 = %d, want 1", got)
		}
	})
}

// size は保持しているカウンタの件数を返す。
func (m *MemoryStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}
