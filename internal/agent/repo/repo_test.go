package repo

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bookshelf-agent/server/internal/agent/model"
	errx "github.com/bookshelf-agent/server/internal/core/error"
	logx "github.com/bookshelf-agent/server/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func TestMain(m *testing.M) {
	logx.Silence()
	os.Exit(m.Run())
}

func entry(i int) model.ConversationEntry {
	return model.ConversationEntry{
		Role:      model.RoleUser,
		Content:   fmt.Sprintf("message %d", i),
		CreatedAt: time.Unix(int64(i), 0).UTC(),
	}
}

func newRedisRepo(t *testing.T, maxEntries int, ttl time.Duration) (*RedisSessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisSessionRepository(rdb, maxEntries, ttl), mr
}

func repositories(t *testing.T, maxEntries int) map[string]model.SessionRepository {
	redisRepo, _ := newRedisRepo(t, maxEntries, 0)
	return map[string]model.SessionRepository{
		"memory": NewMemorySessionRepository(maxEntries),
		"redis":  redisRepo,
	}
}

func TestRetentionEvictsOldest(t *testing.T) {
	ctx := context.Background()
	for name, r := range repositories(t, 3) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				if err := r.Append(ctx, "u1", entry(i)); err != nil {
					t.Fatalf("append: %v", err)
				}
			}
			history, err := r.History(ctx, "u1")
			if err != nil {
				t.Fatal(err)
			}
			if len(history) != 3 {
				t.Fatalf("expected 3 entries, got %d", len(history))
			}
			for i, e := range history {
				if want := fmt.Sprintf("message %d", i+2); e.Content != want {
					t.Fatalf("entry %d: got %q, want %q", i, e.Content, want)
				}
			}
			n, err := r.Count(ctx, "u1")
			if err != nil || n != 3 {
				t.Fatalf("count = %d, err %v", n, err)
			}
		})
	}
}

func TestUnknownUserHasEmptyHistory(t *testing.T) {
	ctx := context.Background()
	for name, r := range repositories(t, 3) {
		t.Run(name, func(t *testing.T) {
			history, err := r.History(ctx, "nobody")
			if err != nil {
				t.Fatal(err)
			}
			if len(history) != 0 {
				t.Fatalf("expected empty history, got %d", len(history))
			}
			if n, _ := r.Count(ctx, "nobody"); n != 0 {
				t.Fatalf("expected zero count, got %d", n)
			}
		})
	}
}

func TestClearAndIsolation(t *testing.T) {
	ctx := context.Background()
	for name, r := range repositories(t, 10) {
		t.Run(name, func(t *testing.T) {
			_ = r.Append(ctx, "a", entry(1))
			_ = r.Append(ctx, "b", entry(2))
			if err := r.Clear(ctx, "a"); err != nil {
				t.Fatal(err)
			}
			if n, _ := r.Count(ctx, "a"); n != 0 {
				t.Fatalf("expected a cleared, got %d", n)
			}
			if n, _ := r.Count(ctx, "b"); n != 1 {
				t.Fatalf("expected b untouched, got %d", n)
			}
		})
	}
}

func TestRedisEntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, _ := newRedisRepo(t, 5, 0)
	in := model.ConversationEntry{
		Role:      model.RoleUser,
		Content:   "推荐刘慈欣的书",
		Authors:   []string{"刘慈欣"},
		Genres:    []string{"科幻"},
		Titles:    []string{"三体"},
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := r.Append(ctx, "u", in); err != nil {
		t.Fatal(err)
	}
	history, err := r.History(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	got := history[0]
	if got.Content != in.Content || got.Authors[0] != "刘慈欣" || got.Titles[0] != "三体" || !got.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestRedisTTL(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisRepo(t, 5, time.Minute)
	if err := r.Append(ctx, "u", entry(1)); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("session:u:entries"); ttl != time.Minute {
		t.Fatalf("expected ttl of one minute, got %v", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if n, _ := r.Count(ctx, "u"); n != 0 {
		t.Fatalf("expected session to expire, got %d entries", n)
	}
}

func TestRedisUnavailable(t *testing.T) {
	r, mr := newRedisRepo(t, 5, 0)
	mr.Close()
	err := r.Append(context.Background(), "u", entry(1))
	if err == nil {
		t.Fatal("expected error when redis is down")
	}
	if status := errx.StatusOf(err); status != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d (%v)", status, err)
	}
}

func TestMemoryConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	r := NewMemorySessionRepository(1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Append(ctx, "shared", entry(i))
		}(i)
	}
	wg.Wait()
	if n, _ := r.Count(ctx, "shared"); n != 50 {
		t.Fatalf("expected 50 entries, got %d", n)
	}
}
