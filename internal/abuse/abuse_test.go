package abuse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-linkgate/internal/domain"
	"github.com/tbourn/go-linkgate/internal/repo"
)

func newLedger(t *testing.T) *repo.Ledger {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "abuse.db"), false)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return repo.NewLedger(db, nil, 0)
}

func issueAt(t *testing.T, l *repo.Ledger, userID, contentID string, at time.Time) {
	t.Helper()
	rec := &domain.GateRecord{
		ID: uuid.NewString(), UserID: userID, ContentID: contentID, ProviderID: "p",
		Token: uuid.NewString(), State: domain.StateExpired,
		IssuedAt: at, ExpiresAt: at.Add(time.Minute),
	}
	if err := l.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestLedgerWindow_EleventhDistinctItemIsLimited(t *testing.T) {
	l := newLedger(t)
	w := NewLedgerWindow(l, 10, time.Hour)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("c%d", i)
		d, err := w.Admit(ctx, "b", id, now)
		if err != nil || !d.Allowed {
			t.Fatalf("item %d: %+v %v", i, d, err)
		}
		issueAt(t, l, "b", id, now.Add(time.Duration(i)*time.Minute))
	}

	d, err := w.Admit(ctx, "b", "c10", now.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if d.Allowed {
		t.Fatal("11th distinct item should be rate limited")
	}
	if d.RetryAfter != 50*time.Minute {
		t.Fatalf("RetryAfter = %v; want 50m", d.RetryAfter)
	}

	// content already in the window is not a new item
	if d, _ := w.Admit(ctx, "b", "c3", now.Add(10*time.Minute)); !d.Allowed {
		t.Fatal("re-request of a counted item should be allowed")
	}
	// other users are unaffected
	if d, _ := w.Admit(ctx, "a", "c10", now.Add(10*time.Minute)); !d.Allowed {
		t.Fatal("other user should be allowed")
	}
	// once c0 leaves the window a slot frees up
	if d, _ := w.Admit(ctx, "b", "c10", now.Add(time.Hour+time.Second)); !d.Allowed {
		t.Fatal("slot should free after the oldest item leaves the window")
	}
}

func TestRedisWindow(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	prefix := "test:abuse:" + uuid.NewString() + ":"
	t.Cleanup(func() { client.Del(context.Background(), prefix+"u") })

	w := NewRedisWindow(client, prefix, 3, time.Minute)
	now := time.Now()
	for i := 0; i < 3; i++ {
		d, err := w.Admit(context.Background(), "u", fmt.Sprintf("c%d", i), now)
		if err != nil || !d.Allowed {
			t.Fatalf("item %d: %+v %v", i, d, err)
		}
	}
	d, err := w.Admit(context.Background(), "u", "c3", now)
	if err != nil || d.Allowed {
		t.Fatalf("4th item: %+v %v", d, err)
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("RetryAfter = %v", d.RetryAfter)
	}
	if d, _ := w.Admit(context.Background(), "u", "c1", now); !d.Allowed {
		t.Fatal("known item should be admitted")
	}
}
