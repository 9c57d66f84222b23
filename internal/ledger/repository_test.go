package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	repo, err := NewRepositoryWithDB(db, nil)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestReserveUpToLimit(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	key := Key{IP: "10.0.0.1", Date: day(2026, 3, 1)}

	const limit = 3
	for i := 1; i <= limit; i++ {
		count, err := repo.Reserve(ctx, key, limit)
		if err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
		if count != int64(i) {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}

	if _, err := repo.Reserve(ctx, key, limit); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}

	usage, err := repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if usage.RequestCount != limit {
		t.Fatalf("rejected reservation must not change count, got %d", usage.RequestCount)
	}
}

func TestReserveIndependentKeys(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	a := Key{IP: "10.0.0.1", Date: day(2026, 3, 1)}
	b := Key{IP: "10.0.0.2", Date: day(2026, 3, 1)}
	nextDay := Key{IP: "10.0.0.1", Date: day(2026, 3, 2)}

	if _, err := repo.Reserve(ctx, a, 1); err != nil {
		t.Fatalf("reserve a: %v", err)
	}
	if _, err := repo.Reserve(ctx, a, 1); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected a to be exhausted, got %v", err)
	}
	if count, err := repo.Reserve(ctx, b, 1); err != nil || count != 1 {
		t.Fatalf("other ip on same date must be independent: count=%d err=%v", count, err)
	}
	if count, err := repo.Reserve(ctx, nextDay, 1); err != nil || count != 1 {
		t.Fatalf("same ip on next date must be independent: count=%d err=%v", count, err)
	}
}

func TestReserveConcurrentNeverExceedsLimit(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	key := Key{IP: "10.0.0.9", Date: day(2026, 3, 1)}

	const limit = 5
	const workers = 20

	var wg sync.WaitGroup
	var accepted, rejected atomic.Int64
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Reserve(ctx, key, limit)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, ErrQuotaExceeded):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != limit {
		t.Fatalf("expected %d accepted, got %d", limit, accepted.Load())
	}
	if rejected.Load() != workers-limit {
		t.Fatalf("expected %d rejected, got %d", workers-limit, rejected.Load())
	}

	var rows int64
	if err := repo.db.Model(&DailyUsage{}).Where("ip_address = ?", key.IP).Count(&rows).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single ledger row, got %d", rows)
	}
}

func TestReleaseAndCommit(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	key := Key{IP: "10.0.0.3", Date: day(2026, 3, 1)}

	if _, err := repo.Reserve(ctx, key, 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := repo.Release(ctx, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	// 0 미만으로 내려가지 않는다
	if err := repo.Release(ctx, key); err != nil {
		t.Fatalf("second release: %v", err)
	}
	usage, err := repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if usage.RequestCount != 0 {
		t.Fatalf("expected count 0 after release, got %d", usage.RequestCount)
	}

	if _, err := repo.Reserve(ctx, key, 1); err != nil {
		t.Fatalf("reserve after release should succeed: %v", err)
	}
	if err := repo.Commit(ctx, key, TokenCount{Input: 120, Output: 80}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	usage, err = repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if usage.RequestCount != 1 || usage.InputTokens != 120 || usage.OutputTokens != 80 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestGetMissingRow(t *testing.T) {
	repo := newTestRepository(t)
	usage, err := repo.Get(context.Background(), Key{IP: "nobody", Date: day(2026, 1, 1)})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if usage.RequestCount != 0 || usage.IP != "nobody" {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestDailyAndPurge(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	reserve := func(ip string, date time.Time, n int) {
		for range n {
			if _, err := repo.Reserve(ctx, Key{IP: ip, Date: date}, 100); err != nil {
				t.Fatalf("reserve: %v", err)
			}
		}
	}
	reserve("a", day(2026, 3, 1), 2)
	reserve("b", day(2026, 3, 1), 1)
	reserve("a", day(2026, 3, 2), 4)
	reserve("a", day(2026, 2, 1), 1)

	summaries, err := repo.Daily(ctx, day(2026, 3, 1))
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 days, got %d", len(summaries))
	}
	if !summaries[0].UsageDate.Equal(day(2026, 3, 2)) || summaries[0].RequestCount != 4 {
		t.Fatalf("unexpected newest summary: %+v", summaries[0])
	}
	if summaries[1].UniqueIPs != 2 || summaries[1].RequestCount != 3 {
		t.Fatalf("unexpected summary: %+v", summaries[1])
	}

	deleted, err := repo.Purge(ctx, day(2026, 3, 1))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 purged row, got %d", deleted)
	}
}

func TestRepositoryPing(t *testing.T) {
	repo := newTestRepository(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestNewKeyUsesLocation(t *testing.T) {
	loc := time.FixedZone("IRST", 3*3600+1800)
	// 2026-03-01 22:00 UTC 는 테헤란 기준 3월 2일이다
	at := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	key := NewKey("1.2.3.4", at, loc)
	if !key.Date.Equal(day(2026, 3, 2)) {
		t.Fatalf("unexpected key date: %s", key.Date)
	}
	if key.Date.Location() != time.UTC {
		t.Fatalf("key date must be stored as UTC midnight")
	}
}

func TestShouldFallbackToLocalhost(t *testing.T) {
	if shouldFallbackToLocalhost(errors.New("dial tcp: lookup postgres: no such host"), "localhost") {
		t.Fatalf("localhost must not fall back")
	}
	if !shouldFallbackToLocalhost(errors.New("dial tcp: lookup postgres: no such host"), "postgres") {
		t.Fatalf("expected fallback for unresolved postgres host")
	}
}
