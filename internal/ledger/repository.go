package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/park285/dong-server/internal/config"
)

// reserveSQL 은 행 생성과 조건부 증가를 한 문장으로 처리한다.
// 한도에 도달한 행은 WHERE 에 걸려 갱신되지 않고 RETURNING 도 비어 있다.
// PostgreSQL 과 SQLite(3.35+) 모두에서 동작한다.
const reserveSQL = `
INSERT INTO daily_usage (ip_address, usage_date, request_count, input_tokens, output_tokens, created_at, updated_at)
VALUES (?, ?, 1, 0, 0, ?, ?)
ON CONFLICT (ip_address, usage_date) DO UPDATE
SET request_count = daily_usage.request_count + 1,
    updated_at = excluded.updated_at
WHERE daily_usage.request_count < ?
RETURNING request_count`

const dailySummarySQL = `
SELECT
	usage_date,
	COUNT(*) AS unique_ips,
	COALESCE(SUM(request_count), 0) AS request_count,
	COALESCE(SUM(input_tokens), 0) AS input_tokens,
	COALESCE(SUM(output_tokens), 0) AS output_tokens
FROM daily_usage
WHERE usage_date >= ? AND request_count > 0
GROUP BY usage_date
ORDER BY usage_date DESC`

// Repository 는 원장 DB 접근을 담당한다.
type Repository struct {
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
	db     *gorm.DB
	sqlDB  *sql.DB
}

// NewRepository 는 설정 기반으로 지연 연결하는 원장 저장소를 생성한다.
func NewRepository(cfg *config.Config, logger *slog.Logger) *Repository {
	return &Repository{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// NewRepositoryWithDB 는 이미 열린 gorm 연결로 저장소를 만들고 스키마를 준비한다.
func NewRepositoryWithDB(db *gorm.DB, logger *slog.Logger) (*Repository, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get ledger db handle: %w", err)
	}
	return &Repository{
		logger: logger,
		now:    time.Now,
		db:     db,
		sqlDB:  sqlDB,
	}, nil
}

// Reserve 는 key 의 카운터가 limit 미만이면 1 증가시키고 새 값을 반환한다.
func (r *Repository) Reserve(ctx context.Context, key Key, limit int) (int64, error) {
	if limit <= 0 {
		return 0, ErrQuotaExceeded
	}
	db, err := r.getDB(ctx)
	if err != nil {
		return 0, err
	}

	now := r.now().UTC()
	var rows []struct {
		RequestCount int64 `gorm:"column:request_count"`
	}
	if err := db.WithContext(ctx).
		Raw(reserveSQL, key.IP, key.Date, now, now, limit).
		Scan(&rows).Error; err != nil {
		return 0, fmt.Errorf("reserve ledger row: %w", err)
	}
	if len(rows) == 0 {
		return 0, ErrQuotaExceeded
	}
	return rows[0].RequestCount, nil
}

// Release 는 예약 1건을 되돌린다.
func (r *Repository) Release(ctx context.Context, key Key) error {
	db, err := r.getDB(ctx)
	if err != nil {
		return err
	}
	err = db.WithContext(ctx).
		Model(&DailyUsage{}).
		Where("ip_address = ? AND usage_date = ? AND request_count > 0", key.IP, key.Date).
		Updates(map[string]any{
			"request_count": gorm.Expr("request_count - 1"),
			"updated_at":    r.now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("release ledger row: %w", err)
	}
	return nil
}

// Commit 은 성공한 호출의 토큰 사용량을 누적한다.
func (r *Repository) Commit(ctx context.Context, key Key, tokens TokenCount) error {
	if tokens.Input <= 0 && tokens.Output <= 0 {
		return nil
	}
	db, err := r.getDB(ctx)
	if err != nil {
		return err
	}
	err = db.WithContext(ctx).
		Model(&DailyUsage{}).
		Where("ip_address = ? AND usage_date = ?", key.IP, key.Date).
		Updates(map[string]any{
			"input_tokens":  gorm.Expr("input_tokens + ?", max(0, tokens.Input)),
			"output_tokens": gorm.Expr("output_tokens + ?", max(0, tokens.Output)),
			"updated_at":    r.now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("commit ledger tokens: %w", err)
	}
	return nil
}

// Get 은 키의 현재 사용량을 조회한다. 행이 없으면 0 을 반환한다.
func (r *Repository) Get(ctx context.Context, key Key) (Usage, error) {
	usage := Usage{IP: key.IP, Date: key.Date}
	db, err := r.getDB(ctx)
	if err != nil {
		return usage, err
	}

	var row DailyUsage
	result := db.WithContext(ctx).
		Where("ip_address = ? AND usage_date = ?", key.IP, key.Date).
		Limit(1).
		Find(&row)
	if result.Error != nil {
		return usage, fmt.Errorf("get ledger row: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return usage, nil
	}

	usage.RequestCount = row.RequestCount
	usage.InputTokens = row.InputTokens
	usage.OutputTokens = row.OutputTokens
	return usage, nil
}

// Daily 는 since 이후 날짜별 집계를 최신순으로 조회한다.
func (r *Repository) Daily(ctx context.Context, since time.Time) ([]DailySummary, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		UsageDate    time.Time `gorm:"column:usage_date"`
		UniqueIPs    int64     `gorm:"column:unique_ips"`
		RequestCount int64     `gorm:"column:request_count"`
		InputTokens  int64     `gorm:"column:input_tokens"`
		OutputTokens int64     `gorm:"column:output_tokens"`
	}
	if err := db.WithContext(ctx).Raw(dailySummarySQL, since).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query daily summary: %w", err)
	}

	summaries := make([]DailySummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, DailySummary{
			UsageDate:    row.UsageDate,
			UniqueIPs:    row.UniqueIPs,
			RequestCount: row.RequestCount,
			InputTokens:  row.InputTokens,
			OutputTokens: row.OutputTokens,
		})
	}
	return summaries, nil
}

// Purge 는 before 보다 오래된 행을 삭제하고 삭제 건수를 반환한다.
func (r *Repository) Purge(ctx context.Context, before time.Time) (int64, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return 0, err
	}
	result := db.WithContext(ctx).Where("usage_date < ?", before).Delete(&DailyUsage{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge ledger rows: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Ping 은 DB 연결 상태를 확인한다.
func (r *Repository) Ping(ctx context.Context) error {
	if _, err := r.getDB(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	sqlDB := r.sqlDB
	r.mu.Unlock()
	if sqlDB == nil {
		return errors.New("ledger db closed")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping ledger db: %w", err)
	}
	return nil
}

// Close 는 DB 연결을 닫는다.
func (r *Repository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sqlDB == nil {
		return
	}
	_ = r.sqlDB.Close()
	r.sqlDB = nil
	r.db = nil
}

func (r *Repository) getDB(ctx context.Context) (*gorm.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}
	if r.cfg == nil {
		return nil, errors.New("database config is nil")
	}

	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	db, hostUsed, err := openDatabase(r.cfg.Database, gormCfg, r.logger)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get ledger db handle: %w", err)
	}
	configurePool(sqlDB, r.cfg.Database)

	if err := migrate(db.WithContext(ctx)); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if r.logger != nil {
		r.logger.Info(
			"ledger_db_connected",
			"driver", r.cfg.Database.Driver,
			"host", hostUsed,
			"name", r.cfg.Database.Name,
		)
	}

	r.db = db
	r.sqlDB = sqlDB
	return db, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&DailyUsage{}); err != nil {
		return fmt.Errorf("prepare ledger schema: %w", err)
	}
	return nil
}
