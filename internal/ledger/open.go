package ledger

import (
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/park285/dong-server/internal/config"
)

// openDatabase 는 드라이버 설정에 맞는 gorm 연결을 연다.
// compose 환경 밖에서 "postgres" 호스트를 못 찾으면 127.0.0.1 로 재시도한다.
func openDatabase(cfg config.DatabaseConfig, gormCfg *gorm.Config, logger *slog.Logger) (*gorm.DB, string, error) {
	if cfg.Driver == config.DriverSQLite {
		db, err := gorm.Open(sqlite.Open(cfg.DSN()), gormCfg)
		return db, cfg.SQLitePath, err
	}

	hostUsed := cfg.Host
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil && shouldFallbackToLocalhost(err, cfg.Host) {
		fallback := cfg
		fallback.Host = "127.0.0.1"
		db, err = gorm.Open(postgres.Open(fallback.DSN()), gormCfg)
		if err == nil {
			hostUsed = fallback.Host
			if logger != nil {
				logger.Warn(
					"ledger_db_host_fallback",
					"configured_host", cfg.Host,
					"effective_host", hostUsed,
				)
			}
		}
	}
	return db, hostUsed, err
}

func configurePool(sqlDB *sql.DB, cfg config.DatabaseConfig) {
	if cfg.Driver == config.DriverSQLite {
		// SQLite 는 단일 writer 이고 :memory: 는 연결마다 별도 DB 다.
		sqlDB.SetMaxOpenConns(1)
		return
	}
	sqlDB.SetMaxIdleConns(cfg.MinPool)
	sqlDB.SetMaxOpenConns(cfg.MaxPool)
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}
	if cfg.ConnMaxIdleTimeMinutes > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)
	}
}

func shouldFallbackToLocalhost(err error, host string) bool {
	if err == nil {
		return false
	}
	if host == "" || host == "127.0.0.1" || strings.EqualFold(host, "localhost") {
		return false
	}
	if !strings.EqualFold(host, "postgres") {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return strings.EqualFold(dnsErr.Name, host)
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "no such host") && strings.Contains(lower, strings.ToLower(host))
}
