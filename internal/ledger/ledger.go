package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Reservation 은 한 요청이 잡아둔 일일 사용량 1건이다.
type Reservation struct {
	Key   Key
	Count int64
	Limit int
}

// Remaining 은 오늘 남은 요청 수를 반환한다.
func (r Reservation) Remaining() int64 {
	return max(0, int64(r.Limit)-r.Count)
}

// QuotaError 는 한도 초과 상세를 담는다. errors.Is(err, ErrQuotaExceeded) 가 성립한다.
type QuotaError struct {
	IP    string
	Limit int
	Count int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("daily quota exceeded: ip=%s count=%d limit=%d", e.IP, e.Count, e.Limit)
}

// Unwrap 은 ErrQuotaExceeded 를 반환한다.
func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

// Ledger 는 IP별 일일 한도를 적용한다.
// 외부 호출 전에 Reserve 하고, 호출이 실패하면 Release 해서 성공한 계산만 센다.
type Ledger struct {
	store  Store
	limit  int
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// Option 은 Ledger 생성 옵션이다.
type Option func(*Ledger)

// WithClock 은 현재 시각 함수를 교체한다.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLocation 은 날짜 경계 타임존을 지정한다.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// New 는 Ledger 를 생성한다.
func New(store Store, limit int, logger *slog.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		store:  store,
		limit:  limit,
		loc:    time.UTC,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit 은 설정된 일일 한도를 반환한다.
func (l *Ledger) Limit() int {
	return l.limit
}

// KeyFor 는 현재 시각 기준 ip 의 원장 키를 반환한다.
func (l *Ledger) KeyFor(ip string) Key {
	return NewKey(ip, l.now(), l.loc)
}

// Reserve 는 오늘 ip 의 사용량 1건을 잡는다. 한도에 도달했으면 *QuotaError 를 반환한다.
func (l *Ledger) Reserve(ctx context.Context, ip string) (Reservation, error) {
	key := l.KeyFor(ip)
	count, err := l.store.Reserve(ctx, key, l.limit)
	if errors.Is(err, ErrQuotaExceeded) {
		l.logger.Info("ledger_quota_exceeded", "ip", ip, "date", key.Date.Format(time.DateOnly), "limit", l.limit)
		return Reservation{}, &QuotaError{IP: ip, Limit: l.limit, Count: int64(l.limit)}
	}
	if err != nil {
		return Reservation{}, err
	}
	l.logger.Debug("ledger_reserved", "ip", ip, "date", key.Date.Format(time.DateOnly), "count", count)
	return Reservation{Key: key, Count: count, Limit: l.limit}, nil
}

// Release 는 실패한 요청의 예약을 되돌린다.
func (l *Ledger) Release(ctx context.Context, res Reservation) {
	if err := l.store.Release(context.WithoutCancel(ctx), res.Key); err != nil {
		l.logger.Warn("ledger_release_failed", "ip", res.Key.IP, "err", err)
		return
	}
	l.logger.Debug("ledger_released", "ip", res.Key.IP, "date", res.Key.Date.Format(time.DateOnly))
}

// Commit 은 성공한 요청의 토큰 사용량을 기록한다. 실패해도 요청은 성공으로 둔다.
func (l *Ledger) Commit(ctx context.Context, res Reservation, tokens TokenCount) {
	if err := l.store.Commit(context.WithoutCancel(ctx), res.Key, tokens); err != nil {
		l.logger.Warn("ledger_commit_failed", "ip", res.Key.IP, "err", err)
	}
}

// Status 는 오늘 ip 의 사용량을 조회한다.
func (l *Ledger) Status(ctx context.Context, ip string) (Usage, error) {
	return l.store.Get(ctx, l.KeyFor(ip))
}

// Daily 는 최근 days 일(오늘 포함)의 날짜별 집계를 반환한다.
func (l *Ledger) Daily(ctx context.Context, days int) ([]DailySummary, error) {
	if days <= 0 {
		days = 7
	}
	today := l.KeyFor("").Date
	return l.store.Daily(ctx, today.AddDate(0, 0, -(days-1)))
}
