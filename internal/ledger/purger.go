package ledger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultPurgeTimeout = 30 * time.Second

// Purger 는 보존 기간이 지난 원장 행을 주기적으로 삭제한다.
type Purger struct {
	store         Store
	logger        *slog.Logger
	retentionDays int
	interval      time.Duration
	now           func() time.Time
	loc           *time.Location

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewPurger 는 Purger 를 생성한다. retentionDays 가 0 이하이면 nil 을 반환한다.
func NewPurger(store Store, retentionDays int, interval time.Duration, loc *time.Location, logger *slog.Logger) *Purger {
	if store == nil || retentionDays <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Purger{
		store:         store,
		logger:        logger,
		retentionDays: retentionDays,
		interval:      interval,
		now:           time.Now,
		loc:           loc,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start 는 백그라운드 루프를 시작한다.
func (p *Purger) Start() {
	if p == nil {
		return
	}
	p.startOnce.Do(func() {
		p.started.Store(true)
		go p.loop()
	})
}

// Stop 은 루프를 멈추고 종료를 기다린다.
func (p *Purger) Stop() {
	if p == nil {
		return
	}
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	if p.started.Load() {
		<-p.doneCh
	}
}

func (p *Purger) loop() {
	ticker := time.NewTicker(p.interval)
	defer func() {
		ticker.Stop()
		close(p.doneCh)
	}()

	p.runOnce()
	for {
		select {
		case <-ticker.C:
			p.runOnce()
		case <-p.stopCh:
			return
		}
	}
}

// Cutoff 는 이 날짜 미만의 행이 삭제 대상임을 뜻한다.
func (p *Purger) Cutoff() time.Time {
	today := NewKey("", p.now(), p.loc).Date
	return today.AddDate(0, 0, -p.retentionDays)
}

func (p *Purger) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultPurgeTimeout)
	defer cancel()

	cutoff := p.Cutoff()
	deleted, err := p.store.Purge(ctx, cutoff)
	if err != nil {
		p.logger.Warn("ledger_purge_failed", "err", err)
		return
	}
	if deleted > 0 {
		p.logger.Info("ledger_purged", "rows", deleted, "before", cutoff.Format(time.DateOnly))
	}
}
