package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrQuotaExceeded 는 일일 한도에 도달한 키를 다시 예약할 때 반환된다.
var ErrQuotaExceeded = errors.New("daily quota exceeded")

// Store: 사용량 원장 저장소 인터페이스입니다.
// 테스트에서 mock 구현을 주입할 수 있도록 합니다.
type Store interface {
	// Reserve 한도 미만일 때만 카운터를 1 올리고 새 값을 반환
	Reserve(ctx context.Context, key Key, limit int) (int64, error)

	// Release 예약 1건 취소 (0 미만으로 내려가지 않음)
	Release(ctx context.Context, key Key) error

	// Commit 성공한 호출의 토큰 사용량 누적
	Commit(ctx context.Context, key Key, tokens TokenCount) error

	// Get 키의 현재 사용량 조회 (행이 없으면 0)
	Get(ctx context.Context, key Key) (Usage, error)

	// Daily 최근 N일 날짜별 집계
	Daily(ctx context.Context, since time.Time) ([]DailySummary, error)

	// Purge before 이전 날짜 행 삭제
	Purge(ctx context.Context, before time.Time) (int64, error)

	// Ping DB 연결 확인
	Ping(ctx context.Context) error

	// Close 리소스 정리
	Close()
}

// Repository가 Store 인터페이스를 구현하는지 컴파일 타임 확인
var _ Store = (*Repository)(nil)
