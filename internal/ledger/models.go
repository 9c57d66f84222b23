package ledger

import "time"

// DailyUsage 는 (IP, 날짜)별 요청 카운터를 저장하는 DB 모델이다.
type DailyUsage struct {
	ID           int64     `gorm:"column:id;primaryKey"`
	IPAddress    string    `gorm:"column:ip_address;size:64;not null;uniqueIndex:idx_daily_usage_ip_date,priority:1"`
	UsageDate    time.Time `gorm:"column:usage_date;type:date;not null;uniqueIndex:idx_daily_usage_ip_date,priority:2;index:idx_daily_usage_date"`
	RequestCount int64     `gorm:"column:request_count;not null;default:0"`
	InputTokens  int64     `gorm:"column:input_tokens;not null;default:0"`
	OutputTokens int64     `gorm:"column:output_tokens;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

// TableName 은 GORM에서 사용할 테이블명을 반환한다.
func (DailyUsage) TableName() string {
	return "daily_usage"
}

// Key 는 원장 행을 식별한다. Date 는 자정으로 정규화된 날짜다.
type Key struct {
	IP   string
	Date time.Time
}

// NewKey 는 시각을 loc 기준 달력 날짜로 정규화한 키를 만든다.
// 저장 시 날짜는 UTC 자정으로 통일한다.
func NewKey(ip string, at time.Time, loc *time.Location) Key {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	return Key{
		IP:   ip,
		Date: time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// Usage 는 특정 키의 현재 사용량이다.
type Usage struct {
	IP           string
	Date         time.Time
	RequestCount int64
	InputTokens  int64
	OutputTokens int64
}

// TokenCount 는 성공한 호출 1회의 토큰 사용량이다.
type TokenCount struct {
	Input  int64
	Output int64
}

// DailySummary 는 날짜별 집계 뷰 모델이다.
type DailySummary struct {
	UsageDate    time.Time
	UniqueIPs    int64
	RequestCount int64
	InputTokens  int64
	OutputTokens int64
}

// TotalTokens 는 입력+출력 토큰 합계를 반환한다.
func (d DailySummary) TotalTokens() int64 {
	return d.InputTokens + d.OutputTokens
}
