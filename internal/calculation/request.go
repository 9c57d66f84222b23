package calculation

import "strings"

// 필드 길이 제한입니다.
const (
	MaxItemLength = 200
	MaxNameLength = 100
)

// Expense 는 구매 항목 하나와 그 항목을 함께 소비한 사람들이다.
type Expense struct {
	Item      string   `json:"item" binding:"required,notblank,max=200"`
	Amount    *int64   `json:"amount" binding:"required,gte=0"`
	Consumers []string `json:"consumers" binding:"required,min=1,dive,required,notblank,max=100"`
}

// Cost 는 금액을 반환한다.
func (e Expense) Cost() int64 {
	if e.Amount == nil {
		return 0
	}
	return *e.Amount
}

// Payer 는 실제로 돈을 낸 사람과 금액이다.
type Payer struct {
	Name   string `json:"name" binding:"required,notblank,max=100"`
	Amount *int64 `json:"amount" binding:"required,gte=0"`
}

// Paid 는 금액을 반환한다.
func (p Payer) Paid() int64 {
	if p.Amount == nil {
		return 0
	}
	return *p.Amount
}

// Request 는 더치페이 계산 요청 본문이다.
type Request struct {
	Expenses     []Expense `json:"expenses" binding:"required,dive"`
	Payers       []Payer   `json:"payers" binding:"required,dive"`
	Participants []string  `json:"participants" binding:"required,min=1,dive,required,notblank,max=100"`
}

// TotalExpenses 는 항목 금액 합계다.
func (r Request) TotalExpenses() int64 {
	var total int64
	for _, e := range r.Expenses {
		total += e.Cost()
	}
	return total
}

// TotalPaid 는 결제 금액 합계다.
func (r Request) TotalPaid() int64 {
	var total int64
	for _, p := range r.Payers {
		total += p.Paid()
	}
	return total
}

// Normalize 는 이름과 항목의 앞뒤 공백을 제거한다.
func (r *Request) Normalize() {
	for i := range r.Expenses {
		r.Expenses[i].Item = strings.TrimSpace(r.Expenses[i].Item)
		r.Expenses[i].Consumers = trimAll(r.Expenses[i].Consumers)
	}
	for i := range r.Payers {
		r.Payers[i].Name = strings.TrimSpace(r.Payers[i].Name)
	}
	r.Participants = trimAll(r.Participants)
}

// Texts 는 사용자가 입력한 자유 텍스트를 모두 반환한다.
func (r Request) Texts() []string {
	texts := make([]string, 0, len(r.Participants)+len(r.Expenses)*2+len(r.Payers))
	texts = append(texts, r.Participants...)
	for _, e := range r.Expenses {
		texts = append(texts, e.Item)
		texts = append(texts, e.Consumers...)
	}
	for _, p := range r.Payers {
		texts = append(texts, p.Name)
	}
	return texts
}

func trimAll(values []string) []string {
	for i, v := range values {
		values[i] = strings.TrimSpace(v)
	}
	return values
}
