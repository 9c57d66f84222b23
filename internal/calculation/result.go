package calculation

// Status 값은 모델이 표의 status 칸에 쓰도록 요청하는 값이다.
const (
	StatusCreditor = "creditor"
	StatusDebtor   = "debtor"
	StatusSettled  = "settled"
)

// Row 는 결과 표의 한 사람분이다. Balance 가 음수면 갚아야 한다.
type Row struct {
	Name    string  `json:"name"`
	Share   float64 `json:"share"`
	Paid    float64 `json:"paid"`
	Balance float64 `json:"balance"`
	Status  string  `json:"status"`
}

// Settlement 는 From 이 To 에게 Amount 만큼 보내야 함을 뜻한다.
type Settlement struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// Result 는 모델이 생성한 정산 결과다. 수치 일관성은 검증하지 않는다.
type Result struct {
	Table       []Row        `json:"table"`
	Settlements []Settlement `json:"settlements"`
	Reasoning   string       `json:"reasoning"`
}
