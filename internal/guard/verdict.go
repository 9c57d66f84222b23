package guard

import (
	"fmt"
	"strings"
)

// Hit 는 입력에 걸린 규칙 하나다.
type Hit struct {
	Rule   string  `json:"rule"`
	Weight float64 `json:"weight"`
}

// Verdict 는 입력 하나에 대한 판정이다. Score 는 걸린 규칙 가중치의 합이다.
type Verdict struct {
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Hits      []Hit   `json:"hits,omitempty"`
}

// Blocked 는 점수가 기준 이상인지 알려준다.
func (v Verdict) Blocked() bool {
	return v.Score >= v.Threshold
}

// Rules 는 걸린 규칙 ID 목록이다.
func (v Verdict) Rules() []string {
	rules := make([]string, 0, len(v.Hits))
	for _, hit := range v.Hits {
		rules = append(rules, hit.Rule)
	}
	return rules
}

// BlockedError 는 EnsureSafe 가 입력을 거부할 때 돌려주는 오류다.
type BlockedError struct {
	Score     float64
	Threshold float64
	Input     string
	Rules     []string
}

func (e *BlockedError) Error() string {
	msg := fmt.Sprintf("input rejected by injection guard: score %.2f >= %.2f", e.Score, e.Threshold)
	if len(e.Rules) > 0 {
		msg += " [" + strings.Join(e.Rules, ",") + "]"
	}
	return msg
}
