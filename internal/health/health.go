package health

import (
	"context"
	"time"

	"github.com/park285/dong-server/internal/config"
)

var startTime = time.Now()

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Pinger 는 연결 상태를 확인할 수 있는 의존성이다.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Component 는 상태 구성 요소다.
type Component struct {
	Status string         `json:"status"`
	Detail map[string]any `json:"detail"`
}

// Response 는 상태 응답 본문이다.
type Response struct {
	Status     string               `json:"status"`
	Components map[string]Component `json:"components"`
}

// Ready 는 모든 구성 요소가 정상인지 반환한다.
func (r Response) Ready() bool {
	return r.Status == StatusOK
}

// Checker 는 원장 DB, 모델 설정, 결과 캐시 상태를 모은다.
type Checker struct {
	cfg    *config.Config
	ledger Pinger
	cache  Pinger
}

// NewChecker 는 Checker 를 생성한다. cache 는 비활성화 시 nil 이다.
func NewChecker(cfg *config.Config, ledger Pinger, cache Pinger) *Checker {
	return &Checker{cfg: cfg, ledger: ledger, cache: cache}
}

// Collect 는 헬스 상태를 수집한다. deepChecks 가 false 이면 외부 연결은 확인하지 않는다.
func (h *Checker) Collect(ctx context.Context, deepChecks bool) Response {
	if ctx == nil {
		ctx = context.Background()
	}

	components := map[string]Component{
		"app": buildAppStatus(),
		"llm": buildLLMStatus(h.cfg),
	}
	if deepChecks {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()

		components["ledger"] = buildPingStatus(checkCtx, h.ledger, h.ledgerDetail())
		if h.cache != nil {
			components["result_cache"] = buildPingStatus(checkCtx, h.cache, h.cacheDetail())
		}
	}

	overall := StatusOK
	for _, component := range components {
		if component.Status != StatusOK {
			overall = StatusDegraded
			break
		}
	}

	return Response{Status: overall, Components: components}
}

func buildAppStatus() Component {
	return Component{
		Status: StatusOK,
		Detail: map[string]any{
			"uptime_seconds": int(time.Since(startTime).Seconds()),
		},
	}
}

func buildLLMStatus(cfg *config.Config) Component {
	apiKeyPresent := false
	provider := ""
	model := ""
	timeoutSeconds := 0

	if cfg != nil {
		apiKeyPresent = cfg.LLM.APIKey != ""
		provider = cfg.LLM.Provider
		model = cfg.LLM.Model
		timeoutSeconds = cfg.LLM.TimeoutSeconds
	}
	status := StatusOK
	if !apiKeyPresent {
		status = StatusDegraded
	}

	return Component{
		Status: status,
		Detail: map[string]any{
			"api_key_present": apiKeyPresent,
			"provider":        provider,
			"model":           model,
			"timeout_seconds": timeoutSeconds,
		},
	}
}

func buildPingStatus(ctx context.Context, target Pinger, detail map[string]any) Component {
	if detail == nil {
		detail = map[string]any{}
	}
	if target == nil {
		detail["connected"] = false
		detail["error"] = "not configured"
		return Component{Status: StatusDegraded, Detail: detail}
	}

	startedAt := time.Now()
	err := target.Ping(ctx)
	detail["latency_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		detail["connected"] = false
		detail["error"] = err.Error()
		return Component{Status: StatusDegraded, Detail: detail}
	}
	detail["connected"] = true
	return Component{Status: StatusOK, Detail: detail}
}

func (h *Checker) ledgerDetail() map[string]any {
	if h.cfg == nil {
		return map[string]any{}
	}
	return map[string]any{
		"driver":      h.cfg.Database.Driver,
		"daily_limit": h.cfg.Ledger.DailyLimit,
	}
}

func (h *Checker) cacheDetail() map[string]any {
	if h.cfg == nil {
		return map[string]any{}
	}
	return map[string]any{
		"url":         config.MaskURL(h.cfg.ResultCache.URL),
		"ttl_seconds": h.cfg.ResultCache.TTLSeconds,
	}
}
