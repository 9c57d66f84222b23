package guard

import (
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/park285/dong-server/internal/cache"
	"github.com/park285/dong-server/internal/config"
)

const defaultThreshold = 0.7

// Guard 는 요청에 담긴 자유 입력(품목명, 이름)을 검사한다.
type Guard interface {
	Check(input string) Verdict

	// EnsureSafe 는 입력 중 하나라도 차단 대상이면 *BlockedError 를 반환한다.
	EnsureSafe(inputs ...string) error
}

var _ Guard = (*InjectionGuard)(nil)

// InjectionGuard: 규칙 파일 기반 프롬프트 인젝션 가드입니다. 판정은 입력 문자열 단위로 캐시됩니다.
type InjectionGuard struct {
	rules     *ruleSet
	threshold float64
	logger    *slog.Logger
	verdicts  *cache.TTLCache[string, Verdict]
	inflight  singleflight.Group
}

// NewGuard: 설정대로 가드를 만듭니다. 비활성 상태면 모든 입력을 통과시키는 가드를 돌려줍니다.
// RulepacksDir 가 비어 있으면 바이너리에 포함된 기본 규칙을 씁니다.
func NewGuard(cfg *config.Config, logger *slog.Logger) (*InjectionGuard, error) {
	if cfg == nil {
		return nil, errors.New("guard: nil config")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if !cfg.Guard.Enabled {
		logger.Info("guard_disabled")
		return &InjectionGuard{logger: logger}, nil
	}

	var (
		fsys fs.FS = builtinRules
		dir        = builtinRulesDir
	)
	if custom := strings.TrimSpace(cfg.Guard.RulepacksDir); custom != "" {
		fsys, dir = os.DirFS(custom), "."
	}
	rules, err := loadRuleSet(fsys, dir, logger)
	if err != nil {
		return nil, err
	}

	g := &InjectionGuard{
		rules:     rules,
		threshold: rules.threshold,
		logger:    logger,
		verdicts: cache.NewTTLCache[string, Verdict](
			cfg.Guard.CacheMaxSize,
			time.Duration(cfg.Guard.CacheTTLSeconds)*time.Second,
		),
	}
	if cfg.Guard.Threshold > 0 {
		g.threshold = cfg.Guard.Threshold
	}
	logger.Info("guard_ready",
		"patterns", len(rules.patterns),
		"phrases", len(rules.phrases),
		"threshold", g.threshold,
	)
	return g, nil
}

// Threshold 는 차단 기준 점수다. 설정값이 없으면 규칙 파일 중 가장 높은 값을 쓴다.
func (g *InjectionGuard) Threshold() float64 {
	if g == nil || g.rules == nil {
		return math.Inf(1)
	}
	return g.threshold
}

// Check 는 입력 하나를 판정한다.
func (g *InjectionGuard) Check(input string) Verdict {
	if g == nil || g.rules == nil {
		return Verdict{Threshold: math.Inf(1)}
	}
	if v, ok := g.verdicts.Get(input); ok {
		return v
	}
	v, _, _ := g.inflight.Do(input, func() (any, error) {
		verdict := g.evaluate(input)
		g.verdicts.Set(input, verdict)
		return verdict, nil
	})
	return v.(Verdict)
}

// EnsureSafe 는 빈 입력을 건너뛰고 처음 차단된 입력에서 멈춘다.
func (g *InjectionGuard) EnsureSafe(inputs ...string) error {
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			continue
		}
		v := g.Check(input)
		if !v.Blocked() {
			continue
		}
		short := trimForLog(input)
		g.logger.Warn("guard_blocked", "input", short, "score", v.Score, "rules", v.Rules())
		return &BlockedError{Score: v.Score, Threshold: v.Threshold, Input: short, Rules: v.Rules()}
	}
	return nil
}

func (g *InjectionGuard) evaluate(input string) Verdict {
	if containsSuspiciousBase64(input) {
		return Verdict{
			Score:     g.threshold,
			Threshold: g.threshold,
			Hits:      []Hit{{Rule: "base64_payload", Weight: g.threshold}},
		}
	}
	score, hits := g.rules.score(normalizeText(input))
	return Verdict{Score: score, Threshold: g.threshold, Hits: hits}
}
