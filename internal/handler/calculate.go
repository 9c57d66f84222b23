package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/park285/dong-server/internal/completion"
	"github.com/park285/dong-server/internal/config"
	"github.com/park285/dong-server/internal/guard"
	"github.com/park285/dong-server/internal/handler/shared"
	"github.com/park285/dong-server/internal/httperror"
	"github.com/park285/dong-server/internal/ledger"
	"github.com/park285/dong-server/internal/metrics"
	"github.com/park285/dong-server/internal/middleware"
	"github.com/park285/dong-server/internal/prompt"
)

const (
	headerDailyLimit     = "X-Daily-Limit"
	headerDailyRemaining = "X-Daily-Remaining"
)

// Calculator 는 렌더링된 프롬프트로 모델 응답을 받아온다.
type Calculator interface {
	Calculate(ctx context.Context, p prompt.Prompt) (completion.Result, error)
}

// NarrativeResponse: narrative 모드 응답입니다.
type NarrativeResponse struct {
	Result     string `json:"result"`
	UsageCount int64  `json:"usage_count"`
	DailyLimit int    `json:"daily_limit"`
}

// CalculateHandler: 더치페이 계산 API 핸들러입니다.
type CalculateHandler struct {
	defaultMode string
	ledger      *ledger.Ledger
	builder     *prompt.Builder
	calculator  Calculator
	guard       guard.Guard
	metrics     *metrics.Store
	logger      *slog.Logger
}

// NewCalculateHandler: 계산 핸들러를 생성합니다. guard 와 metrics 는 nil 이어도 됩니다.
func NewCalculateHandler(
	cfg *config.Config,
	usageLedger *ledger.Ledger,
	builder *prompt.Builder,
	calculator Calculator,
	inputGuard guard.Guard,
	metricsStore *metrics.Store,
	logger *slog.Logger,
) *CalculateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	defaultMode := config.PromptModeStructured
	if cfg != nil && cfg.Prompt.DefaultMode != "" {
		defaultMode = cfg.Prompt.DefaultMode
	}
	return &CalculateHandler{
		defaultMode: defaultMode,
		ledger:      usageLedger,
		builder:     builder,
		calculator:  calculator,
		guard:       inputGuard,
		metrics:     metricsStore,
		logger:      logger,
	}
}

// RegisterRoutes: 계산 라우트를 등록합니다. 프론트엔드는 끝 슬래시 경로를 쓴다.
func (h *CalculateHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/api/calculate", h.handleCalculate)
	router.POST("/api/calculate/", h.handleCalculate)
}

func (h *CalculateHandler) handleCalculate(c *gin.Context) {
	mode, ok := h.resolveMode(c)
	if !ok {
		h.metrics.RecordCalculation(h.defaultMode, metrics.OutcomeInvalid)
		shared.WriteError(c, httperror.NewFieldError("mode", "Must be one of: structured, narrative.", c.Query("mode")))
		return
	}

	req, ok := shared.BindRequest(c)
	if !ok {
		h.metrics.RecordCalculation(mode, metrics.OutcomeInvalid)
		return
	}
	req.Normalize()

	if h.guard != nil {
		if err := h.guard.EnsureSafe(req.Texts()...); err != nil {
			h.fail(c, mode, metrics.OutcomeBlocked, err)
			return
		}
	}

	rendered, err := h.builder.Build(mode, req)
	if err != nil {
		h.fail(c, mode, metrics.OutcomeInternal, err)
		return
	}

	ip := middleware.GetClientIP(c)
	ctx := c.Request.Context()

	reservation, err := h.ledger.Reserve(ctx, ip)
	if err != nil {
		var quotaErr *ledger.QuotaError
		if errors.As(err, &quotaErr) {
			h.setQuotaHeaders(c, quotaErr.Limit, 0)
			h.fail(c, mode, metrics.OutcomeQuota, err)
			return
		}
		h.fail(c, mode, metrics.OutcomeInternal, err)
		return
	}

	result, err := h.calculator.Calculate(ctx, rendered)
	if err != nil {
		h.ledger.Release(ctx, reservation)
		h.fail(c, mode, metrics.OutcomeAIError, err)
		return
	}

	h.ledger.Commit(ctx, reservation, ledger.TokenCount{
		Input:  int64(result.Usage.InputTokens),
		Output: int64(result.Usage.OutputTokens),
	})
	h.metrics.RecordCalculation(mode, metrics.OutcomeSuccess)
	h.setQuotaHeaders(c, reservation.Limit, reservation.Remaining())

	h.logger.Info("calculation_completed",
		"ip", ip,
		"mode", mode,
		"model", result.Model,
		"cached", result.Cached,
		"usage_count", reservation.Count,
		"parsed", result.Parsed != nil,
	)

	if mode == config.PromptModeStructured {
		c.Data(http.StatusOK, "application/json; charset=utf-8", result.Body)
		return
	}
	c.JSON(http.StatusOK, NarrativeResponse{
		Result:     result.Text(),
		UsageCount: reservation.Count,
		DailyLimit: reservation.Limit,
	})
}

func (h *CalculateHandler) resolveMode(c *gin.Context) (string, bool) {
	raw, present := c.GetQuery("mode")
	if !present {
		return h.defaultMode, true
	}
	return config.ParsePromptMode(raw)
}

func (h *CalculateHandler) setQuotaHeaders(c *gin.Context, limit int, remaining int64) {
	c.Header(headerDailyLimit, strconv.Itoa(limit))
	c.Header(headerDailyRemaining, strconv.FormatInt(remaining, 10))
}

func (h *CalculateHandler) fail(c *gin.Context, mode string, outcome string, err error) {
	h.metrics.RecordCalculation(mode, outcome)
	if outcome == metrics.OutcomeInternal || outcome == metrics.OutcomeAIError {
		shared.LogFailure(c, h.logger, "calculate", err)
	}
	shared.WriteError(c, err)
}
