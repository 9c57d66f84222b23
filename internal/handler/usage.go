package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/park285/dong-server/internal/handler/shared"
	"github.com/park285/dong-server/internal/httperror"
	"github.com/park285/dong-server/internal/ledger"
	"github.com/park285/dong-server/internal/middleware"
)

const (
	defaultUsageDays = 7
	maxUsageDays     = 90
)

// MyUsageResponse: 호출자 IP 의 오늘 사용량 응답입니다.
type MyUsageResponse struct {
	UsageDate    string `json:"usage_date"`
	RequestCount int64  `json:"request_count"`
	DailyLimit   int    `json:"daily_limit"`
	Remaining    int64  `json:"remaining"`
}

// DailyUsageResponse: 일자별 사용량 응답입니다.
type DailyUsageResponse struct {
	UsageDate    string `json:"usage_date"`
	UniqueIPs    int64  `json:"unique_ips"`
	RequestCount int64  `json:"request_count"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	TotalTokens  int64  `json:"total_tokens"`
}

// UsageListResponse: 사용량 목록 응답입니다.
type UsageListResponse struct {
	Usages            []DailyUsageResponse `json:"usages"`
	TotalRequestCount int64                `json:"total_request_count"`
	TotalTokens       int64                `json:"total_tokens"`
	DailyLimit        int                  `json:"daily_limit"`
}

// UsageHandler: 사용량 API 핸들러입니다.
type UsageHandler struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

// NewUsageHandler: 사용량 핸들러를 생성합니다.
func NewUsageHandler(usageLedger *ledger.Ledger, logger *slog.Logger) *UsageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageHandler{ledger: usageLedger, logger: logger}
}

// RegisterRoutes: 사용량 라우트를 등록합니다. admin 미들웨어는 /daily 에만 적용됩니다.
func (h *UsageHandler) RegisterRoutes(router gin.IRouter, admin ...gin.HandlerFunc) {
	group := router.Group("/api/usage")
	group.GET("/me", h.handleMe)
	group.GET("/daily", append(admin, h.handleDaily)...)
}

func (h *UsageHandler) handleMe(c *gin.Context) {
	ip := middleware.GetClientIP(c)
	current, err := h.ledger.Status(c.Request.Context(), ip)
	if err != nil {
		h.logError(err)
		shared.WriteError(c, err)
		return
	}

	limit := h.ledger.Limit()
	c.JSON(http.StatusOK, MyUsageResponse{
		UsageDate:    current.Date.Format(time.DateOnly),
		RequestCount: current.RequestCount,
		DailyLimit:   limit,
		Remaining:    max(0, int64(limit)-current.RequestCount),
	})
}

func (h *UsageHandler) handleDaily(c *gin.Context) {
	days, ok := parseDays(c, defaultUsageDays)
	if !ok {
		return
	}

	summaries, err := h.ledger.Daily(c.Request.Context(), days)
	if err != nil {
		h.logError(err)
		shared.WriteError(c, err)
		return
	}

	response := UsageListResponse{
		Usages:     make([]DailyUsageResponse, 0, len(summaries)),
		DailyLimit: h.ledger.Limit(),
	}
	for _, row := range summaries {
		response.Usages = append(response.Usages, DailyUsageResponse{
			UsageDate:    row.UsageDate.Format(time.DateOnly),
			UniqueIPs:    row.UniqueIPs,
			RequestCount: row.RequestCount,
			InputTokens:  row.InputTokens,
			OutputTokens: row.OutputTokens,
			TotalTokens:  row.TotalTokens(),
		})
		response.TotalRequestCount += row.RequestCount
		response.TotalTokens += row.TotalTokens()
	}

	c.JSON(http.StatusOK, response)
}

func parseDays(c *gin.Context, defaultDays int) (int, bool) {
	raw := c.Query("days")
	if raw == "" {
		return defaultDays, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 || parsed > maxUsageDays {
		shared.WriteError(c, httperror.NewFieldError("days", "Must be an integer between 1 and 90.", raw))
		return 0, false
	}
	return parsed, true
}

func (h *UsageHandler) logError(err error) {
	if err == nil {
		return
	}
	h.logger.Warn("usage_request_failed", "err", err)
}
