package shared

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/park285/dong-server/internal/calculation"
	"github.com/park285/dong-server/internal/httperror"
	"github.com/park285/dong-server/internal/middleware"
)

var (
	bindingOnce sync.Once
	errBinding  error
)

// RegisterBindingValidators 는 gin 바인딩 엔진에 계산 요청 검증 규칙을 등록한다.
func RegisterBindingValidators() error {
	bindingOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			errBinding = calculation.RegisterValidators(v)
		}
	})
	return errBinding
}

// WriteError 는 에러 응답을 작성한다.
func WriteError(c *gin.Context, err error) {
	if c == nil {
		return
	}
	status, payload := httperror.Response(err, middleware.GetRequestID(c))
	c.JSON(status, payload)
}

// maxBodyBytes 는 계산 요청 본문의 최대 크기다.
const maxBodyBytes = 1 << 20

// BindRequest 는 본문을 계산 요청으로 해석하고 검증한다. 실패하면 400 응답을 쓴다.
func BindRequest(c *gin.Context) (calculation.Request, bool) {
	if c == nil || c.Request == nil {
		return calculation.Request{}, false
	}
	var body []byte
	if c.Request.Body != nil {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			WriteError(c, httperror.NewFieldError("body", "Request body could not be read.", nil))
			return calculation.Request{}, false
		}
	}
	if err := RegisterBindingValidators(); err != nil {
		WriteError(c, err)
		return calculation.Request{}, false
	}
	req, err := calculation.DecodeRequest(body)
	if err == nil {
		err = binding.Validator.ValidateStruct(&req)
	}
	if err != nil {
		WriteError(c, httperror.NewValidationError(err))
		return calculation.Request{}, false
	}
	return req, true
}

// LogFailure 는 요청 실패를 request_id 와 함께 남긴다. 5xx 로 매핑되는 에러만 Error 레벨이다.
func LogFailure(c *gin.Context, logger *slog.Logger, operation string, err error) {
	if logger == nil || err == nil {
		return
	}
	level := slog.LevelWarn
	if apiErr := httperror.FromError(err); apiErr == nil || apiErr.Status >= 500 {
		level = slog.LevelError
	}
	ctx, requestID := context.Background(), ""
	if c != nil && c.Request != nil {
		ctx, requestID = c.Request.Context(), middleware.GetRequestID(c)
	}
	logger.Log(ctx, level, operation+"_failed", "request_id", requestID, "err", err)
}
