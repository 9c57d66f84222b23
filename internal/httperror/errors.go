package httperror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	gojson "github.com/goccy/go-json"

	"github.com/park285/dong-server/internal/calculation"
	"github.com/park285/dong-server/internal/completion"
	"github.com/park285/dong-server/internal/guard"
	"github.com/park285/dong-server/internal/ledger"
)

// ErrorCode 는 API 오류 코드다.
type ErrorCode string

// 응답의 error_code 값이다.
const (
	ErrorCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrorCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrorCodeHTTPRateLimit ErrorCode = "HTTP_RATE_LIMIT"
	ErrorCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
	ErrorCodeAIProcessing  ErrorCode = "AI_PROCESSING_ERROR"
	ErrorCodeGuardBlocked  ErrorCode = "GUARD_BLOCKED"
)

// QuotaExceededMessage 는 한도 초과 시 사용자에게 보여줄 문구다.
const QuotaExceededMessage = "سقف استفاده روزانه شما به پایان رسیده است. لطفاً فردا دوباره تلاش کنید."

// AIProcessingMessage 는 외부 모델 호출 실패 문구다.
const AIProcessingMessage = "AI processing error"

const validationMessage = "Input validation failed"

// kind 는 오류 종류마다 고정된 코드, 상태, 타입 이름이다.
type kind struct {
	code   ErrorCode
	status int
	name   string
}

var (
	kindInternal   = kind{ErrorCodeInternal, http.StatusInternalServerError, "InternalError"}
	kindValidation = kind{ErrorCodeValidation, http.StatusBadRequest, "ValidationError"}
	kindAuth       = kind{ErrorCodeUnauthorized, http.StatusUnauthorized, "UnauthorizedError"}
	kindRateLimit  = kind{ErrorCodeHTTPRateLimit, http.StatusTooManyRequests, "HTTPRateLimitExceededError"}
	kindQuota      = kind{ErrorCodeQuotaExceeded, http.StatusTooManyRequests, "QuotaExceededError"}
	kindAI         = kind{ErrorCodeAIProcessing, http.StatusServiceUnavailable, "AIProcessingError"}
	kindGuard      = kind{ErrorCodeGuardBlocked, http.StatusBadRequest, "GuardBlockedError"}
)

func (k kind) new(message string, details map[string]any) *Error {
	return &Error{Code: k.code, Status: k.status, Type: k.name, Message: message, Details: details}
}

// ErrorResponse 는 API 오류 응답 본문이다.
type ErrorResponse struct {
	ErrorCode string         `json:"error_code"`
	ErrorType string         `json:"error_type"`
	Message   string         `json:"message"`
	RequestID *string        `json:"request_id"`
	Details   map[string]any `json:"details"`
}

// Error 는 HTTP 상태와 응답 본문으로 바로 옮길 수 있는 오류다.
type Error struct {
	Code    ErrorCode
	Status  int
	Type    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// Body 는 응답 본문을 만든다. requestID 가 비면 request_id 는 null 이다.
func (e *Error) Body(requestID string) ErrorResponse {
	body := ErrorResponse{
		ErrorCode: string(e.Code),
		ErrorType: e.Type,
		Message:   e.Message,
		Details:   e.Details,
	}
	if requestID != "" {
		body.RequestID = &requestID
	}
	return body
}

// Response 는 임의의 오류를 상태 코드와 응답 본문으로 바꾼다.
func Response(err error, requestID string) (int, ErrorResponse) {
	apiErr := FromError(err)
	if apiErr == nil {
		apiErr = NewInternalError("unknown error")
	}
	return apiErr.Status, apiErr.Body(requestID)
}

// FromError 는 오류를 내부 오류 타입으로 변환한다.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var quotaErr *ledger.QuotaError
	if errors.As(err, &quotaErr) {
		return NewQuotaExceeded(quotaErr.Limit, quotaErr.Count)
	}
	if errors.Is(err, ledger.ErrQuotaExceeded) {
		return NewQuotaExceeded(0, 0)
	}

	var blocked *guard.BlockedError
	if errors.As(err, &blocked) {
		return NewGuardBlocked(blocked.Score, blocked.Threshold)
	}

	if errors.Is(err, completion.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return NewAIProcessingError()
	}

	if isBodyError(err) {
		return NewValidationError(err)
	}

	return NewInternalError(err.Error())
}

func isBodyError(err error) bool {
	var validationErrors validator.ValidationErrors
	var stdType *json.UnmarshalTypeError
	var goType *gojson.UnmarshalTypeError
	var stdSyntax *json.SyntaxError
	var goSyntax *gojson.SyntaxError
	var decodeErr *calculation.DecodeError
	return errors.As(err, &validationErrors) ||
		errors.As(err, &decodeErr) ||
		errors.As(err, &stdType) ||
		errors.As(err, &goType) ||
		errors.As(err, &stdSyntax) ||
		errors.As(err, &goSyntax) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// NewInternalError 는 500 오류를 만든다.
func NewInternalError(message string) *Error {
	return kindInternal.new(message, nil)
}

// NewValidationError 는 바인딩 또는 검증 실패를 필드별 상세와 함께 400 으로 만든다.
func NewValidationError(err error) *Error {
	return kindValidation.new(validationMessage, validationDetails(fieldErrors(err)))
}

// NewFieldError 는 필드 하나에 대한 검증 오류를 만든다.
func NewFieldError(field string, message string, value any) *Error {
	return kindValidation.new(validationMessage, validationDetails([]FieldError{{Field: field, Message: message, Value: value}}))
}

func NewUnauthorized(details map[string]any) *Error {
	return kindAuth.new("Invalid API key", details)
}

func NewRateLimitExceeded(details map[string]any) *Error {
	return kindRateLimit.new("Rate limit exceeded", details)
}

// NewQuotaExceeded 는 일일 한도 초과 오류다. 메시지는 사용자에게 그대로 보인다.
func NewQuotaExceeded(limit int, count int64) *Error {
	return kindQuota.new(QuotaExceededMessage, map[string]any{"limit": limit, "count": count})
}

// NewAIProcessingError 는 외부 모델 호출 실패 오류다.
// 원인(네트워크, 인증, 파싱)은 응답에 드러내지 않는다.
func NewAIProcessingError() *Error {
	return kindAI.new(AIProcessingMessage, nil)
}

func NewGuardBlocked(score float64, threshold float64) *Error {
	msg := fmt.Sprintf("Input blocked by injection guard (score=%.2f, threshold=%.2f)", score, threshold)
	return kindGuard.new(msg, map[string]any{"score": score, "threshold": threshold})
}

// FieldError 는 필드 오류 상세 정보다.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

func validationDetails(fields []FieldError) map[string]any {
	byField := make(map[string][]string, len(fields))
	for _, field := range fields {
		byField[field.Field] = append(byField[field.Field], field.Message)
	}
	return map[string]any{"errors": fields, "fields": byField}
}

func fieldErrors(err error) []FieldError {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make([]FieldError, 0, len(validationErrors))
		for _, validationErr := range validationErrors {
			fields = append(fields, FieldError{
				Field:   calculation.FieldPath(validationErr),
				Message: calculation.Describe(validationErr),
				Value:   validationErr.Value(),
			})
		}
		return fields
	}

	var decodeErr *calculation.DecodeError
	if errors.As(err, &decodeErr) {
		return []FieldError{{Field: decodeErr.Field, Message: decodeErr.Message, Value: decodeErr.Value}}
	}

	var stdType *json.UnmarshalTypeError
	if errors.As(err, &stdType) {
		return []FieldError{typeError(stdType.Field, stdType.Value, stdType.Type.Kind().String())}
	}
	var goType *gojson.UnmarshalTypeError
	if errors.As(err, &goType) {
		return []FieldError{typeError(goType.Field, goType.Value, goType.Type.Kind().String())}
	}

	if errors.Is(err, io.EOF) {
		return []FieldError{{Field: "body", Message: "Request body is required.", Value: nil}}
	}

	return []FieldError{{Field: "body", Message: err.Error(), Value: nil}}
}

func typeError(field string, value string, kind string) FieldError {
	if field == "" {
		field = "body"
	}
	message := fmt.Sprintf("Expected %s, got %s.", kind, value)
	switch kind {
	case "int", "int64", "int32", "uint", "uint64":
		message = "A valid integer is required."
	case "slice":
		message = "Expected a list of items."
	case "string":
		message = "Not a valid string."
	}
	return FieldError{Field: field, Message: message, Value: value}
}
