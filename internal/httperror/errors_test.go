package httperror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"

	"github.com/park285/dong-server/internal/calculation"
	"github.com/park285/dong-server/internal/completion"
	"github.com/park285/dong-server/internal/guard"
	"github.com/park285/dong-server/internal/ledger"
)

func TestFromErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   ErrorCode
		status int
	}{
		{"guard", &guard.BlockedError{Score: 0.9, Threshold: 0.8}, ErrorCodeGuardBlocked, http.StatusBadRequest},
		{"quota", &ledger.QuotaError{IP: "1.2.3.4", Limit: 100, Count: 100}, ErrorCodeQuotaExceeded, http.StatusTooManyRequests},
		{"quota sentinel", fmt.Errorf("reserve: %w", ledger.ErrQuotaExceeded), ErrorCodeQuotaExceeded, http.StatusTooManyRequests},
		{"unavailable", fmt.Errorf("provider: %w", completion.ErrUnavailable), ErrorCodeAIProcessing, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, ErrorCodeAIProcessing, http.StatusServiceUnavailable},
		{"eof", io.EOF, ErrorCodeValidation, http.StatusBadRequest},
		{"other", errors.New("boom"), ErrorCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := FromError(tt.err)
			if apiErr == nil || apiErr.Code != tt.code || apiErr.Status != tt.status {
				t.Fatalf("unexpected mapping: %+v", apiErr)
			}
		})
	}

	if FromError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestQuotaExceededDetails(t *testing.T) {
	apiErr := FromError(&ledger.QuotaError{Limit: 3, Count: 3})
	if apiErr.Message != QuotaExceededMessage {
		t.Fatalf("unexpected message: %s", apiErr.Message)
	}
	if apiErr.Details["limit"] != 3 || apiErr.Details["count"] != int64(3) {
		t.Fatalf("unexpected details: %v", apiErr.Details)
	}
}

func TestAIProcessingErrorHidesCause(t *testing.T) {
	apiErr := FromError(fmt.Errorf("%w: api key rejected", completion.ErrUnavailable))
	if apiErr.Message != AIProcessingMessage {
		t.Fatalf("unexpected message: %s", apiErr.Message)
	}
	if apiErr.Details != nil {
		t.Fatalf("expected no details")
	}
}

func TestValidationErrorFieldPaths(t *testing.T) {
	zero := int64(0)
	req := calculation.Request{
		Expenses:     []calculation.Expense{{Item: "pizza", Amount: &zero, Consumers: []string{}}},
		Payers:       []calculation.Payer{},
		Participants: []string{"Ali"},
	}
	err := calculation.Validate(&req)
	if err == nil {
		t.Fatalf("expected validation error")
	}

	apiErr := FromError(err)
	if apiErr.Code != ErrorCodeValidation || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	fields, ok := apiErr.Details["fields"].(map[string][]string)
	if !ok {
		t.Fatalf("unexpected details: %v", apiErr.Details)
	}
	if _, ok := fields["expenses[0].consumers"]; !ok {
		t.Fatalf("expected consumers path, got %v", fields)
	}
}

func TestValidationErrorFromTypeMismatch(t *testing.T) {
	body := `{"expenses":[{"item":"pizza","amount":1.5,"consumers":["Ali"]}],"payers":[],"participants":["Ali"]}`

	var req calculation.Request
	stdErr := json.Unmarshal([]byte(body), &req)
	goErr := fmt.Errorf("bind: %w", &gojson.UnmarshalTypeError{
		Value: "number 1.5",
		Type:  reflect.TypeOf(int64(0)),
		Field: "expenses.amount",
	})

	for _, err := range []error{stdErr, goErr} {
		if err == nil {
			t.Fatalf("expected decode error")
		}
		apiErr := FromError(err)
		if apiErr.Code != ErrorCodeValidation {
			t.Fatalf("expected validation error, got %+v", apiErr)
		}
		fields := apiErr.Details["errors"].([]FieldError)
		if len(fields) != 1 || !strings.Contains(fields[0].Field, "amount") {
			t.Fatalf("unexpected fields: %+v", fields)
		}
		if fields[0].Message != "A valid integer is required." {
			t.Fatalf("unexpected message: %s", fields[0].Message)
		}
	}
}

func TestValidationErrorKeepsDecodePath(t *testing.T) {
	_, err := calculation.DecodeRequest([]byte(`{"expenses":[{"item":"pizza","amount":1.5,"consumers":["Ali"]}],"payers":[],"participants":["Ali"]}`))
	apiErr := FromError(fmt.Errorf("bind: %w", err))
	if apiErr.Code != ErrorCodeValidation || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected validation error, got %+v", apiErr)
	}
	fields := apiErr.Details["errors"].([]FieldError)
	if len(fields) != 1 || fields[0].Field != "expenses[0].amount" || fields[0].Value != 1.5 {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}

func TestValidationErrorFromSyntax(t *testing.T) {
	var req calculation.Request
	err := json.Unmarshal([]byte(`{"expenses":`), &req)
	apiErr := FromError(err)
	if apiErr.Code != ErrorCodeValidation {
		t.Fatalf("expected validation error, got %+v", apiErr)
	}
}

func TestResponseIncludesRequestID(t *testing.T) {
	status, payload := Response(NewAIProcessingError(), "req-1")
	if status != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", status)
	}
	if payload.RequestID == nil || *payload.RequestID != "req-1" {
		t.Fatalf("expected request id")
	}
	if payload.ErrorCode != "AI_PROCESSING_ERROR" {
		t.Fatalf("unexpected code: %s", payload.ErrorCode)
	}

	_, payload = Response(NewUnauthorized(nil), "")
	if payload.RequestID != nil {
		t.Fatalf("expected nil request id")
	}
}

func TestNewRateLimitExceeded(t *testing.T) {
	err := NewRateLimitExceeded(map[string]any{"retry_after": 60})
	if err.Status != http.StatusTooManyRequests || err.Code != ErrorCodeHTTPRateLimit {
		t.Fatalf("unexpected error: %+v", err)
	}
}
