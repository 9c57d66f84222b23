package shared_test

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/park285/dong-server/internal/handler/shared"
	"github.com/park285/dong-server/internal/httperror"
)

func newContext(body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httperror.ErrorResponse {
	t.Helper()
	var payload httperror.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return payload
}

func TestBindRequestRejectsBlankNames(t *testing.T) {
	c, w := newContext(`{"expenses":[{"item":"نان","amount":100,"consumers":["  "]}],"payers":[],"participants":["علی"]}`)

	if _, ok := shared.BindRequest(c); ok {
		t.Fatalf("expected bind failure")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	payload := decodeError(t, w)
	if payload.ErrorCode != string(httperror.ErrorCodeValidation) {
		t.Fatalf("unexpected code: %s", payload.ErrorCode)
	}
	fields, ok := payload.Details["fields"].(map[string]any)
	if !ok {
		t.Fatalf("expected fields map, got %#v", payload.Details)
	}
	if _, ok := fields["expenses[0].consumers[0]"]; !ok {
		t.Fatalf("expected consumer field error, got %#v", fields)
	}
}

func TestBindRequestMalformedBody(t *testing.T) {
	for _, body := range []string{"not json", "", `["Ali"]`} {
		c, w := newContext(body)
		if _, ok := shared.BindRequest(c); ok {
			t.Fatalf("%q: expected bind failure", body)
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", body, w.Code)
		}
		if got := firstErrorField(t, decodeError(t, w)); got != "body" {
			t.Fatalf("%q: expected body field, got %q", body, got)
		}
	}
}

func firstErrorField(t *testing.T, payload httperror.ErrorResponse) string {
	t.Helper()
	list, ok := payload.Details["errors"].([]any)
	if !ok || len(list) == 0 {
		t.Fatalf("expected error list, got %#v", payload.Details)
	}
	entry, ok := list[0].(map[string]any)
	if !ok {
		t.Fatalf("unexpected error entry %#v", list[0])
	}
	field, _ := entry["field"].(string)
	return field
}

func TestBindRequestReportsIndexedAmountPath(t *testing.T) {
	cases := map[string]struct {
		body  string
		field string
	}{
		"fraction": {
			body:  `{"expenses":[{"item":"tea","amount":10,"consumers":["Ali"]},{"item":"nan","amount":12.5,"consumers":["Ali"]}],"payers":[],"participants":["Ali"]}`,
			field: "expenses[1].amount",
		},
		"quoted": {
			body:  `{"expenses":[{"item":"tea","amount":"12","consumers":["Ali"]}],"payers":[],"participants":["Ali"]}`,
			field: "expenses[0].amount",
		},
		"payer exponent": {
			body:  `{"expenses":[],"payers":[{"name":"Ali","amount":1e3}],"participants":["Ali"]}`,
			field: "payers[0].amount",
		},
		"consumer number": {
			body:  `{"expenses":[{"item":"tea","amount":10,"consumers":["Ali",7]}],"payers":[],"participants":["Ali"]}`,
			field: "expenses[0].consumers[1]",
		},
		"participants object": {
			body:  `{"expenses":[],"payers":[],"participants":{"Ali":true}}`,
			field: "participants",
		},
	}
	for name, tc := range cases {
		c, w := newContext(tc.body)
		if _, ok := shared.BindRequest(c); ok {
			t.Fatalf("%s: expected bind failure", name)
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, w.Code)
		}
		payload := decodeError(t, w)
		if payload.ErrorCode != string(httperror.ErrorCodeValidation) {
			t.Fatalf("%s: unexpected code %s", name, payload.ErrorCode)
		}
		if got := firstErrorField(t, payload); got != tc.field {
			t.Fatalf("%s: expected field %q, got %q", name, tc.field, got)
		}
	}
}

func TestBindRequestAcceptsValidBody(t *testing.T) {
	c, _ := newContext(`{"expenses":[{"item":" tea ","amount":0,"consumers":["Ali"]}],"payers":[{"name":"Ali","amount":10}],"participants":["Ali"],"extra":1}`)
	req, ok := shared.BindRequest(c)
	if !ok {
		t.Fatalf("expected valid body to bind")
	}
	if len(req.Expenses) != 1 || req.Expenses[0].Cost() != 0 || req.Payers[0].Paid() != 10 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestWriteErrorMapsUnknownToInternal(t *testing.T) {
	c, w := newContext("")
	shared.WriteError(c, errors.New("boom"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if payload := decodeError(t, w); payload.ErrorCode != string(httperror.ErrorCodeInternal) {
		t.Fatalf("unexpected code: %s", payload.ErrorCode)
	}
}

func TestLogFailureLevelFollowsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c, _ := newContext(`{}`)

	shared.LogFailure(c, logger, "calculate", httperror.NewAIProcessingError())
	if !strings.Contains(buf.String(), `"level":"ERROR"`) || !strings.Contains(buf.String(), `"msg":"calculate_failed"`) {
		t.Fatalf("expected error level entry, got %s", buf.String())
	}

	buf.Reset()
	shared.LogFailure(c, logger, "usage", httperror.NewFieldError("days", "bad", 0))
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Fatalf("expected warn level entry, got %s", buf.String())
	}

	buf.Reset()
	shared.LogFailure(c, nil, "usage", errors.New("ignored"))
	shared.LogFailure(c, logger, "usage", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %s", buf.String())
	}
}
