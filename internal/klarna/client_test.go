package klarna

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kom-bridge/internal/metrics"
	"kom-bridge/internal/model"
)

func testOrder() *model.Order {
	return &model.Order{
		ID:            12,
		PaymentMethod: "klarna_payments",
		TransactionID: "abc-123",
		Meta:          map[string]string{model.MetaCountry: "SE"},
	}
}

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		Settings: testSettings(),
		BaseURL:  srv.URL,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  metrics.NewRegistry(),
		DebugLog: true,
	})
}

func assertAuth(t *testing.T, r *http.Request) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	if !ok || user != "kp-test-se" || pass != "s1" {
		t.Errorf("BasicAuth = %q/%q/%v, want kp-test-se/s1", user, pass, ok)
	}
}

func TestRetrieve(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/ordermanagement/v1/orders/abc-123" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		assertAuth(t, r)
		json.NewEncoder(w).Encode(map[string]any{
			"order_id":                    "abc-123",
			"status":                      "AUTHORIZED",
			"fraud_status":                "ACCEPTED",
			"remaining_authorized_amount": 4198,
			"billing_address":             map[string]string{"given_name": "Ada"},
		})
	})

	ko, err := c.Retrieve(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if ko.Status != model.KlarnaStatusAuthorized || ko.RemainingAuthorizedAmount != 4198 {
		t.Errorf("unexpected order %+v", ko)
	}
	if ko.BillingAddress == nil || ko.BillingAddress.GivenName != "Ada" {
		t.Errorf("BillingAddress = %+v", ko.BillingAddress)
	}
}

func TestCapture(t *testing.T) {
	var gotKey string
	var body model.CaptureRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/ordermanagement/v1/orders/abc-123/captures" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("Klarna-Idempotency-Key")
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Capture-Id", "cap-9")
		w.WriteHeader(http.StatusCreated)
	})

	ctx := WithIdempotencyKey(context.Background(), "key-1")
	id, err := c.Capture(ctx, testOrder(), &model.CaptureRequest{CapturedAmount: 4198})
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if id != "cap-9" {
		t.Errorf("capture id = %q, want cap-9", id)
	}
	if gotKey != "key-1" {
		t.Errorf("idempotency key = %q, want key-1", gotKey)
	}
	if body.CapturedAmount != 4198 {
		t.Errorf("captured_amount = %d, want 4198", body.CapturedAmount)
	}
}

func TestCapture_GeneratesIdempotencyKey(t *testing.T) {
	var gotKey string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Klarna-Idempotency-Key")
		w.WriteHeader(http.StatusCreated)
	})

	if _, err := c.Capture(context.Background(), testOrder(), &model.CaptureRequest{}); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if len(gotKey) != 36 {
		t.Errorf("generated key %q is not a UUID", gotKey)
	}
}

func TestCancelUpdateRefund(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
		call   func(c *Client) error
	}{
		{
			name: "cancel", method: http.MethodPost, path: "/ordermanagement/v1/orders/abc-123/cancel", status: http.StatusNoContent,
			call: func(c *Client) error { return c.Cancel(context.Background(), testOrder()) },
		},
		{
			name: "update order lines", method: http.MethodPatch, path: "/ordermanagement/v1/orders/abc-123/authorization", status: http.StatusNoContent,
			call: func(c *Client) error {
				return c.UpdateOrderLines(context.Background(), testOrder(), model.OrderLines{OrderAmount: 100})
			},
		},
		{
			name: "refund", method: http.MethodPost, path: "/ordermanagement/v1/orders/abc-123/refunds", status: http.StatusCreated,
			call: func(c *Client) error {
				return c.Refund(context.Background(), testOrder(), model.RefundRequest{RefundedAmount: 500})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != tt.method || r.URL.Path != tt.path {
					t.Errorf("got %s %s, want %s %s", r.Method, r.URL.Path, tt.method, tt.path)
				}
				assertAuth(t, r)
				w.WriteHeader(tt.status)
			})
			if err := tt.call(c); err != nil {
				t.Errorf("error = %v", err)
			}
		})
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
		message  string
	}{
		{"forbidden is a state conflict", http.StatusForbidden, model.ErrConflict, "Capture not allowed."},
		{"not found", http.StatusNotFound, model.ErrNotFound, "Capture not allowed."},
		{"unauthorized", http.StatusUnauthorized, model.ErrUnauthorized, "Capture not allowed."},
		{"bad request", http.StatusBadRequest, model.ErrInvalidRequest, "Capture not allowed."},
		{"server error", http.StatusInternalServerError, model.ErrUpstreamError, "Capture not allowed."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error_code":"NOT_ALLOWED","error_messages":["Capture not allowed."],"correlation_id":"corr-1"}`))
			})

			_, err := c.Capture(context.Background(), testOrder(), &model.CaptureRequest{})
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("error %v should wrap %v", err, tt.sentinel)
			}
			var kerr *Error
			if !errors.As(err, &kerr) {
				t.Fatalf("error %v should wrap *klarna.Error", err)
			}
			if kerr.StatusCode != tt.status || kerr.Code != "NOT_ALLOWED" || kerr.CorrelationID != "corr-1" {
				t.Errorf("unexpected klarna error %+v", kerr)
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.CorrelationID != "corr-1" {
				t.Errorf("APIError correlation id missing in %v", err)
			}
			if got := ErrorMessage(err); got != tt.message {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.message)
			}
		})
	}
}

func TestDebugLogBodies(t *testing.T) {
	for _, debugLog := range []bool{true, false} {
		var buf bytes.Buffer
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Capture-Id", "cap-1")
			w.WriteHeader(http.StatusCreated)
		}))
		c := New(Config{
			Settings: testSettings(),
			BaseURL:  srv.URL,
			Logger:   slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})),
			DebugLog: debugLog,
		})

		_, err := c.Capture(context.Background(), testOrder(), &model.CaptureRequest{CapturedAmount: 4198})
		srv.Close()
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}

		logged := strings.Contains(buf.String(), "captured_amount")
		if logged != debugLog {
			t.Errorf("debugLog=%v: body logged = %v\n%s", debugLog, logged, buf.String())
		}
	}
}

func TestTargetErrors(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(o *model.Order)
		sentinel error
		apiErr   error
		code     string
		status   int
	}{
		{
			name:     "missing order ID",
			modify:   func(o *model.Order) { o.TransactionID = "" },
			sentinel: ErrMissingOrderID,
			apiErr:   model.ErrConflict,
			code:     "ORDER_STATE_CONFLICT",
			status:   http.StatusConflict,
		},
		{
			name:     "missing credentials",
			modify:   func(o *model.Order) { o.Meta[model.MetaCountry] = "FI" },
			sentinel: ErrMissingCredentials,
			apiErr:   model.ErrNotConfigured,
			code:     "KLARNA_NOT_CONFIGURED",
			status:   http.StatusInternalServerError,
		},
		{
			name:     "unsupported gateway",
			modify:   func(o *model.Order) { o.PaymentMethod = "stripe" },
			sentinel: ErrUnsupportedGateway,
			apiErr:   model.ErrInvalidRequest,
			code:     "VALIDATION_ERROR",
			status:   http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Config{Settings: testSettings()})
			order := testOrder()
			tt.modify(order)

			err := c.Cancel(context.Background(), order)
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("Cancel() error = %v, want %v", err, tt.sentinel)
			}
			if !errors.Is(err, tt.apiErr) {
				t.Errorf("Cancel() error = %v, want %v", err, tt.apiErr)
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Cancel() error = %v, want *model.APIError", err)
			}
			if apiErr.Code != tt.code || apiErr.StatusCode != tt.status {
				t.Errorf("APIError = %s/%d, want %s/%d", apiErr.Code, apiErr.StatusCode, tt.code, tt.status)
			}
		})
	}
}

func TestUnreachableUpstream(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{Settings: testSettings(), BaseURL: url, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	err := c.Cancel(context.Background(), testOrder())
	if !errors.Is(err, model.ErrUpstreamError) {
		t.Errorf("Cancel() error = %v, want ErrUpstreamError", err)
	}
}

func TestErrorMessage_PlainError(t *testing.T) {
	if got := ErrorMessage(errors.New("boom")); got != "boom" {
		t.Errorf("ErrorMessage() = %q, want boom", got)
	}
	if got := ErrorMessage(&Error{StatusCode: 502}); got != "Bad Gateway" {
		t.Errorf("ErrorMessage() = %q, want Bad Gateway", got)
	}
}
