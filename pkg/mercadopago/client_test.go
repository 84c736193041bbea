package mercadopago

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
)

func TestGetPaymentDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/123" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":123,"status":"approved","external_reference":"user-1","metadata":{"plan":"weekly"},"transaction_amount":6990,"date_created":"2025-06-01T10:00:00Z"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	payment, err := client.GetPayment(context.Background(), "123")
	if err != nil {
		t.Fatalf("get payment failed: %v", err)
	}
	if payment.ID != 123 {
		t.Fatalf("unexpected id %d", payment.ID)
	}
	if payment.Status != PaymentStatusApproved {
		t.Fatalf("unexpected status %s", payment.Status)
	}
	if payment.Metadata["plan"] != "weekly" {
		t.Fatalf("unexpected metadata %v", payment.Metadata)
	}
}

func TestCreatePreferenceSendsIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/preferences" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if key := r.Header.Get("X-Idempotency-Key"); !strings.HasPrefix(key, "post-") {
			t.Fatalf("missing idempotency key, got %q", key)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://mp.example/checkout"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	pref, err := client.CreatePreference(context.Background(), &PreferenceRequest{
		Items: []PreferenceItem{{Title: "Plan semanal", Quantity: 1, UnitPrice: 6990, CurrencyID: "ARS"}},
	})
	if err != nil {
		t.Fatalf("create preference failed: %v", err)
	}
	if pref.ID != "pref-1" {
		t.Fatalf("unexpected preference id %s", pref.ID)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status   int
		wantCode pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"message":"nope"}`))
		}))

		client := newTestClient(srv)
		_, err := client.GetPayment(context.Background(), "9")
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		typed := pkgerrors.As(err)
		if typed == nil {
			t.Fatalf("status %d: not a domain error: %v", tt.status, err)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("status %d: expected %s got %s", tt.status, tt.wantCode, typed.Code())
		}
	}
}

func TestCancelPreapprovalSetsCancelledStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/preapproval/pre-9" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pre-9","status":"cancelled"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	pre, err := client.CancelPreapproval(context.Background(), "pre-9")
	if err != nil {
		t.Fatalf("cancel preapproval failed: %v", err)
	}
	if pre.Status != "cancelled" {
		t.Fatalf("unexpected status %s", pre.Status)
	}
}

func newTestClient(srv *httptest.Server) *Client {
	return &Client{
		httpClient:  srv.Client(),
		accessToken: "test-token",
		baseURL:     srv.URL,
	}
}
