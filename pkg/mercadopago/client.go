package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nutriplanhq/nutriplan-backend/pkg/config"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

var (
	errAccessTokenRequired = errors.New("mercadopago access token is required")
	errLoggerRequired      = errors.New("mercadopago logger is required")
)

// Client exposes Mercado Pago primitives with centralized auth, logging, and
// error mapping. There is no official Go SDK, so requests go straight to the
// REST API.
type Client struct {
	httpClient  *http.Client
	accessToken string
	baseURL     string
	logger      *logger.Logger
}

// NewClient initializes the Mercado Pago wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.MercadoPagoConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		accessToken: accessToken,
		baseURL:     baseURL,
		logger:      logg,
	}
	logg.Info(ctx, "mercadopago client initialized")
	return c, nil
}

// CreatePreference creates a one-time checkout preference.
func (c *Client) CreatePreference(ctx context.Context, req *PreferenceRequest) (*Preference, error) {
	c.log(ctx, "request", "create_preference", map[string]any{
		"external_reference": req.ExternalReference,
		"items":              len(req.Items),
	})

	var pref Preference
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", req, &pref); err != nil {
		c.log(ctx, "error", "create_preference", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "create preference")
	}

	c.log(ctx, "response", "create_preference", map[string]any{"preference_id": pref.ID})
	return &pref, nil
}

// CreatePreapproval attaches the payer to a recurring preapproval plan.
func (c *Client) CreatePreapproval(ctx context.Context, req *PreapprovalRequest) (*Preapproval, error) {
	c.log(ctx, "request", "create_preapproval", map[string]any{
		"plan_id":            req.PreapprovalPlanID,
		"external_reference": req.ExternalReference,
	})

	var pre Preapproval
	if err := c.do(ctx, http.MethodPost, "/preapproval", req, &pre); err != nil {
		c.log(ctx, "error", "create_preapproval", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "create preapproval")
	}

	c.log(ctx, "response", "create_preapproval", map[string]any{
		"preapproval_id": pre.ID,
		"status":         pre.Status,
	})
	return &pre, nil
}

// GetPayment fetches full payment details for a webhook notification.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	c.log(ctx, "request", "get_payment", map[string]any{"payment_id": paymentID})

	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &payment); err != nil {
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "get payment")
	}

	c.log(ctx, "response", "get_payment", map[string]any{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
	return &payment, nil
}

// GetPreapproval fetches the current state of a recurring subscription.
func (c *Client) GetPreapproval(ctx context.Context, preapprovalID string) (*Preapproval, error) {
	c.log(ctx, "request", "get_preapproval", map[string]any{"preapproval_id": preapprovalID})

	var pre Preapproval
	if err := c.do(ctx, http.MethodGet, "/preapproval/"+preapprovalID, nil, &pre); err != nil {
		c.log(ctx, "error", "get_preapproval", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "get preapproval")
	}

	c.log(ctx, "response", "get_preapproval", map[string]any{
		"preapproval_id": pre.ID,
		"status":         pre.Status,
	})
	return &pre, nil
}

// CancelPreapproval transitions a recurring subscription to cancelled.
func (c *Client) CancelPreapproval(ctx context.Context, preapprovalID string) (*Preapproval, error) {
	c.log(ctx, "request", "cancel_preapproval", map[string]any{"preapproval_id": preapprovalID})

	body := map[string]string{"status": "cancelled"}
	var pre Preapproval
	if err := c.do(ctx, http.MethodPut, "/preapproval/"+preapprovalID, body, &pre); err != nil {
		c.log(ctx, "error", "cancel_preapproval", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "cancel preapproval")
	}

	c.log(ctx, "response", "cancel_preapproval", map[string]any{
		"preapproval_id": pre.ID,
		"status":         pre.Status,
	})
	return &pre, nil
}

// NewIdempotencyKey returns a unique key for the X-Idempotency-Key header.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "np"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

type apiError struct {
	StatusCode int
	Message    string `json:"message"`
	ErrorCode  string `json:"error"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("mercadopago api status %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Idempotency-Key", c.NewIdempotencyKey(strings.ToLower(method)))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mercadopago %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &apiError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("mercadopago %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("mercadopago %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "email", "card"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return pkgerrors.Wrap(domainCodeForStatus(apiErr.StatusCode), err, fmt.Sprintf("mercadopago %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("mercadopago %s failed", op))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
