// Package amazonpay implements adapter.PaymentAPI against the Amazon Pay API
// v2. Requests are signed with AMZN-PAY-RSASSA-PSS-V2, retried on transient
// failures, guarded per operation by a circuit breaker and checked against
// the response contracts in internal/monitor.
package amazonpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/yourorg/amazonpay-order-admin/internal/adapter"
	"github.com/yourorg/amazonpay-order-admin/internal/circuitbreaker"
	"github.com/yourorg/amazonpay-order-admin/internal/monitor"
)

const (
	providerName         = "amazon_pay"
	defaultTimeout       = 10 * time.Second
	defaultRetryAttempts = 2
	defaultRetryDelay    = 500 * time.Millisecond

	// cancellationReason is sent when an operator closes an authorization.
	cancellationReason = "Authorization closed by merchant"
)

// Config describes the merchant account and transport behaviour.
type Config struct {
	PublicKeyID string
	Region      string
	Sandbox     bool
	// BaseURL replaces the regional endpoint and path prefix, for example
	// "http://127.0.0.1:8080/v2".
	BaseURL string

	Timeout       time.Duration
	RetryAttempts int // retries after the first attempt; negative disables them
	RetryDelay    time.Duration
}

// DefaultConfig returns a sandbox configuration for the NA region.
func DefaultConfig() Config {
	return Config{
		Region:        "na",
		Sandbox:       true,
		Timeout:       defaultTimeout,
		RetryAttempts: defaultRetryAttempts,
		RetryDelay:    defaultRetryDelay,
	}
}

// Client talks to the Amazon Pay API.
type Client struct {
	cfg        Config
	baseURL    string
	signer     *Signer
	httpClient *http.Client
	breakers   *circuitbreaker.Breakers
	contracts  *monitor.ContractMonitor
	logger     *zap.Logger
}

var _ adapter.PaymentAPI = (*Client)(nil)

// NewClient creates a Client. The signer's region header is derived from
// cfg.Region.
func NewClient(cfg Config, signer *Signer, logger *zap.Logger) (*Client, error) {
	if signer == nil {
		return nil, errors.New("amazonpay: signer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if signer.PublicKeyID == "" {
		signer.PublicKeyID = cfg.PublicKeyID
	}

	region, err := regionCode(cfg.Region)
	if err != nil {
		return nil, err
	}
	signer.Region = region

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		host, err := endpointHost(cfg.Region)
		if err != nil {
			return nil, err
		}
		baseURL = "https://" + host + pathPrefix(signer.PublicKeyID, cfg.Sandbox)
	}

	contracts, err := monitor.NewContractMonitor()
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:        cfg,
		baseURL:    baseURL,
		signer:     signer,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breakers: circuitbreaker.New(circuitbreaker.Config{
			IsSuccessful: countsAsSuccess,
		}, logger),
		contracts: contracts,
		logger:    logger.Named(providerName),
	}, nil
}

// countsAsSuccess keeps client errors (4xx other than 429) from tripping a
// breaker. Those are answers, not outages.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *adapter.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus < http.StatusInternalServerError && apiErr.HTTPStatus != http.StatusTooManyRequests
	}
	return false
}

// GetName implements adapter.PaymentAPI.
func (c *Client) GetName() string { return providerName }

// GetCharge implements adapter.PaymentAPI.
func (c *Client) GetCharge(ctx context.Context, chargeID string) (*adapter.Charge, error) {
	var charge adapter.Charge
	if err := c.call(ctx, "GetCharge", http.MethodGet, "/charges/"+url.PathEscape(chargeID), nil, monitor.SchemaCharge, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// GetChargePermission implements adapter.PaymentAPI.
func (c *Client) GetChargePermission(ctx context.Context, chargePermissionID string) (*adapter.ChargePermission, error) {
	var cp adapter.ChargePermission
	err := c.call(ctx, "GetChargePermission", http.MethodGet, "/chargePermissions/"+url.PathEscape(chargePermissionID), nil, monitor.SchemaChargePermission, &cp)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// CancelCharge implements adapter.PaymentAPI.
func (c *Client) CancelCharge(ctx context.Context, chargeID string) (*adapter.Charge, error) {
	payload := map[string]string{"cancellationReason": cancellationReason}
	var charge adapter.Charge
	if err := c.call(ctx, "CancelCharge", http.MethodDelete, "/charges/"+url.PathEscape(chargeID)+"/cancel", payload, monitor.SchemaCharge, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// CaptureCharge implements adapter.PaymentAPI. The full charge amount is
// captured.
func (c *Client) CaptureCharge(ctx context.Context, chargeID string) (*adapter.Charge, error) {
	current, err := c.GetCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{"captureAmount": current.ChargeAmount}
	var charge adapter.Charge
	if err := c.call(ctx, "CaptureCharge", http.MethodPost, "/charges/"+url.PathEscape(chargeID)+"/capture", payload, monitor.SchemaCharge, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// RefundCharge implements adapter.PaymentAPI. The full captured amount is
// refunded.
func (c *Client) RefundCharge(ctx context.Context, chargeID string) (*adapter.Refund, error) {
	current, err := c.GetCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"chargeId":     chargeID,
		"refundAmount": current.CaptureAmount,
	}
	var refund adapter.Refund
	if err := c.call(ctx, "RefundCharge", http.MethodPost, "/refunds", payload, monitor.SchemaRefund, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

// call runs one operation through its breaker, decodes the reply into out and
// checks it against schema.
func (c *Client) call(ctx context.Context, op, method, path string, payload interface{}, schema string, out interface{}) error {
	ctx, span := otel.Tracer("amazonpay").Start(ctx, "AmazonPay."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("amazonpay.path", path))

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("amazonpay: %s: encode payload: %w", op, err)
		}
	}

	start := time.Now()
	res, err := c.breakers.Execute(op, func() (any, error) {
		raw, err := c.send(ctx, op, method, path, body)
		if err != nil {
			return nil, err
		}
		return raw, nil
	})
	apiRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	raw := res.([]byte)
	c.checkContract(op, schema, raw)
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("amazonpay: %s: decode response: %w", op, err)
	}
	return nil
}

// send performs the HTTP exchange with retries. A 2xx reply returns its body,
// anything else an error; non-2xx replies are *adapter.APIError.
func (c *Client) send(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var idempotencyKey string
	if method == http.MethodPost {
		idempotencyKey = uuid.NewString()
	}

	c.logger.Debug("amazonpay request",
		zap.String("operation", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.String("body", redactBody(body)),
	)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("amazonpay: %s: %w", op, ctx.Err())
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("amazonpay: %s: create request: %w", op, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		if idempotencyKey != "" {
			req.Header.Set(headerIdempotencyKey, idempotencyKey)
		}
		if err := c.signer.Sign(req, body); err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			apiRequestsTotal.WithLabelValues(op, "error").Inc()
			lastErr = fmt.Errorf("amazonpay: %s: http client error on attempt %d: %w", op, attempt+1, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		apiRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
		if readErr != nil {
			lastErr = fmt.Errorf("amazonpay: %s: read response body: %w", op, readErr)
			continue
		}

		c.logger.Debug("amazonpay response",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt+1),
			zap.String("body", redactBody(respBody)),
		)

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}
		lastErr = decodeAPIError(resp.StatusCode, respBody)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			continue
		}
		return nil, lastErr
	}
	return nil, lastErr
}

func decodeAPIError(status int, body []byte) *adapter.APIError {
	apiErr := &adapter.APIError{HTTPStatus: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.ReasonCode == "" {
		apiErr.ReasonCode = "HTTP_" + strconv.Itoa(status)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
	}
	apiErr.HTTPStatus = status
	return apiErr
}

func (c *Client) checkContract(op, schema string, body []byte) {
	valid, violations, err := c.contracts.Validate(schema, body)
	if err != nil {
		c.logger.Warn("contract check failed", zap.String("operation", op), zap.Error(err))
		return
	}
	if !valid {
		contractViolationsTotal.WithLabelValues(schema).Inc()
		c.logger.Warn("response violates contract",
			zap.String("operation", op),
			zap.String("schema", schema),
			zap.String("violations", monitor.FormatErrors(violations)),
		)
	}
}
