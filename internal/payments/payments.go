// Package payments forwards payment requests to the M-Pesa service.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kc-allan/at-insurance/internal/apperr"
	"github.com/kc-allan/at-insurance/internal/metrics"
	"github.com/kc-allan/at-insurance/internal/model"
	"github.com/kc-allan/at-insurance/internal/phone"
)

type Timeouts struct {
	Initiate time.Duration
	Status   time.Duration
	Health   time.Duration
}

type InitiateRequest struct {
	PhoneNumber string  `json:"phone_number"`
	Amount      float64 `json:"amount"`
	Reference   string  `json:"reference"`
	Description string  `json:"description,omitempty"`
	PolicyID    string  `json:"policy_id,omitempty"`
}

type initiateBody struct {
	InitiateRequest
	UserID    string `json:"user_id"`
	UserPhone string `json:"user_phone"`
}

type InitiateResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp,omitempty"`
}

type StatusResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp,omitempty"`
}

type upstreamError struct {
	Detail json.RawMessage `json:"detail"`
}

// message renders detail, which is either a string or, for request validation
// failures, a list of {loc, msg} objects.
func (e upstreamError) message() string {
	if len(e.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(e.Detail, &text); err == nil {
		return text
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(e.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(e.Detail)
}

type Client struct {
	httpClient *resty.Client
	timeouts   Timeouts
	logger     *zap.Logger
}

func NewClient(baseURL string, timeouts Timeouts, logger *zap.Logger) *Client {
	if timeouts.Initiate <= 0 {
		timeouts.Initiate = 30 * time.Second
	}
	if timeouts.Status <= 0 {
		timeouts.Status = 15 * time.Second
	}
	if timeouts.Health <= 0 {
		timeouts.Health = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{httpClient: client, timeouts: timeouts, logger: logger}
}

// Initiate starts a payment on behalf of farmer. An empty phone number
// falls back to the farmer's own phone.
func (c *Client) Initiate(ctx context.Context, farmer model.Farmer, req InitiateRequest) (InitiateResponse, error) {
	req.Reference = strings.TrimSpace(req.Reference)
	if req.Amount <= 0 {
		return InitiateResponse{}, apperr.Validation(apperr.CodePaymentValidation, "amount must be greater than 0")
	}
	if req.Reference == "" {
		return InitiateResponse{}, apperr.Validation(apperr.CodePaymentValidation, "reference is required")
	}
	number := strings.TrimSpace(req.PhoneNumber)
	if number == "" {
		number = farmer.Phone
	}
	req.PhoneNumber = phone.MSISDN(number)

	body := initiateBody{InitiateRequest: req, UserID: farmer.ID, UserPhone: farmer.Phone}
	var out InitiateResponse
	err := c.post(ctx, "initiate", "/payment/initiate", c.timeouts.Initiate, body, &out)
	if err != nil {
		return InitiateResponse{}, err
	}
	c.logger.Info("payment initiated",
		zap.String("farmer_id", farmer.ID),
		zap.String("reference", req.Reference),
		zap.String("transaction_id", out.TransactionID),
	)
	return out, nil
}

func (c *Client) Status(ctx context.Context, transactionID string) (StatusResponse, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return StatusResponse{}, apperr.Validation(apperr.CodePaymentValidation, "transaction_id is required")
	}
	var out StatusResponse
	body := map[string]string{"transaction_id": transactionID}
	if err := c.post(ctx, "status", "/payment/status", c.timeouts.Status, body, &out); err != nil {
		return StatusResponse{}, err
	}
	return out, nil
}

// Health never fails: an unreachable or unhealthy service reports "unavailable".
func (c *Client) Health(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Health)
	defer cancel()

	var out HealthResponse
	resp, err := c.httpClient.R().SetContext(ctx).SetResult(&out).Get("/health")
	if err == nil && resp.IsError() {
		err = fmt.Errorf("status %d", resp.StatusCode())
	}
	metrics.PaymentCalls.WithLabelValues("health", metrics.Result(err)).Inc()
	if err != nil || out.Status == "" {
		c.logger.Warn("mpesa service unavailable", zap.Error(err))
		return HealthResponse{
			Status:    "unavailable",
			Service:   "mpesa",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
	}
	return out
}

func (c *Client) post(ctx context.Context, op, path string, timeout time.Duration, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		Post(path)
	if err != nil {
		metrics.PaymentCalls.WithLabelValues(op, "error").Inc()
		c.logger.Error("mpesa request failed", zap.String("op", op), zap.Error(err))
		return apperr.Upstream(fmt.Sprintf("M-Pesa payment %s failed: %v", op, err), 0, err)
	}
	if resp.IsError() {
		metrics.PaymentCalls.WithLabelValues(op, "error").Inc()
		// Error bodies are decoded here rather than by resty so an unexpected
		// shape still relays the upstream status.
		var upstream upstreamError
		_ = json.Unmarshal(resp.Body(), &upstream)
		detail := upstream.message()
		if detail == "" {
			detail = http.StatusText(resp.StatusCode())
		}
		c.logger.Warn("mpesa returned error",
			zap.String("op", op),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("detail", detail),
		)
		return apperr.Upstream(fmt.Sprintf("M-Pesa payment %s failed: %s", op, detail), resp.StatusCode(), nil)
	}
	metrics.PaymentCalls.WithLabelValues(op, "ok").Inc()
	return nil
}
