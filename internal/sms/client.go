package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/campaignly/auth-service/internal/metrics"
)

// Template purposes mirror the flows that dispatch codes.
const (
	PurposeRegistration  = "registration"
	PurposeVerification  = "verification"
	PurposePasswordReset = "passwordReset"
)

var templates = map[string]string{
	PurposeRegistration:  "Код подтверждения регистрации: %s. Никому не сообщайте его.",
	PurposeVerification:  "Код для входа: %s. Никому не сообщайте его.",
	PurposePasswordReset: "Код для сброса пароля: %s. Никому не сообщайте его.",
}

// Gateway delivers verification codes to phone numbers. The auth service
// depends on this interface only, so tests substitute a recorder.
type Gateway interface {
	SendVerificationCode(ctx context.Context, phone, code, purpose string) error
}

// Client talks to an SMSC-compatible HTTP API. Outbound calls go through a
// circuit breaker so a provider outage fails fast instead of tying up
// request handlers.
type Client struct {
	baseURL    string
	login      string
	password   string
	sender     string
	enabled    bool
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.SugaredLogger
}

func NewClient(baseURL, login, password, sender string, enabled bool, logger *zap.SugaredLogger) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sms-gateway",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		login:      login,
		password:   password,
		sender:     sender,
		enabled:    enabled,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    cb,
		logger:     logger,
	}
}

// IsConfigured reports whether real dispatch is possible.
func (c *Client) IsConfigured() bool {
	return c.enabled && c.baseURL != "" && c.login != "" && c.password != ""
}

type sendResponse struct {
	ID        json.Number `json:"id"`
	Count     int         `json:"cnt"`
	Cost      string      `json:"cost"`
	Balance   string      `json:"balance"`
	Error     string      `json:"error"`
	ErrorCode int         `json:"error_code"`
}

// SendVerificationCode renders the per-flow template and dispatches it.
// When the client is not configured (local development) the dispatch is
// skipped; the code itself is never logged.
func (c *Client) SendVerificationCode(ctx context.Context, phone, code, purpose string) error {
	tpl, ok := templates[purpose]
	if !ok {
		tpl = templates[PurposeVerification]
	}
	message := fmt.Sprintf(tpl, code)
	trackingID := uuid.NewString()

	metrics.CodesDispatched.WithLabelValues(purpose).Inc()

	if !c.IsConfigured() {
		c.logger.Infow("SMS dispatch skipped, gateway not configured",
			"phone", phone, "purpose", purpose, "trackingId", trackingID)
		return nil
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.send(ctx, phone, message, trackingID)
	})
	if err != nil {
		c.logger.Errorw("SMS dispatch failed",
			"phone", phone, "purpose", purpose, "trackingId", trackingID, "error", err)
		return err
	}
	return nil
}

func (c *Client) send(ctx context.Context, phone, message, trackingID string) error {
	form := url.Values{}
	form.Set("login", c.login)
	form.Set("psw", c.password)
	form.Set("phones", phone)
	form.Set("mes", message)
	form.Set("fmt", "3")
	if c.sender != "" {
		form.Set("sender", c.sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sys/send.php", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send SMS request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read SMS response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SMS API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("decode SMS response: %w", err)
	}
	if parsed.Error != "" {
		return fmt.Errorf("SMS API error %d: %s", parsed.ErrorCode, parsed.Error)
	}

	c.logger.Infow("SMS dispatched",
		"phone", phone, "trackingId", trackingID,
		"messageId", parsed.ID.String(), "cost", parsed.Cost, "balance", parsed.Balance)
	return nil
}
