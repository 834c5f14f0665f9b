package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadmarket/models"
	"leadmarket/utils"
)

// statusError is a non-2xx webhook response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.code, e.body)
}

// Webhook POSTs notifications as JSON to an SMS gateway or automation hook.
type Webhook struct {
	url    string
	client *http.Client
	retry  utils.RetryConfig
	logger *utils.Logger
}

type webhookPayload struct {
	To         string  `json:"to"`
	Message    string  `json:"message"`
	BuyerID    string  `json:"buyerId"`
	PropertyID string  `json:"propertyId"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	Monthly    float64 `json:"monthlyPayment"`
	Down       float64 `json:"downPayment"`
	BudgetTag  string  `json:"budgetTag,omitempty"`
	Trigger    string  `json:"trigger"`
}

// NewWebhook creates a Webhook that retries failed deliveries up to
// maxRetries times with exponential backoff.
func NewWebhook(url string, maxRetries int, logger *utils.Logger) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		retry: utils.RetryConfig{
			MaxAttempts: maxRetries + 1,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Retryable:   retryableDelivery,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Dispatch implements ledger.Dispatcher.
func (w *Webhook) Dispatch(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(webhookPayload{
		To:         n.BuyerPhone,
		Message:    FormatMessage(n),
		BuyerID:    n.BuyerID,
		PropertyID: n.PropertyID,
		City:       n.City,
		State:      n.State,
		Monthly:    n.MonthlyPayment,
		Down:       n.DownPayment,
		BudgetTag:  n.BudgetTag,
		Trigger:    n.Trigger,
	})
	if err != nil {
		return fmt.Errorf("webhook: encode: %w", err)
	}

	return w.retry.DoContext(ctx, "webhook "+n.BuyerID, func(ctx context.Context) error {
		return w.post(ctx, body)
	})
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &statusError{code: resp.StatusCode, body: string(snippet)}
}

// retryableDelivery retries transport errors, 429 and 5xx. Other 4xx
// answers will not change on a second try.
func retryableDelivery(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return !errors.Is(err, context.Canceled)
}
