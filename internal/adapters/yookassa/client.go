// Package yookassa реализует платёжный шлюз ЮKassa: создание платежей,
// возвраты и разбор уведомлений вебхука.
package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"contract-check-bot/internal/domain"
	"contract-check-bot/internal/infra/metrics"
)

// Статусы платежа на стороне шлюза.
const (
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
)

type Config struct {
	BaseURL   string
	ShopID    string
	SecretKey string
	ReturnURL string
	Timeout   time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	client := &Client{cfg: cfg}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client.httpClient = &http.Client{Timeout: timeout}
	if cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.yookassa.ru/v3"
	}
	return client
}

func (c *Client) SetHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		c.httpClient = httpClient
	}
}

type amountPayload struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type paymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Paid         bool   `json:"paid"`
	Confirmation struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

// CreatePayment создаёт платёж с редиректом на страницу оплаты.
// Идентификаторы пользователя и тарифа уходят в metadata и возвращаются
// шлюзом в уведомлении вебхука.
func (c *Client) CreatePayment(ctx context.Context, params domain.CreatePaymentParams) (domain.GatewayPayment, error) {
	if params.IdempotencyKey == "" {
		return domain.GatewayPayment{}, fmt.Errorf("idempotency key is required")
	}
	currency := params.Amount.Currency
	if currency == "" {
		currency = "RUB"
	}
	payload := map[string]any{
		"amount": amountPayload{
			Value:    formatMinorAmount(params.Amount.Amount),
			Currency: currency,
		},
		"capture":     true,
		"description": params.Description,
		"confirmation": map[string]any{
			"type":       "redirect",
			"return_url": c.cfg.ReturnURL,
		},
		"metadata": map[string]string{
			"userId": strconv.FormatInt(params.UserID, 10),
			"planId": string(params.PlanID),
		},
	}
	return c.do(ctx, http.MethodPost, "/payments", payload, params.IdempotencyKey, "create_payment")
}

// GetPayment возвращает текущее состояние платежа.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (domain.GatewayPayment, error) {
	return c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, "", "get_payment")
}

// CancelPayment отменяет неподтверждённый платёж.
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (domain.GatewayPayment, error) {
	endpoint := "/payments/" + url.PathEscape(paymentID) + "/cancel"
	return c.do(ctx, http.MethodPost, endpoint, map[string]any{}, paymentID+":cancel", "cancel_payment")
}

// CreateRefund оформляет возврат по успешному платежу.
func (c *Client) CreateRefund(ctx context.Context, paymentID string, amount domain.Money) (domain.GatewayPayment, error) {
	currency := amount.Currency
	if currency == "" {
		currency = "RUB"
	}
	payload := map[string]any{
		"payment_id": paymentID,
		"amount": amountPayload{
			Value:    formatMinorAmount(amount.Amount),
			Currency: currency,
		},
	}
	return c.do(ctx, http.MethodPost, "/refunds", payload, paymentID+":refund", "create_refund")
}

func (c *Client) do(ctx context.Context, method, path string, payload any, idempotencyKey, op string) (domain.GatewayPayment, error) {
	if c.httpClient == nil {
		return domain.GatewayPayment{}, fmt.Errorf("http client is not configured")
	}
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return domain.GatewayPayment{}, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return domain.GatewayPayment{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotence-Key", idempotencyKey)
	}
	httpReq.SetBasicAuth(c.cfg.ShopID, c.cfg.SecretKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	metrics.ObserveNetworkRequest("yookassa", op, "payments", start, err)
	if err != nil {
		return domain.GatewayPayment{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.GatewayPayment{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return domain.GatewayPayment{}, fmt.Errorf("yookassa %s failed: %s", op, strings.TrimSpace(string(data)))
	}

	var parsed paymentResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return domain.GatewayPayment{}, fmt.Errorf("decode response: %w", err)
	}
	return domain.GatewayPayment{
		ID:              parsed.ID,
		Status:          parsed.Status,
		Paid:            parsed.Paid,
		ConfirmationURL: parsed.Confirmation.ConfirmationURL,
	}, nil
}

func formatMinorAmount(amount int64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	formatted := fmt.Sprintf("%d.%02d", amount/100, amount%100)
	if negative {
		return "-" + formatted
	}
	return formatted
}
