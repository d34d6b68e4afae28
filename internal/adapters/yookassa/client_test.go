package yookassa

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"contract-check-bot/internal/domain"
)

func TestCreatePayment(t *testing.T) {
	var gotBody map[string]any
	var gotIdempotency, gotAuthUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/payments" {
			t.Errorf("неожиданный запрос: %s %s", r.Method, r.URL.Path)
		}
		gotIdempotency = r.Header.Get("Idempotence-Key")
		gotAuthUser, _, _ = r.BasicAuth()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		_, _ = w.Write([]byte(`{
			"id": "pay-1",
			"status": "pending",
			"paid": false,
			"confirmation": {"type": "redirect", "confirmation_url": "https://yookassa.ru/pay/1"}
		}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, ShopID: "shop-1", SecretKey: "secret", ReturnURL: "https://t.me/bot"})
	payment, err := client.CreatePayment(context.Background(), domain.CreatePaymentParams{
		UserID:         77,
		PlanID:         domain.PlanBasic,
		Amount:         domain.Money{Amount: 29900, Currency: "RUB"},
		Description:    "Тариф BASIC",
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if payment.ID != "pay-1" || payment.ConfirmationURL != "https://yookassa.ru/pay/1" {
		t.Fatalf("ответ разобран неверно: %+v", payment)
	}
	if gotIdempotency != "key-1" || gotAuthUser != "shop-1" {
		t.Fatalf("заголовки запроса неверны: %q %q", gotIdempotency, gotAuthUser)
	}
	amount := gotBody["amount"].(map[string]any)
	if amount["value"] != "299.00" || amount["currency"] != "RUB" {
		t.Fatalf("сумма сериализована неверно: %+v", amount)
	}
	metadata := gotBody["metadata"].(map[string]any)
	if metadata["userId"] != "77" || metadata["planId"] != "basic" {
		t.Fatalf("metadata должна нести пользователя и тариф: %+v", metadata)
	}
}

func TestCreatePaymentRequiresIdempotencyKey(t *testing.T) {
	client := NewClient(Config{ShopID: "shop-1", SecretKey: "secret"})
	_, err := client.CreatePayment(context.Background(), domain.CreatePaymentParams{UserID: 1})
	if err == nil {
		t.Fatalf("ожидали ошибку без ключа идемпотентности")
	}
}

func TestGetPaymentErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"type":"error","code":"not_found"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, ShopID: "shop-1", SecretKey: "secret"})
	_, err := client.GetPayment(context.Background(), "missing")
	if err == nil {
		t.Fatalf("статус 404 должен быть ошибкой")
	}
}

func TestFormatMinorAmount(t *testing.T) {
	cases := map[int64]string{
		29900:  "299.00",
		100:    "1.00",
		5:      "0.05",
		-12345: "-123.45",
	}
	for amount, want := range cases {
		if got := formatMinorAmount(amount); got != want {
			t.Fatalf("formatMinorAmount(%d) = %q, ожидали %q", amount, got, want)
		}
	}
}

func TestParseNotification(t *testing.T) {
	const payload = `{
		"type": "notification",
		"event": "payment.succeeded",
		"object": {
			"id": "pay-1",
			"status": "succeeded",
			"paid": true,
			"metadata": {"userId": "77", "planId": "pro"}
		}
	}`
	notif, err := ParseNotification([]byte(payload))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if notif.Event != EventPaymentSucceeded || notif.PaymentID != "pay-1" || !notif.Paid {
		t.Fatalf("уведомление разобрано неверно: %+v", notif)
	}
	if notif.UserID != 77 || notif.PlanID != "pro" {
		t.Fatalf("metadata разобрана неверно: %+v", notif)
	}
}

func TestParseNotificationUnknownPayload(t *testing.T) {
	_, err := ParseNotification([]byte(`{"type":"notification"}`))
	if !errors.Is(err, ErrUnknownNotification) {
		t.Fatalf("ожидали ErrUnknownNotification, получили %v", err)
	}
}

func TestParseNotificationBadUserID(t *testing.T) {
	const payload = `{
		"event": "payment.succeeded",
		"object": {"id": "pay-1", "metadata": {"userId": "не число"}}
	}`
	if _, err := ParseNotification([]byte(payload)); err == nil {
		t.Fatalf("нечисловой userId должен быть ошибкой")
	}
}
