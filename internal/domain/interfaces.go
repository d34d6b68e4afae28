package domain

import (
	"context"
	"time"
)

// DocumentAnalyzer — внешний LLM-сервис анализа договоров.
// partyHint непустой, когда пользователь уже выбрал сторону и нужен
// свободный отчёт по её рискам.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, text string, partyHint string) (Analysis, error)
}

// CreatePaymentParams содержит параметры создания платежа в шлюзе.
type CreatePaymentParams struct {
	UserID         int64
	PlanID         PlanID
	Amount         Money
	Description    string
	IdempotencyKey string
}

// GatewayPayment — платёж на стороне шлюза.
type GatewayPayment struct {
	ID              string
	Status          string
	Paid            bool
	ConfirmationURL string
}

// PaymentProvider — внешний платёжный шлюз.
type PaymentProvider interface {
	CreatePayment(ctx context.Context, params CreatePaymentParams) (GatewayPayment, error)
	GetPayment(ctx context.Context, paymentID string) (GatewayPayment, error)
	CancelPayment(ctx context.Context, paymentID string) (GatewayPayment, error)
	CreateRefund(ctx context.Context, paymentID string, amount Money) (GatewayPayment, error)
}

// AccountRepo управляет аккаунтами пользователей.
type AccountRepo interface {
	EnsureByTGID(ctx context.Context, tgUserID int64) (UserAccount, error)
	GetByTGID(ctx context.Context, tgUserID int64) (UserAccount, error)
	IncrementRequestsUsed(ctx context.Context, tgUserID int64) error
	UpdatePlan(ctx context.Context, tgUserID int64, planID PlanID, window SubscriptionWindow) error
}

// PaymentRepo управляет записями платежей.
type PaymentRepo interface {
	CreatePayment(ctx context.Context, rec PaymentRecord) error
	GetPayment(ctx context.Context, paymentID string) (PaymentRecord, error)
	UpdatePaymentStatus(ctx context.Context, paymentID, status string, paidAt *time.Time) error
}

// Cache используется для простых TTL-хранилищ и дедупликации.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}
