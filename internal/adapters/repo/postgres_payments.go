package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"contract-check-bot/internal/domain"
	"contract-check-bot/internal/infra/metrics"
)

const paymentCurrencyDefault = "RUB"

// CreatePayment сохраняет инициированный платёж. Повторная вставка того
// же платежа молча игнорируется: создание идемпотентно по payment_id.
func (p *Postgres) CreatePayment(ctx context.Context, rec domain.PaymentRecord) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	currency := rec.Amount.Currency
	if currency == "" {
		currency = paymentCurrencyDefault
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO payments (payment_id, user_id, plan_id, amount, currency, status)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (payment_id) DO NOTHING
`, rec.PaymentID, rec.UserID, rec.PlanID, rec.Amount.Amount, currency, rec.Status)
	metrics.ObserveNetworkRequest("postgres", "payments_create", "payments", start, err)
	return err
}

// GetPayment возвращает запись платежа по идентификатору шлюза.
func (p *Postgres) GetPayment(ctx context.Context, paymentID string) (domain.PaymentRecord, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		rec    domain.PaymentRecord
		paidAt sql.NullTime
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT payment_id, user_id, plan_id, amount, currency, status, created_at, updated_at, paid_at
FROM payments
WHERE payment_id = $1
`, paymentID).Scan(&rec.PaymentID, &rec.UserID, &rec.PlanID, &rec.Amount.Amount, &rec.Amount.Currency,
		&rec.Status, &rec.CreatedAt, &rec.UpdatedAt, &paidAt)
	metrics.ObserveNetworkRequest("postgres", "payments_get", "payments", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PaymentRecord{}, domain.ErrPaymentNotFound
	}
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	if paidAt.Valid {
		ts := paidAt.Time
		rec.PaidAt = &ts
	}
	return rec, nil
}

// UpdatePaymentStatus обновляет статус платежа по уведомлению вебхука.
func (p *Postgres) UpdatePaymentStatus(ctx context.Context, paymentID, status string, paidAt *time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var paid sql.NullTime
	if paidAt != nil {
		paid = sql.NullTime{Time: *paidAt, Valid: true}
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE payments
SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = now()
WHERE payment_id = $1
`, paymentID, status, paid)
	metrics.ObserveNetworkRequest("postgres", "payments_update_status", "payments", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}
