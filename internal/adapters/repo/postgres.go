// Package repo реализует хранилище аккаунтов и платежей на pgxpool.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contract-check-bot/internal/domain"
	"contract-check-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.AccountRepo = (*Postgres)(nil)
	_ domain.PaymentRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 5*time.Second)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

const accountColumns = `id, tg_user_id, plan_id, requests_used,
sub_active, sub_plan_id, sub_started_at, sub_expires_at, sub_payment_status,
created_at, updated_at`

func scanAccount(row pgx.Row) (domain.UserAccount, error) {
	var (
		acc           domain.UserAccount
		subPlan       sql.NullString
		subStarted    sql.NullTime
		subExpires    sql.NullTime
		paymentStatus string
	)
	err := row.Scan(&acc.ID, &acc.TGUserID, &acc.PlanID, &acc.RequestsUsed,
		&acc.Subscription.Active, &subPlan, &subStarted, &subExpires, &paymentStatus,
		&acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return domain.UserAccount{}, err
	}
	if subPlan.Valid {
		acc.Subscription.PlanID = domain.PlanID(subPlan.String)
	}
	if subStarted.Valid {
		ts := subStarted.Time
		acc.Subscription.StartedAt = &ts
	}
	if subExpires.Valid {
		ts := subExpires.Time
		acc.Subscription.ExpiresAt = &ts
	}
	acc.Subscription.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return acc, nil
}

// EnsureByTGID возвращает аккаунт, создавая его с тарифом FREE при
// первом обращении.
func (p *Postgres) EnsureByTGID(ctx context.Context, tgUserID int64) (domain.UserAccount, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO accounts (tg_user_id)
VALUES ($1)
ON CONFLICT (tg_user_id) DO UPDATE SET updated_at = now()
RETURNING `+accountColumns, tgUserID)
	acc, err := scanAccount(row)
	metrics.ObserveNetworkRequest("postgres", "accounts_ensure", "accounts", start, err)
	if err != nil {
		return domain.UserAccount{}, err
	}
	return acc, nil
}

// GetByTGID возвращает аккаунт без создания.
func (p *Postgres) GetByTGID(ctx context.Context, tgUserID int64) (domain.UserAccount, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT `+accountColumns+`
FROM accounts
WHERE tg_user_id = $1
`, tgUserID)
	acc, err := scanAccount(row)
	metrics.ObserveNetworkRequest("postgres", "accounts_get_by_tgid", "accounts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserAccount{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.UserAccount{}, err
	}
	return acc, nil
}

// IncrementRequestsUsed атомарно увеличивает счётчик запросов.
func (p *Postgres) IncrementRequestsUsed(ctx context.Context, tgUserID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE accounts
SET requests_used = requests_used + 1, updated_at = now()
WHERE tg_user_id = $1
`, tgUserID)
	metrics.ObserveNetworkRequest("postgres", "accounts_increment_requests", "accounts", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// UpdatePlan переключает тариф и окно подписки одним запросом.
func (p *Postgres) UpdatePlan(ctx context.Context, tgUserID int64, planID domain.PlanID, window domain.SubscriptionWindow) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var started, expires sql.NullTime
	if window.StartedAt != nil {
		started = sql.NullTime{Time: *window.StartedAt, Valid: true}
	}
	if window.ExpiresAt != nil {
		expires = sql.NullTime{Time: *window.ExpiresAt, Valid: true}
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE accounts
SET plan_id = $2,
    sub_active = $3,
    sub_plan_id = NULLIF($4, ''),
    sub_started_at = $5,
    sub_expires_at = $6,
    sub_payment_status = $7,
    updated_at = now()
WHERE tg_user_id = $1
`, tgUserID, planID, window.Active, string(window.PlanID), started, expires, string(window.PaymentStatus))
	metrics.ObserveNetworkRequest("postgres", "accounts_update_plan", "accounts", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
