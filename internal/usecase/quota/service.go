// Package quota реализует политику допуска к анализу: тарифы,
// счётчик запросов и окно действия подписки.
package quota

import (
	"context"
	"fmt"
	"time"

	"contract-check-bot/internal/domain"
	"contract-check-bot/internal/infra/metrics"
)

// PlanInfo — тариф пользователя вместе с текущим расходом.
type PlanInfo struct {
	Plan              domain.Plan
	RequestsUsed      int
	RequestsRemaining int
	Subscription      domain.SubscriptionWindow
}

// Service — квотный и подписочный леджер.
type Service struct {
	accounts domain.AccountRepo
	now      func() time.Time
}

// NewService создаёт леджер.
func NewService(accounts domain.AccountRepo) *Service {
	return &Service{accounts: accounts, now: time.Now}
}

// GetPlan возвращает тариф и расход пользователя.
func (s *Service) GetPlan(ctx context.Context, tgUserID int64) (PlanInfo, error) {
	acc, err := s.accounts.EnsureByTGID(ctx, tgUserID)
	if err != nil {
		return PlanInfo{}, fmt.Errorf("получение аккаунта: %w", err)
	}
	return PlanInfo{
		Plan:              acc.Plan(),
		RequestsUsed:      acc.RequestsUsed,
		RequestsRemaining: acc.RequestsRemaining(),
		Subscription:      acc.Subscription,
	}, nil
}

// CanMakeRequest решает, допущен ли пользователь к анализу.
// Для платных тарифов неактивная подписка важнее лимита.
func (s *Service) CanMakeRequest(ctx context.Context, tgUserID int64) (domain.Admission, error) {
	acc, err := s.accounts.EnsureByTGID(ctx, tgUserID)
	if err != nil {
		return domain.Admission{}, fmt.Errorf("получение аккаунта: %w", err)
	}
	plan := acc.Plan()
	if plan.IsPaid() && !s.subscriptionActive(acc.Subscription) {
		metrics.QuotaDenials.WithLabelValues(string(domain.DenyReasonSubscriptionInactive)).Inc()
		return domain.Admission{Allowed: false, Reason: domain.DenyReasonSubscriptionInactive}, nil
	}
	if plan.RequestLimit > 0 && acc.RequestsUsed >= plan.RequestLimit {
		metrics.QuotaDenials.WithLabelValues(string(domain.DenyReasonLimitReached)).Inc()
		return domain.Admission{Allowed: false, Reason: domain.DenyReasonLimitReached}, nil
	}
	return domain.Admission{Allowed: true, Reason: domain.DenyReasonOK}, nil
}

// RegisterUsage безусловно увеличивает счётчик запросов.
// Вызывающая сторона обязана заранее проверить допуск: списание
// происходит строго после успешного ответа анализатора и не откатывается.
func (s *Service) RegisterUsage(ctx context.Context, tgUserID int64) error {
	if err := s.accounts.IncrementRequestsUsed(ctx, tgUserID); err != nil {
		return fmt.Errorf("списание запроса: %w", err)
	}
	return nil
}

// ChangePlan переключает тариф пользователя.
// FREE деактивирует окно подписки; платный тариф ждёт подтверждения
// оплаты со статусом pending. Счётчик запросов не сбрасывается.
func (s *Service) ChangePlan(ctx context.Context, tgUserID int64, planID domain.PlanID) error {
	if !domain.KnownPlan(planID) {
		return fmt.Errorf("неизвестный тариф %q", planID)
	}
	plan := domain.PlanByID(planID)
	window := domain.SubscriptionWindow{
		Active:        false,
		PlanID:        plan.ID,
		PaymentStatus: domain.PaymentStatusNone,
	}
	if plan.IsPaid() {
		window.PaymentStatus = domain.PaymentStatusPending
	}
	if err := s.accounts.UpdatePlan(ctx, tgUserID, plan.ID, window); err != nil {
		return fmt.Errorf("смена тарифа: %w", err)
	}
	return nil
}

// ActivateAfterPayment активирует окно подписки после подтверждения оплаты.
// Вызывается только обработчиком вебхука платёжного шлюза.
func (s *Service) ActivateAfterPayment(ctx context.Context, tgUserID int64, planID domain.PlanID, paymentRef string) error {
	if !domain.KnownPlan(planID) {
		return fmt.Errorf("неизвестный тариф %q", planID)
	}
	plan := domain.PlanByID(planID)
	start := s.now().UTC()
	expires := start.AddDate(0, 0, plan.DurationDays)
	window := domain.SubscriptionWindow{
		Active:        true,
		PlanID:        plan.ID,
		StartedAt:     &start,
		ExpiresAt:     &expires,
		PaymentStatus: domain.PaymentStatusPaid,
	}
	if err := s.accounts.UpdatePlan(ctx, tgUserID, plan.ID, window); err != nil {
		return fmt.Errorf("активация подписки %s: %w", paymentRef, err)
	}
	return nil
}

// subscriptionActive проверяет окно действия с учётом срока истечения.
func (s *Service) subscriptionActive(w domain.SubscriptionWindow) bool {
	if !w.Active {
		return false
	}
	if w.ExpiresAt != nil && s.now().After(*w.ExpiresAt) {
		return false
	}
	return true
}
