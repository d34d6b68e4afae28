// Package payments ведёт оплату подписки: создание платежа в шлюзе и
// применение уведомлений вебхука.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"contract-check-bot/internal/domain"
	"contract-check-bot/internal/infra/metrics"
	"contract-check-bot/internal/usecase/quota"
)

// События шлюза, которые понимает сервис.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentCanceled  = "payment.canceled"
	EventRefundSucceeded  = "refund.succeeded"
)

var ErrFreePlan = errors.New("payments: бесплатный тариф не требует оплаты")

// Notification — уведомление шлюза, очищенное от транспортных деталей.
type Notification struct {
	Event     string
	PaymentID string
	Status    string
	Paid      bool
	UserID    int64
	PlanID    string
}

// Service оркестрирует платёжный цикл подписки.
type Service struct {
	provider domain.PaymentProvider
	records  domain.PaymentRepo
	quota    *quota.Service
	cache    domain.Cache
	log      zerolog.Logger
	now      func() time.Time
}

// NewService создаёт платёжный сервис.
func NewService(provider domain.PaymentProvider, records domain.PaymentRepo, quotaUC *quota.Service, cache domain.Cache, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		records:  records,
		quota:    quotaUC,
		cache:    cache,
		log:      log,
		now:      time.Now,
	}
}

// Initiate создаёт платёж за тариф и возвращает ссылку на оплату.
// Тариф пользователя переводится в pending до подтверждения вебхуком.
func (s *Service) Initiate(ctx context.Context, tgUserID int64, planID domain.PlanID) (string, error) {
	if !domain.KnownPlan(planID) {
		return "", fmt.Errorf("неизвестный тариф %q", planID)
	}
	plan := domain.PlanByID(planID)
	if !plan.IsPaid() {
		return "", ErrFreePlan
	}

	payment, err := s.provider.CreatePayment(ctx, domain.CreatePaymentParams{
		UserID:         tgUserID,
		PlanID:         plan.ID,
		Amount:         plan.Price,
		Description:    fmt.Sprintf("Подписка «%s» на %d дней", plan.Name, plan.DurationDays),
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("создание платежа: %w", err)
	}

	rec := domain.PaymentRecord{
		PaymentID: payment.ID,
		UserID:    tgUserID,
		PlanID:    plan.ID,
		Amount:    plan.Price,
		Status:    payment.Status,
	}
	if err := s.records.CreatePayment(ctx, rec); err != nil {
		return "", fmt.Errorf("сохранение платежа: %w", err)
	}
	if err := s.quota.ChangePlan(ctx, tgUserID, plan.ID); err != nil {
		return "", fmt.Errorf("перевод тарифа в ожидание оплаты: %w", err)
	}
	return payment.ConfirmationURL, nil
}

// Apply применяет уведомление шлюза. Обработка идемпотентна: повтор
// того же события по тому же платежу игнорируется.
func (s *Service) Apply(ctx context.Context, notif Notification) error {
	metrics.PaymentsWebhook.WithLabelValues(notif.Event).Inc()

	dedupeKey := fmt.Sprintf("payments:webhook:%s:%s", notif.PaymentID, notif.Event)
	return s.cache.Once(ctx, dedupeKey, 24*time.Hour, func() error {
		switch notif.Event {
		case EventPaymentSucceeded:
			return s.applySucceeded(ctx, notif)
		case EventPaymentCanceled:
			return s.applyCanceled(ctx, notif)
		case EventRefundSucceeded:
			s.log.Info().Str("payment", notif.PaymentID).Msg("возврат подтверждён шлюзом")
			return nil
		default:
			s.log.Debug().Str("event", notif.Event).Msg("событие шлюза пропущено")
			return nil
		}
	})
}

func (s *Service) applySucceeded(ctx context.Context, notif Notification) error {
	userID := notif.UserID
	planID := domain.PlanID(notif.PlanID)
	// metadata может потеряться на стороне шлюза, тогда доверяем записи
	if userID == 0 || !domain.KnownPlan(planID) {
		rec, err := s.records.GetPayment(ctx, notif.PaymentID)
		if err != nil {
			return fmt.Errorf("платёж %s без metadata: %w", notif.PaymentID, err)
		}
		userID = rec.UserID
		planID = rec.PlanID
	}

	paidAt := s.now().UTC()
	if err := s.records.UpdatePaymentStatus(ctx, notif.PaymentID, notif.Status, &paidAt); err != nil {
		return fmt.Errorf("обновление платежа %s: %w", notif.PaymentID, err)
	}
	if err := s.quota.ActivateAfterPayment(ctx, userID, planID, notif.PaymentID); err != nil {
		return err
	}
	s.log.Info().Int64("user", userID).Str("plan", string(planID)).Str("payment", notif.PaymentID).Msg("подписка активирована")
	return nil
}

func (s *Service) applyCanceled(ctx context.Context, notif Notification) error {
	if err := s.records.UpdatePaymentStatus(ctx, notif.PaymentID, notif.Status, nil); err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			s.log.Warn().Str("payment", notif.PaymentID).Msg("отмена неизвестного платежа")
			return nil
		}
		return fmt.Errorf("обновление платежа %s: %w", notif.PaymentID, err)
	}
	return nil
}
