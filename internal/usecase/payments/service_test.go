package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"contract-check-bot/internal/domain"
	"contract-check-bot/internal/usecase/quota"
)

type fakeAccounts struct {
	accounts map[int64]*domain.UserAccount
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: make(map[int64]*domain.UserAccount)}
}

func (f *fakeAccounts) EnsureByTGID(_ context.Context, tgUserID int64) (domain.UserAccount, error) {
	if acc, ok := f.accounts[tgUserID]; ok {
		return *acc, nil
	}
	acc := &domain.UserAccount{TGUserID: tgUserID, PlanID: domain.PlanFree}
	f.accounts[tgUserID] = acc
	return *acc, nil
}

func (f *fakeAccounts) GetByTGID(_ context.Context, tgUserID int64) (domain.UserAccount, error) {
	if acc, ok := f.accounts[tgUserID]; ok {
		return *acc, nil
	}
	return domain.UserAccount{}, domain.ErrAccountNotFound
}

func (f *fakeAccounts) IncrementRequestsUsed(_ context.Context, tgUserID int64) error {
	f.accounts[tgUserID].RequestsUsed++
	return nil
}

func (f *fakeAccounts) UpdatePlan(_ context.Context, tgUserID int64, planID domain.PlanID, window domain.SubscriptionWindow) error {
	if _, ok := f.accounts[tgUserID]; !ok {
		f.accounts[tgUserID] = &domain.UserAccount{TGUserID: tgUserID}
	}
	f.accounts[tgUserID].PlanID = planID
	f.accounts[tgUserID].Subscription = window
	return nil
}

type fakeProvider struct {
	created []domain.CreatePaymentParams
	err     error
}

func (f *fakeProvider) CreatePayment(_ context.Context, params domain.CreatePaymentParams) (domain.GatewayPayment, error) {
	if f.err != nil {
		return domain.GatewayPayment{}, f.err
	}
	f.created = append(f.created, params)
	return domain.GatewayPayment{ID: "pay-1", Status: "pending", ConfirmationURL: "https://yookassa.ru/pay/1"}, nil
}

func (f *fakeProvider) GetPayment(_ context.Context, paymentID string) (domain.GatewayPayment, error) {
	return domain.GatewayPayment{ID: paymentID}, nil
}

func (f *fakeProvider) CancelPayment(_ context.Context, paymentID string) (domain.GatewayPayment, error) {
	return domain.GatewayPayment{ID: paymentID, Status: "canceled"}, nil
}

func (f *fakeProvider) CreateRefund(_ context.Context, paymentID string, _ domain.Money) (domain.GatewayPayment, error) {
	return domain.GatewayPayment{ID: paymentID, Status: "succeeded"}, nil
}

type fakePaymentRepo struct {
	records map[string]*domain.PaymentRecord
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{records: make(map[string]*domain.PaymentRecord)}
}

func (f *fakePaymentRepo) CreatePayment(_ context.Context, rec domain.PaymentRecord) error {
	if _, ok := f.records[rec.PaymentID]; ok {
		return nil
	}
	f.records[rec.PaymentID] = &rec
	return nil
}

func (f *fakePaymentRepo) GetPayment(_ context.Context, paymentID string) (domain.PaymentRecord, error) {
	if rec, ok := f.records[paymentID]; ok {
		return *rec, nil
	}
	return domain.PaymentRecord{}, domain.ErrPaymentNotFound
}

func (f *fakePaymentRepo) UpdatePaymentStatus(_ context.Context, paymentID, status string, paidAt *time.Time) error {
	rec, ok := f.records[paymentID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	rec.Status = status
	if paidAt != nil {
		rec.PaidAt = paidAt
	}
	return nil
}

// fakeCache повторяет семантику Once поверх карты.
type fakeCache struct {
	seen map[string]struct{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{seen: make(map[string]struct{})}
}

func (f *fakeCache) Once(_ context.Context, key string, _ time.Duration, fn func() error) error {
	if _, ok := f.seen[key]; ok {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	f.seen[key] = struct{}{}
	return nil
}

func (f *fakeCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (f *fakeCache) Get(context.Context, string) ([]byte, error)             { return nil, nil }

type fixture struct {
	svc      *Service
	accounts *fakeAccounts
	provider *fakeProvider
	records  *fakePaymentRepo
}

func newFixture() *fixture {
	accounts := newFakeAccounts()
	provider := &fakeProvider{}
	records := newFakePaymentRepo()
	svc := NewService(provider, records, quota.NewService(accounts), newFakeCache(), zerolog.Nop())
	return &fixture{svc: svc, accounts: accounts, provider: provider, records: records}
}

func TestInitiateCreatesPendingPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	url, err := f.svc.Initiate(ctx, 10, domain.PlanBasic)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if url != "https://yookassa.ru/pay/1" {
		t.Fatalf("ожидали ссылку на оплату, получили %q", url)
	}
	if len(f.provider.created) != 1 || f.provider.created[0].IdempotencyKey == "" {
		t.Fatalf("платёж должен создаваться с ключом идемпотентности: %+v", f.provider.created)
	}
	rec, err := f.records.GetPayment(ctx, "pay-1")
	if err != nil || rec.UserID != 10 || rec.PlanID != domain.PlanBasic {
		t.Fatalf("запись платежа сохранена неверно: %+v, %v", rec, err)
	}
	acc := f.accounts.accounts[10]
	if acc.PlanID != domain.PlanBasic || acc.Subscription.Active || acc.Subscription.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("до оплаты подписка должна быть в ожидании: %+v", acc)
	}
}

func TestInitiateRejectsFreePlan(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Initiate(context.Background(), 10, domain.PlanFree); !errors.Is(err, ErrFreePlan) {
		t.Fatalf("ожидали ErrFreePlan, получили %v", err)
	}
}

func TestInitiateRejectsUnknownPlan(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Initiate(context.Background(), 10, domain.PlanID("gold")); err == nil {
		t.Fatalf("неизвестный тариф должен быть ошибкой")
	}
}

func TestApplySucceededActivatesSubscription(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.svc.Initiate(ctx, 10, domain.PlanPro); err != nil {
		t.Fatal(err)
	}

	err := f.svc.Apply(ctx, Notification{
		Event:     EventPaymentSucceeded,
		PaymentID: "pay-1",
		Status:    "succeeded",
		Paid:      true,
		UserID:    10,
		PlanID:    "pro",
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	acc := f.accounts.accounts[10]
	if !acc.Subscription.Active || acc.Subscription.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("подписка должна активироваться: %+v", acc.Subscription)
	}
	if acc.Subscription.ExpiresAt == nil {
		t.Fatalf("окно подписки должно иметь срок истечения")
	}
	rec, _ := f.records.GetPayment(ctx, "pay-1")
	if rec.Status != "succeeded" || rec.PaidAt == nil {
		t.Fatalf("запись платежа должна фиксировать оплату: %+v", rec)
	}
}

func TestApplySucceededWithoutMetadataFallsBackToRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.svc.Initiate(ctx, 10, domain.PlanBasic); err != nil {
		t.Fatal(err)
	}

	err := f.svc.Apply(ctx, Notification{
		Event:     EventPaymentSucceeded,
		PaymentID: "pay-1",
		Status:    "succeeded",
		Paid:      true,
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !f.accounts.accounts[10].Subscription.Active {
		t.Fatalf("подписка должна активироваться по сохранённой записи")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.svc.Initiate(ctx, 10, domain.PlanBasic); err != nil {
		t.Fatal(err)
	}

	notif := Notification{Event: EventPaymentSucceeded, PaymentID: "pay-1", Status: "succeeded", UserID: 10, PlanID: "basic"}
	if err := f.svc.Apply(ctx, notif); err != nil {
		t.Fatal(err)
	}
	firstExpiry := *f.accounts.accounts[10].Subscription.ExpiresAt

	if err := f.svc.Apply(ctx, notif); err != nil {
		t.Fatal(err)
	}
	if !f.accounts.accounts[10].Subscription.ExpiresAt.Equal(firstExpiry) {
		t.Fatalf("повторное уведомление не должно продлевать подписку")
	}
}

func TestApplyCanceledUnknownPaymentIsIgnored(t *testing.T) {
	f := newFixture()
	err := f.svc.Apply(context.Background(), Notification{
		Event:     EventPaymentCanceled,
		PaymentID: "ghost",
		Status:    "canceled",
	})
	if err != nil {
		t.Fatalf("отмена неизвестного платежа не должна быть ошибкой: %v", err)
	}
}
