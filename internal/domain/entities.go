package domain

import "time"

// PaymentStatus описывает состояние оплаты подписки.
type PaymentStatus string

const (
	PaymentStatusNone    PaymentStatus = "none"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// SubscriptionWindow описывает окно действия платной подписки.
type SubscriptionWindow struct {
	Active        bool
	PlanID        PlanID
	StartedAt     *time.Time
	ExpiresAt     *time.Time
	PaymentStatus PaymentStatus
}

// UserAccount представляет пользователя Telegram в системе.
// Создаётся лениво при первом обращении с тарифом FREE.
type UserAccount struct {
	ID           int64
	TGUserID     int64
	PlanID       PlanID
	RequestsUsed int
	Subscription SubscriptionWindow
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Money описывает сумму в минимальных единицах валюты.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentRecord описывает транзакцию платёжного шлюза.
// Запись создаётся при инициации платежа и обновляется вебхуком.
type PaymentRecord struct {
	PaymentID string
	UserID    int64
	PlanID    PlanID
	Amount    Money
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time
}

// JobState — этап обработки загруженного документа.
type JobState string

const (
	JobStateUploaded       JobState = "uploaded"
	JobStateDownloading    JobState = "downloading"
	JobStateExtracting     JobState = "extracting"
	JobStateStructureCheck JobState = "structure_check"
	JobStateClassifying    JobState = "classifying"
	JobStateAnalyzing      JobState = "analyzing"
	JobStateAwaitingParty  JobState = "awaiting_party_selection"
	JobStateDelivered      JobState = "delivered"
	JobStateFailed         JobState = "failed"
)

// Classification — решение эвристики «договор или счёт».
type Classification struct {
	IsContract bool
	Reason     string
}

// DocumentJob — эфемерная запись одной загрузки.
// Живёт только в памяти процесса: вытесняется по TTL либо
// перезаписывается следующей загрузкой того же пользователя.
type DocumentJob struct {
	TGUserID       int64
	ChatID         int64
	StatusMsgID    int
	FileID         string
	FileName       string
	ForceMode      bool
	State          JobState
	ExtractedText  string
	StructureOK    bool
	Classification *Classification
	Analysis       *Analysis
	FailReason     string
	CreatedAt      time.Time
}
