package yookassa

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// События уведомлений, которые обрабатывает бот.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentCanceled  = "payment.canceled"
	EventRefundSucceeded  = "refund.succeeded"
)

var ErrUnknownNotification = errors.New("yookassa: unknown notification payload")

// PaymentNotification — разобранное уведомление вебхука.
// UserID и PlanID приходят из metadata, заполненной при создании платежа.
type PaymentNotification struct {
	Event     string
	PaymentID string
	Status    string
	Paid      bool
	UserID    int64
	PlanID    string
}

// ParseNotification разбирает тело уведомления ЮKassa.
// Формат: {"type":"notification","event":"payment.succeeded","object":{...}}.
func ParseNotification(data []byte) (PaymentNotification, error) {
	var envelope struct {
		Type   string `json:"type"`
		Event  string `json:"event"`
		Object struct {
			ID       string            `json:"id"`
			Status   string            `json:"status"`
			Paid     bool              `json:"paid"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return PaymentNotification{}, fmt.Errorf("parse notification: %w", err)
	}
	if envelope.Event == "" || envelope.Object.ID == "" {
		return PaymentNotification{}, ErrUnknownNotification
	}

	notif := PaymentNotification{
		Event:     envelope.Event,
		PaymentID: envelope.Object.ID,
		Status:    envelope.Object.Status,
		Paid:      envelope.Object.Paid,
		PlanID:    strings.TrimSpace(envelope.Object.Metadata["planId"]),
	}
	if raw := strings.TrimSpace(envelope.Object.Metadata["userId"]); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return PaymentNotification{}, fmt.Errorf("parse metadata userId: %w", err)
		}
		notif.UserID = userID
	}
	return notif, nil
}
