package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotFound возвращается, когда аккаунт пользователя не найден.
	ErrAccountNotFound = errors.New("account not found")

	// ErrPaymentNotFound возвращается, когда платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrDownloadTooLarge возвращается для файлов больше лимита скачивания.
	ErrDownloadTooLarge = errors.New("файл превышает лимит скачивания")

	// ErrExtractionTimeout возвращается при превышении времени извлечения текста.
	ErrExtractionTimeout = errors.New("извлечение текста не уложилось в таймаут")

	// ErrEmptyResult возвращается, когда из документа не удалось извлечь текст.
	ErrEmptyResult = errors.New("документ не содержит извлекаемого текста")
)

// UnsupportedFormatError возвращается для расширений, которые система не обрабатывает.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("неподдерживаемый формат %q", e.Ext)
}

// ParserFailureError сигнализирует сбой парсера конкретного формата.
type ParserFailureError struct {
	Format string
	Err    error
}

func (e *ParserFailureError) Error() string {
	return fmt.Sprintf("парсер %s: %v", e.Format, e.Err)
}

func (e *ParserFailureError) Unwrap() error { return e.Err }

// DenyReason — причина отказа в допуске к анализу.
type DenyReason string

const (
	DenyReasonOK                   DenyReason = "ok"
	DenyReasonSubscriptionInactive DenyReason = "subscription_inactive"
	DenyReasonLimitReached         DenyReason = "limit_reached"
)

// Admission — решение квотной политики по запросу пользователя.
type Admission struct {
	Allowed bool
	Reason  DenyReason
}
