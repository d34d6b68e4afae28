package domain

import "fmt"

// AnalysisKind — вариант результата анализа.
type AnalysisKind string

const (
	// AnalysisContract — полный структурированный разбор договора.
	AnalysisContract AnalysisKind = "contract"
	// AnalysisNotContract — анализатор счёл текст не договором.
	AnalysisNotContract AnalysisKind = "not_contract"
	// AnalysisDegraded — частичный разбор текста низкого качества (обычно после OCR).
	AnalysisDegraded AnalysisKind = "degraded"
)

// ContractDetails — структурированный разбор договора.
type ContractDetails struct {
	Party1     string   `json:"party1"`
	Party2     string   `json:"party2"`
	MainTerms  []string `json:"main_terms"`
	Conclusion string   `json:"conclusion"`
}

// Analysis — размеченный результат работы анализатора.
// Потребители ветвятся по Kind, а не по nil-полям.
type Analysis struct {
	Kind     AnalysisKind
	Contract *ContractDetails
	// PerParty хранит разбор рисков по каждой стороне, ключ — party1/party2.
	PerParty map[string]string
	// Report — свободный текст отчёта, когда анализатору передана подсказка роли.
	Report string
}

// AnalyzerErrorKind — типизированная причина отказа анализатора.
// Решение принимается на границе коллаборатора, а не по подстрокам сообщений.
type AnalyzerErrorKind string

const (
	AnalyzerErrContextTooLong    AnalyzerErrorKind = "context_too_long"
	AnalyzerErrEmptyInput        AnalyzerErrorKind = "empty_input"
	AnalyzerErrMalformedResponse AnalyzerErrorKind = "malformed_response"
	AnalyzerErrUpstream          AnalyzerErrorKind = "upstream"
)

// AnalyzerError — типизированная ошибка анализатора.
type AnalyzerError struct {
	Kind AnalyzerErrorKind
	Err  error
}

func (e *AnalyzerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analyzer: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("analyzer: %s", e.Kind)
}

func (e *AnalyzerError) Unwrap() error { return e.Err }
