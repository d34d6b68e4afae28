package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"contract-check-bot/internal/domain"
	openai "contract-check-bot/internal/infra/openai"
)

type stubChat struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (s *stubChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Content: s.content}}},
	}, nil
}

func TestAnalyzeStructured(t *testing.T) {
	stub := &stubChat{content: `{
		"is_contract": true,
		"party1": "ООО Ромашка",
		"party2": "ИП Иванов",
		"main_terms": ["срок 12 месяцев", " ", "оплата помесячно"],
		"party1_analysis": "Риски арендодателя",
		"party2_analysis": "Риски арендатора",
		"conclusion": "Договор сбалансирован"
	}`}
	a := NewOpenAI(stub, "", 0)

	res, err := a.Analyze(context.Background(), "Договор аренды", "")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Kind != domain.AnalysisContract || res.Contract == nil {
		t.Fatalf("ожидали разбор договора: %+v", res)
	}
	if res.Contract.Party1 != "ООО Ромашка" || res.Contract.Party2 != "ИП Иванов" {
		t.Fatalf("стороны разобраны неверно: %+v", res.Contract)
	}
	if len(res.Contract.MainTerms) != 2 {
		t.Fatalf("пустые условия должны отбрасываться: %+v", res.Contract.MainTerms)
	}
	if res.PerParty["party2"] != "Риски арендатора" {
		t.Fatalf("разбор по сторонам разобран неверно: %+v", res.PerParty)
	}
	if stub.lastReq.ResponseFormat == nil || stub.lastReq.ResponseFormat.Type != openai.ResponseFormatTypeJSONObject {
		t.Fatalf("структурированный режим обязан просить JSON")
	}
}

func TestAnalyzeNotContract(t *testing.T) {
	stub := &stubChat{content: `{"is_contract": false, "conclusion": "Это счёт на оплату"}`}
	a := NewOpenAI(stub, "", 0)

	res, err := a.Analyze(context.Background(), "Счет на оплату № 5", "")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Kind != domain.AnalysisNotContract || res.Report != "Это счёт на оплату" {
		t.Fatalf("ожидали вердикт «не договор»: %+v", res)
	}
}

func TestAnalyzePartyReport(t *testing.T) {
	stub := &stubChat{content: "Отчёт о рисках арендатора"}
	a := NewOpenAI(stub, "", 0)

	res, err := a.Analyze(context.Background(), "Договор аренды", "ИП Иванов")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Report != "Отчёт о рисках арендатора" {
		t.Fatalf("ожидали свободный отчёт: %+v", res)
	}
	if stub.lastReq.ResponseFormat != nil {
		t.Fatalf("свободный отчёт не должен требовать JSON")
	}
	if !strings.Contains(stub.lastReq.Messages[1].Content, "ИП Иванов") {
		t.Fatalf("подсказка стороны должна попадать в промпт")
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	a := NewOpenAI(&stubChat{}, "", 0)

	_, err := a.Analyze(context.Background(), "   ", "")
	var aerr *domain.AnalyzerError
	if !errors.As(err, &aerr) || aerr.Kind != domain.AnalyzerErrEmptyInput {
		t.Fatalf("ожидали AnalyzerErrEmptyInput, получили %v", err)
	}
}

func TestAnalyzeContextTooLong(t *testing.T) {
	stub := &stubChat{err: &openai.APIError{StatusCode: 400, Code: "context_length_exceeded"}}
	a := NewOpenAI(stub, "", 0)

	_, err := a.Analyze(context.Background(), "очень длинный договор", "")
	var aerr *domain.AnalyzerError
	if !errors.As(err, &aerr) || aerr.Kind != domain.AnalyzerErrContextTooLong {
		t.Fatalf("ожидали AnalyzerErrContextTooLong, получили %v", err)
	}
}

func TestAnalyzeMalformedResponse(t *testing.T) {
	stub := &stubChat{content: "это не json"}
	a := NewOpenAI(stub, "", 0)

	_, err := a.Analyze(context.Background(), "Договор", "")
	var aerr *domain.AnalyzerError
	if !errors.As(err, &aerr) || aerr.Kind != domain.AnalyzerErrMalformedResponse {
		t.Fatalf("ожидали AnalyzerErrMalformedResponse, получили %v", err)
	}
}

func TestAnalyzeUpstreamFailure(t *testing.T) {
	stub := &stubChat{err: errors.New("connection refused")}
	a := NewOpenAI(stub, "", 0)

	_, err := a.Analyze(context.Background(), "Договор", "")
	var aerr *domain.AnalyzerError
	if !errors.As(err, &aerr) || aerr.Kind != domain.AnalyzerErrUpstream {
		t.Fatalf("ожидали AnalyzerErrUpstream, получили %v", err)
	}
}
