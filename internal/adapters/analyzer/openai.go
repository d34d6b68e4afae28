// Package analyzer реализует юридический разбор договора через
// OpenAI Chat Completions.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"contract-check-bot/internal/domain"
	openai "contract-check-bot/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI реализует domain.DocumentAnalyzer.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

// NewOpenAI создаёт анализатор.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

const systemPrompt = "Ты опытный юрист по договорному праву. Отвечай на русском языке, " +
	"опирайся только на текст документа и не выдумывай условий, которых в нём нет."

type analysisPayload struct {
	IsContract     bool     `json:"is_contract"`
	Party1         string   `json:"party1"`
	Party2         string   `json:"party2"`
	MainTerms      []string `json:"main_terms"`
	Party1Analysis string   `json:"party1_analysis"`
	Party2Analysis string   `json:"party2_analysis"`
	Conclusion     string   `json:"conclusion"`
}

// Analyze разбирает договор. Пустой partyHint даёт структурированный
// анализ с разбором по обеим сторонам; непустой — свободный отчёт о
// рисках для названной стороны.
func (a *OpenAI) Analyze(ctx context.Context, text, partyHint string) (domain.Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Analysis{}, &domain.AnalyzerError{Kind: domain.AnalyzerErrEmptyInput}
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if partyHint != "" {
		return a.partyReport(ctx, text, partyHint)
	}
	return a.structured(ctx, text)
}

func (a *OpenAI) structured(ctx context.Context, text string) (domain.Analysis, error) {
	userPrompt := fmt.Sprintf(`Проанализируй документ. Верни JSON формата
{"is_contract": true, "party1": "...", "party2": "...", "main_terms": ["..."],
"party1_analysis": "...", "party2_analysis": "...", "conclusion": "..."}
без пояснений вне JSON.
Если документ не является договором, верни {"is_contract": false} и заполни
conclusion кратким объяснением, что это за документ.
В party1_analysis и party2_analysis опиши риски и обязанности каждой стороны.
Текст документа:
%s`, text)

	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.2,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: systemPrompt},
			{Role: openai.RoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	}

	content, err := a.complete(ctx, req)
	if err != nil {
		return domain.Analysis{}, err
	}
	var parsed analysisPayload
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return domain.Analysis{}, &domain.AnalyzerError{Kind: domain.AnalyzerErrMalformedResponse, Err: err}
	}
	if !parsed.IsContract {
		return domain.Analysis{
			Kind:   domain.AnalysisNotContract,
			Report: strings.TrimSpace(parsed.Conclusion),
		}, nil
	}
	return domain.Analysis{
		Kind: domain.AnalysisContract,
		Contract: &domain.ContractDetails{
			Party1:     strings.TrimSpace(parsed.Party1),
			Party2:     strings.TrimSpace(parsed.Party2),
			MainTerms:  filterValues(parsed.MainTerms),
			Conclusion: strings.TrimSpace(parsed.Conclusion),
		},
		PerParty: map[string]string{
			"party1": strings.TrimSpace(parsed.Party1Analysis),
			"party2": strings.TrimSpace(parsed.Party2Analysis),
		},
	}, nil
}

func (a *OpenAI) partyReport(ctx context.Context, text, partyHint string) (domain.Analysis, error) {
	userPrompt := fmt.Sprintf(`Подготовь отчёт о рисках по договору для стороны «%s».
Структура: роль стороны, ключевые обязанности, риски с цитатами из текста,
рекомендации. Пиши обычным текстом без JSON.
Текст документа:
%s`, partyHint, text)

	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.3,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: systemPrompt},
			{Role: openai.RoleUser, Content: userPrompt},
		},
	}

	content, err := a.complete(ctx, req)
	if err != nil {
		return domain.Analysis{}, err
	}
	return domain.Analysis{Kind: domain.AnalysisContract, Report: content}, nil
}

// complete выполняет запрос и переводит ошибки транспорта и API в
// типизированные ошибки анализатора.
func (a *OpenAI) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.IsContextLengthExceeded() {
			return "", &domain.AnalyzerError{Kind: domain.AnalyzerErrContextTooLong, Err: err}
		}
		return "", &domain.AnalyzerError{Kind: domain.AnalyzerErrUpstream, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &domain.AnalyzerError{Kind: domain.AnalyzerErrMalformedResponse, Err: fmt.Errorf("пустой список choices")}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &domain.AnalyzerError{Kind: domain.AnalyzerErrMalformedResponse, Err: fmt.Errorf("пустой ответ модели")}
	}
	return content, nil
}

func filterValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
