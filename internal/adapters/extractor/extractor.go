// Package extractor извлекает текст из загруженных документов.
// Диспетчеризация идёт по расширению; каждый формат обрабатывается
// независимым парсером, для PDF есть каскад «текстовый слой → OCR».
package extractor

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"contract-check-bot/internal/domain"
	"contract-check-bot/internal/infra/metrics"
)

// TruncationMarker добавляется в конец обрезанного текста.
const TruncationMarker = "\n\n[текст обрезан: документ слишком длинный]"

// Result — итог извлечения текста.
type Result struct {
	Text   string
	Pages  int
	Method string // pdf-text | pdf-ocr | image-ocr | docx | doc | rtf | html | txt
	// Truncated выставляется, когда текст обрезан по лимиту символов.
	Truncated bool
	// Degraded помечает текст, полученный через OCR: анализатор
	// предупреждается, что качество может быть снижено.
	Degraded bool
}

// Config — пределы и пороги извлечения.
type Config struct {
	MaxTextChars int
	OCRPageCap   int
	// MinCharsPerPage — порог плотности текстового слоя PDF,
	// ниже которого запускается OCR.
	MinCharsPerPage int
	Timeout         time.Duration
}

// Extractor реализует каскад извлечения текста.
type Extractor struct {
	cfg Config
	ocr *OCR
	log zerolog.Logger
}

// New создаёт экстрактор.
func New(cfg Config, ocr *OCR, log zerolog.Logger) *Extractor {
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = 120000
	}
	if cfg.OCRPageCap <= 0 {
		cfg.OCRPageCap = 10
	}
	if cfg.MinCharsPerPage <= 0 {
		cfg.MinCharsPerPage = 32
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Extractor{cfg: cfg, ocr: ocr, log: log}
}

// Extract извлекает текст из файла path с заявленным расширением.
// Исходный файл удаляется в любом случае. Пустой итог — это ошибка
// domain.ErrEmptyResult, а не пустая строка.
func (e *Extractor) Extract(ctx context.Context, path, declaredExt string) (Result, error) {
	defer os.Remove(path)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		res, err := e.extract(ctx, path, declaredExt)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		metrics.ExtractionSeconds.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
		return Result{}, domain.ErrExtractionTimeout
	case out := <-done:
		if out.err != nil {
			return Result{}, out.err
		}
		metrics.ExtractionSeconds.WithLabelValues(out.res.Method).Observe(time.Since(start).Seconds())
		return e.finalize(out.res)
	}
}

func (e *Extractor) extract(ctx context.Context, path, declaredExt string) (Result, error) {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(declaredExt), "."))
	switch ext {
	case "pdf":
		return e.extractPDF(ctx, path)
	case "docx":
		return extractDOCX(path)
	case "doc":
		return extractDOC(path)
	case "rtf":
		return extractRTF(path)
	case "html", "htm":
		return extractHTML(path)
	case "jpg", "jpeg", "png":
		return e.extractImage(ctx, path)
	default:
		// txt и неизвестные расширения читаются как простой текст
		return extractTXT(path)
	}
}

// finalize применяет лимит символов и проверку на пустой результат.
func (e *Extractor) finalize(res Result) (Result, error) {
	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		return Result{}, domain.ErrEmptyResult
	}
	runes := []rune(res.Text)
	if len(runes) > e.cfg.MaxTextChars {
		res.Text = string(runes[:e.cfg.MaxTextChars]) + TruncationMarker
		res.Truncated = true
	}
	return res, nil
}

func extractTXT(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, &domain.ParserFailureError{Format: "txt", Err: err}
	}
	return Result{Text: string(data), Method: "txt"}, nil
}

func (e *Extractor) extractImage(ctx context.Context, path string) (Result, error) {
	if e.ocr == nil {
		return Result{}, &domain.UnsupportedFormatError{Ext: "image"}
	}
	text, err := e.ocr.RecognizeFile(ctx, path)
	if err != nil {
		return Result{}, &domain.ParserFailureError{Format: "image", Err: err}
	}
	metrics.OCRPagesProcessed.Inc()
	return Result{Text: text, Pages: 1, Method: "image-ocr", Degraded: true}, nil
}
