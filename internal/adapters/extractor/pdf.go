package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"contract-check-bot/internal/domain"
	"contract-check-bot/internal/infra/metrics"
)

// pageMarker вставляется между страницами при OCR, чтобы анализатор
// видел границы страниц.
func pageMarker(n int) string {
	return fmt.Sprintf("\n\n--- Страница %d ---\n\n", n)
}

// extractPDF пытается снять текстовый слой PDF; при пустом или слишком
// редком тексте относительно числа страниц уходит в OCR по страницам.
func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return Result{}, &domain.ParserFailureError{Format: "pdf", Err: err}
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages == 0 {
		return Result{}, domain.ErrEmptyResult
	}

	var b strings.Builder
	for i := 0; i < pages; i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			e.log.Warn().Err(err).Int("page", i+1).Msg("не удалось снять текстовый слой страницы")
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}

	text := strings.TrimSpace(b.String())
	if len([]rune(text)) >= e.cfg.MinCharsPerPage*pages {
		return Result{Text: text, Pages: pages, Method: "pdf-text"}, nil
	}

	e.log.Info().Int("pages", pages).Int("chars", len([]rune(text))).
		Msg("текстовый слой PDF слишком редкий, переходим к OCR")
	return e.ocrPDF(ctx, doc, pages)
}

// ocrPDF рендерит страницы в изображения и прогоняет их через tesseract.
// Основной путь — рендер Image; если он падает на странице, пробуем
// низкоуровневый ImageDPI с уменьшенным разрешением.
func (e *Extractor) ocrPDF(ctx context.Context, doc *fitz.Document, pages int) (Result, error) {
	if e.ocr == nil {
		return Result{}, &domain.ParserFailureError{Format: "pdf-ocr", Err: fmt.Errorf("OCR не сконфигурирован")}
	}
	capped := pages
	if capped > e.cfg.OCRPageCap {
		capped = e.cfg.OCRPageCap
	}

	var b strings.Builder
	recognized := 0
	for i := 0; i < capped; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, domain.ErrExtractionTimeout
		}
		img, err := doc.Image(i)
		if err != nil {
			img, err = doc.ImageDPI(i, 150)
		}
		if err != nil {
			e.log.Warn().Err(err).Int("page", i+1).Msg("не удалось отрендерить страницу PDF")
			continue
		}
		pageText, err := e.ocr.RecognizeImage(ctx, img)
		if err != nil {
			e.log.Warn().Err(err).Int("page", i+1).Msg("OCR страницы не удался")
			continue
		}
		metrics.OCRPagesProcessed.Inc()
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		b.WriteString(pageMarker(i + 1))
		b.WriteString(strings.TrimSpace(pageText))
		recognized++
	}

	if recognized == 0 {
		return Result{}, domain.ErrEmptyResult
	}
	return Result{Text: b.String(), Pages: pages, Method: "pdf-ocr", Degraded: true}, nil
}
