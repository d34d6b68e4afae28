package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// OCR оборачивает tesseract. Клиент gosseract не потокобезопасен,
// поэтому доступ сериализуется мьютексом.
type OCR struct {
	mu        sync.Mutex
	languages []string
}

// NewOCR создаёт OCR для указанных языков (по умолчанию rus+eng).
func NewOCR(languages ...string) *OCR {
	if len(languages) == 0 {
		languages = []string{"rus", "eng"}
	}
	return &OCR{languages: languages}
}

// RecognizeFile распознаёт текст в файле изображения.
func (o *OCR) RecognizeFile(ctx context.Context, path string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(o.languages...); err != nil {
		return "", fmt.Errorf("языки tesseract: %w", err)
	}
	if err := client.SetImage(path); err != nil {
		return "", fmt.Errorf("загрузка изображения: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("распознавание: %w", err)
	}
	return text, nil
}

// RecognizeImage распознаёт текст в отрендеренной странице.
func (o *OCR) RecognizeImage(ctx context.Context, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("кодирование страницы: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(o.languages...); err != nil {
		return "", fmt.Errorf("языки tesseract: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("загрузка страницы: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("распознавание: %w", err)
	}
	return text, nil
}
