// Package telegram содержит утилиты работы с Bot API: скачивание файлов
// пользователя и разбиение длинных сообщений.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"contract-check-bot/internal/domain"
	"contract-check-bot/internal/infra/metrics"
)

// fileAPI — используемая часть Bot API.
type fileAPI interface {
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// Downloader скачивает файлы Bot API во временный каталог.
type Downloader struct {
	api      fileAPI
	token    string
	http     *http.Client
	tmpDir   string
	maxBytes int64
}

// NewDownloader создаёт загрузчик. maxBytes ограничивает размер файла;
// превышение возвращается как domain.ErrDownloadTooLarge.
func NewDownloader(api fileAPI, token, tmpDir string, maxBytes int64) *Downloader {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &Downloader{
		api:      api,
		token:    token,
		http:     &http.Client{Timeout: 60 * time.Second},
		tmpDir:   tmpDir,
		maxBytes: maxBytes,
	}
}

// Download скачивает файл и возвращает путь во временном каталоге и
// расширение из имени файла. Удаление файла — обязанность вызывающего.
func (d *Downloader) Download(ctx context.Context, fileID, fileName string) (string, string, error) {
	file, err := d.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", "", fmt.Errorf("get file %s: %w", fileID, err)
	}
	// Bot API знает размер заранее, можно отказать до скачивания.
	if file.FileSize > 0 && int64(file.FileSize) > d.maxBytes {
		return "", "", domain.ErrDownloadTooLarge
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(d.token), nil)
	if err != nil {
		return "", "", fmt.Errorf("build download request: %w", err)
	}
	start := time.Now()
	resp, err := d.http.Do(req)
	metrics.ObserveNetworkRequest("telegram", "download_file", "bot_api", start, err)
	if err != nil {
		return "", "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(d.tmpDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create tmp dir: %w", err)
	}
	ext := FileExt(fileName)
	path := filepath.Join(d.tmpDir, uuid.NewString()+normalizeExtSuffix(ext))
	out, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("create tmp file: %w", err)
	}

	written, err := io.Copy(out, io.LimitReader(resp.Body, d.maxBytes+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", "", fmt.Errorf("save file: %w", err)
	}
	if written > d.maxBytes {
		_ = os.Remove(path)
		return "", "", domain.ErrDownloadTooLarge
	}
	return path, ext, nil
}

// FileExt возвращает расширение имени файла без точки, в нижнем регистре.
func FileExt(fileName string) string {
	ext := strings.TrimPrefix(filepath.Ext(fileName), ".")
	return strings.ToLower(ext)
}

func normalizeExtSuffix(ext string) string {
	if ext == "" {
		return ""
	}
	return "." + ext
}
