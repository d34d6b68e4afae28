package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"contract-check-bot/internal/domain"
)

func newTestExtractor(maxChars int) *Extractor {
	return New(Config{MaxTextChars: maxChars}, nil, zerolog.Nop())
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractTXT(t *testing.T) {
	e := newTestExtractor(0)
	path := writeTemp(t, "doc.txt", []byte("Договор оказания услуг\nмежду сторонами"))

	res, err := e.Extract(context.Background(), path, "txt")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(res.Text, "Договор") || res.Method != "txt" {
		t.Fatalf("неожиданный результат: %+v", res)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("исходный файл должен удаляться после извлечения")
	}
}

func TestExtractUnknownExtensionFallsBackToText(t *testing.T) {
	e := newTestExtractor(0)
	path := writeTemp(t, "doc.xyz", []byte("произвольное содержимое"))

	res, err := e.Extract(context.Background(), path, ".xyz")
	if err != nil {
		t.Fatalf("неизвестное расширение должно читаться как текст: %v", err)
	}
	if res.Method != "txt" {
		t.Fatalf("ожидали метод txt, получили %s", res.Method)
	}
}

func TestExtractEmptyResult(t *testing.T) {
	e := newTestExtractor(0)
	path := writeTemp(t, "empty.txt", []byte("   \n\t  "))

	_, err := e.Extract(context.Background(), path, "txt")
	if !errors.Is(err, domain.ErrEmptyResult) {
		t.Fatalf("ожидали ErrEmptyResult, получили %v", err)
	}
}

func TestExtractTruncation(t *testing.T) {
	e := newTestExtractor(100)
	long := strings.Repeat("договорный текст ", 50)
	path := writeTemp(t, "long.txt", []byte(long))

	res, err := e.Extract(context.Background(), path, "txt")
	if err != nil {
		t.Fatalf("обрезка не должна быть ошибкой: %v", err)
	}
	if !res.Truncated || !strings.HasSuffix(res.Text, TruncationMarker) {
		t.Fatalf("ожидали маркер обрезки, получили %+v", res)
	}
	if len([]rune(res.Text)) != 100+len([]rune(TruncationMarker)) {
		t.Fatalf("обрезка должна резать по лимиту символов")
	}
}

func TestExtractDOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	const docXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Предмет договора</w:t></w:r></w:p>
<w:p><w:r><w:t>Исполнитель</w:t><w:tab/><w:t>Заказчик</w:t></w:r></w:p>
</w:body>
</w:document>`
	if _, err := w.Write([]byte(docXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	e := newTestExtractor(0)
	path := writeTemp(t, "doc.docx", buf.Bytes())

	res, err := e.Extract(context.Background(), path, "docx")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(res.Text, "Предмет договора") || !strings.Contains(res.Text, "Заказчик") {
		t.Fatalf("текст docx извлечён неверно: %q", res.Text)
	}
	if !strings.Contains(res.Text, "Исполнитель\tЗаказчик") {
		t.Fatalf("табуляция должна сохраняться: %q", res.Text)
	}
}

func TestExtractDOCXBroken(t *testing.T) {
	e := newTestExtractor(0)
	path := writeTemp(t, "doc.docx", []byte("это не zip"))

	_, err := e.Extract(context.Background(), path, "docx")
	var parserErr *domain.ParserFailureError
	if !errors.As(err, &parserErr) || parserErr.Format != "docx" {
		t.Fatalf("ожидали ParserFailureError для docx, получили %v", err)
	}
}

func TestStripRTF(t *testing.T) {
	const rtf = `{\rtf1\ansi\ansicpg1251{\fonttbl{\f0 Times New Roman;}}
{\colortbl;\red0\green0\blue0;}
\f0\fs24 \'c4\'ee\'e3\'ee\'e2\'ee\'f0 N 5\par
Unicode: \u1044?\u1086?\par}`
	text := stripRTF(rtf)
	if !strings.Contains(text, "Договор N 5") {
		t.Fatalf("кодировка cp1251 разобрана неверно: %q", text)
	}
	if !strings.Contains(text, "До") {
		t.Fatalf("юникодные escape-последовательности разобраны неверно: %q", text)
	}
	if strings.Contains(text, "Times New Roman") {
		t.Fatalf("таблица шрифтов должна пропускаться: %q", text)
	}
}

func TestExtractHTML(t *testing.T) {
	const page = `<html><head><style>body{color:red}</style></head>
<body><h1>Договор аренды</h1><script>var x=1;</script>
<p>Арендодатель передаёт помещение.</p><p>Арендатор принимает.</p></body></html>`
	e := newTestExtractor(0)
	path := writeTemp(t, "doc.html", []byte(page))

	res, err := e.Extract(context.Background(), path, "html")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(res.Text, "Договор аренды") || !strings.Contains(res.Text, "Арендатор принимает.") {
		t.Fatalf("текст html извлечён неверно: %q", res.Text)
	}
	if strings.Contains(res.Text, "var x=1") || strings.Contains(res.Text, "color:red") {
		t.Fatalf("script/style должны пропускаться: %q", res.Text)
	}
}

func TestScrapeWordStreamUTF16(t *testing.T) {
	phrase := "Договор поставки оборудования между сторонами"
	var raw []byte
	for _, r := range phrase {
		raw = append(raw, byte(r&0xff), byte(r>>8))
	}
	raw = append([]byte{0x01, 0x00, 0x00, 0x00}, raw...)
	text := scrapeWordStream(raw)
	if !strings.Contains(text, "Договор поставки") {
		t.Fatalf("utf-16 текст не извлечён: %q", text)
	}
}
