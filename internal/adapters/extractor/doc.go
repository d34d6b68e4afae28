package extractor

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"

	"contract-check-bot/internal/domain"
)

// extractDOC читает поток WordDocument из OLE-контейнера legacy .doc.
// Полный разбор бинарного формата Word не оправдан: из потока
// вычитываются последовательности печатаемых символов UTF-16LE и CP1251.
func extractDOC(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, &domain.ParserFailureError{Format: "doc", Err: err}
	}
	defer f.Close()

	reader, err := mscfb.New(f)
	if err != nil {
		return Result{}, &domain.ParserFailureError{Format: "doc", Err: err}
	}

	for entry, err := reader.Next(); err == nil; entry, err = reader.Next() {
		if entry.Name != "WordDocument" {
			continue
		}
		data, err := io.ReadAll(entry)
		if err != nil {
			return Result{}, &domain.ParserFailureError{Format: "doc", Err: err}
		}
		text := scrapeWordStream(data)
		if strings.TrimSpace(text) == "" {
			return Result{}, domain.ErrEmptyResult
		}
		return Result{Text: text, Method: "doc"}, nil
	}
	return Result{}, &domain.ParserFailureError{Format: "doc", Err: fmt.Errorf("поток WordDocument не найден")}
}

// scrapeWordStream достаёт связные куски текста из потока WordDocument.
// Сначала пробуем UTF-16LE (современные .doc хранят текст так), затем
// добираем однобайтовые последовательности CP1251.
func scrapeWordStream(data []byte) string {
	var b strings.Builder
	if seq := scrapeUTF16Runs(data); seq != "" {
		b.WriteString(seq)
	}
	if b.Len() < 64 {
		if seq := scrapeCP1251Runs(data); len(seq) > b.Len() {
			return seq
		}
	}
	return b.String()
}

const minRunLen = 16

func scrapeUTF16Runs(data []byte) string {
	var out strings.Builder
	var run []uint16
	flush := func() {
		if len(run) >= minRunLen {
			out.WriteString(string(utf16.Decode(run)))
			out.WriteString("\n")
		}
		run = run[:0]
	}
	for i := 0; i+1 < len(data); i += 2 {
		u := uint16(data[i]) | uint16(data[i+1])<<8
		r := rune(u)
		if printableDocRune(r) {
			run = append(run, u)
			continue
		}
		flush()
	}
	flush()
	return out.String()
}

func scrapeCP1251Runs(data []byte) string {
	var out strings.Builder
	var run []rune
	flush := func() {
		if len(run) >= minRunLen {
			out.WriteString(string(run))
			out.WriteString("\n")
		}
		run = run[:0]
	}
	for _, c := range data {
		r := cp1251Rune(c)
		if printableDocRune(r) {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()
	return out.String()
}

func printableDocRune(r rune) bool {
	if r == ' ' || r == '\t' {
		return true
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// cp1251Rune переводит байт CP1251 в руну.
func cp1251Rune(c byte) rune {
	switch {
	case c < 0x80:
		return rune(c)
	case c >= 0xC0:
		return rune(0x0410 + rune(c-0xC0)) // А..я
	case c == 0xA8:
		return 'Ё'
	case c == 0xB8:
		return 'ё'
	case c == 0xB9:
		return '№'
	default:
		return rune(-1)
	}
}
