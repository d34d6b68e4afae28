package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageRespectsLimit(t *testing.T) {
	var builder strings.Builder
	builder.WriteString(strings.Repeat("а", 3000))
	builder.WriteString("\n\n")
	builder.WriteString(strings.Repeat("б", 2000))
	builder.WriteString("\n")
	builder.WriteString(strings.Repeat("в", 500))

	parts := SplitMessage(builder.String())
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	for i, part := range parts {
		if length := len([]rune(part)); length > messageLimit {
			t.Fatalf("часть %d превышает лимит: %d", i, length)
		}
	}
	if parts[0] != strings.Repeat("а", 3000) {
		t.Fatalf("первая часть должна заканчиваться на границе абзаца")
	}
	if !strings.HasSuffix(parts[1], strings.Repeat("в", 500)) {
		t.Fatalf("хвост отчёта должен попасть во вторую часть")
	}
}

func TestSplitMessageShortText(t *testing.T) {
	text := "короткий отчёт"
	parts := SplitMessage(text)
	if len(parts) != 1 || parts[0] != text {
		t.Fatalf("короткий текст должен возвращаться как есть: %+v", parts)
	}
}

func TestSplitMessageEmpty(t *testing.T) {
	if parts := SplitMessage("   \n  "); len(parts) != 0 {
		t.Fatalf("пустой текст не должен давать частей: %+v", parts)
	}
}

func TestFileExt(t *testing.T) {
	cases := map[string]string{
		"договор.PDF":  "pdf",
		"scan.jpeg":    "jpeg",
		"без_имени":    "",
		"архив.tar.gz": "gz",
	}
	for name, want := range cases {
		if got := FileExt(name); got != want {
			t.Fatalf("FileExt(%q) = %q, ожидали %q", name, got, want)
		}
	}
}
