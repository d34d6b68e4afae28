package extractor

import (
	"os"
	"strings"

	"golang.org/x/net/html"

	"contract-check-bot/internal/domain"
)

// extractHTML собирает текстовые узлы документа, пропуская script/style.
func extractHTML(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, &domain.ParserFailureError{Format: "html", Err: err}
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return Result{}, &domain.ParserFailureError{Format: "html", Err: err}
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteString("\n")
			case "td", "th":
				b.WriteString("\t")
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return Result{Text: collapseBlank(b.String()), Method: "html"}, nil
}

// collapseBlank убирает последовательности пустых строк и хвостовые пробелы.
func collapseBlank(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
