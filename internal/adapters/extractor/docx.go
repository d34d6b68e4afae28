package extractor

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"contract-check-bot/internal/domain"
)

// extractDOCX читает word/document.xml из zip-контейнера и собирает
// текст из узлов w:t, разделяя абзацы переводами строк.
func extractDOCX(path string) (Result, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return Result{}, &domain.ParserFailureError{Format: "docx", Err: err}
	}
	defer reader.Close()

	var docFile *zip.File
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return Result{}, &domain.ParserFailureError{Format: "docx", Err: fmt.Errorf("word/document.xml не найден")}
	}

	rc, err := docFile.Open()
	if err != nil {
		return Result{}, &domain.ParserFailureError{Format: "docx", Err: err}
	}
	defer rc.Close()

	text, err := docxText(rc)
	if err != nil {
		return Result{}, &domain.ParserFailureError{Format: "docx", Err: err}
	}
	return Result{Text: text, Method: "docx"}, nil
}

func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				var content string
				if err := dec.DecodeElement(&content, &el); err != nil {
					return "", err
				}
				b.WriteString(content)
			case "tab":
				b.WriteString("\t")
			case "br":
				b.WriteString("\n")
			}
		case xml.EndElement:
			if el.Name.Local == "p" {
				b.WriteString("\n")
			}
		}
	}
	return b.String(), nil
}
