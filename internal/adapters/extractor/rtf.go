package extractor

import (
	"os"
	"strconv"
	"strings"

	"contract-check-bot/internal/domain"
)

// extractRTF снимает текст с RTF, отбрасывая управляющие слова и группы
// служебных таблиц (шрифты, цвета, стили).
func extractRTF(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, &domain.ParserFailureError{Format: "rtf", Err: err}
	}
	text := stripRTF(string(data))
	return Result{Text: text, Method: "rtf"}, nil
}

// ignoredDestinations — группы RTF, содержимое которых не является текстом.
var ignoredDestinations = map[string]bool{
	"fonttbl":    true,
	"colortbl":   true,
	"stylesheet": true,
	"info":       true,
	"pict":       true,
	"header":     true,
	"footer":     true,
	"*":          true,
}

func stripRTF(src string) string {
	var b strings.Builder
	runes := []rune(src)
	skipDepth := 0
	depth := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '{':
			depth++
			// заглянуть вперёд: группа-назначение, которую надо пропустить
			if skipDepth == 0 {
				if name := peekControlWord(runes, i+1); ignoredDestinations[name] {
					skipDepth = depth
				}
			}
		case '}':
			if skipDepth == depth {
				skipDepth = 0
			}
			depth--
		case '\\':
			word, arg, consumed := readControlWord(runes, i+1)
			i += consumed
			if skipDepth != 0 {
				continue
			}
			switch word {
			case "par", "line", "sect", "page":
				b.WriteRune('\n')
			case "tab":
				b.WriteRune('\t')
			case "emdash", "endash":
				b.WriteRune('-')
			case "'":
				// \'xx — байт в кодовой странице документа (обычно cp1251)
				if v, err := strconv.ParseUint(arg, 16, 8); err == nil {
					if cr := cp1251Rune(byte(v)); cr > 0 {
						b.WriteRune(cr)
					}
				}
			case "u":
				// \uN — юникодный код с заместителем, который пропускаем
				if v, err := strconv.Atoi(arg); err == nil {
					if v < 0 {
						v += 65536
					}
					b.WriteRune(rune(v))
					if i+1 < len(runes) && runes[i+1] != '\\' && runes[i+1] != '{' && runes[i+1] != '}' {
						i++
					}
				}
			case "\\", "{", "}":
				b.WriteRune(rune(word[0]))
			}
		default:
			if skipDepth == 0 && r != '\r' && r != '\n' {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// readControlWord читает управляющее слово после обратного слеша.
// Возвращает имя, числовой/шестнадцатеричный аргумент и число
// поглощённых рун.
func readControlWord(runes []rune, pos int) (word, arg string, consumed int) {
	if pos >= len(runes) {
		return "", "", 0
	}
	r := runes[pos]
	// управляющий символ: \\ \{ \} \' и т.п.
	if !isASCIILetter(r) {
		if r == '\'' {
			end := pos + 1
			for end < len(runes) && end < pos+3 && isHexDigit(runes[end]) {
				end++
			}
			return "'", string(runes[pos+1 : end]), end - pos
		}
		return string(r), "", 1
	}
	end := pos
	for end < len(runes) && isASCIILetter(runes[end]) {
		end++
	}
	word = string(runes[pos:end])
	argStart := end
	if end < len(runes) && (runes[end] == '-' || isDigit(runes[end])) {
		end++
		for end < len(runes) && isDigit(runes[end]) {
			end++
		}
		arg = string(runes[argStart:end])
	}
	// пробел-терминатор поглощается вместе со словом
	if end < len(runes) && runes[end] == ' ' {
		end++
	}
	return word, arg, end - pos
}

func peekControlWord(runes []rune, pos int) string {
	if pos >= len(runes) || runes[pos] != '\\' {
		return ""
	}
	word, _, _ := readControlWord(runes, pos+1)
	return word
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
