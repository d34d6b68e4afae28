// Package classify содержит эвристики проверки извлечённого текста:
// ворота структуры (отсев мусорного OCR) и ворота «договор или счёт».
// Обе функции чистые и детерминированные, без I/O.
package classify

import (
	"regexp"
	"strings"
)

// Result — решение классификатора с объясняемой причиной.
type Result struct {
	IsContract bool
	Reason     string
}

// Причины, которые показываются пользователю.
const (
	ReasonContractKeywords = "найдены характерные признаки договора"
	ReasonInvoice          = "документ похож на счёт на оплату, а не на договор"
	ReasonInvoiceHeader    = "в начале документа указан номер счёта"
	ReasonUndetermined     = "не удалось определить тип документа"
)

const (
	// minStructureLen — минимальная длина текста в рунах, ниже которой
	// текст считается шумом OCR, если нет юридических ключевых слов.
	minStructureLen = 200

	// minSentences — минимум оформленных предложений для прохождения
	// структурных ворот.
	minSentences = 3

	// invoiceHeaderWindow — окно в начале документа, где ищется
	// заголовок счёта.
	invoiceHeaderWindow = 200

	// contractScoreThreshold — порог суммарного веса договорных признаков.
	contractScoreThreshold = 3
)

var legalKeywords = []string{
	"договор",
	"соглашение",
	"стороны",
	"исполнитель",
	"заказчик",
	"обязательств",
	"ответственность",
	"предмет",
	"условия",
	"реквизиты",
}

// weightedTerm — признак с весом для подсчёта очков.
type weightedTerm struct {
	term   string
	weight int
}

var contractTerms = []weightedTerm{
	{"предмет договора", 2},
	{"ответственность сторон", 2},
	{"настоящий договор", 2},
	{"форс-мажор", 1},
	{"обстоятельства непреодолимой силы", 1},
	{"расторжение", 1},
	{"срок действия", 1},
	{"исполнитель", 1},
	{"заказчик", 1},
	{"поставщик", 1},
	{"покупатель", 1},
	{"арендодатель", 1},
	{"арендатор", 1},
	{"обязуется", 1},
	{"порядок расчетов", 1},
	{"реквизиты сторон", 1},
	{"подписи сторон", 1},
}

var invoiceTerms = []weightedTerm{
	{"счет на оплату", 3},
	{"счет-фактура", 3},
	{"к оплате", 1},
	{"итого", 1},
	{"ндс", 1},
	{"плательщик", 1},
	{"грузополучатель", 1},
	{"наименование товара", 1},
	{"назначение платежа", 1},
}

// strongInvoiceMarkers — признаки, встречающиеся только в счетах.
var strongInvoiceMarkers = []string{
	"счет на оплату",
	"счет-фактура",
	"счет для оплаты",
}

// sectionMarkers — узнаваемые разделы договора.
var sectionMarkers = []string{
	"предмет договора",
	"цена договора",
	"стоимость услуг",
	"порядок расчетов",
	"срок действия",
	"ответственность сторон",
	"подписи сторон",
}

var partyMarkers = []string{
	"исполнитель",
	"заказчик",
	"поставщик",
	"покупатель",
	"арендодатель",
	"арендатор",
	"именуем",
}

var (
	clauseNumberRe   = regexp.MustCompile(`(?m)^\s*\d+\.\d+\.?\s`)
	sentenceRe       = regexp.MustCompile(`[А-ЯЁA-Z][^.!?]{20,}[.!?]`)
	registrationRe   = regexp.MustCompile(`(?i)(инн|огрн|кпп|окпо)\s*:?\s*\d{9,15}`)
	orgFormRe        = regexp.MustCompile(`(?i)(ооо|зао|оао|па[оo]|ип)\s+[«"]`)
	invoiceNumberRe  = regexp.MustCompile(`(?i)сч[её]т\s*№\s*\S+`)
	invoiceTableRe   = regexp.MustCompile(`(?i)кол-?во[\s\S]{0,200}цена[\s\S]{0,200}сумма`)
	signatureBlockRe = regexp.MustCompile(`(?i)(подпис[ьи]|м\.\s*п\.|_{5,})`)
)

// normalize приводит текст к нижнему регистру и унифицирует «ё».
func normalize(text string) string {
	lower := strings.ToLower(text)
	return strings.ReplaceAll(lower, "ё", "е")
}

// HasStructure решает, достаточно ли структурирован текст, чтобы тратить
// на него вызов анализатора. Короткий текст проходит только при наличии
// как минимум двух юридических ключевых слов; длинный — при наличии
// нумерованных пунктов, оформленных предложений либо реквизитов.
func HasStructure(text string) bool {
	norm := normalize(strings.TrimSpace(text))
	if norm == "" {
		return false
	}
	if len([]rune(norm)) < minStructureLen {
		return countKeywords(norm, legalKeywords) >= 2
	}
	if clauseNumberRe.MatchString(text) {
		return true
	}
	if len(sentenceRe.FindAllString(text, minSentences)) >= minSentences {
		return true
	}
	return registrationRe.MatchString(norm) || orgFormRe.MatchString(norm)
}

// Classify решает, является ли текст договором. Ложные срабатывания
// дороже ложных отказов, поэтому ворота консервативны: сомнительный
// текст уходит в «не определено» с приглашением явно подтвердить тип.
func Classify(text string) Result {
	norm := normalize(text)

	contractScore := scoreTerms(norm, contractTerms)
	invoiceScore := scoreTerms(norm, invoiceTerms)
	header := invoiceHeaderFound(norm)
	strongInvoice := header || hasAny(norm, strongInvoiceMarkers) || invoiceTableRe.MatchString(norm)

	if strongInvoice && (invoiceScore >= contractScore || contractScore < contractScoreThreshold) {
		if header {
			return Result{IsContract: false, Reason: ReasonInvoiceHeader}
		}
		return Result{IsContract: false, Reason: ReasonInvoice}
	}

	sections := countKeywords(norm, sectionMarkers)
	partyMention := hasAny(norm, partyMarkers)
	requisites := registrationRe.MatchString(norm)
	signature := signatureBlockRe.MatchString(norm)

	switch {
	case contractScore >= contractScoreThreshold,
		sections >= 2,
		partyMention && (signature || requisites):
		return Result{IsContract: true, Reason: ReasonContractKeywords}
	case invoiceNumberRe.MatchString(norm):
		return Result{IsContract: false, Reason: ReasonInvoiceHeader}
	default:
		return Result{IsContract: false, Reason: ReasonUndetermined}
	}
}

// invoiceHeaderFound ищет заголовок счёта в начале документа.
func invoiceHeaderFound(norm string) bool {
	runes := []rune(norm)
	window := norm
	if len(runes) > invoiceHeaderWindow {
		window = string(runes[:invoiceHeaderWindow])
	}
	return strings.Contains(window, "счет на оплату") || invoiceNumberRe.MatchString(window)
}

func scoreTerms(norm string, terms []weightedTerm) int {
	score := 0
	for _, t := range terms {
		if strings.Contains(norm, t.term) {
			score += t.weight
		}
	}
	return score
}

func countKeywords(norm string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(norm, kw) {
			count++
		}
	}
	return count
}

func hasAny(norm string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(norm, kw) {
			return true
		}
	}
	return false
}
