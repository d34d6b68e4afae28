package classify

import (
	"strings"
	"testing"
)

const contractSample = `ДОГОВОР ОКАЗАНИЯ УСЛУГ № 12/2024

ООО «Ромашка», именуемое в дальнейшем «Исполнитель», в лице директора,
и ООО «Василёк», именуемое в дальнейшем «Заказчик», заключили настоящий договор.

1. ПРЕДМЕТ ДОГОВОРА
1.1. Исполнитель обязуется оказать услуги, а Заказчик обязуется их оплатить.
2. ОТВЕТСТВЕННОСТЬ СТОРОН
2.1. Стороны несут ответственность в соответствии с законодательством.
3. РЕКВИЗИТЫ СТОРОН
ИНН 7701234567, ОГРН 1027700132195.
Подписи сторон: _____________`

const invoiceSample = `Счет на оплату № 814 от 12.03.2024

Поставщик: ООО «Ромашка», ИНН 7701234567
Плательщик: ООО «Василёк»

Наименование товара | Кол-во | Цена | Сумма
Услуги по сопровождению | 1 | 15000 | 15000
Итого к оплате: 15 000 руб., в том числе НДС 20%.`

func TestClassifyDeterministic(t *testing.T) {
	first := Classify(contractSample)
	for i := 0; i < 5; i++ {
		if got := Classify(contractSample); got != first {
			t.Fatalf("классификатор недетерминирован: %v != %v", got, first)
		}
	}
}

func TestClassifyContract(t *testing.T) {
	res := Classify(contractSample)
	if !res.IsContract {
		t.Fatalf("ожидали договор, получили %+v", res)
	}
}

func TestClassifyContractKeywordsOnly(t *testing.T) {
	text := "Исполнитель выполняет работы. Заказчик принимает. Предмет договора описан выше. Ответственность сторон ограничена."
	res := Classify(text)
	if !res.IsContract {
		t.Fatalf("три и более договорных признака без маркеров счёта должны давать договор, получили %+v", res)
	}
}

func TestClassifyInvoiceHeader(t *testing.T) {
	res := Classify(invoiceSample)
	if res.IsContract {
		t.Fatalf("счёт не должен классифицироваться как договор: %+v", res)
	}
	if res.Reason != ReasonInvoiceHeader && res.Reason != ReasonInvoice {
		t.Fatalf("ожидали причину про счёт, получили %q", res.Reason)
	}
}

func TestClassifyInvoiceNumberInHeader(t *testing.T) {
	text := "Счёт № 77 от 01.02.2024\nОплата за услуги хостинга."
	res := Classify(text)
	if res.IsContract {
		t.Fatalf("документ со «Счёт №» в начале не договор: %+v", res)
	}
}

func TestClassifyUndetermined(t *testing.T) {
	res := Classify("Просто произвольный текст про погоду и природу без юридических терминов.")
	if res.IsContract {
		t.Fatalf("произвольный текст не должен быть договором")
	}
	if res.Reason != ReasonUndetermined {
		t.Fatalf("ожидали причину %q, получили %q", ReasonUndetermined, res.Reason)
	}
}

func TestHasStructureShortText(t *testing.T) {
	if HasStructure("короткий обрывок текста после OCR") {
		t.Fatalf("короткий текст без юридических слов должен отсеиваться")
	}
	if !HasStructure("Договор между сторонами: исполнитель и заказчик") {
		t.Fatalf("короткий текст с двумя и более юридическими словами должен проходить")
	}
}

func TestHasStructureNumberedClauses(t *testing.T) {
	text := "вступление\n" + strings.Repeat("слово ", 50) + "\n1.1. Первый пункт\n1.2. Второй пункт\n"
	if !HasStructure(text) {
		t.Fatalf("нумерованные пункты должны проходить структурные ворота")
	}
}

func TestHasStructureGarbage(t *testing.T) {
	garbage := strings.Repeat("ыфвап олрды жщшгн ", 30)
	if HasStructure(garbage) {
		t.Fatalf("длинный мусор без предложений и реквизитов должен отсеиваться")
	}
}

func TestHasStructureSentences(t *testing.T) {
	text := strings.Repeat("Это предложение содержит достаточно слов для проверки структуры. ", 4)
	if !HasStructure(text) {
		t.Fatalf("оформленные предложения должны проходить структурные ворота")
	}
}
