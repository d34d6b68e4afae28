package domain

import "strings"

// PlanID описывает тариф пользователя.
type PlanID string

const (
	PlanFree      PlanID = "free"
	PlanBasic     PlanID = "basic"
	PlanPro       PlanID = "pro"
	PlanUnlimited PlanID = "unlimited"
)

// Plan описывает ограничения и цену тарифа.
// RequestLimit <= 0 означает отсутствие лимита запросов.
type Plan struct {
	ID           PlanID
	Name         string
	RequestLimit int
	DurationDays int
	Price        Money
}

// IsPaid сообщает, требует ли тариф активной подписки.
func (p Plan) IsPaid() bool {
	return p.ID != PlanFree
}

var plans = map[PlanID]Plan{
	PlanFree: {
		ID:           PlanFree,
		Name:         "Бесплатный",
		RequestLimit: 3,
	},
	PlanBasic: {
		ID:           PlanBasic,
		Name:         "Базовый",
		RequestLimit: 15,
		DurationDays: 30,
		Price:        Money{Amount: 29900, Currency: "RUB"},
	},
	PlanPro: {
		ID:           PlanPro,
		Name:         "Про",
		RequestLimit: 50,
		DurationDays: 30,
		Price:        Money{Amount: 69900, Currency: "RUB"},
	},
	PlanUnlimited: {
		ID:           PlanUnlimited,
		Name:         "Безлимит",
		RequestLimit: 0,
		DurationDays: 30,
		Price:        Money{Amount: 149900, Currency: "RUB"},
	},
}

// planOrder задаёт порядок вывода тарифов пользователю.
var planOrder = []PlanID{PlanFree, PlanBasic, PlanPro, PlanUnlimited}

// PlanByID возвращает тариф по идентификатору, FREE — по умолчанию.
func PlanByID(id PlanID) Plan {
	if plan, ok := plans[PlanID(strings.ToLower(string(id)))]; ok {
		return plan
	}
	return plans[PlanFree]
}

// KnownPlan сообщает, существует ли тариф с таким идентификатором.
func KnownPlan(id PlanID) bool {
	_, ok := plans[PlanID(strings.ToLower(string(id)))]
	return ok
}

// ListPlans возвращает каталог тарифов в фиксированном порядке.
func ListPlans() []Plan {
	out := make([]Plan, 0, len(planOrder))
	for _, id := range planOrder {
		out = append(out, plans[id])
	}
	return out
}

// Plan возвращает тариф пользователя.
func (u UserAccount) Plan() Plan {
	return PlanByID(u.PlanID)
}

// RequestsRemaining возвращает остаток запросов. -1 означает отсутствие лимита.
func (u UserAccount) RequestsRemaining() int {
	plan := u.Plan()
	if plan.RequestLimit <= 0 {
		return -1
	}
	remaining := plan.RequestLimit - u.RequestsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
