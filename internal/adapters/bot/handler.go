// Package bot обслуживает вебхук Telegram: команды, загрузки документов
// и кнопки конвейера проверки договоров.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"contract-check-bot/internal/adapters/telegram"
	"contract-check-bot/internal/domain"
	"contract-check-bot/internal/infra/metrics"
	"contract-check-bot/internal/usecase/payments"
	"contract-check-bot/internal/usecase/pipeline"
	"contract-check-bot/internal/usecase/quota"
)

// Handler обслуживает вебхук бота.
type Handler struct {
	bot        *tgbotapi.BotAPI
	log        zerolog.Logger
	pipelineUC *pipeline.Service
	quotaUC    *quota.Service
	paymentsUC *payments.Service
}

// NewHandler создаёт обработчик. Конвейер подключается отдельно через
// BindPipeline: он сам использует обработчик как Presenter.
func NewHandler(bot *tgbotapi.BotAPI, log zerolog.Logger, quotaUC *quota.Service, paymentsUC *payments.Service) *Handler {
	return &Handler{
		bot:        bot,
		log:        log,
		quotaUC:    quotaUC,
		paymentsUC: paymentsUC,
	}
}

// BindPipeline подключает конвейер обработки документов.
func (h *Handler) BindPipeline(p *pipeline.Service) {
	h.pipelineUC = p
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if msg.Document != nil {
		h.handleDocument(msg)
		return
	}
	if len(msg.Photo) > 0 {
		h.handlePhoto(msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		h.handleStart(ctx, msg)
	case strings.HasPrefix(text, "/help"):
		h.reply(msg.Chat.ID, h.buildHelpMessage(), h.mainKeyboard())
	case strings.HasPrefix(text, "/plans"):
		h.handlePlans(msg.Chat.ID)
	case strings.HasPrefix(text, "/quota"):
		h.handleQuota(ctx, msg.Chat.ID, msg.From.ID)
	case text == "":
		h.reply(msg.Chat.ID, "Отправьте документ файлом или фотографией, и я проверю договор.", nil)
	default:
		h.reply(msg.Chat.ID, "Неизвестная команда. Используйте /help", nil)
	}
}

// handleDocument запускает конвейер по файлу. Подпись «договор» к файлу
// пропускает документ мимо эвристических ворот.
func (h *Handler) handleDocument(msg *tgbotapi.Message) {
	fileName := msg.Document.FileName
	if fileName == "" {
		fileName = "document"
	}
	force := captionForcesContract(msg.Caption)
	metrics.DocumentsUploaded.WithLabelValues(telegram.FileExt(fileName)).Inc()
	// конвейер живёт дольше HTTP-запроса вебхука
	go h.pipelineUC.HandleUpload(context.Background(), msg.From.ID, msg.Chat.ID, msg.Document.FileID, fileName, force)
}

func (h *Handler) handlePhoto(msg *tgbotapi.Message) {
	largest := msg.Photo[len(msg.Photo)-1]
	force := captionForcesContract(msg.Caption)
	metrics.DocumentsUploaded.WithLabelValues("jpg").Inc()
	go h.pipelineUC.HandleUpload(context.Background(), msg.From.ID, msg.Chat.ID, largest.FileID, "photo.jpg", force)
}

func captionForcesContract(caption string) bool {
	return strings.Contains(strings.ToLower(caption), "договор")
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	info, err := h.quotaUC.GetPlan(ctx, msg.From.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("user", msg.From.ID).Msg("не удалось получить профиль")
		h.reply(msg.Chat.ID, "Не удалось получить профиль. Попробуйте позже.", nil)
		return
	}
	h.reply(msg.Chat.ID, h.buildStartMessage(info), h.mainKeyboard())
}

func (h *Handler) handlePlans(chatID int64) {
	var b strings.Builder
	b.WriteString("💳 Тарифы:\n\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 3)
	for _, plan := range domain.ListPlans() {
		b.WriteString(fmt.Sprintf("• %s — %s\n", plan.Name, describePlan(plan)))
		if plan.IsPaid() {
			label := fmt.Sprintf("Купить «%s» за %s", plan.Name, formatPrice(plan.Price))
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, "buy_plan:"+string(plan.ID)),
			))
		}
	}
	b.WriteString("\nОплата проходит через ЮKassa, подписка активируется сразу после подтверждения.")
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.reply(chatID, b.String(), &markup)
}

func (h *Handler) handleQuota(ctx context.Context, chatID, tgUserID int64) {
	info, err := h.quotaUC.GetPlan(ctx, tgUserID)
	if err != nil {
		h.log.Error().Err(err).Int64("user", tgUserID).Msg("не удалось получить квоту")
		h.reply(chatID, "Не удалось получить данные о квоте. Попробуйте позже.", nil)
		return
	}
	lines := []string{
		fmt.Sprintf("Ваш тариф: %s.", info.Plan.Name),
		fmt.Sprintf("Использовано запросов: %d.", info.RequestsUsed),
	}
	if info.RequestsRemaining < 0 {
		lines = append(lines, "Лимит запросов: без ограничений.")
	} else {
		lines = append(lines, fmt.Sprintf("Осталось запросов: %d.", info.RequestsRemaining))
	}
	if info.Plan.IsPaid() {
		switch {
		case info.Subscription.Active && info.Subscription.ExpiresAt != nil:
			lines = append(lines, fmt.Sprintf("Подписка активна до %s.", info.Subscription.ExpiresAt.Format("02.01.2006")))
		case info.Subscription.PaymentStatus == domain.PaymentStatusPending:
			lines = append(lines, "Подписка ожидает подтверждения оплаты.")
		default:
			lines = append(lines, "Подписка не активна. Оплатить можно через /plans.")
		}
	}
	h.reply(chatID, strings.Join(lines, "\n"), nil)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.From == nil {
		return
	}
	data := cb.Data
	chatID := cb.Message.Chat.ID
	switch {
	case data == "help_menu":
		h.reply(chatID, h.buildHelpMessage(), h.mainKeyboard())
	case data == "plans_menu":
		h.handlePlans(chatID)
	case data == "quota_menu":
		h.handleQuota(ctx, chatID, cb.From.ID)
	case data == "process_text":
		go h.pipelineUC.HandleProcessAsText(context.Background(), cb.From.ID)
	case data == "force_contract":
		go h.pipelineUC.HandleForceContract(context.Background(), cb.From.ID)
	case strings.HasPrefix(data, "select_party:"):
		party := strings.TrimPrefix(data, "select_party:")
		go h.pipelineUC.HandleSelectParty(context.Background(), cb.From.ID, party)
	case strings.HasPrefix(data, "buy_plan:"):
		planID := domain.PlanID(strings.TrimPrefix(data, "buy_plan:"))
		h.handleBuyPlan(ctx, chatID, cb.From.ID, planID)
	}
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", strconv.FormatInt(cb.From.ID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) handleBuyPlan(ctx context.Context, chatID, tgUserID int64, planID domain.PlanID) {
	url, err := h.paymentsUC.Initiate(ctx, tgUserID, planID)
	if err != nil {
		if errors.Is(err, payments.ErrFreePlan) {
			h.reply(chatID, "Бесплатный тариф не требует оплаты.", nil)
			return
		}
		h.log.Error().Err(err).Int64("user", tgUserID).Str("plan", string(planID)).Msg("не удалось создать платёж")
		h.reply(chatID, "Не удалось создать платёж. Попробуйте позже.", nil)
		return
	}
	plan := domain.PlanByID(planID)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Перейти к оплате", url)),
	)
	text := fmt.Sprintf("Подписка «%s» за %s. После оплаты тариф активируется автоматически.", plan.Name, formatPrice(plan.Price))
	h.reply(chatID, text, &markup)
}

// ----- реализация pipeline.Presenter -----

var stageTexts = map[domain.JobState]string{
	domain.JobStateDownloading:    "⏬ Скачиваю документ…",
	domain.JobStateExtracting:     "📖 Извлекаю текст…",
	domain.JobStateStructureCheck: "🔍 Проверяю структуру документа…",
	domain.JobStateClassifying:    "🔍 Проверяю, что это договор…",
	domain.JobStateAnalyzing:      "⚖️ Анализирую договор, это может занять минуту…",
}

// SendProcessing отправляет статусное сообщение, которое редактируется
// на каждом этапе конвейера.
func (h *Handler) SendProcessing(chatID int64) (int, error) {
	msg := tgbotapi.NewMessage(chatID, "📄 Документ получен, начинаю обработку…")
	start := time.Now()
	sent, err := h.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
		return 0, err
	}
	return sent.MessageID, nil
}

// EditStage обновляет статусное сообщение по текущему этапу.
func (h *Handler) EditStage(chatID int64, msgID int, state domain.JobState) error {
	text, ok := stageTexts[state]
	if !ok {
		return nil
	}
	return h.editMessage(chatID, msgID, text, nil)
}

// StillWorking напоминает, что этап ещё не завершён.
func (h *Handler) StillWorking(chatID int64, msgID int, state domain.JobState) error {
	text, ok := stageTexts[state]
	if !ok {
		text = "Всё ещё работаю…"
	}
	return h.editMessage(chatID, msgID, text+"\nЭто занимает больше времени, чем обычно.", nil)
}

// ShowFailure завершает задачу сообщением об ошибке.
func (h *Handler) ShowFailure(chatID int64, msgID int, text string) error {
	if msgID == 0 {
		h.reply(chatID, text, nil)
		return nil
	}
	return h.editMessage(chatID, msgID, "❌ "+text, nil)
}

// ShowQuotaDenied объясняет отказ по квоте и предлагает тарифы.
func (h *Handler) ShowQuotaDenied(chatID int64, reason domain.DenyReason) error {
	var text string
	switch reason {
	case domain.DenyReasonSubscriptionInactive:
		text = "Подписка не активна. Оплатите её, чтобы продолжить проверки."
	default:
		text = "Лимит запросов вашего тарифа исчерпан."
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💳 Посмотреть тарифы", "plans_menu")),
	)
	h.reply(chatID, text, &markup)
	return nil
}

// ShowDegraded сообщает о нераспознанной структуре и предлагает
// обработать извлечённый текст как есть.
func (h *Handler) ShowDegraded(chatID int64, msgID int, _ int64) error {
	text := "⚠️ Не удалось распознать структуру документа. Возможно, это скан низкого качества.\n" +
		"Могу проанализировать извлечённый текст как есть, но качество разбора может пострадать."
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Обработать как текст", "process_text")),
	)
	return h.editMessage(chatID, msgID, text, &markup)
}

// ShowNotContract сообщает вердикт классификатора и даёт кнопку
// принудительного анализа.
func (h *Handler) ShowNotContract(chatID int64, msgID int, _ int64, reason string) error {
	text := fmt.Sprintf("🤔 Похоже, это не договор: %s.\nЕсли я ошибаюсь, продолжим анализ.", reason)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Это договор, продолжить", "force_contract")),
	)
	return h.editMessage(chatID, msgID, text, &markup)
}

// ShowPartySelection показывает краткий разбор и кнопки выбора стороны.
func (h *Handler) ShowPartySelection(chatID int64, msgID int, _ int64, analysis domain.Analysis) error {
	var b strings.Builder
	if analysis.Kind == domain.AnalysisDegraded {
		b.WriteString("⚠️ Документ распознан не полностью, разбор может быть неточным.\n\n")
	}
	if c := analysis.Contract; c != nil {
		b.WriteString("✅ Анализ завершён.\n\n")
		if c.Party1 != "" || c.Party2 != "" {
			b.WriteString(fmt.Sprintf("Стороны: %s и %s.\n", orDash(c.Party1), orDash(c.Party2)))
		}
		if len(c.MainTerms) > 0 {
			b.WriteString("\nКлючевые условия:\n")
			for _, term := range c.MainTerms {
				b.WriteString("• " + term + "\n")
			}
		}
		if c.Conclusion != "" {
			b.WriteString("\n" + c.Conclusion + "\n")
		}
	} else {
		b.WriteString("✅ Анализ завершён.\n")
	}
	b.WriteString("\nЧьи интересы проверить подробнее?")

	row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
	row = append(row, tgbotapi.NewInlineKeyboardButtonData(partyButtonLabel(analysis, "party1", "Первая сторона"), "select_party:party1"))
	row = append(row, tgbotapi.NewInlineKeyboardButtonData(partyButtonLabel(analysis, "party2", "Вторая сторона"), "select_party:party2"))
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(row...))
	return h.editMessage(chatID, msgID, b.String(), &markup)
}

// ShowReport отправляет итоговый отчёт, разбивая его по лимиту Telegram.
func (h *Handler) ShowReport(chatID int64, text string) error {
	h.reply(chatID, text, nil)
	return nil
}

func partyButtonLabel(analysis domain.Analysis, partyKey, fallback string) string {
	if analysis.Contract == nil {
		return fallback
	}
	name := ""
	switch partyKey {
	case "party1":
		name = analysis.Contract.Party1
	case "party2":
		name = analysis.Contract.Party2
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	if len([]rune(name)) > 32 {
		name = string([]rune(name)[:32]) + "…"
	}
	return name
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "—"
	}
	return value
}

func (h *Handler) editMessage(chatID int64, msgID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	if keyboard != nil {
		edit.ReplyMarkup = keyboard
	}
	start := time.Now()
	_, err := h.bot.Send(edit)
	metrics.ObserveNetworkRequest("telegram_bot", "edit_message", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
	}
	return err
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == len(parts)-1 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}

func (h *Handler) mainKeyboard() *tgbotapi.InlineKeyboardMarkup {
	buttons := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Тарифы", "plans_menu"),
			tgbotapi.NewInlineKeyboardButtonData("📊 Моя квота", "quota_menu"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Помощь", "help_menu"),
		),
	)
	return &buttons
}

func (h *Handler) buildStartMessage(info quota.PlanInfo) string {
	requestLine := "   Запросы не ограничены."
	if info.RequestsRemaining >= 0 {
		requestLine = fmt.Sprintf("   Осталось запросов: %d.", info.RequestsRemaining)
	}
	lines := []string{
		"👋 Я проверяю договоры перед подписанием.",
		"",
		fmt.Sprintf("Ваш тариф: %s.", info.Plan.Name),
		requestLine,
		"",
		"Как пользоваться ботом:",
		"1. 📄 Отправьте договор файлом (PDF, DOC, DOCX, RTF, HTML, TXT) или фотографией.",
		"2. ⚖️ Я извлеку текст, проверю документ и разберу его условия.",
		"3. 👥 Выберите сторону — и получите отчёт о рисках именно для неё.",
		"",
		"Подсказка: подпись «договор» к файлу пропускает предварительные проверки.",
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) buildHelpMessage() string {
	sections := []string{
		"📖 Команды и примеры:",
		"",
		"Проверка документов:",
		"• Отправьте файл договора — начну проверку автоматически.",
		"• Фотография документа тоже подойдёт: распознаю текст со снимка.",
		"• Подпись «договор» к файлу — сразу полный анализ без предварительных проверок.",
		"",
		"Тарифы и лимиты:",
		"• /plans — тарифы и оплата подписки.",
		"• /quota — остаток запросов и статус подписки.",
		"",
		"Поддерживаемые форматы: PDF, DOC, DOCX, RTF, HTML, TXT, JPG, PNG.",
	}
	return strings.Join(sections, "\n")
}

func describePlan(plan domain.Plan) string {
	if !plan.IsPaid() {
		return fmt.Sprintf("%d проверки бесплатно", plan.RequestLimit)
	}
	requests := "без ограничений"
	if plan.RequestLimit > 0 {
		requests = fmt.Sprintf("%d проверок", plan.RequestLimit)
	}
	return fmt.Sprintf("%s на %d дней, %s", requests, plan.DurationDays, formatPrice(plan.Price))
}

func formatPrice(price domain.Money) string {
	currency := price.Currency
	if currency == "RUB" || currency == "" {
		currency = "₽"
	}
	if price.Amount%100 == 0 {
		return fmt.Sprintf("%d %s", price.Amount/100, currency)
	}
	return fmt.Sprintf("%d.%02d %s", price.Amount/100, price.Amount%100, currency)
}
