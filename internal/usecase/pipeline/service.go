// Package pipeline ведёт документ от загрузки до отчёта по выбранной
// стороне: скачивание, извлечение текста, структурные ворота,
// классификация, анализ и списание квоты.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"contract-check-bot/internal/adapters/extractor"
	"contract-check-bot/internal/domain"
	"contract-check-bot/internal/infra/metrics"
	"contract-check-bot/internal/usecase/classify"
	"contract-check-bot/internal/usecase/quota"
)

// Downloader скачивает файл из чата во временный каталог.
type Downloader interface {
	Download(ctx context.Context, fileID, fileName string) (path string, ext string, err error)
}

// TextExtractor — контракт экстрактора форматов.
type TextExtractor interface {
	Extract(ctx context.Context, path, declaredExt string) (extractor.Result, error)
}

// Presenter отвечает за все сообщения пользователю от имени конвейера.
// Статусное сообщение редактируется на месте на протяжении всей задачи.
type Presenter interface {
	SendProcessing(chatID int64) (msgID int, err error)
	EditStage(chatID int64, msgID int, state domain.JobState) error
	StillWorking(chatID int64, msgID int, state domain.JobState) error
	ShowFailure(chatID int64, msgID int, text string) error
	ShowQuotaDenied(chatID int64, reason domain.DenyReason) error
	ShowDegraded(chatID int64, msgID int, tgUserID int64) error
	ShowNotContract(chatID int64, msgID int, tgUserID int64, reason string) error
	ShowPartySelection(chatID int64, msgID int, tgUserID int64, analysis domain.Analysis) error
	ShowReport(chatID int64, text string) error
}

// Service — оркестратор конвейера обработки документов.
type Service struct {
	quota       *quota.Service
	downloader  Downloader
	extractor   TextExtractor
	analyzer    domain.DocumentAnalyzer
	presenter   Presenter
	jobs        *JobStore
	log         zerolog.Logger
	notifyAfter time.Duration
}

// NewService создаёт оркестратор.
func NewService(q *quota.Service, dl Downloader, ex TextExtractor, an domain.DocumentAnalyzer, pr Presenter, jobs *JobStore, log zerolog.Logger, notifyAfter time.Duration) *Service {
	return &Service{
		quota:       q,
		downloader:  dl,
		extractor:   ex,
		analyzer:    an,
		presenter:   pr,
		jobs:        jobs,
		log:         log,
		notifyAfter: notifyAfter,
	}
}

// Сообщения терминальных отказов.
const (
	msgQuotaRecheck     = "Лимит запросов исчерпан, анализ не выполнен. Команда /plans покажет тарифы."
	msgDownloadTooLarge = "Файл слишком большой. Отправьте документ меньшего размера."
	msgDownloadFailed   = "Не удалось скачать файл. Попробуйте отправить его ещё раз."
	msgUnsupported      = "Этот формат не поддерживается. Отправьте PDF, DOC, DOCX, RTF, HTML или TXT."
	msgTimeout          = "Обработка документа заняла слишком много времени. Попробуйте файл поменьше."
	msgEmpty            = "В документе не нашлось текста. Если это скан, отправьте его фотографией."
	msgParserFailed     = "Не удалось разобрать документ. Проверьте, что файл не повреждён."
	msgNoActiveJob      = "Активного документа нет. Отправьте файл ещё раз."
	msgAnalyzerTooLong  = "Документ слишком длинный для анализа. Сократите его или отправьте частями."
	msgAnalyzerEmpty    = "Анализатору нечего разбирать: текст пуст."
	msgAnalyzerBroken   = "Анализатор вернул некорректный ответ. Попробуйте ещё раз чуть позже."
	msgAnalyzerUpstream = "Сервис анализа временно недоступен. Попробуйте ещё раз чуть позже."
	msgGenericFailure   = "Что-то пошло не так. Попробуйте ещё раз позже."
)

// HandleUpload ведёт новую загрузку через все этапы конвейера.
// Повторная загрузка того же пользователя перезаписывает предыдущую
// задачу (last-write-wins, без блокировки на пользователя).
func (s *Service) HandleUpload(ctx context.Context, tgUserID, chatID int64, fileID, fileName string, force bool) {
	adm, err := s.quota.CanMakeRequest(ctx, tgUserID)
	if err != nil {
		s.log.Error().Err(err).Int64("user", tgUserID).Msg("проверка квоты не удалась")
		_ = s.presenter.ShowFailure(chatID, 0, msgGenericFailure)
		return
	}
	if !adm.Allowed {
		_ = s.presenter.ShowQuotaDenied(chatID, adm.Reason)
		return
	}

	msgID, err := s.presenter.SendProcessing(chatID)
	if err != nil {
		s.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить статусное сообщение")
		return
	}

	job := &domain.DocumentJob{
		TGUserID:    tgUserID,
		ChatID:      chatID,
		StatusMsgID: msgID,
		FileID:      fileID,
		FileName:    fileName,
		ForceMode:   force,
		State:       domain.JobStateUploaded,
		CreatedAt:   time.Now(),
	}
	s.jobs.Put(job)

	s.advance(ctx, job, domain.JobStateDownloading)
	settle := s.narrate(job)
	path, ext, err := s.downloader.Download(ctx, fileID, fileName)
	settle()
	if err != nil {
		s.fail(job, "download", downloadFailureMessage(err))
		return
	}

	s.advance(ctx, job, domain.JobStateExtracting)
	settle = s.narrate(job)
	res, err := s.extractor.Extract(ctx, path, ext)
	settle()
	if err != nil {
		s.fail(job, "extract", extractionFailureMessage(err))
		return
	}
	job.ExtractedText = res.Text

	if !job.ForceMode {
		s.advance(ctx, job, domain.JobStateStructureCheck)
		job.StructureOK = classify.HasStructure(job.ExtractedText)
		if !job.StructureOK {
			// текст остаётся в задаче: пользователь может явно
			// попросить обработать его как есть
			metrics.PipelineFailures.WithLabelValues("structure").Inc()
			s.jobs.Put(job)
			_ = s.presenter.ShowDegraded(job.ChatID, job.StatusMsgID, job.TGUserID)
			return
		}

		s.advance(ctx, job, domain.JobStateClassifying)
		result := classify.Classify(job.ExtractedText)
		job.Classification = &domain.Classification{IsContract: result.IsContract, Reason: result.Reason}
		decision := "contract"
		if !result.IsContract {
			decision = "rejected"
		}
		metrics.ClassifierDecisions.WithLabelValues(decision).Inc()
		if !result.IsContract {
			s.jobs.Put(job)
			_ = s.presenter.ShowNotContract(job.ChatID, job.StatusMsgID, job.TGUserID, result.Reason)
			return
		}
	} else {
		job.StructureOK = true
	}

	s.analyze(ctx, job, res.Degraded)
}

// HandleProcessAsText повторяет анализ уже извлечённого текста после
// отказа структурных ворот: пользователь явно попросил продолжить.
func (s *Service) HandleProcessAsText(ctx context.Context, tgUserID int64) {
	job := s.jobs.Get(tgUserID)
	if job == nil || job.ExtractedText == "" {
		s.log.Debug().Int64("user", tgUserID).Msg("запрос обработки как текста без активной задачи")
		return
	}
	job.ForceMode = true
	s.analyze(ctx, job, true)
}

// HandleForceContract повторяет анализ после отказа классификатора:
// пользователь подтвердил, что документ — договор.
func (s *Service) HandleForceContract(ctx context.Context, tgUserID int64) {
	job := s.jobs.Get(tgUserID)
	if job == nil || job.ExtractedText == "" {
		s.log.Debug().Int64("user", tgUserID).Msg("подтверждение договора без активной задачи")
		return
	}
	job.ForceMode = true
	s.analyze(ctx, job, false)
}

// analyze выполняет допуск, вызов анализатора и списание квоты.
// Списание происходит строго после успешного ответа анализатора.
func (s *Service) analyze(ctx context.Context, job *domain.DocumentJob, degraded bool) {
	adm, err := s.quota.CanMakeRequest(ctx, job.TGUserID)
	if err != nil {
		s.fail(job, "quota", msgGenericFailure)
		return
	}
	if !adm.Allowed {
		s.fail(job, "quota", msgQuotaRecheck)
		return
	}

	s.advance(ctx, job, domain.JobStateAnalyzing)
	settle := s.narrate(job)
	analysis, err := s.analyzer.Analyze(ctx, job.ExtractedText, "")
	settle()
	if err != nil {
		s.fail(job, "analyze", analyzerFailureMessage(err))
		return
	}
	if degraded && analysis.Kind == domain.AnalysisContract {
		analysis.Kind = domain.AnalysisDegraded
	}

	if err := s.quota.RegisterUsage(ctx, job.TGUserID); err != nil {
		// анализ уже получен, пользователя не наказываем; недосписание допустимо
		s.log.Error().Err(err).Int64("user", job.TGUserID).Msg("не удалось списать запрос")
	}

	job.Analysis = &analysis
	job.State = domain.JobStateAwaitingParty
	s.jobs.Put(job)
	if err := s.presenter.ShowPartySelection(job.ChatID, job.StatusMsgID, job.TGUserID, analysis); err != nil {
		s.log.Error().Err(err).Int64("user", job.TGUserID).Msg("не удалось показать выбор стороны")
	}
}

// HandleSelectParty строит отчёт по выбранной стороне и завершает задачу.
func (s *Service) HandleSelectParty(ctx context.Context, tgUserID int64, partyKey string) {
	job := s.jobs.Get(tgUserID)
	if job == nil || job.Analysis == nil {
		return
	}
	report := renderPartyReport(*job.Analysis, partyKey)
	if report == "" {
		// в структурированном ответе нет разбора этой стороны —
		// добираем свободным отчётом с подсказкой роли
		hint := partyDisplayName(*job.Analysis, partyKey)
		analysis, err := s.analyzer.Analyze(ctx, job.ExtractedText, hint)
		if err != nil {
			s.fail(job, "party_report", analyzerFailureMessage(err))
			return
		}
		report = analysis.Report
	}
	job.State = domain.JobStateDelivered
	s.jobs.Delete(tgUserID)
	if err := s.presenter.ShowReport(job.ChatID, report); err != nil {
		s.log.Error().Err(err).Int64("user", tgUserID).Msg("не удалось отправить отчёт")
	}
}

// advance переводит задачу в следующее состояние и обновляет статус в чате.
func (s *Service) advance(ctx context.Context, job *domain.DocumentJob, state domain.JobState) {
	job.State = state
	s.jobs.Put(job)
	if err := s.presenter.EditStage(job.ChatID, job.StatusMsgID, state); err != nil {
		s.log.Debug().Err(err).Msg("не удалось обновить статусное сообщение")
	}
}

// narrate взводит отложенное «всё ещё работаем». Возвращённая функция
// обязана вызываться на любом исходе этапа, иначе устаревший статус
// догонит уже завершённую задачу.
func (s *Service) narrate(job *domain.DocumentJob) func() {
	if s.notifyAfter <= 0 {
		return func() {}
	}
	chatID, msgID, state := job.ChatID, job.StatusMsgID, job.State
	timer := time.AfterFunc(s.notifyAfter, func() {
		if err := s.presenter.StillWorking(chatID, msgID, state); err != nil {
			s.log.Debug().Err(err).Msg("не удалось отправить напоминание о работе")
		}
	})
	return func() { timer.Stop() }
}

// fail завершает задачу с пользовательским сообщением.
// Статусное сообщение редактируется на месте; задача остаётся в кэше
// только для сценариев с повторным входом, здесь — удаляется.
func (s *Service) fail(job *domain.DocumentJob, stage, text string) {
	metrics.PipelineFailures.WithLabelValues(stage).Inc()
	job.State = domain.JobStateFailed
	job.FailReason = text
	s.jobs.Delete(job.TGUserID)
	if err := s.presenter.ShowFailure(job.ChatID, job.StatusMsgID, text); err != nil {
		s.log.Error().Err(err).Msg("не удалось отправить сообщение об ошибке")
	}
}

func downloadFailureMessage(err error) string {
	if errors.Is(err, domain.ErrDownloadTooLarge) {
		return msgDownloadTooLarge
	}
	return msgDownloadFailed
}

func extractionFailureMessage(err error) string {
	var unsupported *domain.UnsupportedFormatError
	var parser *domain.ParserFailureError
	switch {
	case errors.Is(err, domain.ErrExtractionTimeout):
		return msgTimeout
	case errors.Is(err, domain.ErrEmptyResult):
		return msgEmpty
	case errors.As(err, &unsupported):
		return msgUnsupported
	case errors.As(err, &parser):
		return msgParserFailed
	default:
		return msgGenericFailure
	}
}

func analyzerFailureMessage(err error) string {
	var aerr *domain.AnalyzerError
	if !errors.As(err, &aerr) {
		return msgGenericFailure
	}
	switch aerr.Kind {
	case domain.AnalyzerErrContextTooLong:
		return msgAnalyzerTooLong
	case domain.AnalyzerErrEmptyInput:
		return msgAnalyzerEmpty
	case domain.AnalyzerErrMalformedResponse:
		return msgAnalyzerBroken
	default:
		return msgAnalyzerUpstream
	}
}

// renderPartyReport собирает отчёт по стороне из структурированного анализа.
func renderPartyReport(a domain.Analysis, partyKey string) string {
	if a.PerParty == nil {
		return ""
	}
	body, ok := a.PerParty[partyKey]
	if !ok || body == "" {
		return ""
	}
	name := partyDisplayName(a, partyKey)
	var header string
	if name != "" {
		header = fmt.Sprintf("*Анализ для стороны: %s*\n\n", name)
	}
	report := header + body
	if a.Contract != nil && a.Contract.Conclusion != "" {
		report += "\n\n*Вывод:* " + a.Contract.Conclusion
	}
	return report
}

func partyDisplayName(a domain.Analysis, partyKey string) string {
	if a.Contract == nil {
		return ""
	}
	switch partyKey {
	case "party1":
		return a.Contract.Party1
	case "party2":
		return a.Contract.Party2
	default:
		return ""
	}
}
