package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"contract-check-bot/internal/adapters/analyzer"
	"contract-check-bot/internal/adapters/bot"
	"contract-check-bot/internal/adapters/extractor"
	"contract-check-bot/internal/adapters/repo"
	"contract-check-bot/internal/adapters/telegram"
	"contract-check-bot/internal/adapters/yookassa"
	"contract-check-bot/internal/domain"
	"contract-check-bot/internal/infra/cache"
	"contract-check-bot/internal/infra/config"
	"contract-check-bot/internal/infra/db"
	httpinfra "contract-check-bot/internal/infra/http"
	"contract-check-bot/internal/infra/log"
	"contract-check-bot/internal/infra/metrics"
	"contract-check-bot/internal/infra/openai"
	"contract-check-bot/internal/usecase/payments"
	"contract-check-bot/internal/usecase/pipeline"
	"contract-check-bot/internal/usecase/quota"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cacheAdapter := cache.NewRedis(redisClient)

	repoAdapter := repo.NewPostgres(pool)
	quotaService := quota.NewService(repoAdapter)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}

	downloader := telegram.NewDownloader(botAPI, cfg.Telegram.Token, cfg.TmpDir, cfg.Limits.MaxDownloadBytes)
	textExtractor := extractor.New(extractor.Config{
		MaxTextChars: cfg.Limits.MaxTextChars,
		OCRPageCap:   cfg.Limits.OCRPageCap,
		Timeout:      cfg.Timeouts.Extraction,
	}, extractor.NewOCR(), logger)

	openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	documentAnalyzer := analyzer.NewOpenAI(openaiClient, cfg.OpenAI.Model, cfg.OpenAI.Timeout)

	gateway := yookassa.NewClient(yookassa.Config{
		ShopID:    cfg.YooKassa.ShopID,
		SecretKey: cfg.YooKassa.SecretKey,
		ReturnURL: cfg.YooKassa.ReturnURL,
	})
	paymentsService := payments.NewService(gateway, repoAdapter, quotaService, cacheAdapter, logger)

	h := bot.NewHandler(botAPI, logger, quotaService, paymentsService)
	jobs := pipeline.NewJobStore(cfg.Timeouts.JobTTL, 10000)
	pipelineService := pipeline.NewService(quotaService, downloader, textExtractor, documentAnalyzer, h, jobs, logger, cfg.Timeouts.ProgressNotify)
	h.BindPipeline(pipelineService)

	server := httpinfra.NewServer(logger)
	server.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})
	// шлюз повторяет уведомление при любом статусе кроме 200, поэтому
	// ошибки обработки логируются, но не возвращаются
	server.Router.Post("/payments/webhook", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		notif, err := yookassa.ParseNotification(body)
		if err != nil {
			logger.Warn().Err(err).Msg("не удалось разобрать уведомление платёжного шлюза")
			w.WriteHeader(http.StatusOK)
			return
		}
		err = paymentsService.Apply(r.Context(), payments.Notification{
			Event:     notif.Event,
			PaymentID: notif.PaymentID,
			Status:    notif.Status,
			Paid:      notif.Paid,
			UserID:    notif.UserID,
			PlanID:    notif.PlanID,
		})
		if err != nil {
			logger.Error().Err(err).Str("payment", notif.PaymentID).Msg("не удалось применить уведомление об оплате")
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("бот-гейтвей запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

var _ domain.AccountRepo = (*repo.Postgres)(nil)
var _ domain.PaymentRepo = (*repo.Postgres)(nil)
var _ domain.PaymentProvider = (*yookassa.Client)(nil)
var _ domain.DocumentAnalyzer = (*analyzer.OpenAI)(nil)
var _ domain.Cache = (*cache.RedisCache)(nil)
var _ pipeline.Downloader = (*telegram.Downloader)(nil)
var _ pipeline.TextExtractor = (*extractor.Extractor)(nil)
var _ pipeline.Presenter = (*bot.Handler)(nil)
