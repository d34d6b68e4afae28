package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервиса.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"90s"`
	} `envconfig:""`

	YooKassa struct {
		ShopID    string `envconfig:"YOOKASSA_SHOP_ID"`
		SecretKey string `envconfig:"YOOKASSA_SECRET_KEY"`
		ReturnURL string `envconfig:"YOOKASSA_RETURN_URL"`
	} `envconfig:""`

	Limits struct {
		MaxDownloadBytes int64 `envconfig:"MAX_DOWNLOAD_BYTES" default:"20971520"`
		MaxTextChars     int   `envconfig:"MAX_TEXT_CHARS" default:"120000"`
		OCRPageCap       int   `envconfig:"OCR_PAGE_CAP" default:"10"`
	} `envconfig:""`

	Timeouts struct {
		Extraction     time.Duration `envconfig:"EXTRACTION_TIMEOUT" default:"120s"`
		ProgressNotify time.Duration `envconfig:"PROGRESS_NOTIFY_AFTER" default:"20s"`
		JobTTL         time.Duration `envconfig:"JOB_TTL" default:"30m"`
	} `envconfig:""`

	TmpDir string `envconfig:"TMP_DIR" default:"/tmp/contract-check"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
