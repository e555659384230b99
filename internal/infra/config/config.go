package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"Asia/Seoul"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Engine struct {
		CronSecret       string        `envconfig:"ENGINE_CRON_SECRET"`
		AdminSecret      string        `envconfig:"ENGINE_ADMIN_SECRET"`
		CyclesPerHour    int           `envconfig:"ENGINE_CYCLES_PER_HOUR" default:"2"`
		CycleInterval    time.Duration `envconfig:"ENGINE_CYCLE_INTERVAL" default:"30m"`
		BoostWindow      time.Duration `envconfig:"ENGINE_BOOST_WINDOW" default:"60m"`
		BoostMinDelay    time.Duration `envconfig:"ENGINE_BOOST_MIN_DELAY" default:"3m"`
		BoostMaxComments int           `envconfig:"ENGINE_BOOST_MAX_COMMENTS" default:"3"`
		PoolOversample   int           `envconfig:"ENGINE_POOL_OVERSAMPLE" default:"3"`
		TargetLookback   time.Duration `envconfig:"ENGINE_TARGET_LOOKBACK" default:"72h"`
		RunLockTTL       time.Duration `envconfig:"ENGINE_RUN_LOCK_TTL" default:"10m"`
	} `envconfig:""`

	LLM struct {
		Provider string `envconfig:"LLM_PROVIDER" default:"openai"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"20s"`
	} `envconfig:""`

	Gemini struct {
		APIKey string `envconfig:"GEMINI_API_KEY"`
		Model  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	} `envconfig:""`

	Queues struct {
		Backend      string `envconfig:"NOTIFY_QUEUE_BACKEND" default:"redis"`
		Notification string `envconfig:"NOTIFY_QUEUE_KEY" default:"ghost_notifications"`
	} `envconfig:""`

	RabbitURL string `envconfig:"AMQP_URL"`

	Telegram struct {
		Token        string `envconfig:"TG_BOT_TOKEN"`
		ReportChatID int64  `envconfig:"TG_REPORT_CHAT_ID"`
	} `envconfig:""`

	Pool struct {
		MinUnused int `envconfig:"POOL_MIN_UNUSED" default:"10"`
		FillBatch int `envconfig:"POOL_FILL_BATCH" default:"5"`
	} `envconfig:""`
}

// Location возвращает часовой пояс движка. При ошибке используется UTC.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load загружает конфиг из окружения. Файл .env, если есть, подхватывается первым.
func Load() AppConfig {
	_ = godotenv.Load()
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает окружение без выхода из процесса.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
