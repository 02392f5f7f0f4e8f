// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`
	// Единственный привилегированный пользователь. Все админ-действия
	// и служебные уведомления привязаны к этому ID.
	OperatorID int64 `envconfig:"OPERATOR_ID" required:"true"`

	// --- Storage ---
	// "file" — JSON-снапшот на диске (по умолчанию), "postgres" — PostgreSQL.
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"file"`
	DataFile      string `envconfig:"DATA_FILE" default:"data/starsbot.json"`

	// --- Database (только для STORAGE_DRIVER=postgres) ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose).
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"starsbot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`
	// Пауза между получателями рассылки, чтобы не упереться в лимиты Telegram.
	BroadcastPause time.Duration `envconfig:"BROADCAST_PAUSE" default:"50ms"`

	// --- Deposits (Telegram Stars) ---
	DepositMin int64 `envconfig:"DEPOSIT_MIN" default:"8"`
	DepositMax int64 `envconfig:"DEPOSIT_MAX" default:"10000"`
	// Неоплаченные заказы старше этого срока отменяются фоновой задачей.
	OrderTTL time.Duration `envconfig:"ORDER_TTL" default:"24h"`

	// --- Sessions ---
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"5m"`

	// --- Casino ---
	CasinoMinRTP         float64 `envconfig:"CASINO_MIN_RTP" default:"94.00"`
	CasinoMaxRTP         float64 `envconfig:"CASINO_MAX_RTP" default:"98.00"`
	CasinoBigWin         int64   `envconfig:"CASINO_BIG_WIN" default:"500"`
	FeatureCasinoEnabled bool    `envconfig:"FEATURE_CASINO_ENABLED" default:"true"`

	// --- SMM reseller API (опционально) ---
	SMMAPIURL      string        `envconfig:"SMM_API_URL"`
	SMMAPIKey      string        `envconfig:"SMM_API_KEY"`
	SMMMarkup      float64       `envconfig:"SMM_MARKUP" default:"2.0"`
	SMMHTTPTimeout time.Duration `envconfig:"SMM_HTTP_TIMEOUT" default:"10s"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SMMEnabled сообщает, настроен ли внешний реселлер-API.
func (c *Config) SMMEnabled() bool {
	return c.SMMAPIURL != "" && c.SMMAPIKey != ""
}

func (c *Config) Validate() error {
	if c.OperatorID == 0 {
		return fmt.Errorf("OPERATOR_ID не задан или равен 0")
	}
	switch c.StorageDriver {
	case "file":
		if c.DataFile == "" {
			return fmt.Errorf("DATA_FILE не задан")
		}
	case "postgres":
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD обязателен при STORAGE_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	default:
		return fmt.Errorf("неизвестный STORAGE_DRIVER: %q", c.StorageDriver)
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DepositMin <= 0 || c.DepositMax < c.DepositMin {
		return fmt.Errorf("некорректные DEPOSIT_MIN/DEPOSIT_MAX")
	}
	if c.SMMMarkup < 1.0 {
		return fmt.Errorf("SMM_MARKUP должен быть >= 1.0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
// Отсутствие обязательной переменной — фатальная ошибка запуска.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
