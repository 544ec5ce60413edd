package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию сервиса генерации историй
type Config struct {
	// Настройки сервера
	Port                string        `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel            string        `envconfig:"LOG_LEVEL" default:"info"`
	ReadTimeout         time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout        time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout         time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	CORSAllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Корень файлового хранилища историй
	DataRoot string `envconfig:"DATA_ROOT" default:"./data"`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBPassword    string        `envconfig:"DB_PASSWORD" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_TIME" default:"5m"`

	// Настройки Redis (хранилище access-токенов)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Настройки RabbitMQ (опционально: публикация событий историй)
	RabbitMQURL      string `envconfig:"RABBITMQ_URL" default:""`
	StoryEventsQueue string `envconfig:"STORY_EVENTS_QUEUE" default:"story_events"`

	// Настройки JWT
	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"24h"`

	// Токен для административных маршрутов (пусто = маршруты выключены)
	AdminToken string `envconfig:"ADMIN_TOKEN" default:""`

	// Настройки текстового структуризатора (OpenAI-совместимый API)
	AIAPIKey     string `envconfig:"AI_API_KEY" required:"true"`
	AIBaseURL    string `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel      string `envconfig:"AI_MODEL" default:"deepseek/deepseek-chat-v3-0324:free"`
	AIMaxRetries int    `envconfig:"AI_MAX_RETRIES" default:"3"`

	// Синтезаторы (HTTP sidecar-сервисы)
	TTSBaseURL       string `envconfig:"TTS_BASE_URL" default:"http://localhost:9001"`
	SoundBaseURL     string `envconfig:"SOUND_BASE_URL" default:"http://localhost:9002"`
	ImageBaseURL     string `envconfig:"IMAGE_BASE_URL" default:"http://localhost:9003"`
	ImageStyleSuffix string `envconfig:"IMAGE_STYLE_SUFFIX" default:", storybook illustration, warm colors"`
	ImageRatio       string `envconfig:"IMAGE_RATIO" default:"4:3"`

	// Параметры стадий конвейера
	EffectDuration time.Duration `envconfig:"EFFECT_DURATION" default:"5s"`
	MusicDuration  time.Duration `envconfig:"MUSIC_DURATION" default:"60s"`
	StageTimeout   time.Duration `envconfig:"STAGE_TIMEOUT" default:"120s"`
	QueueDepth     int           `envconfig:"QUEUE_DEPTH" default:"16"`

	// Запускать сверку каталога и файлового хранилища при старте
	MaintenanceSweep bool `envconfig:"MAINTENANCE_SWEEP" default:"false"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации story-server: %w", err)
	}
	return &cfg, nil
}
