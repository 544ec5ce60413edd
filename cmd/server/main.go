package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	ginprometheus "github.com/zsais/go-gin-prometheus"

	"story-server/internal/config"
	"story-server/internal/database"
	deliveryhttp "story-server/internal/delivery/http"
	"story-server/internal/delivery/websocket"
	"story-server/internal/generation"
	"story-server/internal/messaging"
	"story-server/internal/model"
	"story-server/internal/repository"
	"story-server/internal/service"
	"story-server/internal/storage"
)

func main() {
	// .env подхватывается только если файл есть; в контейнере его нет
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка загрузки конфигурации")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Logger = logger
	logger.Info().Str("log_level", level.String()).Msg("Запуск story-server...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- PostgreSQL ---
	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Не удалось подключиться к PostgreSQL")
	}
	defer pool.Close()
	if err := database.ApplyMigrations(pool); err != nil {
		logger.Fatal().Err(err).Msg("Не удалось применить миграции")
	}
	logger.Info().Msg("PostgreSQL подключен, миграции применены")

	// --- Redis (хранилище access-токенов) ---
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("Не удалось подключиться к Redis")
	}
	defer redisClient.Close()
	logger.Info().Msg("Redis подключен")

	// --- Файловое хранилище ---
	store, err := storage.New(cfg.DataRoot)
	if err != nil {
		logger.Fatal().Err(err).Str("data_root", cfg.DataRoot).Msg("Не удалось открыть файловое хранилище")
	}

	// --- Репозитории ---
	catalog := repository.NewPgStoryCatalog(pool)
	users := repository.NewPgUserRepository(pool)
	tokens := repository.NewRedisTokenStore(redisClient, logger)

	// --- RabbitMQ (опционально) ---
	var publisher messaging.StoryEventPublisher = messaging.NopStoryEventPublisher{}
	if cfg.RabbitMQURL != "" {
		rabbitConn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Не удалось подключиться к RabbitMQ")
		}
		defer rabbitConn.Close()
		publisher, err = messaging.NewRabbitMQStoryEventPublisher(rabbitConn, cfg.StoryEventsQueue, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Не удалось создать StoryEventPublisher")
		}
		defer publisher.Close()
	} else {
		logger.Info().Msg("RABBITMQ_URL пуст, публикация событий историй выключена")
	}

	// --- Генерационные бэкенды и их очереди ---
	structurer, err := generation.NewOpenAIStructurer(generation.StructurerConfig{
		APIKey:     cfg.AIAPIKey,
		BaseURL:    cfg.AIBaseURL,
		Model:      cfg.AIModel,
		MaxRetries: cfg.AIMaxRetries,
		Timeout:    cfg.StageTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Не удалось создать текстовый структуризатор")
	}

	collab := service.Collaborators{
		Structurer: structurer,
		Narration:  generation.NewHTTPNarrationSynthesizer(generation.SidecarConfig{BaseURL: cfg.TTSBaseURL, Timeout: cfg.StageTimeout}),
		Sound:      generation.NewHTTPSoundSynthesizer(generation.SidecarConfig{BaseURL: cfg.SoundBaseURL, Timeout: cfg.StageTimeout}),
		Image: generation.NewHTTPImageSynthesizer(generation.ImageConfig{
			SidecarConfig: generation.SidecarConfig{BaseURL: cfg.ImageBaseURL, Timeout: cfg.StageTimeout},
			StyleSuffix:   cfg.ImageStyleSuffix,
			Ratio:         cfg.ImageRatio,
		}),
	}
	queues := service.Queues{
		Structurer: generation.NewQueue("structurer", cfg.QueueDepth, cfg.StageTimeout),
		Narration:  generation.NewQueue("narration", cfg.QueueDepth, cfg.StageTimeout),
		Sound:      generation.NewQueue("sound", cfg.QueueDepth, cfg.StageTimeout),
		Image:      generation.NewQueue("image", cfg.QueueDepth, cfg.StageTimeout),
	}
	defer queues.Close()

	// --- Сервисы ---
	authService := service.NewAuthService(users, tokens, cfg.JWTSecret, cfg.AccessTokenTTL, logger)

	wsManager := websocket.NewManager(func(token string) (*model.Identity, error) {
		return authService.Verify(context.Background(), token)
	})
	wsManager.Start()

	storyService := service.NewStoryService(
		catalog, users, store, collab, queues,
		wsManager, publisher,
		cfg.EffectDuration, cfg.MusicDuration,
		logger,
	)
	synthService := service.NewSynthService(store, collab, queues, cfg.EffectDuration, logger)
	maintenance := service.NewMaintenanceService(catalog, users, store, logger)

	if cfg.MaintenanceSweep {
		report, err := maintenance.Reconcile(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Сверка хранилища при старте не удалась")
		} else {
			logger.Info().
				Int("orphan_story_dirs", len(report.OrphanStoryDirs)).
				Int("orphan_user_areas", len(report.OrphanUserAreas)).
				Msg("Сверка хранилища при старте завершена")
		}
	}

	// --- Gin ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Admin-Token"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	handler := deliveryhttp.NewHandler(
		authService, storyService, synthService, maintenance,
		wsManager.Handler(), cfg.AdminToken, logger,
	)
	handler.RegisterRoutes(router)

	// Prometheus middleware вешается после регистрации маршрутов
	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	// --- HTTP server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("HTTP сервер запускается")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Ошибка запуска HTTP сервера")
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Ошибка при остановке HTTP сервера")
	}

	logger.Info().Msg("Сервер остановлен")
}
