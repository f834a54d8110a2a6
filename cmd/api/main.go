package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/config"
	"github.com/noah-isme/gema-quiz-api/internal/database"
	"github.com/noah-isme/gema-quiz-api/internal/handler"
	"github.com/noah-isme/gema-quiz-api/internal/middleware"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
	"github.com/noah-isme/gema-quiz-api/internal/router"
	"github.com/noah-isme/gema-quiz-api/internal/service"
	"github.com/noah-isme/gema-quiz-api/pkg/ai"
	cloud "github.com/noah-isme/gema-quiz-api/pkg/cloudinary"
	"github.com/noah-isme/gema-quiz-api/pkg/filestore"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger = logger.With().Str("service", cfg.AppName).Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(rootCtx, cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(rootCtx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	store, err := newFileStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise file store")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	quizRepo := repository.NewQuizRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	events := service.NewEventPublisher(natsConn, cfg.EventSubjectPrefix, logger)
	cache := service.NewQuizCache(redisClient, cfg.QuizCacheTTL, logger)
	activityService := service.NewActivityService(activityRepo, logger)
	documentService := service.NewDocumentService(store, cfg.UploadMaxSizeMB, logger)

	quizService := service.NewQuizService(quizRepo, courseRepo, submissionRepo, documentService, cache, activityService, events, validate, logger)
	recorder := service.NewSubmissionRecorder(quizRepo, submissionRepo, documentService, events, logger)
	attemptService := service.NewAttemptService(quizRepo, attemptRepo, submissionRepo, recorder, documentService, cfg.SubmitGrace, logger)
	gradingService := service.NewGradingService(quizRepo, courseRepo, submissionRepo, validate, activityService, events, logger)
	resultService := service.NewResultService(quizRepo, courseRepo, submissionRepo, documentService, logger)
	tutorService := service.NewTutorService(newTutor(cfg, logger), validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv != "production", AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		QuizHandler:          handler.NewQuizHandler(quizService, documentService, logger),
		AttemptHandler:       handler.NewAttemptHandler(attemptService, documentService, cfg.SubmitRateLimit, logger),
		SubmissionHandler:    handler.NewSubmissionHandler(resultService, gradingService, logger),
		StudentResultHandler: handler.NewStudentResultHandler(resultService, logger),
		TutorHandler:         handler.NewTutorHandler(tutorService, logger),
		HealthProbes:         healthProbes(db, redisClient),
		JWTMiddleware:        middleware.JWTProtected(cfg.JWTSecret),
		TutorRateLimit:       cfg.SubmitRateLimit,
	})

	if cfg.AttemptSweepInterval > 0 {
		go attemptService.Run(rootCtx, cfg.AttemptSweepInterval)
	}

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-rootCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

func newFileStore(cfg config.Config, logger zerolog.Logger) (service.FileStore, error) {
	if cfg.UsesCloudinary() {
		return cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	}
	return filestore.NewLocal(cfg.LocalUploadDir, logger)
}

func newTutor(cfg config.Config, logger zerolog.Logger) ai.Tutor {
	if cfg.OpenAIAPIKey == "" {
		return ai.NewPlaceholderTutor()
	}

	tutor, err := ai.NewOpenAITutor(ai.OpenAIConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAIModel,
		Logger: logger,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("openai tutor unavailable, using placeholder")
		return ai.NewPlaceholderTutor()
	}
	return tutor
}

func healthProbes(db *gorm.DB, redisClient *redis.Client) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return probes
}
