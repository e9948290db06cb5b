package app

import (
	"context"
	"earninja_backend/internal/audio"
	"earninja_backend/internal/config"
	"earninja_backend/internal/controller"
	"earninja_backend/internal/middleware"
	"earninja_backend/internal/repository"
	"earninja_backend/internal/service"
	"earninja_backend/internal/util"
	"earninja_backend/pkg/configwatcher"
	"earninja_backend/pkg/database"
	"earninja_backend/pkg/logger"
	"earninja_backend/pkg/monitoring"
	"earninja_backend/pkg/queue"
	"earninja_backend/pkg/security"
	"earninja_backend/pkg/tracing"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	Queue    *queue.RedisQueue
	Services *Services

	tracer          *sdktrace.TracerProvider
	limiter         *security.IPLimiter
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user     *repository.UserRepository
	interval *repository.IntervalRepository
	exercise *repository.ExerciseRepository
}

type Services struct {
	Auth     *service.AuthService
	Storage  *service.StorageService
	Audio    *service.AudioService
	Exercise *service.ExerciseService
	Prepare  *service.PrepareService
	Renderer service.Renderer
}

type controllers struct {
	auth     *controller.AuthController
	exercise *controller.ExerciseController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		interval: repository.NewIntervalRepository(db),
		exercise: repository.NewExerciseRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *Services {
	s := &Services{}

	s.Storage = service.NewStorageService(cfg)
	s.Auth = service.NewAuthService(repos.user, cfg)
	s.Audio = service.NewAudioService(repos.interval, s.Storage, audio.NewToolchain(&cfg.Audio), cfg.Audio.WorkDir)

	if a.Queue != nil {
		s.Renderer = &service.QueuedRenderer{Queue: a.Queue}
	} else {
		s.Renderer = &service.InlineRenderer{Audio: s.Audio}
	}

	s.Exercise = service.NewExerciseService(repos.exercise, repos.interval, s.Renderer, service.DefaultsFromConfig(cfg.Intervals))
	s.Prepare = service.NewPrepareService(repos.interval, s.Renderer)

	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.Exercise.SetDefaults(service.DefaultsFromConfig(newCfg.Intervals))
		logger.Log.Info("Interval defaults reloaded",
			zap.Int("lowestOctave", newCfg.Intervals.DefaultLowestOctave),
			zap.Int("highestOctave", newCfg.Intervals.DefaultHighestOctave),
			zap.Strings("allowedIntervals", newCfg.Intervals.DefaultAllowedIntervals))
	})

	return s
}

func (a *App) initControllers(s *Services) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.Auth),
		exercise: controller.NewExerciseController(s.Exercise, s.Audio),
		health:   controller.NewHealthController(a.DB, a.Redis, a.Config.Audio.FFmpegPath),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.RequestLogger())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	if a.limiter != nil {
		a.limiter.Stop()
	}
	a.limiter = security.NewIPLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	a.limiter.Start()
	router.Use(a.limiter.Middleware())

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New connects the database and Redis and builds the services. It does not
// build the HTTP router, so the worker and CLI commands share it.
func New(cfg *config.Config) (*App, error) {
	if err := logger.InitLogger(cfg); err != nil {
		return nil, err
	}

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	switch {
	case err == nil:
		app.Redis = rdb
	case cfg.Audio.UseQueue:
		return nil, fmt.Errorf("init redis (required by audio.use_queue): %w", err)
	default:
		logger.Log.Warn("Redis unavailable, rendering audio inline", zap.Error(err))
	}

	if app.Redis != nil && cfg.Audio.UseQueue {
		app.Queue = queue.NewRedisQueue(app.Redis, cfg.Queue.Name, cfg.Queue.MaxAttempts)
	}

	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("earninja", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	repos := app.initRepositories(db)
	app.Services = app.initServices(repos, cfg)

	return app, nil
}

// NewRenderWorker needs the queue, so it fails when audio.use_queue is off.
func (a *App) NewRenderWorker() (*service.RenderWorker, error) {
	if a.Queue == nil {
		return nil, errors.New("render worker requires redis and audio.use_queue=true")
	}
	return service.NewRenderWorker(a.Queue, a.Redis, a.Services.Audio, a.Config.Queue.Workers, a.Config.Queue.LockTTL), nil
}

func (a *App) SetupRouter() *gin.Engine {
	gin.SetMode(a.Config.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	a.Router = router

	a.setupMiddlewares(router, a.Config)
	a.registerRoutes(router, a.initControllers(a.Services), a.Config)

	if a.Config.Storage.Type == util.StorageLocal {
		router.Static("/uploads", a.Config.Storage.LocalPath)
	}

	return router
}

// WatchConfig applies the registered callbacks whenever the config file
// changes, until ctx is done.
func (a *App) WatchConfig(ctx context.Context) {
	if a.Config.File == "" {
		return
	}
	go func() {
		err := configwatcher.WatchConfig(ctx, a.Config.File, configwatcher.DefaultDebounce, func(cfg *config.Config) {
			for _, callback := range a.configCallbacks {
				callback(cfg)
			}
		})
		if err != nil {
			logger.Log.Error("Config watcher stopped", zap.Error(err))
		}
	}()
}

// Serve runs the HTTP server until ctx is done, then shuts it down gracefully.
func (a *App) Serve(ctx context.Context) error {
	if a.Router == nil {
		a.SetupRouter()
	}
	a.WatchConfig(ctx)

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Log.Info("Server exiting")
	return nil
}

// Close releases connections and flushes traces and logs.
func (a *App) Close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Log.Sync()
}
