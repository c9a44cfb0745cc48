package app

import (
	"clubnet_backend/internal/config"
	"clubnet_backend/internal/controller"
	"clubnet_backend/internal/repository"
	"clubnet_backend/internal/service"
	"clubnet_backend/pkg/configwatcher"
	"clubnet_backend/pkg/database"
	"clubnet_backend/pkg/logger"
	"clubnet_backend/pkg/messaging"
	"clubnet_backend/pkg/monitoring"
	"clubnet_backend/pkg/security"
	"clubnet_backend/pkg/tracing"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigFile      string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	origins         *security.Origins
	tracer          *sdktrace.TracerProvider
	amqp            *messaging.Publisher
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user         *repository.UserRepository
	course       *repository.CourseRepository
	club         *repository.ClubRepository
	clubResource *repository.ClubResourceRepository
	friendship   *repository.FriendshipRepository
	thread       *repository.ThreadRepository
	message      *repository.MessageRepository
	notification *repository.NotificationRepository
}

type services struct {
	gate         *service.AuthorizationGate
	sink         service.NotificationSink
	hub          *service.NotificationHub
	thread       *service.ThreadService
	membership   *service.MembershipService
	friendship   *service.FriendshipService
	clubResource *service.ClubResourceService
	notification *service.NotificationService
}

type controllers struct {
	thread       *controller.ThreadController
	club         *controller.ClubController
	friend       *controller.FriendController
	notification *controller.NotificationController
	health       *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:         repository.NewUserRepository(db),
		course:       repository.NewCourseRepository(db),
		club:         repository.NewClubRepository(db),
		clubResource: repository.NewClubResourceRepository(db),
		friendship:   repository.NewFriendshipRepository(db),
		thread:       repository.NewThreadRepository(db),
		message:      repository.NewMessageRepository(db),
		notification: repository.NewNotificationRepository(db),
	}
}

// initSinks builds the fan-out of configured notification sinks. When both redis and
// ws are enabled the hub receives events through the Redis relay, so every instance
// pushes to its own sockets exactly once.
func (a *App) initSinks(repos *repositories, cfg *config.Config, rdb *redis.Client) (service.MultiSink, *service.NotificationHub, error) {
	var sinks service.MultiSink
	redisSink := cfg.HasSink("redis") && rdb != nil
	if cfg.HasSink("redis") && rdb == nil {
		logger.Log.Warn("Notification sink redis enabled without redis.host, skipping")
	}

	if cfg.HasSink("store") {
		sinks = append(sinks, service.NewStoreSink(repos.notification))
	}
	if redisSink {
		sinks = append(sinks, service.NewRedisSink(rdb, cfg.Notification.RedisChannel))
	}
	if cfg.HasSink("amqp") {
		pub, err := messaging.Dial(cfg.Notification.AMQPURL, cfg.Notification.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		a.amqp = pub
		sinks = append(sinks, service.NewAMQPSink(pub))
		logger.Log.Info("AMQP notification sink ready", zap.String("exchange", pub.Exchange()))
	}

	var hub *service.NotificationHub
	if cfg.HasSink("ws") {
		if redisSink {
			hub = service.NewNotificationHub(rdb, cfg.Notification.RedisChannel)
		} else {
			hub = service.NewNotificationHub(nil, "")
			sinks = append(sinks, hub)
		}
		go hub.Run()
	}

	logger.Log.Info("Notification sinks ready", zap.Strings("sinks", cfg.Notification.Sinks))
	return sinks, hub, nil
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*services, error) {
	s := &services{}

	sinks, hub, err := a.initSinks(repos, cfg, rdb)
	if err != nil {
		return nil, err
	}
	s.sink = sinks
	s.hub = hub

	s.gate = service.NewAuthorizationGate(repos.friendship, repos.club)
	s.thread = service.NewThreadService(
		db,
		repos.thread,
		repos.message,
		repos.user,
		repos.course,
		repos.club,
		repos.friendship,
		s.gate,
		s.sink,
	)
	s.membership = service.NewMembershipService(db, repos.club, repos.user, s.thread, s.gate, s.sink)
	s.friendship = service.NewFriendshipService(repos.friendship, repos.user, s.sink)
	s.clubResource = service.NewClubResourceService(repos.clubResource, repos.club, s.gate)
	s.notification = service.NewNotificationService(repos.notification)

	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		thread:       controller.NewThreadController(s.thread),
		club:         controller.NewClubController(s.membership, s.clubResource),
		friend:       controller.NewFriendController(s.friendship),
		notification: controller.NewNotificationController(s.notification, s.hub),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.DynamicCORS(a.origins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window()))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode != "release"
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config:     cfg,
		ConfigFile: filepath.Join(configDir, "config.yaml"),
		DB:         db,
		origins:    security.NewOrigins(cfg.CORS.AllowedOrigins),
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	services, err := app.initServices(repos, cfg, db, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize notification sinks", zap.Error(err))
	}
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("clubnet", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	app.RegisterConfigCallback(logger.SetLevel)
	app.RegisterConfigCallback(func(c *config.Config) {
		app.origins.Set(c.CORS.AllowedOrigins)
	})

	return app
}

func (a *App) watchConfig(ctx context.Context) {
	err := configwatcher.WatchConfig(ctx, a.ConfigFile, func(cfg *config.Config) {
		for _, cb := range a.configCallbacks {
			cb(cfg)
		}
	})
	if err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.Error(err))
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go a.watchConfig(watchCtx)

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// wait for an interrupt, then shut down with a 5 second grace period
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	if a.services != nil && a.services.hub != nil {
		a.services.hub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			logger.Log.Warn("Failed to close amqp publisher", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
