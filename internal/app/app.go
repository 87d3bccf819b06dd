package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/bookshelf/internal/config"
	"github.com/temcen/bookshelf/internal/database"
	"github.com/temcen/bookshelf/internal/handlers"
	"github.com/temcen/bookshelf/internal/messaging"
	"github.com/temcen/bookshelf/internal/middleware"
	"github.com/temcen/bookshelf/internal/services"
	"github.com/temcen/bookshelf/internal/store"
	"github.com/temcen/bookshelf/internal/validation"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	store    store.Store
	bus      *messaging.EventBus
	schemas  *validation.SchemaValidator
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine
	gatherer prometheus.Gatherer

	stopConsumers context.CancelFunc
	consumers     sync.WaitGroup
}

func New(cfg *config.Config) (*App, error) {
	return newApp(cfg, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func newApp(cfg *config.Config, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &App{
		config:   cfg,
		logger:   setupLogger(cfg),
		gatherer: gatherer,
	}

	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	switch cfg.Database.Driver {
	case "postgres":
		app.store = store.NewPostgresStore(db.PG)
	default:
		app.logger.Warn("Using in-memory store; data is lost on restart")
		app.store = store.NewMemoryStore()
	}

	app.schemas, err = validation.NewDefaultSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}

	var publisher services.RatingEventPublisher
	if cfg.Kafka.Enabled() {
		app.bus, err = messaging.NewEventBus(cfg, app.schemas, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize event bus: %w", err)
		}
		publisher = app.bus
	} else {
		app.logger.Warn("Kafka brokers not configured, rating events will not be published")
	}

	app.services = services.New(cfg, app.logger, app.store, db.Redis, publisher, reg)
	if mem, ok := app.store.(*store.MemoryStore); ok && cfg.Database.SeedFile != "" {
		if err := app.seed(mem, cfg.Database.SeedFile); err != nil {
			return nil, err
		}
	}
	if app.bus != nil {
		app.services.Health.AddCheck("message_bus", false, app.bus.Ping)
	}

	app.handlers = handlers.New(app.logger, app.services, app.schemas, cfg.Recommendation.PopularLimit)
	app.setupRouter()

	return app, nil
}

// seed loads a YAML fixture into the memory store and brings the derived
// stats in line with the seeded ratings.
func (a *App) seed(mem *store.MemoryStore, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer file.Close()

	fixture, err := store.ParseFixture(file)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := mem.Seed(ctx, fixture); err != nil {
		return fmt.Errorf("failed to seed memory store: %w", err)
	}

	for _, b := range fixture.Books {
		if _, err := a.services.Statistics.RecomputeBookStats(ctx, b.ID); err != nil {
			return err
		}
	}
	for _, u := range fixture.Users {
		if _, err := a.services.Statistics.RecomputeUserStats(ctx, u.ID); err != nil {
			return err
		}
	}

	a.logger.WithFields(logrus.Fields{
		"file":    path,
		"books":   len(fixture.Books),
		"users":   len(fixture.Users),
		"ratings": len(fixture.Ratings),
	}).Info("Memory store seeded")
	return nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// StartConsumers begins applying catalog events from Kafka. It is a no-op
// when no brokers are configured.
func (a *App) StartConsumers() {
	if a.bus == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.stopConsumers = cancel

	a.consumers.Add(1)
	go func() {
		defer a.consumers.Done()
		err := a.bus.ConsumeCatalogEvents(ctx, a.services.CatalogEvents.HandleCatalogEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.WithError(err).Error("Catalog event consumer stopped")
		}
	}()

	a.logger.WithField("topic", a.config.Kafka.Topics.CatalogEvents).Info("Catalog event consumer started")
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.stopConsumers != nil {
		a.stopConsumers()
		done := make(chan struct{})
		go func() {
			a.consumers.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			a.logger.Warn("Timed out waiting for consumers to stop")
		}
	}

	var errs []error
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))

	router.GET("/health", a.handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))

	validate := middleware.NewValidationMiddleware(a.schemas)

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(a.services.Auth, a.logger))
	api.Use(middleware.RateLimit(a.services.RateLimit, a.logger))
	{
		books := api.Group("/books")
		{
			books.GET("/popular", validate.ValidateLimit(), a.handlers.Recommendation.GetPopular)
			books.GET("/new-releases", validate.ValidateLimit(), a.handlers.Recommendation.GetNewReleases)
			books.GET("/:bookId/similar", validate.ValidateLimit(), a.handlers.Recommendation.GetSimilar)
			books.GET("/:bookId/ratings", a.handlers.Rating.ListForBook)
			books.GET("/:bookId/statistics", a.handlers.Statistics.GetBook)
			books.PUT("/:bookId/rating", validate.ValidateRatingRequest(), a.handlers.Rating.Put)
		}

		recommendations := api.Group("/recommendations")
		{
			recommendations.GET("/:userId", a.handlers.Recommendation.Get)
			recommendations.GET("/:userId/user-based", validate.ValidateLimit(), a.handlers.Recommendation.GetUserBased)
			recommendations.GET("/:userId/item-based", validate.ValidateLimit(), a.handlers.Recommendation.GetItemBased)
		}

		users := api.Group("/users")
		{
			users.GET("/:userId/ratings", a.handlers.Rating.ListForUser)
			users.GET("/:userId/statistics", a.handlers.Statistics.GetUser)
		}

		admin := api.Group("/admin", middleware.RequireAdmin())
		{
			admin.GET("/cache/stats", a.handlers.Admin.CacheStats)
			admin.DELETE("/cache", a.handlers.Admin.ClearCache)
			admin.POST("/events", a.handlers.Admin.ApplyEvent)
		}
	}

	a.router = router
}
