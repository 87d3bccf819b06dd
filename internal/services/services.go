package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/bookshelf/internal/cache"
	"github.com/temcen/bookshelf/internal/config"
	"github.com/temcen/bookshelf/internal/store"
)

type Services struct {
	Cache         *cache.Cache
	Invalidator   *cache.Invalidator
	CacheAdmin    *CacheAdmin
	Metrics       *MetricsCollector
	Ratings       *RatingRepository
	Catalog       *BookCatalog
	UserBased     *UserBasedRecommender
	ItemBased     *ItemBasedRecommender
	Content       *ContentSimilarityFinder
	Popularity    *PopularityRanker
	Orchestrator  *RecommendationOrchestrator
	Statistics    *StatisticsAggregator
	CatalogEvents *CatalogEventHandler
	Auth          *AuthService
	RateLimit     *RateLimitService
	Health        *HealthService
}

// New wires the recommendation core around one shared cache. redisClient
// and publisher may be nil.
func New(
	cfg *config.Config,
	logger *logrus.Logger,
	st store.Store,
	redisClient *redis.Client,
	publisher RatingEventPublisher,
	reg prometheus.Registerer,
) *Services {
	rc := &cfg.Recommendation

	c := cache.New(cache.WithDefaultTTL(rc.Caching.DefaultTTL))
	invalidator := cache.NewInvalidator(c, logger)
	metrics := NewMetricsCollector(reg, c)

	ratings := NewRatingRepository(st, c, rc, logger)
	catalog := NewBookCatalog(st, c, rc, logger)

	userBased := NewUserBasedRecommender(ratings, catalog, c, rc, logger)
	itemBased := NewItemBasedRecommender(ratings, catalog, c, rc, logger)
	content := NewContentSimilarityFinder(catalog, c, rc, logger)
	popularity := NewPopularityRanker(ratings, catalog, c, rc, logger)

	orchestrator := NewRecommendationOrchestrator(
		userBased, itemBased, popularity, content, ratings, st, c, metrics, rc, logger,
	)

	statistics := NewStatisticsAggregator(st, ratings, c, invalidator, publisher, metrics, rc, logger)

	return &Services{
		Cache:         c,
		Invalidator:   invalidator,
		CacheAdmin:    &CacheAdmin{cache: c, invalidator: invalidator},
		Metrics:       metrics,
		Ratings:       ratings,
		Catalog:       catalog,
		UserBased:     userBased,
		ItemBased:     itemBased,
		Content:       content,
		Popularity:    popularity,
		Orchestrator:  orchestrator,
		Statistics:    statistics,
		CatalogEvents: NewCatalogEventHandler(invalidator, statistics, metrics, logger),
		Auth:          NewAuthService(cfg, logger, redisClient),
		RateLimit:     NewRateLimitService(cfg, logger, redisClient),
		Health:        NewHealthService(logger, reg, st, redisClient, c),
	}
}

type CacheAdmin struct {
	cache       *cache.Cache
	invalidator *cache.Invalidator
}

func (a *CacheAdmin) Stats() cache.Stats {
	return a.cache.Stats()
}

func (a *CacheAdmin) ClearAll() {
	a.invalidator.ClearAll()
}
