package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/bookshelf/internal/services"
	"github.com/temcen/bookshelf/pkg/models"
)

type RecommendationHandler struct {
	recommendations services.RecommendationServiceInterface
	defaultLimit    int
	logger          *logrus.Logger
}

func NewRecommendationHandler(recommendations services.RecommendationServiceInterface, defaultLimit int, logger *logrus.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		recommendations: recommendations,
		defaultLimit:    defaultLimit,
		logger:          logger,
	}
}

// Get serves the hybrid feed.
func (h *RecommendationHandler) Get(c *gin.Context) {
	userID := c.Param("userId")
	if !authorizeUser(c, userID) {
		return
	}

	response, err := h.recommendations.GenerateRecommendations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to generate recommendations")
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *RecommendationHandler) GetUserBased(c *gin.Context) {
	userID := c.Param("userId")
	if !authorizeUser(c, userID) {
		return
	}
	h.serveList(c, "Failed to generate user-based recommendations", func(ctx context.Context, limit int) ([]models.Book, error) {
		return h.recommendations.GetUserBasedRecommendations(ctx, userID, limit)
	})
}

func (h *RecommendationHandler) GetItemBased(c *gin.Context) {
	userID := c.Param("userId")
	if !authorizeUser(c, userID) {
		return
	}
	h.serveList(c, "Failed to generate item-based recommendations", func(ctx context.Context, limit int) ([]models.Book, error) {
		return h.recommendations.GetItemBasedRecommendations(ctx, userID, limit)
	})
}

func (h *RecommendationHandler) GetSimilar(c *gin.Context) {
	bookID := c.Param("bookId")
	h.serveList(c, "Failed to find similar books", func(ctx context.Context, limit int) ([]models.Book, error) {
		return h.recommendations.GetContentSimilar(ctx, bookID, limit)
	})
}

func (h *RecommendationHandler) GetPopular(c *gin.Context) {
	h.serveList(c, "Failed to rank popular books", h.recommendations.GetPopularBooks)
}

func (h *RecommendationHandler) GetNewReleases(c *gin.Context) {
	h.serveList(c, "Failed to list new releases", h.recommendations.GetNewReleases)
}

func (h *RecommendationHandler) serveList(c *gin.Context, failure string, list func(ctx context.Context, limit int) ([]models.Book, error)) {
	limit, ok := parseLimit(c, h.defaultLimit)
	if !ok {
		return
	}

	books, err := list(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err, failure)
		return
	}
	if books == nil {
		books = []models.Book{}
	}

	c.JSON(http.StatusOK, models.BookListResponse{
		Books:       books,
		Count:       len(books),
		GeneratedAt: time.Now().UTC(),
	})
}
