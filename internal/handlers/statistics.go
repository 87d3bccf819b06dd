package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/bookshelf/internal/services"
)

type StatisticsHandler struct {
	statistics services.RatingServiceInterface
	logger     *logrus.Logger
}

func NewStatisticsHandler(statistics services.RatingServiceInterface, logger *logrus.Logger) *StatisticsHandler {
	return &StatisticsHandler{
		statistics: statistics,
		logger:     logger,
	}
}

func (h *StatisticsHandler) GetUser(c *gin.Context) {
	userID := c.Param("userId")
	if !authorizeUser(c, userID) {
		return
	}

	stats, err := h.statistics.UserStatistics(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to compute user statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *StatisticsHandler) GetBook(c *gin.Context) {
	stats, err := h.statistics.BookStatistics(c.Request.Context(), c.Param("bookId"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to compute book statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}
