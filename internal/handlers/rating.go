package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/bookshelf/internal/middleware"
	"github.com/temcen/bookshelf/internal/services"
	"github.com/temcen/bookshelf/pkg/models"
)

type RatingHandler struct {
	ratings  services.RatingServiceInterface
	validate *validator.Validate
	logger   *logrus.Logger
}

func NewRatingHandler(ratings services.RatingServiceInterface, validate *validator.Validate, logger *logrus.Logger) *RatingHandler {
	return &RatingHandler{
		ratings:  ratings,
		validate: validate,
		logger:   logger,
	}
}

// Put records the caller's rating for a book.
func (h *RatingHandler) Put(c *gin.Context) {
	userID, _ := middleware.GetUserFromContext(c)
	bookID := c.Param("bookId")

	var req models.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST_BODY", "Request body must be a JSON rating")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Rating validation failed",
				"details": fieldErrors(err),
			},
		})
		return
	}

	rating, err := h.ratings.RecordRating(c.Request.Context(), userID, bookID, req.Score, req.ReviewText)
	if err != nil {
		respondError(c, h.logger, err, "Failed to record rating")
		return
	}
	c.JSON(http.StatusOK, rating)
}

func (h *RatingHandler) ListForBook(c *gin.Context) {
	ratings, err := h.ratings.RatingsForBook(c.Request.Context(), c.Param("bookId"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to list ratings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratings": nonNil(ratings), "count": len(ratings)})
}

func (h *RatingHandler) ListForUser(c *gin.Context) {
	userID := c.Param("userId")
	if !authorizeUser(c, userID) {
		return
	}

	ratings, err := h.ratings.RatingsForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list ratings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratings": nonNil(ratings), "count": len(ratings)})
}

func nonNil(ratings []models.Rating) []models.Rating {
	if ratings == nil {
		return []models.Rating{}
	}
	return ratings
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["body"] = err.Error()
		return out
	}
	for _, fe := range validationErrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
