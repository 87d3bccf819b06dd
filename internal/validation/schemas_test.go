package validation

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/bookshelf/pkg/models"
)

func newValidator(t *testing.T) *SchemaValidator {
	t.Helper()
	sv, err := NewDefaultSchemaValidator()
	require.NoError(t, err)
	return sv
}

func TestNewDefaultSchemaValidator(t *testing.T) {
	sv := newValidator(t)
	assert.Equal(t, []string{CatalogEventSchema, RatingEventSchema, RatingRequestSchema}, sv.GetAvailableSchemas())
	assert.True(t, sv.SchemaExists(CatalogEventSchema))
	assert.False(t, sv.SchemaExists("content-item"))
}

func TestValidateCatalogEvent(t *testing.T) {
	sv := newValidator(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		event interface{}
		valid bool
	}{
		{"book update", models.CatalogEvent{EventID: "e1", Type: models.EventBookUpdated, BookID: "b1", OccurredAt: now}, true},
		{"order completed", models.CatalogEvent{EventID: "e2", Type: models.EventOrderCompleted, UserID: "u1", OccurredAt: now}, true},
		{"rating deleted", models.CatalogEvent{EventID: "e3", Type: models.EventRatingDeleted, UserID: "u1", BookID: "b1", OccurredAt: now}, true},
		{"book event without book", models.CatalogEvent{EventID: "e4", Type: models.EventBookCreated, UserID: "u1", OccurredAt: now}, false},
		{"user event without user", models.CatalogEvent{EventID: "e5", Type: models.EventUserDeleted, OccurredAt: now}, false},
		{"rating deleted without book", models.CatalogEvent{EventID: "e6", Type: models.EventRatingDeleted, UserID: "u1", OccurredAt: now}, false},
		{"unknown type", models.CatalogEvent{EventID: "e7", Type: "book.exploded", BookID: "b1", OccurredAt: now}, false},
		{"missing event id", `{"type":"book.updated","book_id":"b1","occurred_at":"2024-03-01T12:00:00Z"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sv.ValidateCatalogEvent(tt.event)
			assert.Equal(t, tt.valid, result.Valid, "errors: %v", result.Errors)
			if tt.valid {
				assert.NoError(t, result.Err())
			} else {
				assert.Error(t, result.Err())
			}
		})
	}
}

func TestValidateCatalogEvent_MalformedJSON(t *testing.T) {
	result := newValidator(t).ValidateCatalogEvent([]byte(`{"type":`))
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "MALFORMED_DOCUMENT", result.Errors[0].Code)
}

func TestValidateRatingRequest(t *testing.T) {
	sv := newValidator(t)

	assert.True(t, sv.ValidateRatingRequest(`{"score": 4, "review_text": "Loved it"}`).Valid)
	assert.True(t, sv.ValidateRatingRequest(`{"score": 1}`).Valid)
	assert.False(t, sv.ValidateRatingRequest(`{"score": 0}`).Valid)
	assert.False(t, sv.ValidateRatingRequest(`{"score": 6}`).Valid)
	assert.False(t, sv.ValidateRatingRequest(`{"review_text": "no score"}`).Valid)
	assert.False(t, sv.ValidateRatingRequest(`{"score": 3, "user_id": "spoofed"}`).Valid)
}

func TestValidateRatingEvent(t *testing.T) {
	sv := newValidator(t)

	event := models.RatingEvent{
		EventID:    "e1",
		Type:       models.EventRatingRecorded,
		UserID:     "u1",
		BookID:     "b1",
		Score:      4,
		UserStats:  models.DerivedStats{AverageRating: 4, RatingCount: 1},
		BookStats:  models.DerivedStats{AverageRating: 4.33, RatingCount: 3},
		OccurredAt: time.Now().UTC(),
	}
	assert.True(t, sv.ValidateRatingEvent(event).Valid)

	event.Type = models.EventBookUpdated
	assert.False(t, sv.ValidateRatingEvent(event).Valid)
}

func TestToAPIError(t *testing.T) {
	result := newValidator(t).ValidateRatingRequest(`{"score": 9}`)
	require.False(t, result.Valid)

	apiErr := result.ToAPIError()
	body, ok := apiErr["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	assert.Nil(t, (&ValidationResult{Valid: true}).ToAPIError())
}

func TestLoadSchemaFromFS_MissingFile(t *testing.T) {
	fsys := fstest.MapFS{
		"schemas/catalog-event.json": {Data: []byte(`{"type":"object"}`)},
	}
	err := NewSchemaValidator().LoadSchemaFromFS(fsys, "schemas")
	assert.Error(t, err)
}

func TestValidate_UnknownSchema(t *testing.T) {
	result := NewSchemaValidator().ValidateCatalogEvent(`{}`)
	assert.False(t, result.Valid)
	assert.Equal(t, "SCHEMA_NOT_FOUND", result.Errors[0].Code)
}
