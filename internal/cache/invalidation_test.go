package cache

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestInvalidator() (*Cache, *Invalidator) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	c := New()
	return c, NewInvalidator(c, logger)
}

func seed(c *Cache, keys ...string) {
	for _, k := range keys {
		c.Set(k, true, time.Hour)
	}
}

func present(c *Cache, key string) bool {
	_, ok := c.Get(key)
	return ok
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "all_ratings", AllRatings())
	assert.Equal(t, "all_books", AllBooks())
	assert.Equal(t, "user_ratings_map:u1", UserRatingsMap("u1"))
	assert.Equal(t, "similar_users:u1", SimilarUsers("u1"))
	assert.Equal(t, "similar_books:b1", SimilarBooks("b1"))
	assert.Equal(t, "user_based_recs:u1", UserBasedRecs("u1"))
	assert.Equal(t, "item_based_recs:u1", ItemBasedRecs("u1"))
	assert.Equal(t, "popular_books:10", PopularBooks(10))
	assert.Equal(t, "new_releases:5", NewReleases(5))
	assert.Equal(t, "content_similar_books:b1", ContentSimilarBooks("b1"))
	assert.Equal(t, "book_statistics:b1", BookStatistics("b1"))
	assert.Equal(t, "user_statistics:u1", UserStatistics("u1"))
	assert.Equal(t, "user_read_book_ids:u1", UserReadBookIDs("u1"))
}

func TestInvalidator_RatingChanged(t *testing.T) {
	c, inv := newTestInvalidator()
	seed(c,
		AllRatings(), AllBooks(),
		UserRatingsMap("u1"), SimilarUsers("u1"), UserBasedRecs("u1"), ItemBasedRecs("u1"), UserStatistics("u1"),
		SimilarBooks("b1"), BookStatistics("b1"),
		PopularBooks(5), PopularBooks(10),
		// unrelated subjects survive
		UserRatingsMap("u2"), SimilarBooks("b2"), NewReleases(10),
	)

	inv.RatingChanged("u1", "b1")

	for _, k := range []string{
		AllRatings(), AllBooks(),
		UserRatingsMap("u1"), SimilarUsers("u1"), UserBasedRecs("u1"), ItemBasedRecs("u1"), UserStatistics("u1"),
		SimilarBooks("b1"), BookStatistics("b1"),
		PopularBooks(5), PopularBooks(10),
	} {
		assert.False(t, present(c, k), "expected %s to be invalidated", k)
	}
	for _, k := range []string{UserRatingsMap("u2"), SimilarBooks("b2"), NewReleases(10)} {
		assert.True(t, present(c, k), "expected %s to survive", k)
	}
}

func TestInvalidator_BookChangedAndDeleted(t *testing.T) {
	c, inv := newTestInvalidator()
	seed(c, AllBooks(), AllRatings(), PopularBooks(10), NewReleases(10), ContentSimilarBooks("b9"), SimilarBooks("b1"), BookStatistics("b1"))

	inv.BookChanged("b1")
	assert.False(t, present(c, AllBooks()))
	assert.False(t, present(c, PopularBooks(10)))
	assert.False(t, present(c, NewReleases(10)))
	assert.False(t, present(c, ContentSimilarBooks("b9")))
	assert.False(t, present(c, SimilarBooks("b1")))
	assert.False(t, present(c, BookStatistics("b1")))
	assert.True(t, present(c, AllRatings()))

	inv.BookDeleted("b1")
	assert.False(t, present(c, AllRatings()))
}

func TestInvalidator_UserScopedPlans(t *testing.T) {
	tests := []struct {
		name      string
		apply     func(*Invalidator)
		dropped   []string
		surviving []string
	}{
		{
			name:      "order changed",
			apply:     func(i *Invalidator) { i.OrderChanged("u1") },
			dropped:   []string{UserReadBookIDs("u1"), UserBasedRecs("u1"), ItemBasedRecs("u1"), UserStatistics("u1")},
			surviving: []string{UserRatingsMap("u1"), AllRatings()},
		},
		{
			name:      "profile updated",
			apply:     func(i *Invalidator) { i.ProfileUpdated("u1") },
			dropped:   []string{UserRatingsMap("u1"), SimilarUsers("u1"), UserBasedRecs("u1"), ItemBasedRecs("u1"), UserReadBookIDs("u1")},
			surviving: []string{AllRatings(), UserStatistics("u1")},
		},
		{
			name:      "user deleted",
			apply:     func(i *Invalidator) { i.UserDeleted("u1") },
			dropped:   []string{UserRatingsMap("u1"), SimilarUsers("u1"), AllRatings(), UserStatistics("u1"), PopularBooks(10)},
			surviving: []string{UserRatingsMap("u2")},
		},
		{
			name:      "library changed",
			apply:     func(i *Invalidator) { i.LibraryChanged("u1") },
			dropped:   []string{UserStatistics("u1"), UserReadBookIDs("u1")},
			surviving: []string{UserRatingsMap("u1")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, inv := newTestInvalidator()
			seed(c, tt.dropped...)
			seed(c, tt.surviving...)

			tt.apply(inv)

			for _, k := range tt.dropped {
				assert.False(t, present(c, k), "expected %s to be invalidated", k)
			}
			for _, k := range tt.surviving {
				assert.True(t, present(c, k), "expected %s to survive", k)
			}
		})
	}
}

func TestInvalidator_ClearAll(t *testing.T) {
	c, inv := newTestInvalidator()
	seed(c, AllBooks(), AllRatings())
	inv.ClearAll()
	assert.Equal(t, 0, c.Len())
}

func TestPlans_NoDuplicates(t *testing.T) {
	plan := UserDeletedPlan("u1")
	seen := map[string]bool{}
	for _, k := range plan.Keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}
