package cache

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// Plan lists exact keys and key-family prefixes to drop for one mutation.
type Plan struct {
	Keys     []string
	Prefixes []string
}

func (p Plan) merge(other Plan) Plan {
	return Plan{
		Keys:     dedupe(append(append([]string{}, p.Keys...), other.Keys...)),
		Prefixes: dedupe(append(append([]string{}, p.Prefixes...), other.Prefixes...)),
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// RatingChangedPlan covers an upsert or delete of (userID, bookID). all_books
// is included because the statistics write-back updates the book record.
func RatingChangedPlan(userID, bookID string) Plan {
	return Plan{
		Keys: dedupe([]string{
			AllRatings(),
			AllBooks(),
			UserRatingsMap(userID),
			SimilarUsers(userID),
			SimilarBooks(bookID),
			UserBasedRecs(userID),
			ItemBasedRecs(userID),
			BookStatistics(bookID),
			UserStatistics(userID),
		}),
		Prefixes: dedupe([]string{popularBooksPrefix}),
	}
}

// BookChangedPlan covers a book create or metadata update.
func BookChangedPlan(bookID string) Plan {
	return Plan{
		Keys: dedupe([]string{
			AllBooks(),
			SimilarBooks(bookID),
			BookStatistics(bookID),
		}),
		Prefixes: dedupe([]string{popularBooksPrefix, newReleasesPrefix, contentSimilarPrefix}),
	}
}

// BookDeletedPlan also drops all_ratings since the book's ratings go with it.
func BookDeletedPlan(bookID string) Plan {
	return BookChangedPlan(bookID).merge(Plan{Keys: []string{AllRatings()}})
}

// OrderChangedPlan covers order create, complete and delete for userID.
func OrderChangedPlan(userID string) Plan {
	return Plan{
		Keys: dedupe([]string{
			UserReadBookIDs(userID),
			UserBasedRecs(userID),
			ItemBasedRecs(userID),
			UserStatistics(userID),
		}),
	}
}

func ProfileUpdatedPlan(userID string) Plan {
	return Plan{
		Keys: dedupe([]string{
			UserRatingsMap(userID),
			SimilarUsers(userID),
			UserBasedRecs(userID),
			ItemBasedRecs(userID),
			UserReadBookIDs(userID),
		}),
	}
}

// UserDeletedPlan drops the user's own keys plus the shared aggregates their
// ratings fed into.
func UserDeletedPlan(userID string) Plan {
	return ProfileUpdatedPlan(userID).merge(Plan{
		Keys:     []string{AllRatings(), UserStatistics(userID)},
		Prefixes: []string{popularBooksPrefix},
	})
}

// LibraryChangedPlan covers a reading-status change in the user's library.
func LibraryChangedPlan(userID string) Plan {
	return Plan{
		Keys: dedupe([]string{
			UserStatistics(userID),
			UserReadBookIDs(userID),
			UserBasedRecs(userID),
			ItemBasedRecs(userID),
		}),
	}
}

// Invalidator applies invalidation plans to a Cache. Every mutation kind has
// its own method so the dependency set stays explicit.
type Invalidator struct {
	cache  *Cache
	logger *logrus.Logger
}

func NewInvalidator(c *Cache, logger *logrus.Logger) *Invalidator {
	return &Invalidator{cache: c, logger: logger}
}

func (i *Invalidator) RatingChanged(userID, bookID string) {
	i.apply("rating_changed", RatingChangedPlan(userID, bookID), logrus.Fields{"user_id": userID, "book_id": bookID})
}

func (i *Invalidator) BookChanged(bookID string) {
	i.apply("book_changed", BookChangedPlan(bookID), logrus.Fields{"book_id": bookID})
}

func (i *Invalidator) BookDeleted(bookID string) {
	i.apply("book_deleted", BookDeletedPlan(bookID), logrus.Fields{"book_id": bookID})
}

func (i *Invalidator) OrderChanged(userID string) {
	i.apply("order_changed", OrderChangedPlan(userID), logrus.Fields{"user_id": userID})
}

func (i *Invalidator) ProfileUpdated(userID string) {
	i.apply("profile_updated", ProfileUpdatedPlan(userID), logrus.Fields{"user_id": userID})
}

func (i *Invalidator) UserDeleted(userID string) {
	i.apply("user_deleted", UserDeletedPlan(userID), logrus.Fields{"user_id": userID})
}

func (i *Invalidator) LibraryChanged(userID string) {
	i.apply("library_changed", LibraryChangedPlan(userID), logrus.Fields{"user_id": userID})
}

// ClearAll drops every entry.
func (i *Invalidator) ClearAll() {
	i.cache.Clear()
	i.logger.Info("Cache cleared")
}

func (i *Invalidator) apply(reason string, plan Plan, fields logrus.Fields) {
	i.cache.Delete(plan.Keys...)
	removed := 0
	for _, prefix := range plan.Prefixes {
		removed += i.cache.DeletePrefix(prefix)
	}

	i.logger.WithFields(fields).WithFields(logrus.Fields{
		"reason":           reason,
		"keys":             len(plan.Keys),
		"prefixed_removed": removed,
	}).Debug("Cache invalidated")
}
