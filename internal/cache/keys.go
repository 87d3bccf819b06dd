package cache

import "strconv"

// Key families. Parameterised families are "<family>:<param>".
const (
	allRatingsKey         = "all_ratings"
	allBooksKey           = "all_books"
	userRatingsMapPrefix  = "user_ratings_map:"
	similarUsersPrefix    = "similar_users:"
	similarBooksPrefix    = "similar_books:"
	userBasedRecsPrefix   = "user_based_recs:"
	itemBasedRecsPrefix   = "item_based_recs:"
	popularBooksPrefix    = "popular_books:"
	newReleasesPrefix     = "new_releases:"
	contentSimilarPrefix  = "content_similar_books:"
	bookStatisticsPrefix  = "book_statistics:"
	userStatisticsPrefix  = "user_statistics:"
	userReadBookIDsPrefix = "user_read_book_ids:"
)

func AllRatings() string { return allRatingsKey }

func AllBooks() string { return allBooksKey }

func UserRatingsMap(userID string) string { return userRatingsMapPrefix + userID }

func SimilarUsers(userID string) string { return similarUsersPrefix + userID }

func SimilarBooks(bookID string) string { return similarBooksPrefix + bookID }

func UserBasedRecs(userID string) string { return userBasedRecsPrefix + userID }

func ItemBasedRecs(userID string) string { return itemBasedRecsPrefix + userID }

func PopularBooks(limit int) string { return popularBooksPrefix + strconv.Itoa(limit) }

func NewReleases(limit int) string { return newReleasesPrefix + strconv.Itoa(limit) }

func ContentSimilarBooks(bookID string) string { return contentSimilarPrefix + bookID }

func BookStatistics(bookID string) string { return bookStatisticsPrefix + bookID }

func UserStatistics(userID string) string { return userStatisticsPrefix + userID }

func UserReadBookIDs(userID string) string { return userReadBookIDsPrefix + userID }
