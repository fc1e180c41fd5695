package store

import "strings"

// Key prefixes shared by every driver.
const (
	UserKeyPrefix            = "user:"
	UserEmailKeyPrefix       = "user_email:"
	UserPreferencesKeyPrefix = "preferences:"
	GameCacheKeyPrefix       = "game_cache:"
	GameNoteKeyPrefix        = "notes:"
)

func userKey(id string) string {
	return UserKeyPrefix + id
}

func userEmailKey(email string) string {
	return UserEmailKeyPrefix + normalizeEmail(email)
}

func userPreferencesKey(userID string) string {
	return UserPreferencesKeyPrefix + userID
}

func gameCacheKey(gameID string) string {
	return GameCacheKeyPrefix + gameID
}

func gameNoteKey(userID, gameID string) string {
	return GameNoteKeyPrefix + userID + ":" + gameID
}

func gameNotePrefix(userID string) string {
	return GameNoteKeyPrefix + userID + ":"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
