package recommendation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hrygo/gamelogd/internal/profile"
	"github.com/hrygo/gamelogd/store"
)

// DefaultWindow is how long a generated recommendation set stays fresh.
const DefaultWindow = 24 * time.Hour

// FreshnessPolicy decides whether the cached recommendations can be served.
// digest fingerprints the rated games of the current request.
type FreshnessPolicy interface {
	IsFresh(prefs *store.UserPreferences, digest string, now time.Time) bool
}

// WindowPolicy keeps a non-empty cache for a fixed time after it was generated.
type WindowPolicy struct {
	Window time.Duration
}

func (p WindowPolicy) IsFresh(prefs *store.UserPreferences, _ string, now time.Time) bool {
	if len(prefs.CachedRecommendations) == 0 || prefs.LastRecommendationRefresh == nil {
		return false
	}
	window := p.Window
	if window <= 0 {
		window = DefaultWindow
	}
	return now.Sub(*prefs.LastRecommendationRefresh) < window
}

// RatingsDigestPolicy keeps a non-empty cache for as long as the rated games
// it was generated from are unchanged. MaxAge, when set, still expires it.
type RatingsDigestPolicy struct {
	MaxAge time.Duration
}

func (p RatingsDigestPolicy) IsFresh(prefs *store.UserPreferences, digest string, now time.Time) bool {
	if len(prefs.CachedRecommendations) == 0 || prefs.RecommendationDigest == "" {
		return false
	}
	if prefs.RecommendationDigest != digest {
		return false
	}
	if p.MaxAge > 0 {
		if prefs.LastRecommendationRefresh == nil || now.Sub(*prefs.LastRecommendationRefresh) >= p.MaxAge {
			return false
		}
	}
	return true
}

// NewPolicy returns the policy named by the profile setting. Under the digest
// policy window caps how long an unchanged set is served.
func NewPolicy(name string, window time.Duration) (FreshnessPolicy, error) {
	switch name {
	case profile.RecommendationPolicyWindow, "":
		return WindowPolicy{Window: window}, nil
	case profile.RecommendationPolicyDigest:
		return RatingsDigestPolicy{MaxAge: window}, nil
	default:
		return nil, fmt.Errorf("unknown recommendation policy %q", name)
	}
}

// Digest fingerprints a rated set. Order and metadata other than the game id
// and rating do not matter.
func Digest(ratedGames []store.RatedGame) string {
	lines := make([]string, 0, len(ratedGames))
	for _, rg := range ratedGames {
		lines = append(lines, rg.ID+"="+strconv.FormatFloat(rg.Rating, 'f', 1, 64))
	}
	slices.Sort(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}
