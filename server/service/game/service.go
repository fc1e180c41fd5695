package game

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/hrygo/gamelogd/plugin/igdb"
	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/server/internal/observability"
	"github.com/hrygo/gamelogd/store"
)

// CacheTTL is how long fetched game metadata is served from the shared cache.
const CacheTTL = 24 * time.Hour

// DefaultFetchTimeout bounds a shared upstream fetch once it no longer follows any caller.
const DefaultFetchTimeout = 15 * time.Second

const featureName = "Game metadata"

// Provider fetches game metadata.
type Provider interface {
	Search(ctx context.Context, term string, limit int) ([]igdb.Game, error)
	GetGame(ctx context.Context, id int64) (*igdb.Game, error)
}

// Service looks up game metadata through a cache shared by every user.
type Service struct {
	// FetchTimeout bounds each shared provider fetch.
	FetchTimeout time.Duration

	store    *store.Store
	provider Provider
	group    singleflight.Group
	now      func() time.Time
}

// NewService creates a Service. A nil provider disables lookups that need it.
func NewService(s *store.Store, provider Provider, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		FetchTimeout: DefaultFetchTimeout,
		store:        s,
		provider:     provider,
		now:          now,
	}
}

// Result is a game detail payload and where it came from.
type Result struct {
	Data     json.RawMessage
	Cached   bool
	CachedAt time.Time
}

// GetGame returns the detail view of a game, from cache when it is younger than CacheTTL.
func (s *Service) GetGame(ctx context.Context, rawID string) (*Result, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id <= 0 {
		return nil, apperrors.InvalidArgument("Invalid game ID")
	}
	key := strconv.FormatInt(id, 10)

	cached, err := s.store.GetCachedGame(ctx, key)
	if err != nil {
		// Cache read failures fall through to the provider.
		observability.Logger(ctx).Warn("game cache read failed", slog.String("game_id", key), slog.String("error", err.Error()))
	}
	if cached != nil && s.now().Sub(cached.CachedAt) < CacheTTL {
		observability.RecordGameCache(true)
		return &Result{Data: cached.GameData, Cached: true, CachedAt: cached.CachedAt}, nil
	}
	observability.RecordGameCache(false)

	if s.provider == nil {
		return nil, apperrors.ConfigMissing(featureName)
	}

	// Concurrent misses for the same game share one upstream call. The call
	// runs detached from the caller that started it, so one caller going away
	// does not fail the others waiting on it.
	timeout := s.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return s.fetch(fetchCtx, id, key)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch game %d: %w", id, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		fresh := res.Val.(*store.CachedGame)
		return &Result{Data: fresh.GameData, CachedAt: fresh.CachedAt}, nil
	}
}

func (s *Service) fetch(ctx context.Context, id int64, key string) (*store.CachedGame, error) {
	game, err := s.provider.GetGame(ctx, id)
	if err != nil {
		return nil, apperrors.Upstream("Failed to fetch game data", err)
	}
	if game == nil {
		return nil, apperrors.NotFound("Game not found")
	}

	data, err := json.Marshal(game)
	if err != nil {
		return nil, fmt.Errorf("encode game %d: %w", id, err)
	}
	fresh := &store.CachedGame{GameData: data, CachedAt: s.now().UTC()}
	if err := s.store.SetCachedGame(ctx, key, fresh); err != nil {
		observability.Logger(ctx).Warn("game cache write failed", slog.String("game_id", key), slog.String("error", err.Error()))
	}
	return fresh, nil
}

// Search returns up to five games matching term. A blank term returns no games.
func (s *Service) Search(ctx context.Context, term string) ([]igdb.Game, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []igdb.Game{}, nil
	}
	if s.provider == nil {
		return nil, apperrors.ConfigMissing(featureName)
	}

	games, err := s.provider.Search(ctx, term, igdb.SearchLimit)
	if err != nil {
		return nil, apperrors.Upstream("Failed to fetch data from IGDB", err)
	}
	return games, nil
}

// CoverFor returns the cover image of the best title match, or "" if there is none.
func (s *Service) CoverFor(ctx context.Context, title string) (string, error) {
	game, err := s.firstMatch(ctx, title)
	if err != nil || game == nil || game.Cover == nil {
		return "", err
	}
	return igdb.CoverURL(game.Cover.URL), nil
}

// ResolveID returns the IGDB id of the best title match, or 0 if there is none.
func (s *Service) ResolveID(ctx context.Context, title string) (int64, error) {
	game, err := s.firstMatch(ctx, title)
	if err != nil || game == nil {
		return 0, err
	}
	return game.ID, nil
}

func (s *Service) firstMatch(ctx context.Context, title string) (*igdb.Game, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}
	if s.provider == nil {
		return nil, apperrors.ConfigMissing(featureName)
	}
	games, err := s.provider.Search(ctx, title, 1)
	if err != nil {
		return nil, apperrors.Upstream("Failed to fetch data from IGDB", err)
	}
	if len(games) == 0 {
		return nil, nil
	}
	return &games[0], nil
}
