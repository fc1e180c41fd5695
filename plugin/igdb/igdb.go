// Package igdb is a small client for the IGDB game metadata API.
package igdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/hrygo/gamelogd/internal/profile"
)

const (
	DefaultBaseURL  = "https://api.igdb.com/v4"
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

	// SearchLimit is the number of games returned by a title search.
	SearchLimit = 5
)

// ErrNotConfigured is returned when no Twitch credentials are available.
var ErrNotConfigured = errors.New("IGDB/Twitch credentials not configured")

// Fields requested for the game detail view.
var detailFields = []string{
	"name",
	"slug",
	"cover.url",
	"first_release_date",
	"summary",
	"platforms.name",
	"genres.name",
	"screenshots.url",
	"videos.video_id",
	"rating",
	"rating_count",
	"storyline",
	"involved_companies.company.name",
	"involved_companies.developer",
	"involved_companies.publisher",
}

var searchFields = []string{"name", "slug", "cover.url", "first_release_date", "summary", "platforms.name", "genres.name"}

// Named is an id/name pair such as a platform or a genre.
type Named struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Image is a cover or screenshot reference.
type Image struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// Video is a trailer hosted on YouTube.
type Video struct {
	ID      int64  `json:"id"`
	VideoID string `json:"video_id"`
}

// InvolvedCompany links a company to a game.
type InvolvedCompany struct {
	ID        int64 `json:"id"`
	Company   Named `json:"company"`
	Developer bool  `json:"developer"`
	Publisher bool  `json:"publisher"`
}

// Game is the IGDB game record with the fields this service asks for.
type Game struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Slug              string            `json:"slug,omitempty"`
	Cover             *Image            `json:"cover,omitempty"`
	FirstReleaseDate  int64             `json:"first_release_date,omitempty"`
	Summary           string            `json:"summary,omitempty"`
	Storyline         string            `json:"storyline,omitempty"`
	Platforms         []Named           `json:"platforms,omitempty"`
	Genres            []Named           `json:"genres,omitempty"`
	Screenshots       []Image           `json:"screenshots,omitempty"`
	Videos            []Video           `json:"videos,omitempty"`
	Rating            float64           `json:"rating,omitempty"`
	RatingCount       int64             `json:"rating_count,omitempty"`
	InvolvedCompanies []InvolvedCompany `json:"involved_companies,omitempty"`
}

// Config holds the Twitch application credentials.
//
// With a ClientSecret the client fetches and refreshes app access tokens itself;
// otherwise the static AccessToken is used.
type Config struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	BaseURL      string
	TokenURL     string
	Timeout      time.Duration
}

// NewConfigFromProfile creates IGDB config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	return &Config{
		ClientID:     p.TwitchClientID,
		ClientSecret: p.TwitchClientSecret,
		AccessToken:  p.TwitchAccessToken,
		BaseURL:      p.IGDBBaseURL,
		Timeout:      p.MetadataTimeout,
	}
}

// APIError is a non-200 answer from IGDB.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("igdb: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the IGDB API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
}

// NewClient creates a Client. It returns ErrNotConfigured when credentials are missing.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.ClientID == "" || (cfg.ClientSecret == "" && cfg.AccessToken == "") {
		return nil, ErrNotConfigured
	}

	// The token source keeps this context for refreshes.
	ctx := context.Background()
	var httpClient *http.Client
	if cfg.ClientSecret != "" {
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		httpClient = cc.Client(ctx)
	} else {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.AccessToken,
			TokenType:   "Bearer",
		}))
	}
	httpClient.Timeout = cfg.Timeout

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		clientID:   cfg.ClientID,
	}, nil
}

// Search returns up to limit games matching term. A blank term returns no games.
func (c *Client) Search(ctx context.Context, term string, limit int) ([]Game, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []Game{}, nil
	}
	if limit <= 0 {
		limit = SearchLimit
	}

	query := fmt.Sprintf("search %s; fields %s; limit %d;", quote(term), strings.Join(searchFields, ","), limit)
	games := []Game{}
	if err := c.query(ctx, "/games", query, &games); err != nil {
		return nil, err
	}
	return games, nil
}

// GetGame returns the detail view of a game, or nil if IGDB has no such game.
func (c *Client) GetGame(ctx context.Context, id int64) (*Game, error) {
	query := fmt.Sprintf("fields %s; where id = %d;", strings.Join(detailFields, ","), id)
	var games []Game
	if err := c.query(ctx, "/games", query, &games); err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}
	return &games[0], nil
}

func (c *Client) query(ctx context.Context, endpoint, body string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewBufferString(body))
	if err != nil {
		return err
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("igdb request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("igdb read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(data)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return &APIError{StatusCode: resp.StatusCode, Body: snippet}
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("igdb decode failed: %w", err)
	}
	return nil
}

// CoverURL turns an IGDB image reference into an absolute https URL of the big cover size.
func CoverURL(raw string) string {
	if raw == "" {
		return ""
	}
	url := strings.Replace(raw, "t_thumb", "t_cover_big", 1)
	if strings.HasPrefix(url, "//") {
		url = "https:" + url
	}
	return url
}

// quote renders term as an Apicalypse string literal.
func quote(term string) string {
	return strconv.Quote(term)
}
