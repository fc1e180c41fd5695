package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Supported storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
	DriverRedis    = "redis"
)

// Concurrency strategies for the preference read-modify-write cycle.
const (
	ConcurrencyNone       = "none"
	ConcurrencyMutex      = "mutex"
	ConcurrencyOptimistic = "optimistic"
)

// Recommendation freshness policies.
const (
	RecommendationPolicyWindow = "window"
	RecommendationPolicyDigest = "digest"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// Driver is the storage driver (memory, sqlite, postgres, badger or redis)
	Driver string
	// DSN points to where gamelogd stores its own data
	DSN string
	// Version is the current version of server
	Version string
	// Secret signs the bearer tokens handed out on login
	Secret string
	// AdminSecret is the bearer token of the admin API. The admin API is off when it is empty.
	AdminSecret string

	// Redis Configuration (driver=redis)
	RedisAddr     string // GAMELOGD_REDIS_ADDR (default: localhost:6379)
	RedisPassword string // GAMELOGD_REDIS_PASSWORD
	RedisDB       int    // GAMELOGD_REDIS_DB (default: 0)

	// AI Configuration
	AILLMProvider   string // GAMELOGD_AI_LLM_PROVIDER (default: openai)
	AILLMModel      string // GAMELOGD_AI_LLM_MODEL (default: gpt-4o-mini)
	AIOpenAIAPIKey  string // GAMELOGD_AI_OPENAI_API_KEY
	AIOpenAIBaseURL string // GAMELOGD_AI_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	AIDeepSeekKey   string // GAMELOGD_AI_DEEPSEEK_API_KEY
	AIDeepSeekURL   string // GAMELOGD_AI_DEEPSEEK_BASE_URL (default: https://api.deepseek.com)
	AIOllamaBaseURL string // GAMELOGD_AI_OLLAMA_BASE_URL (default: http://localhost:11434/v1)

	// Game metadata (IGDB over Twitch credentials)
	TwitchClientID     string // GAMELOGD_TWITCH_CLIENT_ID
	TwitchClientSecret string // GAMELOGD_TWITCH_CLIENT_SECRET
	TwitchAccessToken  string // GAMELOGD_TWITCH_ACCESS_TOKEN, used when no client secret is set
	IGDBBaseURL        string // GAMELOGD_IGDB_BASE_URL (default: https://api.igdb.com/v4)

	// Preference state management
	Concurrency          string        // none, mutex or optimistic
	RecommendationPolicy string        // window or digest
	RecommendationWindow time.Duration // default: 24h

	// Timeouts for external calls
	StoreTimeout    time.Duration // default: 5s
	LLMTimeout      time.Duration // default: 60s
	MetadataTimeout time.Duration // default: 15s

	// RecommendationRPS bounds recommendation requests per user per second.
	RecommendationRPS float64
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the configured LLM provider has what it needs to be called.
func (p *Profile) IsAIEnabled() bool {
	switch p.AILLMProvider {
	case "openai":
		return p.AIOpenAIAPIKey != ""
	case "deepseek":
		return p.AIDeepSeekKey != ""
	case "ollama":
		return p.AIOllamaBaseURL != ""
	default:
		return false
	}
}

// IsAdminEnabled returns true if the admin API has a secret to check against.
func (p *Profile) IsAdminEnabled() bool {
	return p.AdminSecret != ""
}

// IsMetadataEnabled returns true if IGDB credentials are configured.
func (p *Profile) IsMetadataEnabled() bool {
	return p.TwitchClientID != "" && (p.TwitchClientSecret != "" || p.TwitchAccessToken != "")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads provider credentials and tuning knobs from environment variables.
// Values already set on the profile (e.g. by flags) win over the environment.
func (p *Profile) FromEnv() {
	setString := func(target *string, key, defaultValue string) {
		if *target != "" {
			return
		}
		*target = getEnvOrDefault(key, defaultValue)
	}
	setDuration := func(target *time.Duration, key string, defaultValue time.Duration) {
		if *target != 0 {
			return
		}
		*target = defaultValue
		if raw := os.Getenv(key); raw != "" {
			if d, err := time.ParseDuration(raw); err == nil {
				*target = d
			} else {
				slog.Warn("ignoring invalid duration", slog.String("key", key), slog.String("value", raw))
			}
		}
	}

	setString(&p.AdminSecret, "GAMELOGD_ADMIN_SECRET", "")
	setString(&p.RedisAddr, "GAMELOGD_REDIS_ADDR", "localhost:6379")
	setString(&p.RedisPassword, "GAMELOGD_REDIS_PASSWORD", "")
	if p.RedisDB == 0 {
		if db, err := strconv.Atoi(os.Getenv("GAMELOGD_REDIS_DB")); err == nil {
			p.RedisDB = db
		}
	}

	setString(&p.AILLMProvider, "GAMELOGD_AI_LLM_PROVIDER", "openai")
	setString(&p.AILLMModel, "GAMELOGD_AI_LLM_MODEL", "gpt-4o-mini")
	setString(&p.AIOpenAIAPIKey, "GAMELOGD_AI_OPENAI_API_KEY", "")
	setString(&p.AIOpenAIBaseURL, "GAMELOGD_AI_OPENAI_BASE_URL", "https://api.openai.com/v1")
	setString(&p.AIDeepSeekKey, "GAMELOGD_AI_DEEPSEEK_API_KEY", "")
	setString(&p.AIDeepSeekURL, "GAMELOGD_AI_DEEPSEEK_BASE_URL", "https://api.deepseek.com")
	setString(&p.AIOllamaBaseURL, "GAMELOGD_AI_OLLAMA_BASE_URL", "http://localhost:11434/v1")

	setString(&p.TwitchClientID, "GAMELOGD_TWITCH_CLIENT_ID", "")
	setString(&p.TwitchClientSecret, "GAMELOGD_TWITCH_CLIENT_SECRET", "")
	setString(&p.TwitchAccessToken, "GAMELOGD_TWITCH_ACCESS_TOKEN", "")
	setString(&p.IGDBBaseURL, "GAMELOGD_IGDB_BASE_URL", "https://api.igdb.com/v4")

	setString(&p.Concurrency, "GAMELOGD_CONCURRENCY", ConcurrencyMutex)
	setString(&p.RecommendationPolicy, "GAMELOGD_RECOMMENDATION_POLICY", RecommendationPolicyWindow)
	setDuration(&p.RecommendationWindow, "GAMELOGD_RECOMMENDATION_WINDOW", 24*time.Hour)

	setDuration(&p.StoreTimeout, "GAMELOGD_STORE_TIMEOUT", 5*time.Second)
	setDuration(&p.LLMTimeout, "GAMELOGD_LLM_TIMEOUT", 60*time.Second)
	setDuration(&p.MetadataTimeout, "GAMELOGD_METADATA_TIMEOUT", 15*time.Second)

	if p.RecommendationRPS == 0 {
		p.RecommendationRPS = 1
		if raw := os.Getenv("GAMELOGD_RECOMMENDATION_RPS"); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
				p.RecommendationRPS = v
			}
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	switch p.Driver {
	case "":
		p.Driver = DriverSQLite
	case DriverMemory, DriverSQLite, DriverPostgres, DriverBadger, DriverRedis:
	default:
		return errors.Errorf("unknown driver %q", p.Driver)
	}

	switch p.Concurrency {
	case "":
		p.Concurrency = ConcurrencyMutex
	case ConcurrencyNone, ConcurrencyMutex, ConcurrencyOptimistic:
	default:
		return errors.Errorf("unknown concurrency strategy %q", p.Concurrency)
	}

	switch p.RecommendationPolicy {
	case "":
		p.RecommendationPolicy = RecommendationPolicyWindow
	case RecommendationPolicyWindow, RecommendationPolicyDigest:
	default:
		return errors.Errorf("unknown recommendation policy %q", p.RecommendationPolicy)
	}
	if p.RecommendationWindow <= 0 {
		p.RecommendationWindow = 24 * time.Hour
	}

	if p.Mode == "prod" && p.Secret == "" {
		return errors.New("secret is required in prod mode")
	}

	if p.Driver == DriverPostgres && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}
	// Only sqlite and badger keep files under the data directory.
	if p.Driver == DriverMemory || p.Driver == DriverRedis || p.Driver == DriverPostgres {
		return nil
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "gamelogd")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/gamelogd"
		}
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.DSN == "" {
		switch p.Driver {
		case DriverSQLite:
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("gamelogd_%s.db", p.Mode))
		case DriverBadger:
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("gamelogd_%s.badger", p.Mode))
		}
	}

	return nil
}
