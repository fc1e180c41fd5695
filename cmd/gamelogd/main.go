package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/gamelogd/internal/profile"
	"github.com/hrygo/gamelogd/server"
	"github.com/hrygo/gamelogd/store"
	"github.com/hrygo/gamelogd/store/db"
)

// version is set at build time.
var version = "dev"

var (
	rootCmd = &cobra.Command{
		Use:   "gamelogd",
		Short: `A game log service: rate the games you played and get recommendations for the next one.`,
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile := &profile.Profile{
				Mode:                 viper.GetString("mode"),
				Addr:                 viper.GetString("addr"),
				Port:                 viper.GetInt("port"),
				Data:                 viper.GetString("data"),
				Driver:               viper.GetString("driver"),
				DSN:                  viper.GetString("dsn"),
				Secret:               viper.GetString("secret"),
				AdminSecret:          viper.GetString("admin-secret"),
				Version:              version,
				RedisAddr:            viper.GetString("redis-addr"),
				AILLMProvider:        viper.GetString("llm-provider"),
				AILLMModel:           viper.GetString("llm-model"),
				Concurrency:          viper.GetString("concurrency"),
				RecommendationPolicy: viper.GetString("recommendation-policy"),
				RecommendationWindow: viper.GetDuration("recommendation-window"),
				RecommendationRPS:    viper.GetFloat64("recommendation-rps"),
			}
			instanceProfile.FromEnv()
			if err := instanceProfile.Validate(); err != nil {
				slog.Error("invalid configuration", slog.String("error", err.Error()))
				os.Exit(1)
			}
			setupLogger(instanceProfile)

			ctx, cancel := context.WithCancel(context.Background())
			dbDriver, err := db.NewDBDriver(instanceProfile)
			if err != nil {
				cancel()
				slog.Error("failed to create db driver", slog.String("error", err.Error()))
				return
			}

			storeInstance := store.New(dbDriver, instanceProfile)
			if err := storeInstance.Ping(ctx); err != nil {
				cancel()
				slog.Error("failed to reach the store", slog.String("error", err.Error()))
				return
			}

			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				cancel()
				slog.Error("failed to create server", slog.String("error", err.Error()))
				return
			}

			c := make(chan os.Signal, 1)
			// Trigger graceful shutdown on SIGINT or SIGTERM.
			// The default signal sent by the `kill` command is SIGTERM,
			// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)

			go func() {
				if err := s.Start(ctx); err != nil {
					slog.Error("failed to start server", slog.String("error", err.Error()))
				}
				cancel()
			}()

			printGreetings(instanceProfile)

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			// Wait for CTRL-C.
			<-ctx.Done()
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", profile.DriverSQLite)
	viper.SetDefault("port", 8081)
	viper.SetDefault("concurrency", profile.ConcurrencyMutex)
	viper.SetDefault("recommendation-policy", profile.RecommendationPolicyWindow)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", profile.DriverSQLite, "storage driver: memory, sqlite, postgres, badger or redis")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().String("secret", "", "secret used to sign login tokens")
	rootCmd.PersistentFlags().String("admin-secret", "", "bearer token of the admin API, disabled when empty")
	rootCmd.PersistentFlags().String("redis-addr", "", "redis address for the redis driver")
	rootCmd.PersistentFlags().String("llm-provider", "", "LLM provider: openai, deepseek or ollama")
	rootCmd.PersistentFlags().String("llm-model", "", "LLM model used for recommendations")
	rootCmd.PersistentFlags().String("concurrency", profile.ConcurrencyMutex, "preference update strategy: none, mutex or optimistic")
	rootCmd.PersistentFlags().String("recommendation-policy", profile.RecommendationPolicyWindow, "recommendation freshness policy: window or digest")
	rootCmd.PersistentFlags().Duration("recommendation-window", 0, "how long generated recommendations are served from cache (default 24h)")
	rootCmd.PersistentFlags().Float64("recommendation-rps", 0, "recommendation requests per second allowed per user (default 1)")

	for _, name := range []string{
		"mode", "addr", "port", "data", "driver", "dsn", "secret", "admin-secret", "redis-addr",
		"llm-provider", "llm-model", "concurrency", "recommendation-policy",
		"recommendation-window", "recommendation-rps",
	} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("gamelogd")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setupLogger(p *profile.Profile) {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, options)
	if p.Mode == "prod" {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	slog.SetDefault(slog.New(handler))
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("gamelogd %s started successfully!\n", profile.Version)
	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}
	fmt.Printf("Driver: %s\n", profile.Driver)
	fmt.Printf("Server running on port %d\n", profile.Port)
	fmt.Printf("Access your game log at: http://localhost:%d\n", profile.Port)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
