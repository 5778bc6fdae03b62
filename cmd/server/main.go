/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Load configuration (viper, cmd/server/config.go)
  2. Configure the global zerolog logger
  3. Initialize the SQLite store and seed default settings
  4. Wire the forecast scheduler (cron) and the optional Redis cache
  5. Configure the HTTP router and start serving
  6. On SIGINT/SIGTERM, stop the scheduler, drain requests, close the store

Grounded on the teacher's cmd/server/main.go startup/shutdown sequence;
flags are replaced by viper-sourced Config per the ambient stack.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finflow/cashflow-engine/api"
	"github.com/finflow/cashflow-engine/forecast"
	"github.com/finflow/cashflow-engine/ledger"
	"github.com/finflow/cashflow-engine/query"
	"github.com/finflow/cashflow-engine/store/sqlite"
)

func main() {
	cfg := loadConfig()
	configureLogger(cfg.LogLevel)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.SetSetting(ctx, ledger.SettingForecastHorizonMonths, fmt.Sprint(cfg.ForecastHorizon)); err != nil {
		log.Warn().Err(err).Msg("failed to seed forecast horizon setting")
	}

	cache := query.NewCache(newRedisClient(cfg.RedisURL))

	scheduler := forecast.NewScheduler(store)
	scheduler.Spec = cfg.RolloverCron
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start forecast scheduler")
	}
	defer scheduler.Stop()

	handler := api.NewHandler(store, scheduler, cache)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func configureLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
}

// newRedisClient returns nil when redisURL is empty, which leaves
// query.Cache disabled rather than failing startup — the running
// balance projection still works, just uncached (spec.md's Redis
// dependency is an optimization, not a hard requirement).
func newRedisClient(redisURL string) *redis.Client {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("invalid REDIS_URL, caching disabled")
		return nil
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, caching disabled")
		return nil
	}
	return client
}
