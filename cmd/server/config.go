/*
config.go - Server configuration via viper

Grounded on wdfday-personalfinance-be's internal/config/config.go: a
single Config struct populated from an optional .env file plus
environment variables, env taking precedence. We do not carry over that
teacher's Database/Email/Auth sections — this engine only needs the
settings below.
*/
package main

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string
	DBPath            string
	ForecastHorizon   int
	RolloverCron      string
	RedisURL          string
	LogLevel          string
}

func loadConfig() Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DB_PATH", "cashflow.db")
	viper.SetDefault("FORECAST_HORIZON_MONTHS", 6)
	viper.SetDefault("ROLLOVER_CRON", "0 5 * * *")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("LOG_LEVEL", "info")

	_ = viper.ReadInConfig() // .env is optional; environment variables still apply

	return Config{
		Port:            viper.GetString("PORT"),
		DBPath:          viper.GetString("DB_PATH"),
		ForecastHorizon: viper.GetInt("FORECAST_HORIZON_MONTHS"),
		RolloverCron:    viper.GetString("ROLLOVER_CRON"),
		RedisURL:        viper.GetString("REDIS_URL"),
		LogLevel:        viper.GetString("LOG_LEVEL"),
	}
}
