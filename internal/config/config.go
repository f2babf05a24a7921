package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	DBUser          string
	DBPassword      string
	DBName          string
	DBHost          string
	DBPort          string
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	BotToken        string
	ReferralBonus   int64
	WithdrawMin     int64
	LeaderboardSize int
	CurrencyName    string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using system environment variables")
	}

	return &Config{
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPassword:      getEnv("DB_PASSWORD", "postgres"),
		DBName:          getEnv("DB_NAME", "referral_bot"),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          getEnv("DB_PORT", "5432"),
		RedisHost:       getEnv("REDIS_HOST", "localhost"),
		RedisPort:       getEnv("REDIS_PORT", "6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		ReferralBonus:   getEnvInt64("REFERRAL_BONUS", 2),
		WithdrawMin:     getEnvInt64("WITHDRAW_MIN", 100),
		LeaderboardSize: int(getEnvInt64("LEADERBOARD_SIZE", 10)),
		CurrencyName:    getEnv("CURRENCY_NAME", "Taka"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logrus.Warnf("Invalid value for %s, using default %d", key, fallback)
		return fallback
	}
	return parsed
}
