package config

import (
	"os"
	"strconv"
	"time"
)

type LedgerConfig struct {
	MaxRetries        int
	RetryBackoff      time.Duration
	StorageTimeout    time.Duration
	TreasuryEmail     string
	TransferRateLimit int
	RateLimitWindow   time.Duration
	HistoryLimit      int
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		MaxRetries:        getEnvAsInt("LEDGER_MAX_RETRIES", 3),
		RetryBackoff:      getEnvAsDuration("LEDGER_RETRY_BACKOFF", 50*time.Millisecond),
		StorageTimeout:    getEnvAsDuration("LEDGER_STORAGE_TIMEOUT", 5*time.Second),
		TreasuryEmail:     getEnv("TREASURY_EMAIL", "treasury@vandehoeken.gov"),
		TransferRateLimit: getEnvAsInt("TRANSFER_RATE_LIMIT", 10),
		RateLimitWindow:   getEnvAsDuration("TRANSFER_RATE_WINDOW", 1*time.Hour),
		HistoryLimit:      getEnvAsInt("LEDGER_HISTORY_LIMIT", 50),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
