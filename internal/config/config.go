package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBFile           string
	APIAddr          string
	HistoryLimit     int
	ReactionCap      int
	RetentionCron    string
	RetentionMaxAge  time.Duration
	RetentionMaxRows int
	// ProfileUsernameFallback enables matching profile rows by username when
	// the userId matches nothing. Inherited behavior; two users sharing a
	// username will be merged when enabled.
	ProfileUsernameFallback bool
	GroupName               string
	GroupDescription        string
}

func Load() (*Config, error) {
	// Optional .env next to the binary; absence is fine.
	_ = godotenv.Load()

	maxAge, err := time.ParseDuration(getEnv("RETENTION_MAX_AGE", "168h"))
	if err != nil {
		return nil, fmt.Errorf("RETENTION_MAX_AGE: %w", err)
	}

	historyLimit, err := getEnvInt("HISTORY_LIMIT", 100)
	if err != nil {
		return nil, err
	}
	reactionCap, err := getEnvInt("REACTION_CAP", 20)
	if err != nil {
		return nil, err
	}
	maxRows, err := getEnvInt("RETENTION_MAX_ROWS", 200)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBFile:                  getEnv("PALABRE_DB", "palabre.db"),
		APIAddr:                 getEnv("API_ADDR", ":8080"),
		HistoryLimit:            historyLimit,
		ReactionCap:             reactionCap,
		RetentionCron:           getEnv("RETENTION_CRON", "0 * * * *"),
		RetentionMaxAge:         maxAge,
		RetentionMaxRows:        maxRows,
		ProfileUsernameFallback: getEnv("PROFILE_USERNAME_FALLBACK", "true") == "true",
		GroupName:               getEnv("GROUP_NAME", "Général"),
		GroupDescription:        getEnv("GROUP_DESCRIPTION", "Bienvenue dans le groupe général !"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be greater than 0")
	}
	if c.ReactionCap <= 0 {
		return fmt.Errorf("REACTION_CAP must be greater than 0")
	}
	if c.RetentionMaxAge <= 0 {
		return fmt.Errorf("RETENTION_MAX_AGE must be greater than 0")
	}
	if c.RetentionMaxRows <= 0 {
		return fmt.Errorf("RETENTION_MAX_ROWS must be greater than 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
