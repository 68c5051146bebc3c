package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config is the process configuration read from the environment.
type Config struct {
	DatabaseURL    string
	DBMaxConns     int32
	ServerPort     string
	AllowedOrigins string
	LogLevel       string

	// RedisAddress enables distributed locks. Empty means in-process locks.
	RedisAddress string
	LockTTL      time.Duration

	// PubSubProjectID enables Pub/Sub notifications. Empty means events are only logged.
	PubSubProjectID       string
	PubSubTopic           string
	PubSubCredentialsJSON string

	SystemTag    string
	InvoiceStart int64
	// SharedAgents maps alias agent ids to the canonical id they aggregate under.
	SharedAgents map[uuid.UUID]uuid.UUID
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		AllowedOrigins:        os.Getenv("ALLOWED_ORIGINS"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		RedisAddress:          os.Getenv("REDIS_ADDRESS"),
		LockTTL:               30 * time.Second,
		PubSubProjectID:       pubSubProjectID(),
		PubSubTopic:           getEnv("PUBSUB_TOPIC", "sales-ledger-events"),
		PubSubCredentialsJSON: os.Getenv("PUBSUB_CREDENTIALS_JSON"),
		SystemTag:             getEnv("SYSTEM_TAG", "S/R"),
		InvoiceStart:          1,
	}

	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid DB_MAX_CONNS %q", v)
		}
		cfg.DBMaxConns = int32(n)
	}

	if v := os.Getenv("INVOICE_START"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid INVOICE_START %q", v)
		}
		cfg.InvoiceStart = n
	}

	if v := os.Getenv("LOCK_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid LOCK_TTL %q", v)
		}
		cfg.LockTTL = d
	}

	aliases, err := ParseSharedAgents(os.Getenv("SHARED_AGENTS"))
	if err != nil {
		return nil, err
	}
	cfg.SharedAgents = aliases

	return cfg, nil
}

// ParseSharedAgents parses a comma separated list of alias=canonical agent id pairs.
func ParseSharedAgents(raw string) (map[uuid.UUID]uuid.UUID, error) {
	aliases := map[uuid.UUID]uuid.UUID{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		alias, canonical, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid SHARED_AGENTS entry %q: expected alias=canonical", pair)
		}
		a, err := uuid.Parse(strings.TrimSpace(alias))
		if err != nil {
			return nil, fmt.Errorf("invalid SHARED_AGENTS alias %q: %w", alias, err)
		}
		c, err := uuid.Parse(strings.TrimSpace(canonical))
		if err != nil {
			return nil, fmt.Errorf("invalid SHARED_AGENTS canonical id %q: %w", canonical, err)
		}
		aliases[a] = c
	}
	return aliases, nil
}

func pubSubProjectID() string {
	// Prefer explicit override, then the variables Cloud Run sets.
	for _, key := range []string{"PUBSUB_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "GCP_PROJECT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
