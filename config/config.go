package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissing is returned when a required setting is absent.
var ErrMissing = errors.New("missing required setting")

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "openai/gpt-oss-20b"
	DefaultTable   = "Conversations"
	DefaultRegion  = "us-east-1"
)

type Config struct {
	Port        string
	GinMode     string
	LogLevel    string
	CORSOrigins []string

	Completion Completion
	Store      Store
	Chat       Chat
}

type Completion struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout of zero leaves the provider call unbounded.
	Timeout time.Duration
}

type Store struct {
	Driver string
	URI    string

	DynamoTable     string
	DynamoRegion    string
	DynamoEndpoint  string
	AccessKeyID     string
	SecretAccessKey string
}

type Chat struct {
	// HistoryLimit of zero sends the whole conversation.
	HistoryLimit     int
	SerializePerUser bool
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads an optional .env file into the process environment and
// builds the Config from it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds the Config from lookup. Only presence is checked for
// credentials and connection strings.
func FromLookup(lookup LookupFunc) (*Config, error) {
	env := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		Port:        env("PORT", "8080"),
		GinMode:     env("GIN_MODE", "release"),
		LogLevel:    env("LOG_LEVEL", "info"),
		CORSOrigins: splitList(env("CORS_ALLOW_ORIGINS", "*")),
		Completion: Completion{
			APIKey:  env("GROQ_API_KEY", env("OPENAI_API_KEY", "")),
			BaseURL: env("COMPLETION_BASE_URL", DefaultBaseURL),
			Model:   env("MODEL", DefaultModel),
		},
		Store: Store{
			Driver:          strings.ToLower(env("STORE_DRIVER", "dynamodb")),
			URI:             env("STORE_URI", env("MONGODB_URI", "")),
			DynamoTable:     env("DYNAMODB_TABLE", DefaultTable),
			DynamoRegion:    env("DYNAMODB_REGION", env("AWS_REGION", DefaultRegion)),
			DynamoEndpoint:  env("DYNAMODB_ENDPOINT", ""),
			AccessKeyID:     env("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: env("AWS_SECRET_ACCESS_KEY", ""),
		},
	}

	var err error
	if cfg.Completion.Timeout, err = parseDuration("COMPLETION_TIMEOUT", env("COMPLETION_TIMEOUT", "0")); err != nil {
		return nil, err
	}
	if cfg.Chat.HistoryLimit, err = strconv.Atoi(env("HISTORY_LIMIT", "0")); err != nil || cfg.Chat.HistoryLimit < 0 {
		return nil, fmt.Errorf("HISTORY_LIMIT: invalid value %q", env("HISTORY_LIMIT", "0"))
	}
	if cfg.Chat.SerializePerUser, err = strconv.ParseBool(env("SERIALIZE_PER_USER", "false")); err != nil {
		return nil, fmt.Errorf("SERIALIZE_PER_USER: %w", err)
	}

	if cfg.Completion.APIKey == "" {
		return nil, fmt.Errorf("%w: GROQ_API_KEY", ErrMissing)
	}
	switch cfg.Store.Driver {
	case "memory", "dynamodb":
	case "postgres", "sqlite", "pebble":
		if cfg.Store.URI == "" {
			return nil, fmt.Errorf("%w: STORE_URI for %s driver", ErrMissing, cfg.Store.Driver)
		}
	default:
		return nil, fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.Store.Driver)
	}

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func parseDuration(key, v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
