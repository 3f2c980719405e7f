package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env         string
	Addr        string
	PublicURL   *url.URL
	DBDSN       string
	TokenSecret string
	SessionTTL  time.Duration
	LogLevel    string

	GoogleWebClientID string
	AppleServiceID    string

	FCMProjectID       string
	FCMCredentialsFile string

	ResultsMaxBatch  int
	ResultsOpHistory int
	ResultsLockWait  time.Duration
}

func Load() (Config, error) {
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:         getenv("APP_ENV"),
		Addr:        getenv("APP_ADDR"),
		DBDSN:       getenv("APP_DB_DSN"),
		LogLevel:    getenv("APP_LOG_LEVEL"),
		TokenSecret: getenv("APP_TOKEN_SECRET"),

		GoogleWebClientID: getenv("APP_GOOGLE_WEB_CLIENT_ID"),
		AppleServiceID:    getenv("APP_APPLE_SERVICE_ID"),

		FCMProjectID:       getenv("APP_FCM_PROJECT_ID"),
		FCMCredentialsFile: getenv("APP_FCM_CREDENTIALS_FILE"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	ttlRaw := getenv("APP_SESSION_TTL")
	if ttlRaw == "" {
		cfg.SessionTTL = 30 * 24 * time.Hour
	} else {
		ttl, err := time.ParseDuration(ttlRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_SESSION_TTL: %w", err)
		}
		if ttl <= 0 {
			return Config{}, errors.New("APP_SESSION_TTL: must be > 0")
		}
		cfg.SessionTTL = ttl
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	var err error
	if cfg.ResultsMaxBatch, err = parsePositiveInt(getenv, "APP_RESULTS_MAX_BATCH"); err != nil {
		return Config{}, err
	}
	if cfg.ResultsOpHistory, err = parsePositiveInt(getenv, "APP_RESULTS_OP_HISTORY"); err != nil {
		return Config{}, err
	}
	lockWaitRaw := getenv("APP_RESULTS_LOCK_WAIT")
	if lockWaitRaw != "" {
		wait, err := time.ParseDuration(lockWaitRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_RESULTS_LOCK_WAIT: %w", err)
		}
		if wait <= 0 {
			return Config{}, errors.New("APP_RESULTS_LOCK_WAIT: must be > 0")
		}
		cfg.ResultsLockWait = wait
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.TokenSecret) < 32 {
			return Config{}, errors.New("APP_TOKEN_SECRET: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func parsePositiveInt(getenv func(string) string, key string) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return n, nil
}
