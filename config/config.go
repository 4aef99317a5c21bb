// Package config loads runtime configuration from the environment, with a
// best-effort .env file read first so local development does not need real
// environment variables. All knobs have working defaults; only DATABASE_URL
// changes which store backend the server runs on.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every runtime knob. Fields map 1:1 to AUTHCORE_* env vars
// (DATABASE_URL keeps its conventional name).
type Config struct {
	Addr        string
	DatabaseURL string
	DataDir     string
	LogDir      string

	SessionTimeout   time.Duration
	MaxLoginAttempts int
	LockoutWindow    time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration

	LogMaxFileSize   int64
	LogRetentionDays int

	CleanupInterval time.Duration

	TrustedProxies []netip.Prefix
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:             envString("AUTHCORE_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DataDir:          envString("AUTHCORE_DATA_DIR", "./data"),
		LogDir:           envString("AUTHCORE_LOG_DIR", "./logs"),
		SessionTimeout:   envSeconds("AUTHCORE_SESSION_TIMEOUT", 3600),
		MaxLoginAttempts: envInt("AUTHCORE_MAX_LOGIN_ATTEMPTS", 5),
		LockoutWindow:    envSeconds("AUTHCORE_LOCKOUT_WINDOW", 900),
		RateLimitMax:     envInt("AUTHCORE_RATE_LIMIT_MAX", 10),
		RateLimitWindow:  envSeconds("AUTHCORE_RATE_LIMIT_WINDOW", 300),
		LogMaxFileSize:   int64(envInt("AUTHCORE_LOG_MAX_SIZE", 10<<20)),
		LogRetentionDays: envInt("AUTHCORE_LOG_RETENTION_DAYS", 30),
		CleanupInterval:  envSeconds("AUTHCORE_CLEANUP_INTERVAL", 600),
	}

	proxies, err := parseProxies(os.Getenv("AUTHCORE_TRUSTED_PROXIES"))
	if err != nil {
		return Config{}, err
	}
	cfg.TrustedProxies = proxies
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

// parseProxies parses a comma-separated CIDR list. A bare IP is accepted as
// a single-address prefix.
func parseProxies(raw string) ([]netip.Prefix, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var prefixes []netip.Prefix
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "/") {
			addr, err := netip.ParseAddr(part)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", part, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(part)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", part, err)
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, nil
}
