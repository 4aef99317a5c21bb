package config_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/authcore/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, time.Hour, cfg.SessionTimeout)
	assert.Equal(t, 5, cfg.MaxLoginAttempts)
	assert.Equal(t, 15*time.Minute, cfg.LockoutWindow)
	assert.Equal(t, 10, cfg.RateLimitMax)
	assert.Equal(t, 5*time.Minute, cfg.RateLimitWindow)
	assert.EqualValues(t, 10<<20, cfg.LogMaxFileSize)
	assert.Equal(t, 30, cfg.LogRetentionDays)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AUTHCORE_ADDR", ":9000")
	t.Setenv("AUTHCORE_SESSION_TIMEOUT", "120")
	t.Setenv("AUTHCORE_MAX_LOGIN_ATTEMPTS", "3")
	t.Setenv("AUTHCORE_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 2*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 3, cfg.MaxLoginAttempts)
	require.Len(t, cfg.TrustedProxies, 2)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/8"), cfg.TrustedProxies[0])
	assert.Equal(t, netip.MustParsePrefix("192.0.2.1/32"), cfg.TrustedProxies[1])
}

func TestLoadRejectsBadProxy(t *testing.T) {
	t.Setenv("AUTHCORE_TRUSTED_PROXIES", "not-a-cidr")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadIgnoresUnparsableInt(t *testing.T) {
	t.Setenv("AUTHCORE_MAX_LOGIN_ATTEMPTS", "many")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxLoginAttempts)
}
