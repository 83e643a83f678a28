package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_ADDR", "")
	t.Setenv("AFFILIATE_COOKIE_DAYS", "")
	t.Setenv("RECONCILE_SESSION_LIMIT", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, 60, cfg.AffiliateCookieDays)
	assert.Equal(t, 100, cfg.ReconcileSessionLimit)
	assert.Equal(t, 60*24*time.Hour, cfg.AffiliateCookieMaxAge())
	assert.Equal(t, 30*24*time.Hour, cfg.ReconcileLookback())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RECONCILE_LOOKBACK_DAYS", "7")
	t.Setenv("CONFIG_LOCK_TTL", "3s")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("JWT_EXPIRY_HOURS", "not-a-number")
	t.Setenv("APP_URL", "https://app.example.com/")

	cfg := Load()
	assert.Equal(t, 7*24*time.Hour, cfg.ReconcileLookback())
	assert.Equal(t, 3*time.Second, cfg.ConfigLockTTL)
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, 168, cfg.JWTExpiryHours)
	assert.Equal(t, "https://app.example.com", cfg.AppURL)
}

func TestStripePriceFor(t *testing.T) {
	t.Setenv("STRIPE_PRICE_PROFESSIONAL_MONTHLY", "price_pro_m")
	t.Setenv("STRIPE_PRICE_ENTERPRISE_YEARLY", "")

	cfg := Load()
	price, ok := cfg.StripePriceFor("professional", "monthly")
	assert.True(t, ok)
	assert.Equal(t, "price_pro_m", price)

	_, ok = cfg.StripePriceFor("enterprise", "yearly")
	assert.False(t, ok)
	_, ok = cfg.StripePriceFor("free", "monthly")
	assert.False(t, ok)
}

func TestStoreDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	assert.False(t, Load().InMemoryStore())

	t.Setenv("STORE_DRIVER", "Memory")
	assert.True(t, Load().InMemoryStore())
}
