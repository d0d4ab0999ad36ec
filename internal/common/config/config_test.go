package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "SESSION_TTL", "FRAME_INTERVAL", "REDIS_ADDR"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, time.Second/60, cfg.FrameInterval)
	assert.Empty(t, cfg.RedisAddr)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("ENV", "production")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SESSION_TTL", "2m")
	t.Setenv("ASSET_CACHE_TTL", "90")

	cfg := Load()
	assert.Equal(t, "8081", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 2*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 90*time.Second, cfg.AssetCacheTTL)
}

func TestGetEnvAsDurationFallsBack(t *testing.T) {
	t.Setenv("FRAME_INTERVAL", "soon")
	assert.Equal(t, time.Second, getEnvAsDuration("FRAME_INTERVAL", time.Second))

	t.Setenv("REDIS_DB", "x")
	assert.Equal(t, 7, getEnvAsInt("REDIS_DB", 7))
}
