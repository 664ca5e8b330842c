package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.False(t, cfg.Booking.AllowBackToBack)
	assert.Equal(t, 5*time.Minute, cfg.Stats.CacheTTL)
	assert.True(t, cfg.Stats.Warmup)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "faculty-appointments:", cfg.Redis.KeyPrefix)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("BOOKING_ALLOW_BACK_TO_BACK", true)
	v.Set("STATS_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	cfg := fromViper(v)

	assert.True(t, cfg.Booking.AllowBackToBack)
	assert.Equal(t, 5*time.Minute, cfg.Stats.CacheTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}
