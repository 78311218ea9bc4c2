package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("COMPLETION_CLAIM_TTL", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 45*time.Second, cfg.CompletionClaimTTL)
	assert.Equal(t, 24*time.Hour, cfg.DedupeTTL)
	assert.False(t, cfg.AllowPartialCheckout)
	assert.False(t, cfg.CloudinaryEnabled())

	opts := cfg.ServiceOptions(nil)
	assert.Equal(t, 45*time.Second, opts.ClaimTTL)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}
