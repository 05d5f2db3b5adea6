package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("LEASEPACK_DATABASE_URL", "")
	t.Setenv("LEASEPACK_KAFKA_BROKERS", "")

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Database.URL)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.Equal(t, "documents", cfg.Storage.Bucket)
	assert.Equal(t, DefaultFulfillment(), cfg.Fulfillment)
	assert.False(t, cfg.Render.PDFEnabled)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LEASEPACK_ADDR", ":9090")
	t.Setenv("LEASEPACK_KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("LEASEPACK_STALE_AFTER", "90s")
	t.Setenv("LEASEPACK_UPLOAD_CONCURRENCY", "not-a-number")
	t.Setenv("LEASEPACK_SUBSCRIPTION_ENABLED", "true")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 90*time.Second, cfg.Fulfillment.StaleAfter)
	assert.Equal(t, 4, cfg.Fulfillment.UploadConcurrency, "unparseable values fall back")
	assert.True(t, cfg.Fulfillment.SubscriptionEnabled)
}
