package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("BOM_CACHE_TTL_SECONDS", "")
	t.Setenv("STOCK_DECREMENT_MODE", "")
	t.Setenv("ORDER_EVENTS_QUEUE", "")

	cfg := Load()

	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 300, cfg.BOMCacheTTLSeconds)
	assert.Equal(t, DecrementModeSequential, cfg.DecrementMode)
	assert.Equal(t, "order.completed", cfg.OrderEventsQueue)
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("BOM_CACHE_TTL_SECONDS", "-5")
	t.Setenv("DATABASE_MIGRATE", "maybe")
	t.Setenv("STOCK_DECREMENT_MODE", " Atomic ")

	cfg := Load()

	assert.Equal(t, 300, cfg.BOMCacheTTLSeconds)
	assert.False(t, cfg.DatabaseMigrate, "unparsable DATABASE_MIGRATE disables migration")
	assert.Equal(t, DecrementModeAtomic, cfg.DecrementMode)
}
