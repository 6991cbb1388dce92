package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chemdist/backend/internal/config"
)

func TestValidateConfigRejectsUnknownDecrementMode(t *testing.T) {
	err := validateConfig(config.Config{DecrementMode: "parallel"})
	assert.Error(t, err)
}

func TestValidateConfigRejectsMigrateWithoutDatabase(t *testing.T) {
	err := validateConfig(config.Config{DecrementMode: config.DecrementModeSequential, DatabaseMigrate: true})
	assert.Error(t, err)
}

func TestValidateConfigRejectsQueueless(t *testing.T) {
	err := validateConfig(config.Config{DecrementMode: config.DecrementModeSequential, AMQPURL: "amqp://localhost"})
	assert.Error(t, err)
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	err := validateConfig(config.Config{DecrementMode: config.DecrementModeAtomic, OrderEventsQueue: "order.completed"})
	assert.NoError(t, err)
}
