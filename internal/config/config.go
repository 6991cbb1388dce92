package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DecrementModeSequential = "sequential"
	DecrementModeAtomic     = "atomic"
)

type Config struct {
	Port               string
	AllowedOrigin      string
	DatabaseURL        string
	DatabaseMigrate    bool
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	BOMCacheTTLSeconds int
	AMQPURL            string
	OrderEventsQueue   string
	DecrementMode      string
}

// Load reads the environment, after loading a .env file from the working
// directory when one exists. Variables already set win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] WARN: .env not loaded: %v", err)
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("BOM_CACHE_TTL_SECONDS", "300"))
	if err != nil || ttl < 1 {
		ttl = 300
	}
	migrate, err := strconv.ParseBool(getEnv("DATABASE_MIGRATE", "false"))
	if err != nil {
		migrate = false
	}

	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		AllowedOrigin:      getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DatabaseMigrate:    migrate,
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,
		BOMCacheTTLSeconds: ttl,
		AMQPURL:            strings.TrimSpace(os.Getenv("AMQP_URL")),
		OrderEventsQueue:   getEnv("ORDER_EVENTS_QUEUE", "order.completed"),
		DecrementMode:      strings.ToLower(strings.TrimSpace(getEnv("STOCK_DECREMENT_MODE", DecrementModeSequential))),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
