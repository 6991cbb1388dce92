package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chemdist/backend/internal/cache"
	"chemdist/backend/internal/config"
	"chemdist/backend/internal/events"
	"chemdist/backend/internal/httpapi"
	"chemdist/backend/internal/inventory"
	"chemdist/backend/internal/service"
	"chemdist/backend/internal/store"
	"chemdist/backend/internal/store/memory"
	pgstore "chemdist/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if cfg.DatabaseMigrate {
			if err := pg.Migrate(ctx); err != nil {
				log.Fatalf("migration failed: %v", err)
			}
			log.Println("repository: schema migrated")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	bomCache := cache.BOMCache(cache.NoopBOMCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisBOMCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
			_ = redisCache.Close()
		} else {
			bomCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	stockStore := cache.NewCachedStockStore(repo, bomCache, time.Duration(cfg.BOMCacheTTLSeconds)*time.Second)
	var opts []inventory.Option
	if cfg.DecrementMode == config.DecrementModeAtomic {
		opts = append(opts, inventory.WithAtomicUpdates())
	}
	log.Printf("stock decrement mode: %s", cfg.DecrementMode)

	svc := service.New(repo, inventory.NewDecrementer(stockStore, opts...))
	api := httpapi.New(svc, repo, cfg.AllowedOrigin)

	runCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if cfg.AMQPURL != "" {
		consumer, err := events.Dial(cfg.AMQPURL, cfg.OrderEventsQueue, svc)
		if err != nil {
			log.Printf("rabbitmq unavailable (%v), order events disabled", err)
		} else {
			closers = append(closers, consumer.Close)
			go func() {
				if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("[events] consumer stopped: %v", err)
				}
			}()
		}
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("stock backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	stopConsumer()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateConfig(cfg config.Config) error {
	switch cfg.DecrementMode {
	case config.DecrementModeSequential, config.DecrementModeAtomic:
	default:
		return fmt.Errorf("STOCK_DECREMENT_MODE must be %q or %q, got %q",
			config.DecrementModeSequential, config.DecrementModeAtomic, cfg.DecrementMode)
	}
	if cfg.AMQPURL != "" && cfg.OrderEventsQueue == "" {
		return fmt.Errorf("ORDER_EVENTS_QUEUE must be set when AMQP_URL is set")
	}
	if cfg.DatabaseMigrate && cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_MIGRATE requires DATABASE_URL")
	}
	return nil
}
