package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vapetrack/backend/internal/config"
	"vapetrack/backend/internal/events"
	"vapetrack/backend/internal/httpapi"
	"vapetrack/backend/internal/service"
	"vapetrack/backend/internal/session"
	"vapetrack/backend/internal/store"
	"vapetrack/backend/internal/store/memory"
	pgstore "vapetrack/backend/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv: %v", err)
	}

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var provider store.Provider
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		provider = pg
		closers = append(closers, func() error { pg.Close(); return nil })
		log.Println("store: postgres")
	} else {
		provider = memory.NewSeeded()
		log.Println("store: in-memory")
	}

	var registry session.Registry = session.NewMemoryRegistry()
	if cfg.RedisAddr != "" {
		redisRegistry := session.NewRedisRegistry(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisRegistry.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), sessions are in-memory and will not survive a restart", err)
		} else {
			registry = redisRegistry
			closers = append(closers, redisRegistry.Close)
			log.Println("session registry: redis")
		}
	} else {
		log.Println("session registry: in-memory")
	}

	hub := events.NewHub()
	if err := hub.SubscribeSaleCompleted(func(ev events.SaleCompleted) {
		log.Printf("[events] sale %s: %d item(s), %d total", ev.CheckoutID, len(ev.Transactions), ev.TotalAmount)
	}); err != nil {
		log.Printf("subscribe sale events: %v", err)
	}
	if err := hub.SubscribeSessionEnded(func(ev events.SessionEnded) {
		log.Printf("[events] session %s closed, report %s", ev.Session.ID, ev.ReportID)
	}); err != nil {
		log.Printf("subscribe session events: %v", err)
	}

	svc := service.New(provider, registry, hub)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, provider)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("vapetrack backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	hub.Wait()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// validateSecurityConfig requires a real signing secret whenever the server
// runs against durable storage. The in-memory dev mode may run without one;
// the AuthManager falls back to a dev secret and the seeded accounts warn.
func validateSecurityConfig(cfg config.Config) error {
	if cfg.DatabaseURL == "" && cfg.AuthSecret == "" {
		log.Println("WARNING: AUTH_SECRET not set, using dev signing secret")
		return nil
	}
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
