package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mindease/backend/internal/auth"
	"github.com/mindease/backend/internal/config"
	"github.com/mindease/backend/internal/handler"
	"github.com/mindease/backend/internal/service/llm"
	profileService "github.com/mindease/backend/internal/service/profile"
	sessionService "github.com/mindease/backend/internal/service/session"
	trackingService "github.com/mindease/backend/internal/service/tracking"
	"github.com/mindease/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	records, err := newRecordStore(cfg.Store)
	if err != nil {
		log.Fatalf("failed to initialize record store: %v", err)
	}

	profiles := profileService.NewService(records)
	tracking := trackingService.NewService(records, profiles)

	client := llm.NewClient(cfg.Chat.RequestTimeout(), cfg.Chat.SystemPrompt)
	fallback := llm.NewFallbackResponder()
	sessions := sessionService.NewRegistry(client, func() *llm.FailoverPolicy {
		return llm.NewFailoverPolicy(cfg.Chat.PrimaryURL, cfg.Chat.SecondaryURL, cfg.Chat.RetryDelay())
	}, fallback)

	tokens := auth.NewManager(cfg.Auth.Secret, cfg.Auth.TokenTTL())

	router := handler.NewRouter(profiles, tracking, sessions, tokens)
	startServer(ctx, cfg.Server, router)
}

func newRecordStore(cfg config.StoreConfig) (store.RecordStore, error) {
	switch cfg.Backend {
	case "redis":
		log.Printf("using redis record store at %s", cfg.RedisAddr)
		return store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword), nil
	case "memory":
		log.Println("using in-memory record store, data will not survive a restart")
		return store.NewMemoryStore(), nil
	default:
		log.Printf("using file record store under %s", cfg.DataDir)
		return store.NewFileStore(cfg.DataDir)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("MindEase backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
