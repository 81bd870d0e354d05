package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleamarket/chat-service/config"
	"github.com/fleamarket/chat-service/internal/cache"
	"github.com/fleamarket/chat-service/internal/postgres"
	"github.com/fleamarket/chat-service/internal/service"
	httpx "github.com/fleamarket/chat-service/internal/transport/http"
	"github.com/fleamarket/chat-service/internal/transport/ws"
	"github.com/fleamarket/chat-service/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	// --- config ---
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not loaded: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	// --- redis (опционально, кеш справочника пользователей) ---
	var dirCache cache.Cache
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rc.Close()
		dirCache = rc
	}

	// --- repos ---
	roomRepo := postgres.NewRoomRepository(db.Pool)
	msgRepo := postgres.NewMessageRepository(db.Pool)
	userRepo := postgres.NewUserRepository(db.Pool)

	// --- services ---
	directory := service.NewDirectoryService(userRepo, dirCache, cfg.RedisTTL())
	roomSvc := service.NewRoomService(roomRepo)
	unreadSvc := service.NewUnreadService(roomSvc, roomRepo, msgRepo)
	chatSvc := service.NewChatService(roomSvc, unreadSvc, roomRepo, msgRepo, directory)

	// --- WS Hub & Server ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, roomSvc, unreadSvc, chatSvc, directory)

	// --- HTTP ---
	handler := httpx.NewHandler(roomSvc, unreadSvc, chatSvc, wsServer)
	router := httpx.NewRouter(handler, wsServer, cfg.HTTP.AllowedOrigins)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
