package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/catalyst/backend/internal/config"
	"github.com/zhouzirui/catalyst/backend/internal/handler"
	"github.com/zhouzirui/catalyst/backend/internal/logging"
	"github.com/zhouzirui/catalyst/backend/internal/model/prompt"
	"github.com/zhouzirui/catalyst/backend/internal/service/ai"
	"github.com/zhouzirui/catalyst/backend/internal/service/chat"
	"github.com/zhouzirui/catalyst/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.For("main")

	if err := godotenv.Load(); err != nil {
		log.WithError(err).Warn("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	profiles, err := prompt.LoadFile(cfg.PromptsFile)
	if err != nil {
		log.WithError(err).Fatal("failed to load prompt profiles")
	}
	profileStore := prompt.NewMemoryStore(profiles)

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		log.WithError(err).WithField("backend", cfg.Store.Backend).Fatal("failed to open session store")
	}
	defer store.Close()

	var gateway ai.Gateway
	if cfg.AI.Enabled() {
		gw, err := ai.NewGateway(ctx, cfg.AI, profileStore)
		if err != nil {
			log.WithError(err).Warn("failed to initialize model gateway, continuing without chat and analysis")
		} else {
			gateway = gw
			log.WithField("provider", cfg.AI.Provider).Info("model gateway initialized")
		}
	} else {
		log.WithField("provider", cfg.AI.Provider).Warn("model credentials not configured, chat and analysis disabled")
	}

	chatService := chat.NewService(ctx, store, chat.Options{Greeting: prompt.Greeting(profileStore)})
	router := handler.NewRouter(profileStore, chatService, gateway)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	log := logging.For("main")
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.WithField("addr", serverCfg.Addr).Info("Catalyst backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.WithError(err).Fatal("server error")
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
