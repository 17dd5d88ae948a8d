package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/vkorchagin/agent-selector/internal/adapters/http"
	"github.com/vkorchagin/agent-selector/internal/bootstrap"
	"github.com/vkorchagin/agent-selector/internal/config"
	"github.com/vkorchagin/agent-selector/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logging.Setup("agent-selector", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	go func() {
		if err := app.Weights.Watch(ctx); err != nil {
			log.Printf("weights watcher error: %v", err)
		}
	}()

	router := httpadapter.NewRouter(app.Selector, app.Metrics.Handler(), cfg.APIRateLimitRPS, cfg.APIRateLimitBurst).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}
