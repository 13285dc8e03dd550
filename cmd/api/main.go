package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adminhub.org/internal/auth"
	"adminhub.org/internal/config"
	"adminhub.org/internal/httpapi"
	"adminhub.org/internal/obs"
	"adminhub.org/internal/policy"
	"adminhub.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()

	cfg := config.Load()

	store, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	authSvc, err := auth.NewService(store, auth.WithTokenTTL(cfg.TokenTTL))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	graph, err := auth.NewGraphService(store)
	if err != nil {
		log.Fatalf("graph service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := graph.EnsureBuiltins(ctx); err != nil {
		cancel()
		log.Fatalf("ensure builtin permissions: %v", err)
	}
	if cfg.BootstrapLogin != "" && cfg.BootstrapPassword != "" {
		if err := graph.Bootstrap(ctx, policy.RoleSuperadmin, cfg.BootstrapLogin, cfg.BootstrapPassword); err != nil {
			cancel()
			log.Fatalf("bootstrap superadmin: %v", err)
		}
	}
	cancel()

	api := httpapi.New(authSvc, graph, httpapi.ReadyProbe{DB: store.DB()}, httpapi.Options{
		RateBurst:    cfg.RateBurst,
		RatePerSec:   cfg.RatePerSec,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}, version)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting adminhub-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = store.Close()
	log.Println("Stopped")
}
