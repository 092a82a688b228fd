package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskhub.org/internal/auth"
	"taskhub.org/internal/config"
	"taskhub.org/internal/httpapi"
	"taskhub.org/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		store auth.Store
		probe httpapi.ReadyProbe
	)
	if cfg.PGDSN != "" {
		pg, err := auth.OpenPG(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pg.Close()
		store = pg
		probe = httpapi.ReadyProbe{DB: pg.DB()}
	} else {
		log.Println("TASKHUB_PG_DSN not set, using in-memory credential store")
		store = auth.NewInMemoryStore()
	}

	codec, err := auth.NewTokenCodec(cfg.AccessSecret, cfg.RefreshSecret,
		auth.WithIssuer(cfg.TokenIssuer),
		auth.WithAudience(cfg.TokenAudience),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	svc, err := auth.NewService(store, codec, auth.WithHasher(auth.NewHasher(cfg.BcryptCost)))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(probe, version, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("starting taskhub-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("stopped")
}
