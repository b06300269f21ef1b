package main

import (
	"context"
	"errors"
	"log"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"palabre/internal/config"
	"palabre/internal/http"
	"palabre/internal/profile"
	"palabre/internal/reactions"
	"palabre/internal/retention"
	"palabre/internal/rooms"
	"palabre/internal/storage"
	"palabre/internal/ws"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := storage.NewBboltStore(cfg.DBFile, storage.Options{
		GroupName:        cfg.GroupName,
		GroupDescription: cfg.GroupDescription,
	})
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	hub := ws.NewHub()
	dispatcher := ws.NewDispatcher(
		hub,
		store,
		profile.New(store, cfg.ProfileUsernameFallback),
		reactions.New(store, cfg.ReactionCap),
		rooms.New(),
		ws.DispatcherConfig{
			HistoryLimit: cfg.HistoryLimit,
			MaxRows:      cfg.RetentionMaxRows,
		},
	)

	apiServer := http.NewAPIServer(ws.NewServer(hub, dispatcher), cfg.APIAddr)

	sweeper, err := retention.New(store, retention.Config{
		Cron:    cfg.RetentionCron,
		MaxAge:  cfg.RetentionMaxAge,
		MaxRows: cfg.RetentionMaxRows,
	})
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return sweeper.Run(gCtx)
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
