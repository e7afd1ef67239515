package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AffDk/spy-server/internal/config"
	"github.com/AffDk/spy-server/internal/httpapi"
	"github.com/AffDk/spy-server/internal/hub"
	"github.com/AffDk/spy-server/internal/words"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	pool, err := words.Load(cfg.WordsFile, logger.Named("words"))
	if err != nil {
		logger.Fatal("loading word pool", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, pool, logger.Named("hub"))

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, pool, cfg.PublicURL, cfg.StaticDir, logger)
	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		// Live word-file reloads are best effort; losing the watcher must
		// not take the server down.
		if err := pool.Watch(gctx); err != nil {
			logger.Warn("word file watcher unavailable", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("shut down cleanly")
}
