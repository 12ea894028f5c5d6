package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/operator-board/internal/httpapi"
	"github.com/DoyleJ11/operator-board/internal/hub"
	"github.com/DoyleJ11/operator-board/internal/release"
	"github.com/DoyleJ11/operator-board/internal/roster"
	"github.com/DoyleJ11/operator-board/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	Long: `Starts the server on the configured address. The roster and release
version load in the background; until the roster arrives it is served empty.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer kv.Close()

	holder := roster.NewHolder(nil)
	h := hub.NewHub(context.Background(), kv, holder, hub.Options{
		KeepProfile: cfg.DefaultProfile,
		IdleTimeout: cfg.SessionIdleTimeout,
	}, logger)
	defer h.Stop()

	api := httpapi.NewServer(h, holder, httpapi.Options{
		LetterMode:     cfg.Letters(),
		DefaultProfile: cfg.DefaultProfile,
		StaticDir:      cfg.StaticDir,
	}, logger)

	// Restore the default profile before accepting traffic.
	if s := h.Ensure(ctx, cfg.DefaultProfile); s == nil {
		return ctx.Err()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(api),
		ReadHeaderTimeout: 10 * time.Second,
	}
	client := &http.Client{Timeout: cfg.FetchTimeout}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		idx, err := roster.Load(gctx, client, cfg.RosterSource)
		if err != nil {
			// The picker and browser stay empty; the board still works.
			logger.Error("roster unavailable", zap.String("source", cfg.RosterSource), zap.Error(err))
			return nil
		}
		holder.Set(idx)
		logger.Info("roster loaded", zap.Int("operators", idx.Len()))
		return nil
	})
	g.Go(func() error {
		api.SetVersion(release.LoadVersion(gctx, client, cfg.ConfigSource, logger))
		return nil
	})
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
