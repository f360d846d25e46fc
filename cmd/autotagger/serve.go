package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aadesh/autotagger/internal/api"
	"github.com/aadesh/autotagger/internal/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept events over HTTP",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.flush()
	defer a.watch()()

	cfg := a.loader.Config()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng := engine.New(ctx, a.dispatcher, cfg.Engine)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.New(eng, a.loader, a.log.Named("http")),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.Engine.DispatchTimeoutMs)*time.Millisecond + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		a.log.Info("server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errC:
		return err
	}
	a.log.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	eng.Shutdown()
	a.log.Info("goodbye")
	return nil
}
