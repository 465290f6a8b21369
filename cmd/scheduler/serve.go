package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reservation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), state.cfg, state.logger)
			if err != nil {
				state.logger.Error("failed to start", "error", err)
				return err
			}
			defer func() {
				if cerr := a.Close(); cerr != nil {
					state.logger.Error("failed to release resources", "error", cerr)
				}
			}()

			server := &http.Server{
				Addr:              state.cfg.Addr(),
				Handler:           a.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			return serve(cmd.Context(), server, a)
		},
	}
}

// serve runs server until ctx is canceled or the listener fails.
func serve(ctx context.Context, server *http.Server, a *app) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("scheduler API listening",
			"addr", server.Addr,
			"store", a.cfg.StoreDriver,
			"lock", a.cfg.LockBackend,
			"timezone", a.cfg.Timezone,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("server encountered error", "error", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("failed to shutdown server", "error", err)
			return err
		}
		return nil
	})
	return g.Wait()
}
