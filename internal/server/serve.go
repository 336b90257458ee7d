package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Run starts the HTTP server and blocks until it fails or the process
// receives SIGINT or SIGTERM. On a signal, in-flight requests get the
// shutdown timeout to drain, then the shutdown hooks run under the same
// deadline.
func Run(srv *http.Server, shutdownTimeout time.Duration, hooks *ShutdownHooks) error {
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serverErr <- err
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serverErr:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutdown requested")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("connection drain incomplete")
	}

	hooks.Execute(ctx)

	return <-serverErr
}
