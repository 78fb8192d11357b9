package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
)

// signalHandler processes incoming signals and shuts services down.
type signalHandler struct {
	logger *slog.Logger

	// signal is the channel to which OS signals are sent.
	signal chan os.Signal

	// services are shut down, in reverse registration order, before the
	// process exits.
	services []service.Interface
}

// newSignalHandler returns a new *signalHandler that listens for shutdown
// signals.
func newSignalHandler(logger *slog.Logger) (h *signalHandler) {
	h = &signalHandler{
		logger: logger,
		signal: make(chan os.Signal, 1),
	}

	signal.Notify(h.signal, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	return h
}

// add registers svc for shutdown.
func (h *signalHandler) add(svc service.Interface) {
	h.services = append(h.services, svc)
}

// handle blocks until a shutdown signal arrives, then shuts the registered
// services down and returns the status code the process should exit with.
func (h *signalHandler) handle(ctx context.Context) (status int) {
	sig := <-h.signal

	h.logger.InfoContext(ctx, "received signal", "signal", sig.String())

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	for i := len(h.services) - 1; i >= 0; i-- {
		err := h.services[i].Shutdown(ctx)
		if err != nil {
			h.logger.ErrorContext(ctx, "shutting down service", slogutil.KeyError, err)
			status = 1
		}
	}

	h.logger.InfoContext(ctx, "exiting", "status", status)

	return status
}
