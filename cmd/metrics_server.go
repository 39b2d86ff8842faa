package cmd

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pvefw.dev/core/internal/logging"
)

// serveMetrics starts a /metrics endpoint in the background, bound to
// addr, and returns a shutdown func. Kept entirely inside cmd/ — the
// core packages never import net/http, since exposing it is an outer
// service-wrapper concern, not a core compile/reconcile concern.
func serveMetrics(addr string) (shutdown func(context.Context) error, err error) {
	log := logging.Default().WithComponent("cmd")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("metrics endpoint listening", "addr", addr)
		if serveErr := srv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Error("metrics endpoint failed", "error", serveErr)
		}
	}()

	return srv.Shutdown, nil
}
