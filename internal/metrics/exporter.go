package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/blockfeed/blockfeed/pkg/logger"
)

// Exporter serves the collector's registry over HTTP for Prometheus.
type Exporter struct {
	collector *Collector
	logger    *logger.Logger
	server    *http.Server
	port      int
	path      string
}

// NewExporter creates an exporter for the given collector.
func NewExporter(collector *Collector, port int, path string, log *logger.Logger) *Exporter {
	if path == "" {
		path = "/metrics"
	}
	if port == 0 {
		port = 9090
	}

	return &Exporter{
		collector: collector,
		logger:    log,
		port:      port,
		path:      path,
	}
}

// Start starts the HTTP server in the background.
func (e *Exporter) Start() error {
	mux := http.NewServeMux()

	mux.Handle(e.path, promhttp.HandlerFor(
		e.collector.Registry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Timeout:           10 * time.Second,
			ErrorLog:          e.logger.StdLogger(),
		},
	))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	e.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", e.port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		e.logger.Info("starting metrics exporter",
			zap.Int("port", e.port),
			zap.String("path", e.path))

		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Error("metrics exporter error", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the HTTP server down gracefully.
func (e *Exporter) Stop() error {
	if e.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics exporter: %w", err)
	}

	e.logger.Info("metrics exporter stopped")
	return nil
}
