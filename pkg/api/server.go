// Package api serves a page store over HTTP.
//
// Record routes take the client API key, commit and stats take the system
// key. Both are passed in the X-API-Key header.
//
// @title           PageStore REST API
// @version         1.0.0
// @description     Record API for PageStore, a paged append storage engine.
// @host            localhost:8080
// @BasePath        /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in              header
// @name            X-API-Key
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
)

const swaggerIndex = `<!DOCTYPE html>
<html>
<head>
	<title>PageStore API</title>
	<link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui.css" />
</head>
<body>
	<div id="swagger-ui"></div>
	<script src="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui-bundle.js"></script>
	<script>
		window.onload = function() {
			SwaggerUIBundle({url: '/swagger/doc.json', dom_id: '#swagger-ui'});
		};
	</script>
</body>
</html>`

// NewRouter builds the HTTP routes for server. gatherer backs /metrics; nil
// serves the default registry.
func NewRouter(server *Server, gatherer prometheus.Gatherer) http.Handler {
	metrics := server.metrics
	config := server.config

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	if gatherer == nil {
		r.Handle("/metrics", promhttp.Handler())
	} else {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// API docs, unprotected
	r.Get("/swagger/*", serveSwagger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(metrics.InstrumentAuthMiddleware(apiKeyMiddleware(config.APIKey)))

			r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", server.handleHealth))

			r.Post("/records", metrics.InstrumentHandler("POST", "/api/v1/records", server.handleCreateRecord))
			r.Post("/records/preallocate", metrics.InstrumentHandler("POST", "/api/v1/records/preallocate", server.handlePreallocate))
			r.Get("/records/{id}", metrics.InstrumentHandler("GET", "/api/v1/records/{id}", server.handleGetRecord))
			r.Put("/records/{id}", metrics.InstrumentHandler("PUT", "/api/v1/records/{id}", server.handleUpdateRecord))
			r.Delete("/records/{id}", metrics.InstrumentHandler("DELETE", "/api/v1/records/{id}", server.handleDeleteRecord))
		})

		r.Group(func(r chi.Router) {
			r.Use(metrics.InstrumentAuthMiddleware(apiKeyMiddleware(config.SystemKey)))

			r.Post("/commit", metrics.InstrumentHandler("POST", "/api/v1/commit", server.handleCommit))
			r.Get("/stats", metrics.InstrumentHandler("GET", "/api/v1/stats", server.handleStats))
		})
	})

	return r
}

func serveSwagger(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "*") {
	case "", "index.html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(swaggerIndex))
	case "doc.json", "swagger.json":
		doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
		if err != nil {
			sendError(w, "Failed to generate Swagger documentation", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	default:
		http.NotFound(w, r)
	}
}

// StartServer serves the API until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, store RecordStore, config ServerConfig, logger *slog.Logger, reg *prometheus.Registry) error {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	server := NewServer(store, config, NewMetrics(registerer), logger)
	addr := fmt.Sprintf("%s:%d", config.Bind, config.Port)
	SwaggerInfo.Host = addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(server, gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("starting REST API server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.logger.Info("stopping REST API server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
