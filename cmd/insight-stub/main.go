package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// insight-stub is an in-memory stand-in for the ingestion backend, for local
// development of the client engine. It implements the full HTTP surface:
// dedup preflight, segment store, completion, and simulated merge/transcode
// and deep-processing pipelines.

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	addr := os.Getenv("STUB_LISTEN_ADDR")
	if addr == "" {
		addr = ":5000"
	}

	backend := newStubBackend(logger)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", backend.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingestions", backend.InitIngestion)
		r.Route("/ingestions/{sessionRef}", func(r chi.Router) {
			r.Post("/segments", backend.PutSegment)
			r.Get("/missing", backend.Missing)
			r.Post("/complete", backend.Complete)
			r.Get("/status", backend.Status)
		})
		r.Post("/deep-process", backend.StartDeepProcess)
		r.Get("/deep-process/{contentRef}/status", backend.DeepProcessStatus)
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("insight-stub listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
