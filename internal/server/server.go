// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matthewbaird/caseforms/internal/authoring"
	"github.com/matthewbaird/caseforms/internal/engine"
	"github.com/matthewbaird/caseforms/internal/event"
	"github.com/matthewbaird/caseforms/internal/handler"
	"github.com/matthewbaird/caseforms/internal/live"
	"github.com/matthewbaird/caseforms/internal/store"
)

// Config holds server configuration.
type Config struct {
	Port          int
	Store         store.Store
	Sessions      *authoring.Manager
	Recorder      event.Recorder
	WarnUndefined bool
}

// Router registers every route on a chi router.
func Router(cfg Config) http.Handler {
	eng := engine.New(engine.WithWarnUndefined(cfg.WarnUndefined))
	dh := handler.NewDefinitionHandler(cfg.Store, cfg.Sessions, eng, cfg.Recorder)
	lh := live.NewHandler(cfg.Sessions, eng)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(handler.Logging)
	r.Use(handler.Recovery)

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1/definitions", func(r chi.Router) {
		r.Post("/", dh.SaveDefinition)
		r.Get("/", dh.ListDefinitions)
		r.Get("/{id}", dh.GetDefinition)
		r.Delete("/{id}", dh.DeleteDefinition)
		r.Get("/{id}/dependencies", dh.GetDependencies)
		r.Get("/{id}/events", dh.GetEvents)
		r.Post("/{id}/evaluate", dh.Evaluate)
		r.Get("/{id}/items/{linkId}/delete-check", dh.DeleteCheck)
		r.Delete("/{id}/items/{linkId}", dh.DeleteItem)
		r.Patch("/{id}/items/{linkId}", dh.RenameItem)
	})
	r.Get("/v1/live/{id}", lh.ServeHTTP)
	return r
}

// Run starts the HTTP server and shuts it down when ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("starting server on %s", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           Router(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
