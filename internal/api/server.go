package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tourgo/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, visitors *VisitorHandler, pois *POIHandler, stream *StreamHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// 1b. Version Endpoint
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Visitor Endpoints
	mux.HandleFunc("POST /api/visitors", visitors.HandleRegister)
	mux.HandleFunc("GET /api/visitors/{id}", visitors.HandleGet)
	mux.HandleFunc("POST /api/visitors/{id}/location", visitors.HandleLocation)
	mux.HandleFunc("POST /api/visitors/{id}/language", visitors.HandleLanguage)
	mux.HandleFunc("POST /api/visitors/{id}/trigger", visitors.HandleTrigger)
	mux.HandleFunc("POST /api/visitors/{id}/narrate", visitors.HandleNarrate)
	mux.HandleFunc("GET /api/visitors/{id}/history", visitors.HandleHistory)

	// 3. POI Endpoints
	mux.HandleFunc("GET /api/pois", pois.HandleList)
	mux.HandleFunc("GET /api/pois/{id}", pois.HandleGet)

	// 4. Location Stream Endpoint
	if stream != nil {
		mux.HandleFunc("GET /api/visitors/{id}/stream", stream.HandleStream)
	}

	// 5. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
