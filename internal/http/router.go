// Package http exposes the pipeline control API.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"live-speech-translator/internal/pipeline"
)

type statusResponse struct {
	Running   bool   `json:"running"`
	Entries   int    `json:"entries"`
	LastError string `json:"lastError,omitempty"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(ctrl *pipeline.Controller) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			resp := statusResponse{
				Running: ctrl.Running(),
				Entries: ctrl.Store().Len(),
			}
			if err := ctrl.LastError(); err != nil {
				resp.LastError = err.Error()
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Get("/entries", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, ctrl.Snapshot())
		})

		r.Post("/pipeline/start", func(w http.ResponseWriter, req *http.Request) {
			if err := ctrl.Start(req.Context()); err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, pipeline.ErrAlreadyRunning) {
					status = http.StatusConflict
				}
				writeError(w, status, err)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		})

		r.Post("/pipeline/stop", func(w http.ResponseWriter, _ *http.Request) {
			ctrl.Stop()
			w.WriteHeader(http.StatusAccepted)
		})

		r.Post("/transcript/reset", func(w http.ResponseWriter, _ *http.Request) {
			if err := ctrl.Reset(); err != nil {
				writeError(w, http.StatusConflict, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
