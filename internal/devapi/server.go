// Package devapi is a development Shift Source: GET /shifts and
// POST /shifts/{id}/book|cancel over an in-memory store.
package devapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appLog "shiftbook/internal/log"
	"shiftbook/internal/model"
)

// NewRouter wires the Shift Source routes over store.
func NewRouter(store *Store) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/shifts", listShifts(store))
	r.Post("/shifts/{id}/book", mutateShift(store, "book", store.Book))
	r.Post("/shifts/{id}/cancel", mutateShift(store, "cancel", store.Cancel))

	return r
}

func etag(version int) string {
	return `"v` + strconv.Itoa(version) + `"`
}

func listShifts(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shifts, version := store.List()
		tag := etag(version)
		if r.Header.Get("If-None-Match") == tag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		records := make([]model.Record, 0, len(shifts))
		for _, s := range shifts {
			records = append(records, model.RecordFromShift(s))
		}
		w.Header().Set("ETag", tag)
		respondJSON(w, http.StatusOK, records)
	}
}

func mutateShift(store *Store, op string, apply func(model.ID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := model.ID(chi.URLParam(r, "id"))
		if id == "" {
			respondError(w, http.StatusBadRequest, "missing shift id")
			return
		}

		err := apply(id)
		switch {
		case err == nil:
			appLog.Info("dev api shift "+op, "id", id)
			respondJSON(w, http.StatusOK, map[string]any{"id": id, "ok": true})
		case errors.Is(err, ErrNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrConflict):
			respondError(w, http.StatusConflict, err.Error())
		default:
			appLog.Error("dev api shift "+op+" failed", err, "id", id)
			respondError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
