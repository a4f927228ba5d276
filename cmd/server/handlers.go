package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pauljones0/epic-free-games-bot/internal/models"
	"github.com/pauljones0/epic-free-games-bot/internal/processor"
)

const defaultListLimit = 50

type jobRunner interface {
	Execute(ctx context.Context) (int, error)
}

type promotionLister interface {
	List(ctx context.Context, limit int) ([]models.Promotion, error)
}

type Server struct {
	job        jobRunner
	store      promotionLister
	runTimeout time.Duration
}

func (s *Server) routes(metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.FetchGamesHandler)
	mux.HandleFunc("/fetch-games", s.FetchGamesHandler)
	mux.HandleFunc("GET /games", s.ListGamesHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return mux
}

// FetchGamesHandler runs the pipeline synchronously and reports how many
// promotions were stored. Internal error details are only logged.
func (s *Server) FetchGamesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.runTimeout)
	defer cancel()

	n, err := s.safeExecute(ctx)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err != nil {
		slog.Error("Error fetching games", "error", err, "stored", n)
		if errors.Is(err, processor.ErrRunInProgress) {
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, "A run is already in progress.")
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "Something went wrong.")
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%d free games fetched and stored.", n)
}

func (s *Server) safeExecute(ctx context.Context) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in run: %v", r)
		}
	}()
	return s.job.Execute(ctx)
}

// ListGamesHandler returns stored promotions as JSON, newest first.
func (s *Server) ListGamesHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	promos, err := s.store.List(r.Context(), limit)
	if err != nil {
		slog.Error("Error listing games", "error", err)
		http.Error(w, "Something went wrong.", http.StatusInternalServerError)
		return
	}
	if promos == nil {
		promos = []models.Promotion{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(promos); err != nil {
		slog.Error("Error encoding games", "error", err)
	}
}
