package jobsd

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP front-end for job discovery.
type Server struct {
	store  *Store
	logger *slog.Logger
}

// NewServer wraps the store.
func NewServer(store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, logger: logger}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Put("/", s.handleUpdate)
			r.Delete("/", s.handleDelete)
		})
	})
	return r
}

type jobPayload struct {
	Title       string `json:"title"`
	Budget      string `json:"budget"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload jobPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	job, err := s.store.CreateJob(r.Context(), Job{
		Title:       payload.Title,
		Budget:      payload.Budget,
		Location:    payload.Location,
		Description: payload.Description,
	})
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "job": job})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context())
	if err != nil {
		s.logger.Error("list jobs failed", "err", err)
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobs": jobs})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if errors.Is(err, ErrJobNotFound) {
		writeErrorJSON(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("load job failed", "err", err)
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": job})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload jobPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	job, err := s.store.UpdateJob(r.Context(), Job{
		ID:          chi.URLParam(r, "jobID"),
		Title:       payload.Title,
		Budget:      payload.Budget,
		Location:    payload.Location,
		Description: payload.Description,
	})
	if errors.Is(err, ErrJobNotFound) {
		writeErrorJSON(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": job})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteJob(r.Context(), chi.URLParam(r, "jobID"))
	if errors.Is(err, ErrJobNotFound) {
		writeErrorJSON(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("delete job failed", "err", err)
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
