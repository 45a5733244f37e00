package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pushflow/internal/domain"
	"pushflow/internal/engine"
)

// Engine is the scheduler surface the HTTP layer wraps. It is intentionally
// thin: every handler is a direct translation of one engine operation.
type Engine interface {
	Create(ctx context.Context, req engine.CreateRequest) (engine.CreateResult, error)
	List(ctx context.Context) ([]domain.Task, error)
	Get(ctx context.Context, id string) (domain.Task, error)
	GetLogs(ctx context.Context, id string) ([]domain.ExecutionLog, error)
	Delete(ctx context.Context, id string) error
	RunDue(ctx context.Context, now time.Time)
}

type Server struct {
	r      *chi.Mux
	engine Engine
}

func NewServer(eng Engine) http.Handler {
	return NewServerWithDebug(eng, false)
}

func NewServerWithDebug(eng Engine, enableDebug bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{r: r, engine: eng}

	r.Get("/health", s.health)
	r.Post("/api/tasks", s.createTask)
	r.Get("/api/tasks", s.listTasks)
	r.Get("/api/tasks/{id}", s.getTask)
	r.Get("/api/tasks/{id}/logs", s.getTaskLogs)
	r.Delete("/api/tasks/{id}", s.deleteTask)

	// Development-only manual trigger for the timer callback.
	if enableDebug {
		r.Post("/api/run-due", s.runDue)
	}

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req engine.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	res, err := s.engine.Create(r.Context(), req)
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), 400)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.engine.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.engine.Get(r.Context(), id)
	if err != nil {
		if engine.IsNotFound(err) {
			http.Error(w, "not found", 404)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) getTaskLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	logs, err := s.engine.GetLogs(r.Context(), id)
	if err != nil {
		if engine.IsNotFound(err) {
			http.Error(w, "not found", 404)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	if logs == nil {
		logs = []domain.ExecutionLog{}
	}
	writeJSON(w, 200, logs)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.Delete(r.Context(), id); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) runDue(w http.ResponseWriter, r *http.Request) {
	s.engine.RunDue(r.Context(), time.Now())
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
