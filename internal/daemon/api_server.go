package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"squash/internal/config"
	"squash/internal/engine"
	"squash/internal/events"
	"squash/internal/history"
	"squash/internal/logging"
)

const (
	defaultEventLimit = 200
	maxEventWait      = 30 * time.Second
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	mux    *http.ServeMux

	listener net.Listener
	server   *http.Server
}

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	Running         bool             `json:"running"`
	PID             int              `json:"pid"`
	StartedAt       time.Time        `json:"started_at,omitzero"`
	Waiting         int              `json:"waiting"`
	Active          int              `json:"active"`
	MaxParallelJobs int              `json:"max_parallel_jobs"`
	Dependencies    []DependencyJSON `json:"dependencies"`
}

// DependencyJSON describes one external binary in /api/status.
type DependencyJSON struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Optional  bool   `json:"optional"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// EventsResponse is the /api/events payload; Next is the cursor to pass as
// since on the following request.
type EventsResponse struct {
	Events []events.Event `json:"events"`
	Next   uint64         `json:"next"`
}

// newAPIServer returns nil when no bind address is configured; every method
// tolerates a nil receiver.
func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		mux:    http.NewServeMux(),
	}
	token := cfg.API.Token
	srv.mux.HandleFunc("GET /api/status", authMiddleware(token, srv.handleStatus))
	srv.mux.HandleFunc("GET /api/jobs", authMiddleware(token, srv.handleJobs))
	srv.mux.HandleFunc("GET /api/jobs/{id}", authMiddleware(token, srv.handleJob))
	srv.mux.HandleFunc("GET /api/events", authMiddleware(token, srv.handleEvents))
	srv.mux.HandleFunc("GET /api/history", authMiddleware(token, srv.handleHistory))

	srv.server = &http.Server{
		Handler:           srv.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      maxEventWait + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.String(logging.FieldImpact, "HTTP status API unavailable"),
				logging.String(logging.FieldErrorHint, "check api.bind and restart the daemon"),
				logging.Error(err),
			)
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := StatusResponse{
		Running:         status.Running,
		PID:             status.PID,
		StartedAt:       status.StartedAt,
		Waiting:         status.Waiting,
		Active:          status.Active,
		MaxParallelJobs: status.MaxParallelJobs,
		Dependencies:    make([]DependencyJSON, 0, len(status.Dependencies)),
	}
	for _, dep := range status.Dependencies {
		payload.Dependencies = append(payload.Dependencies, DependencyJSON{
			Name:      dep.Name,
			Command:   dep.Command,
			Optional:  dep.Optional,
			Available: dep.Available,
			Detail:    dep.Detail,
		})
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	wanted := make(map[engine.Status]struct{})
	for _, value := range r.URL.Query()["status"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			wanted[engine.Status(strings.ToLower(trimmed))] = struct{}{}
		}
	}
	jobs := s.daemon.Engine().List()
	if len(wanted) > 0 {
		filtered := jobs[:0]
		for _, job := range jobs {
			if _, ok := wanted[job.Status]; ok {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.Engine().Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, engine.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultEventLimit
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	jobID := strings.TrimSpace(query.Get("job"))

	ctx := r.Context()
	if follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxEventWait)
		defer cancel()
	}
	batch, next, err := s.daemon.Events().Fetch(ctx, since, limit, follow)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	filtered := make([]events.Event, 0, len(batch))
	for _, evt := range batch {
		if jobID != "" && evt.JobID() != jobID {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, EventsResponse{Events: filtered, Next: next})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	filter := history.Filter{
		Limit:       limit,
		FailedOnly:  query.Get("failed") == "1",
		SuccessOnly: query.Get("succeeded") == "1",
	}
	entries, err := s.daemon.History(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
