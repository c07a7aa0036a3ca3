package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"robohub/internal/credentials"
	"robohub/internal/domain"
	"robohub/internal/executor"
	"robohub/internal/robot"
	"robohub/internal/schedule"
)

type Server struct {
	r      *chi.Mux
	robots *robot.Service
	creds  *credentials.Service
}

func NewServer(robots *robot.Service, creds *credentials.Service) http.Handler {
	return NewServerWithDebug(robots, creds, false)
}

func NewServerWithDebug(robots *robot.Service, creds *credentials.Service, enableDebug bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{r: r, robots: robots, creds: creds}

	r.Get("/health", s.health)
	r.Get("/metrics", s.metrics)

	r.Get("/api/robots", s.listRobots)
	r.Get("/api/robots/{id}", s.getRobot)
	r.Put("/api/robots/{id}", s.updateRobot)
	r.Post("/api/robots/{id}/run", s.runRobot)

	r.Get("/auth/api-key", s.getAPIKey)
	r.Post("/auth/generate-api-key", s.generateAPIKey)
	r.Delete("/auth/delete-api-key", s.deleteAPIKey)
	r.Put("/auth/proxy", s.setProxy)

	if enableDebug {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		r.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	}

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("robohub_up 1\n"))
}

type robotResp struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	TargetURL string            `json:"targetUrl,omitempty"`
	Limit     *int              `json:"limit,omitempty"`
	Pairs     int               `json:"pairs"`
	Schedule  *schedule.Config  `json:"schedule,omitempty"`
	Version   int64             `json:"version"`
}

func toRobotResp(r robot.Robot) robotResp {
	resp := robotResp{
		ID:       r.ID,
		Name:     r.Meta.Name,
		Pairs:    r.Meta.PairCount,
		Schedule: r.Schedule,
		Version:  r.Version,
	}
	if url, ok := r.Recording.TargetURL(); ok {
		resp.TargetURL = url
	}
	if limit, ok := r.Recording.ExtractionLimit(); ok {
		resp.Limit = &limit
	}
	return resp
}

func (s *Server) listRobots(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		http.Error(w, "user_id is required", 400)
		return
	}
	robots, err := s.robots.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]robotResp, 0, len(robots))
	for _, rb := range robots {
		resp = append(resp, toRobotResp(rb))
	}
	writeJSON(w, 200, resp)
}

func (s *Server) getRobot(w http.ResponseWriter, r *http.Request) {
	rb, err := s.robots.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, toRobotResp(rb))
}

type updateRobotReq struct {
	Name          *string          `json:"name"`
	TargetURL     *string          `json:"targetUrl"`
	Limit         *int             `json:"limit"`
	Schedule      *schedule.Config `json:"schedule"`
	ClearSchedule bool             `json:"clearSchedule"`
}

func (s *Server) updateRobot(w http.ResponseWriter, r *http.Request) {
	var req updateRobotReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	meta, err := s.robots.ApplyEdit(r.Context(), chi.URLParam(r, "id"), robot.Edit{
		Name:          req.Name,
		TargetURL:     req.TargetURL,
		Limit:         req.Limit,
		Schedule:      req.Schedule,
		ClearSchedule: req.ClearSchedule,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, meta)
}

func (s *Server) runRobot(w http.ResponseWriter, r *http.Request) {
	if err := s.robots.RunNow(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type apiKeyResp struct {
	APIKeyName string `json:"api_key_name"`
	APIKey     string `json:"api_key"`
}

func (s *Server) getAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	name, key, err := s.creds.GetAPIKey(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, apiKeyResp{APIKeyName: name, APIKey: key})
}

func (s *Server) generateAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	name, key, err := s.creds.IssueAPIKey(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiKeyResp{APIKeyName: name, APIKey: key})
}

func (s *Server) deleteAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if err := s.creds.RevokeAPIKey(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type proxyReq struct {
	ProxyURL      string `json:"proxy_url"`
	ProxyUsername string `json:"proxy_username"`
	ProxyPassword string `json:"proxy_password"`
}

func (s *Server) setProxy(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	var req proxyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if err := s.creds.SetProxy(r.Context(), userID, req.ProxyURL, req.ProxyUsername, req.ProxyPassword); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		return 0, errors.New("user_id is required")
	}
	return id, nil
}

// writeError maps the domain error taxonomy onto HTTP status codes:
// validation 400, not-found 404, conflict 409, transport 502.
func writeError(w http.ResponseWriter, err error) {
	var te *executor.TransportError
	switch {
	case domain.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &te):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
