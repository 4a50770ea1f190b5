// Package httpapi exposes the scoring engine over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/p-n-ai/pai-arena/internal/competency"
	"github.com/p-n-ai/pai-arena/internal/live"
	"github.com/p-n-ai/pai-arena/internal/results"
)

const (
	maxBodyBytes = 1 << 20
	checkTimeout = 2 * time.Second
)

// Catalog lists and looks up competency definitions.
type Catalog interface {
	Get(id string) (competency.Definition, bool)
	All() []competency.Definition
}

// HealthChecker is a dependency probed by /readyz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds the dependencies of the HTTP API. Nil dependencies disable
// the endpoints that need them.
type Config struct {
	Catalog Catalog
	Gate    live.Certifier
	Results results.Store
	Play    http.Handler
	Checks  map[string]HealthChecker
}

// NewMux creates the HTTP router.
func NewMux(cfg Config) *http.ServeMux {
	s := &server{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /v1/answers/validate", handleValidateAnswer)
	mux.HandleFunc("POST /v1/answers/validate-session", handleValidateSession)
	mux.HandleFunc("POST /v1/classify", handleClassify)
	mux.HandleFunc("GET /v1/stresstest", handleStressTest)
	mux.HandleFunc("GET /v1/stresstest.xlsx", handleStressTestXLSX)

	if cfg.Catalog != nil {
		mux.HandleFunc("GET /v1/competencies", s.handleListCompetencies)
		mux.HandleFunc("GET /v1/competencies/{id}", s.handleGetCompetency)
		if cfg.Gate != nil {
			mux.HandleFunc("POST /v1/competencies/{id}/certify", s.handleCertify)
		}
		if cfg.Play != nil {
			mux.Handle("GET /v1/competencies/{id}/play", cfg.Play)
		}
	}
	if cfg.Results != nil {
		mux.HandleFunc("GET /v1/results/{session_id}", s.handleGetResult)
		mux.HandleFunc("GET /v1/players/{player}/results", s.handleListResults)
	}
	return mux
}

type server struct {
	cfg Config
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	resp := readyResponse{Status: "ready"}
	status := http.StatusOK

	names := make([]string, 0, len(s.cfg.Checks))
	for name := range s.cfg.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(names))
		}
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := s.cfg.Checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a single JSON object, rejecting unknown fields and
// oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
