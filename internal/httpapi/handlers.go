package httpapi

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-arena/internal/answer"
	"github.com/p-n-ai/pai-arena/internal/competency"
	"github.com/p-n-ai/pai-arena/internal/proficiency"
	"github.com/p-n-ai/pai-arena/internal/results"
	"github.com/p-n-ai/pai-arena/internal/session"
	"github.com/p-n-ai/pai-arena/internal/stresstest"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type validateRequest struct {
	Question          string   `json:"question"`
	Answer            string   `json:"answer"`
	AcceptableAnswers []string `json:"acceptable_answers"`
}

func handleValidateAnswer(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, answer.Validate(req.Question, req.Answer, req.AcceptableAnswers))
}

type validateSessionRequest struct {
	Questions []answer.Question `json:"questions"`
	Answers   map[string]string `json:"answers"`
}

type validateSessionResponse struct {
	Accuracy  float64                 `json:"accuracy"`
	Percent   int                     `json:"percent"`
	Questions []answer.QuestionResult `json:"questions"`
}

func handleValidateSession(w http.ResponseWriter, r *http.Request) {
	var req validateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	questions, accuracy := answer.ValidateSession(req.Questions, req.Answers)
	writeJSON(w, http.StatusOK, validateSessionResponse{
		Accuracy:  accuracy,
		Percent:   answer.Percent(accuracy),
		Questions: questions,
	})
}

type classifyRequest struct {
	Metrics    proficiency.Metrics     `json:"metrics"`
	Thresholds *proficiency.Thresholds `json:"thresholds,omitempty"`
}

type classifyResponse struct {
	Level proficiency.Level `json:"level"`
	Label string            `json:"label"`
}

func handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t := proficiency.DefaultThresholds()
	if req.Thresholds != nil {
		t = req.Thresholds.WithDefaults()
	}
	level := proficiency.Classify(req.Metrics, t)
	writeJSON(w, http.StatusOK, classifyResponse{Level: level, Label: level.String()})
}

func handleStressTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stresstest.Run(stresstest.DefaultScenarios()))
}

func handleStressTestXLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := stresstest.WriteXLSX(&buf, stresstest.Run(stresstest.DefaultScenarios())); err != nil {
		slog.Error("failed to build stress test workbook", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build workbook")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="stresstest.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// competencySummary omits acceptable answers and self-tests.
type competencySummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Version      int      `json:"version,omitempty"`
	Questions    int      `json:"questions"`
	Phases       []string `json:"phases"`
	TotalSeconds float64  `json:"total_seconds"`
	EdgeCase     bool     `json:"edge_case"`
}

func summarize(d competency.Definition) competencySummary {
	cfg := d.SessionConfig()
	s := competencySummary{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		Version:      d.Version,
		Questions:    len(d.Questions),
		Phases:       make([]string, 0, len(cfg.Phases)),
		TotalSeconds: cfg.TotalDuration().Seconds(),
		EdgeCase:     cfg.EdgeCase != nil,
	}
	for _, p := range cfg.Phases {
		s.Phases = append(s.Phases, p.Name)
	}
	return s
}

func (s *server) handleListCompetencies(w http.ResponseWriter, r *http.Request) {
	defs := s.cfg.Catalog.All()
	out := make([]competencySummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, summarize(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleGetCompetency(w http.ResponseWriter, r *http.Request) {
	def, ok := s.cfg.Catalog.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "competency not found")
		return
	}
	writeJSON(w, http.StatusOK, summarize(def))
}

func (s *server) handleCertify(w http.ResponseWriter, r *http.Request) {
	def, ok := s.cfg.Catalog.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "competency not found")
		return
	}
	cert, err := s.cfg.Gate.Certify(r.Context(), def)
	if err != nil {
		slog.Error("certification failed", "competency_id", def.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "certification failed")
		return
	}
	writeJSON(w, http.StatusOK, cert)
}

func (s *server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.cfg.Results.GetResult(r.Context(), r.PathValue("session_id"))
	if errors.Is(err, results.ErrNotFound) {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		slog.Error("failed to get result", "session_id", r.PathValue("session_id"), "error", err)
		writeError(w, http.StatusServiceUnavailable, "result store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleListResults(w http.ResponseWriter, r *http.Request) {
	competencyID := r.URL.Query().Get("competency")
	if competencyID == "" {
		writeError(w, http.StatusBadRequest, "competency is required")
		return
	}
	list, err := s.cfg.Results.ListResults(r.Context(), r.PathValue("player"), competencyID)
	if err != nil {
		slog.Error("failed to list results", "player_id", r.PathValue("player"), "error", err)
		writeError(w, http.StatusServiceUnavailable, "result store unavailable")
		return
	}
	if list == nil {
		list = []session.Result{}
	}
	writeJSON(w, http.StatusOK, list)
}
