// Package handler exposes the progressive disclosure API.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"canlaw/internal/casefile"
	"canlaw/internal/slot"
	"canlaw/pkg/domain"
	dErrors "canlaw/pkg/domain-errors"
	"canlaw/pkg/platform/httputil"
)

// DefaultMaxQuestions caps a questions response when the client does not
// ask for a specific batch size.
const DefaultMaxQuestions = 10

// CaseLoader loads the case the questions are computed for.
type CaseLoader interface {
	GetCase(ctx context.Context, id domain.CaseID) (*casefile.Case, error)
}

// Engine is the disclosure surface the handler drives.
type Engine interface {
	NextQuestions(ctx context.Context, c *casefile.Case, maxCount int, importanceFloor slot.Importance) ([]*slot.Slot, error)
	Status(ctx context.Context, c *casefile.Case) (casefile.Status, error)
}

type Handler struct {
	cases  CaseLoader
	engine Engine
	logger *slog.Logger
}

func New(cases CaseLoader, engine Engine, logger *slog.Logger) *Handler {
	return &Handler{cases: cases, engine: engine, logger: logger}
}

// Register mounts the interview routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/cases/{caseID}/questions", h.handleQuestions)
	r.Get("/v1/cases/{caseID}/status", h.handleStatus)
}

type questionResponse struct {
	SlotKey    string `json:"slot_key"`
	DataType   string `json:"data_type"`
	Importance string `json:"importance"`
}

type questionsResponse struct {
	Questions []questionResponse `json:"questions"`
}

type statusResponse struct {
	CaseID domain.CaseID   `json:"case_id"`
	Status casefile.Status `json:"status"`
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok := h.loadCase(w, r)
	if !ok {
		return
	}

	maxCount := DefaultMaxQuestions
	if raw := r.URL.Query().Get("max_count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "max_count must be a positive integer"))
			return
		}
		maxCount = n
	}
	floor := slot.ImportanceLow
	if raw := r.URL.Query().Get("importance_floor"); raw != "" {
		parsed, err := slot.ParseImportance(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "unknown importance_floor"))
			return
		}
		floor = parsed
	}

	questions, err := h.engine.NextQuestions(ctx, c, maxCount, floor)
	if err != nil {
		h.logger.ErrorContext(ctx, "next questions failed", "case_id", c.ID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	resp := questionsResponse{Questions: make([]questionResponse, 0, len(questions))}
	for _, q := range questions {
		resp.Questions = append(resp.Questions, questionResponse{
			SlotKey:    string(q.Key),
			DataType:   q.DataType.String(),
			Importance: q.Importance.String(),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok := h.loadCase(w, r)
	if !ok {
		return
	}
	status, err := h.engine.Status(ctx, c)
	if err != nil {
		h.logger.ErrorContext(ctx, "status derivation failed", "case_id", c.ID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statusResponse{CaseID: c.ID, Status: status})
}

func (h *Handler) loadCase(w http.ResponseWriter, r *http.Request) (*casefile.Case, bool) {
	id, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	c, err := h.cases.GetCase(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	return c, true
}
