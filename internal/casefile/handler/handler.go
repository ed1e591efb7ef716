// Package handler exposes case operations over HTTP.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"canlaw/internal/casefile"
	"canlaw/internal/platform/middleware"
	"canlaw/internal/slot"
	"canlaw/pkg/domain"
	"canlaw/pkg/platform/httputil"
	"canlaw/pkg/requestcontext"
)

// Service is the case orchestration surface the handler drives.
type Service interface {
	CreateCase(ctx context.Context, jurisdiction, legalDomain string) (*casefile.Case, error)
	GetCase(ctx context.Context, id domain.CaseID) (*casefile.Case, error)
	SubmitAnswer(ctx context.Context, id domain.CaseID, key slot.Key, value domain.Value) (*casefile.Outcome, error)
	EvaluateAll(ctx context.Context, id domain.CaseID) (*casefile.Outcome, error)
	RecalculateFrom(ctx context.Context, id domain.CaseID, changedKey slot.Key) (*casefile.Outcome, error)
}

// StatusReporter derives the interview status for the case view.
type StatusReporter interface {
	Status(ctx context.Context, c *casefile.Case) (casefile.Status, error)
}

// Handler handles case endpoints. Reads are open inside the trust boundary;
// mutations require a service token.
type Handler struct {
	service   Service
	status    StatusReporter
	validator middleware.TokenValidator
	logger    *slog.Logger
}

func New(service Service, status StatusReporter, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		status:    status,
		validator: validator,
		logger:    logger,
	}
}

// Register mounts the case routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/cases", func(r chi.Router) {
		r.Get("/{caseID}", h.handleGetCase)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))
			r.Post("/", h.handleCreateCase)
			r.Post("/{caseID}/answers", h.handleSubmitAnswer)
			r.Post("/{caseID}/evaluate", h.handleEvaluateAll)
			r.Post("/{caseID}/recalculate", h.handleRecalculate)
		})
	})
}

type caseResponse struct {
	ID           domain.CaseID           `json:"id"`
	Jurisdiction string                  `json:"jurisdiction,omitempty"`
	Domain       string                  `json:"domain,omitempty"`
	Status       casefile.Status         `json:"status"`
	SlotValues   map[string]domain.Value `json:"slot_values"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

func (h *Handler) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateCaseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.CreateCase(ctx, req.Jurisdiction, req.Domain)
	if err != nil {
		h.logger.ErrorContext(ctx, "create case failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, h.caseView(ctx, c))
}

func (h *Handler) handleGetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.caseID(w, r)
	if !ok {
		return
	}
	c, err := h.service.GetCase(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.caseView(ctx, c))
}

func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.caseID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitAnswerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	outcome, err := h.service.SubmitAnswer(ctx, id, slot.Key(req.SlotKey), req.value)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleEvaluateAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.caseID(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.EvaluateAll(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "evaluate all failed",
			"request_id", requestcontext.RequestID(ctx),
			"case_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.caseID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecalculateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	outcome, err := h.service.RecalculateFrom(ctx, id, slot.Key(req.ChangedSlotKey))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

func (h *Handler) caseID(w http.ResponseWriter, r *http.Request) (domain.CaseID, bool) {
	id, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.CaseID{}, false
	}
	return id, true
}

// caseView renders a case with its derived status. A status derivation
// failure degrades to an empty status rather than failing the read.
func (h *Handler) caseView(ctx context.Context, c *casefile.Case) caseResponse {
	status, err := h.status.Status(ctx, c)
	if err != nil {
		h.logger.WarnContext(ctx, "status derivation failed",
			"case_id", c.ID,
			"error", err,
		)
	}
	values := make(map[string]domain.Value, len(c.SlotValues))
	for k, v := range c.SlotValues {
		values[string(k)] = v
	}
	return caseResponse{
		ID:           c.ID,
		Jurisdiction: c.Jurisdiction,
		Domain:       c.Domain,
		Status:       status,
		SlotValues:   values,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}
