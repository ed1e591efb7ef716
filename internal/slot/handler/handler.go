// Package handler exposes the read-only slot registry API.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"canlaw/internal/slot"
	"canlaw/internal/slot/store"
	dErrors "canlaw/pkg/domain-errors"
	"canlaw/pkg/platform/httputil"
	"canlaw/pkg/platform/sentinel"
)

// Registry is the registry surface the handler reads.
type Registry interface {
	GetSlot(ctx context.Context, key slot.Key) (*slot.Slot, error)
	ListActive(ctx context.Context, filter store.ScopeFilter, categories ...slot.Category) ([]*slot.Slot, error)
}

type Handler struct {
	registry Registry
	logger   *slog.Logger
}

func New(registry Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// Register mounts the registry routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/slots", h.handleList)
	r.Get("/v1/slots/{key}", h.handleGet)
}

type slotSummary struct {
	Key        string `json:"key"`
	Category   string `json:"category"`
	DataType   string `json:"data_type"`
	Importance string `json:"importance"`
	Active     bool   `json:"active"`
}

type listResponse struct {
	Slots []slotSummary `json:"slots"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := store.ScopeFilter{
		Jurisdiction: q.Get("jurisdiction"),
		Domain:       q.Get("domain"),
	}
	var categories []slot.Category
	if raw := q.Get("category"); raw != "" {
		category, err := parseCategory(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		categories = append(categories, category)
	}

	slots, err := h.registry.ListActive(ctx, filter, categories...)
	if err != nil {
		h.logger.ErrorContext(ctx, "list slots failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "slot registry unavailable"))
		return
	}
	resp := listResponse{Slots: make([]slotSummary, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, summarize(s))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := slot.Key(chi.URLParam(r, "key"))
	s, err := h.registry.GetSlot(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "slot not found"))
			return
		}
		h.logger.ErrorContext(ctx, "get slot failed", "slot_key", key, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "slot registry unavailable"))
		return
	}

	// The full record shape is the wire contract, so detail reads render
	// through it rather than inventing a second serialization.
	rec, err := slot.ToRecord(s)
	if err != nil {
		h.logger.ErrorContext(ctx, "slot record conversion failed", "slot_key", key, "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "slot record conversion failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func summarize(s *slot.Slot) slotSummary {
	return slotSummary{
		Key:        string(s.Key),
		Category:   s.Category.String(),
		DataType:   s.DataType.String(),
		Importance: s.Importance.String(),
		Active:     s.Active,
	}
}

func parseCategory(raw string) (slot.Category, error) {
	switch raw {
	case slot.CategoryInput.String():
		return slot.CategoryInput, nil
	case slot.CategoryCalculated.String():
		return slot.CategoryCalculated, nil
	case slot.CategoryOutcome.String():
		return slot.CategoryOutcome, nil
	}
	return 0, dErrors.New(dErrors.CodeValidation, "unknown category")
}
