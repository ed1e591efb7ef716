package handler

import (
	"encoding/json"

	"canlaw/pkg/domain"
	dErrors "canlaw/pkg/domain-errors"
)

// CreateCaseRequest opens a new case in a jurisdiction/domain scope. Both
// fields may be empty, meaning only globally scoped slots apply.
type CreateCaseRequest struct {
	Jurisdiction string `json:"jurisdiction"`
	Domain       string `json:"domain"`
}

func (r *CreateCaseRequest) Validate() error {
	return nil
}

// SubmitAnswerRequest records one answer. Value is kept raw so absent and
// null are distinguishable.
type SubmitAnswerRequest struct {
	SlotKey string          `json:"slot_key"`
	Value   json.RawMessage `json:"value"`

	value domain.Value
}

func (r *SubmitAnswerRequest) Validate() error {
	if r.SlotKey == "" {
		return dErrors.New(dErrors.CodeValidation, "slot_key is required")
	}
	v, err := domain.ValueFromJSON(r.Value)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "value is not valid JSON")
	}
	if v.IsMissing() {
		return dErrors.New(dErrors.CodeValidation, "value is required")
	}
	r.value = v
	return nil
}

// RecalculateRequest re-evaluates the forward closure of one slot.
type RecalculateRequest struct {
	ChangedSlotKey string `json:"changed_slot_key"`
}

func (r *RecalculateRequest) Validate() error {
	if r.ChangedSlotKey == "" {
		return dErrors.New(dErrors.CodeValidation, "changed_slot_key is required")
	}
	return nil
}
