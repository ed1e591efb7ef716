// Package casefile defines the Case aggregate: one interview session's
// accumulated answers, computed values, and append-only calculation log.
package casefile

import (
	"time"

	"canlaw/internal/slot"
	"canlaw/pkg/domain"
)

// Status is the interview lifecycle of a case. It is computed on demand
// from the applicable question set, never stored, because earlier answers
// change which questions apply.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

// Case is the mutable aggregate for one session. SlotValues is
// append/overwrite only: values are never deleted mid-session.
// CalculationLog is append-only.
type Case struct {
	ID           domain.CaseID
	Jurisdiction string
	Domain       string
	SlotValues   map[slot.Key]domain.Value
	Log          []LogEntry
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewCase constructs an empty case for the given scope.
func NewCase(id domain.CaseID, jurisdiction, legalDomain string, now time.Time) *Case {
	return &Case{
		ID:           id,
		Jurisdiction: jurisdiction,
		Domain:       legalDomain,
		SlotValues:   make(map[slot.Key]domain.Value),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// LogEntry is one audit record in the calculation log: which slot was
// evaluated, against which dependency values, with what result.
type LogEntry struct {
	Timestamp          time.Time                 `json:"timestamp"`
	SlotKey            slot.Key                  `json:"slot_key"`
	DependencySnapshot map[slot.Key]domain.Value `json:"dependency_snapshot"`
	Result             domain.Value              `json:"result"`
	Error              string                    `json:"error,omitempty"`
}

// Disposition classifies one slot's fate within an orchestration pass.
type Disposition string

const (
	DispositionSucceeded Disposition = "succeeded"
	DispositionDefaulted Disposition = "defaulted"
	DispositionNulled    Disposition = "nulled"
	DispositionFailed    Disposition = "failed"
)

// SlotOutcome is the per-slot report inside an Outcome.
type SlotOutcome struct {
	SlotKey     slot.Key     `json:"slot_key"`
	Disposition Disposition  `json:"disposition"`
	Value       domain.Value `json:"value"`
	Error       string       `json:"error,omitempty"`
	Importance  string       `json:"importance"`
}

// Outcome is the result of one EvaluateAll or RecalculateFrom pass. Callers
// inspect the per-slot dispositions to decide whether a failed
// Critical-importance outcome blocks, or a Low-importance gap is merely
// surfaced.
type Outcome struct {
	CaseID   domain.CaseID `json:"case_id"`
	Order    []slot.Key    `json:"order"`
	Slots    []SlotOutcome `json:"slots"`
	Duration time.Duration `json:"duration"`
}

// Failed returns the keys of slots that failed outright.
func (o *Outcome) Failed() []slot.Key {
	return o.withDisposition(DispositionFailed)
}

// Defaulted returns the keys of slots degraded by an on_error policy.
func (o *Outcome) Defaulted() []slot.Key {
	keys := o.withDisposition(DispositionDefaulted)
	return append(keys, o.withDisposition(DispositionNulled)...)
}

// Succeeded returns the keys of slots evaluated cleanly.
func (o *Outcome) Succeeded() []slot.Key {
	return o.withDisposition(DispositionSucceeded)
}

func (o *Outcome) withDisposition(d Disposition) []slot.Key {
	var keys []slot.Key
	for _, s := range o.Slots {
		if s.Disposition == d {
			keys = append(keys, s.SlotKey)
		}
	}
	return keys
}
