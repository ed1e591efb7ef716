// Package audit records the service-level trail of case lifecycle events.
// Events are written through a transactional outbox, relayed to Kafka, and
// materialized back into a query table by a group consumer. The per-case
// calculation log stays on the Case aggregate; this package covers the
// cross-case operational trail.
package audit

import (
	"time"

	"github.com/google/uuid"

	"canlaw/pkg/domain"
)

// Action names one auditable case operation.
type Action string

const (
	ActionCaseCreated            Action = "case_created"
	ActionAnswerRecorded         Action = "answer_recorded"
	ActionCaseEvaluated          Action = "case_evaluated"
	ActionRecalculationCompleted Action = "recalculation_completed"
)

// Event is one audit record. ID is assigned at emit time and carried through
// Kafka so the consumer can materialize idempotently.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Action    Action            `json:"action"`
	CaseID    domain.CaseID     `json:"case_id"`
	Actor     string            `json:"actor,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Detail    map[string]string `json:"detail,omitempty"`
}
