//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"canlaw/internal/audit"
	"canlaw/pkg/domain"
	"canlaw/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
}

func TestPostgresAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = audit.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresAuditSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_outbox", "audit_events"))
}

func (s *PostgresAuditSuite) newEvent(caseID domain.CaseID, action audit.Action) audit.Event {
	return audit.Event{
		ID:        uuid.New(),
		Action:    action,
		CaseID:    caseID,
		Actor:     "intake-service",
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresAuditSuite) TestOutboxLifecycle() {
	ctx := context.Background()
	caseID := domain.NewCaseID()

	first := s.newEvent(caseID, audit.ActionCaseCreated)
	second := s.newEvent(caseID, audit.ActionAnswerRecorded)
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, second))

	pending, err := s.store.PendingOutbox(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(first.ID, pending[0].ID)
	s.Equal(second.ID, pending[1].ID)
	s.Equal(uuid.UUID(caseID), pending[0].CaseID)

	var decoded audit.Event
	s.Require().NoError(json.Unmarshal(pending[0].Payload, &decoded))
	s.Equal(audit.ActionCaseCreated, decoded.Action)
	s.Equal("intake-service", decoded.Actor)

	s.Require().NoError(s.store.MarkPublished(ctx, first.ID))
	pending, err = s.store.PendingOutbox(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(second.ID, pending[0].ID)
}

func (s *PostgresAuditSuite) TestMaterializeIsIdempotent() {
	ctx := context.Background()
	caseID := domain.NewCaseID()
	event := s.newEvent(caseID, audit.ActionCaseEvaluated)
	event.Detail = map[string]string{"succeeded": "3"}

	s.Require().NoError(s.store.Materialize(ctx, event))
	// Redelivery of the same Kafka message.
	s.Require().NoError(s.store.Materialize(ctx, event))

	events, err := s.store.ListByCase(ctx, caseID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(event.ID, events[0].ID)
	s.Equal("3", events[0].Detail["succeeded"])
}

func (s *PostgresAuditSuite) TestListByCaseOrdersAndFilters() {
	ctx := context.Background()
	caseID := domain.NewCaseID()
	other := domain.NewCaseID()

	second := s.newEvent(caseID, audit.ActionRecalculationCompleted)
	first := s.newEvent(caseID, audit.ActionCaseCreated)
	first.Timestamp = second.Timestamp.Add(-time.Minute)
	unrelated := s.newEvent(other, audit.ActionCaseCreated)

	for _, e := range []audit.Event{second, first, unrelated} {
		s.Require().NoError(s.store.Materialize(ctx, e))
	}

	events, err := s.store.ListByCase(ctx, caseID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(first.ID, events[0].ID)
	s.Equal(second.ID, events[1].ID)
}
