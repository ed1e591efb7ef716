// Package service orchestrates case evaluation: it owns the case lock,
// drives the resolver and calculation engine layer by layer, and persists
// values and the calculation log atomically.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"canlaw/internal/audit"
	"canlaw/internal/calc"
	"canlaw/internal/casefile"
	"canlaw/internal/casefile/lock"
	"canlaw/internal/casefile/metrics"
	casestore "canlaw/internal/casefile/store"
	"canlaw/internal/resolver"
	"canlaw/internal/slot"
	slotstore "canlaw/internal/slot/store"
	"canlaw/pkg/domain"
	dErrors "canlaw/pkg/domain-errors"
	"canlaw/pkg/platform/sentinel"
	"canlaw/pkg/requestcontext"
)

// DefaultParallelism caps how many same-layer slots evaluate concurrently.
const DefaultParallelism = 4

// Registry is the slot configuration the orchestrator reads.
type Registry interface {
	GetSlot(ctx context.Context, key slot.Key) (*slot.Slot, error)
	ListActive(ctx context.Context, filter slotstore.ScopeFilter, categories ...slot.Category) ([]*slot.Slot, error)
}

// Resolver orders the dependency graph into evaluation layers.
type Resolver interface {
	Analyze(ctx context.Context, keys []slot.Key) (*resolver.Analysis, error)
}

// Evaluator computes one slot from its dependency values.
type Evaluator interface {
	Evaluate(ctx context.Context, key slot.Key, c *slot.Calculation, inputs map[slot.Key]domain.Value) (*calc.Result, error)
}

// Service is the case orchestrator. All mutating operations hold the
// case-scoped lock for their full duration, so a case is never evaluated
// concurrently with itself; distinct cases run fully in parallel.
type Service struct {
	registry    Registry
	resolver    Resolver
	engine      Evaluator
	store       casestore.Store
	locker      lock.Locker
	audit       audit.Publisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	parallelism int
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAudit(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

// WithParallelism caps concurrent same-layer evaluations.
func WithParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

func New(registry Registry, res Resolver, engine Evaluator, store casestore.Store, locker lock.Locker, opts ...Option) *Service {
	s := &Service{
		registry:    registry,
		resolver:    res,
		engine:      engine,
		store:       store,
		locker:      locker,
		audit:       audit.NopPublisher{},
		tracer:      otel.Tracer("canlaw/casefile"),
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCase opens a new interview case in the given scope.
func (s *Service) CreateCase(ctx context.Context, jurisdiction, legalDomain string) (*casefile.Case, error) {
	c := casefile.NewCase(domain.NewCaseID(), jurisdiction, legalDomain, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "case already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create case")
	}
	s.emit(ctx, audit.Event{
		Action: audit.ActionCaseCreated,
		CaseID: c.ID,
		Detail: map[string]string{"jurisdiction": jurisdiction, "domain": legalDomain},
	})
	if s.logger != nil {
		s.logger.InfoContext(ctx, "case created",
			"case_id", c.ID,
			"jurisdiction", jurisdiction,
			"domain", legalDomain,
		)
	}
	return c, nil
}

// GetCase loads one case by ID.
func (s *Service) GetCase(ctx context.Context, id domain.CaseID) (*casefile.Case, error) {
	c, err := s.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load case")
	}
	return c, nil
}

// SubmitAnswer validates and records one answer, then recalculates the
// forward closure of the answered slot. The case lock is held across both
// steps so the recalculation sees exactly the state it was triggered by.
func (s *Service) SubmitAnswer(ctx context.Context, id domain.CaseID, key slot.Key, value domain.Value) (*casefile.Outcome, error) {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}

	sl, err := s.registry.GetSlot(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("slot %s is not registered", key))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "slot registry unavailable")
	}
	switch {
	case !sl.Active:
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("slot %s is inactive", key))
	case sl.Category != slot.CategoryInput:
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("slot %s is not an input slot", key))
	case !sl.InScope(c.Jurisdiction, c.Domain):
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("slot %s does not apply to this case", key))
	case value.IsMissing():
		return nil, dErrors.New(dErrors.CodeValidation, "answer value is required")
	case !sl.DataType.Accepts(value):
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("answer for %s must be of type %s", key, sl.DataType))
	}

	c.SlotValues[key] = value
	if err := s.store.Save(ctx, id, c.SlotValues, c.Log); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save answer")
	}
	s.metrics.IncrementAnswers()
	s.emit(ctx, audit.Event{
		Action: audit.ActionAnswerRecorded,
		CaseID: id,
		Detail: map[string]string{"slot_key": string(key)},
	})
	if s.logger != nil {
		s.logger.InfoContext(ctx, "answer recorded", "case_id", id, "slot_key", key)
	}

	return s.recalculateLocked(ctx, c, key)
}

// EvaluateAll evaluates every active calculable slot in the case's scope.
func (s *Service) EvaluateAll(ctx context.Context, id domain.CaseID) (*casefile.Outcome, error) {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}

	slots, err := s.calculableSlots(ctx, c)
	if err != nil {
		return nil, err
	}
	keys := make([]slot.Key, 0, len(slots))
	for _, sl := range slots {
		keys = append(keys, sl.Key)
	}

	outcome, err := s.runPass(ctx, "evaluate_all", c, keys)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.Event{
		Action: audit.ActionCaseEvaluated,
		CaseID: id,
		Detail: passDetail(outcome),
	})
	return outcome, nil
}

// RecalculateFrom re-evaluates exactly the forward closure of changedKey:
// every calculable slot that transitively depends on it. Values outside the
// closure are untouched.
func (s *Service) RecalculateFrom(ctx context.Context, id domain.CaseID, changedKey slot.Key) (*casefile.Outcome, error) {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.registry.GetSlot(ctx, changedKey); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("slot %s is not registered", changedKey))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "slot registry unavailable")
	}
	return s.recalculateLocked(ctx, c, changedKey)
}

// recalculateLocked runs the forward-closure pass. Caller holds the case lock.
func (s *Service) recalculateLocked(ctx context.Context, c *casefile.Case, changedKey slot.Key) (*casefile.Outcome, error) {
	affected, err := s.forwardClosure(ctx, c, changedKey)
	if err != nil {
		return nil, err
	}
	outcome, err := s.runPass(ctx, "recalculate", c, affected)
	if err != nil {
		return nil, err
	}
	detail := passDetail(outcome)
	detail["changed_slot"] = string(changedKey)
	s.emit(ctx, audit.Event{
		Action: audit.ActionRecalculationCompleted,
		CaseID: c.ID,
		Detail: detail,
	})
	return outcome, nil
}

// forwardClosure walks dependents-of edges from changedKey to fixpoint over
// the active calculable slots in scope. The changed slot itself joins the
// set when it is calculable.
func (s *Service) forwardClosure(ctx context.Context, c *casefile.Case, changedKey slot.Key) ([]slot.Key, error) {
	slots, err := s.calculableSlots(ctx, c)
	if err != nil {
		return nil, err
	}
	dependents := make(map[slot.Key][]slot.Key)
	for _, sl := range slots {
		for _, dep := range sl.Calculation.Dependencies {
			dependents[dep] = append(dependents[dep], sl.Key)
		}
	}

	seen := map[slot.Key]bool{changedKey: true}
	queue := []slot.Key{changedKey}
	var affected []slot.Key
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		for _, dependent := range dependents[key] {
			if seen[dependent] {
				continue
			}
			seen[dependent] = true
			affected = append(affected, dependent)
			queue = append(queue, dependent)
		}
	}
	for _, sl := range slots {
		if sl.Key == changedKey {
			affected = append(affected, changedKey)
			break
		}
	}
	return affected, nil
}

// runPass is the shared evaluation pipeline: resolve layers, evaluate them
// feeding results forward, log every result, save atomically.
func (s *Service) runPass(ctx context.Context, operation string, c *casefile.Case, keys []slot.Key) (*casefile.Outcome, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "casefile."+operation,
		trace.WithAttributes(
			attribute.String("case.id", c.ID.String()),
			attribute.Int("slots.requested", len(keys)),
		))
	defer span.End()

	outcome := &casefile.Outcome{CaseID: c.ID}
	if len(keys) == 0 {
		outcome.Duration = time.Since(start)
		s.metrics.ObservePass(operation, "success", outcome.Duration)
		return outcome, nil
	}

	analysis, err := s.resolver.Analyze(ctx, keys)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		s.metrics.ObservePass(operation, "error", time.Since(start))
		var cycle *resolver.CycleError
		if errors.As(err, &cycle) {
			return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, cycle.Error())
		}
		return nil, err
	}

	// The resolver pulls transitive dependencies in to order the layers, but
	// only the requested slots are evaluated. Anything else keeps its stored
	// value and participates purely as input context.
	requested := make(map[slot.Key]bool, len(keys))
	for _, key := range keys {
		requested[key] = true
	}

	working := maps.Clone(c.SlotValues)
	for _, fullLayer := range analysis.Layers {
		layer := fullLayer[:0:0]
		for _, key := range fullLayer {
			if requested[key] {
				layer = append(layer, key)
			}
		}
		if len(layer) == 0 {
			continue
		}
		results, err := s.evaluateLayer(ctx, layer, working)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "layer evaluation aborted")
			s.metrics.ObservePass(operation, "error", time.Since(start))
			return nil, err
		}
		for i, key := range layer {
			r := results[i]
			outcome.Order = append(outcome.Order, key)
			outcome.Slots = append(outcome.Slots, r.outcome)

			entry := casefile.LogEntry{
				Timestamp:          r.result.Timestamp,
				SlotKey:            key,
				DependencySnapshot: r.result.DependencySnapshot,
				Result:             r.result.Value,
			}
			if r.result.Err != nil {
				entry.Error = r.result.Err.Error()
			}
			c.Log = append(c.Log, entry)

			if r.outcome.Disposition != casefile.DispositionFailed {
				working[key] = r.result.Value
			}
			s.metrics.IncrementSlotOutcome(string(r.outcome.Disposition))
		}
	}

	c.SlotValues = working
	c.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Save(ctx, c.ID, c.SlotValues, c.Log); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		s.metrics.ObservePass(operation, "error", time.Since(start))
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save evaluation results")
	}

	outcome.Duration = time.Since(start)
	passOutcome := "success"
	if len(outcome.Failed()) > 0 {
		passOutcome = "partial"
	}
	s.metrics.ObservePass(operation, passOutcome, outcome.Duration)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "evaluation pass completed",
			"case_id", c.ID,
			"operation", operation,
			"slots", len(outcome.Slots),
			"failed", len(outcome.Failed()),
			"duration", outcome.Duration,
		)
	}
	return outcome, nil
}

// layerResult pairs the engine result with its derived disposition so the
// merge loop stays single-threaded.
type layerResult struct {
	result  *calc.Result
	outcome casefile.SlotOutcome
}

// evaluateLayer runs one layer's slots concurrently against a read-only view
// of the working values. Per-slot failures become dispositions, not errors;
// only infrastructure faults (registry unavailable, context cancelled) abort
// the pass.
func (s *Service) evaluateLayer(ctx context.Context, layer []slot.Key, working map[slot.Key]domain.Value) ([]layerResult, error) {
	results := make([]layerResult, len(layer))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, key := range layer {
		g.Go(func() error {
			sl, err := s.registry.GetSlot(gctx, key)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "slot registry unavailable")
			}
			results[i] = s.evaluateSlot(gctx, sl, working)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) evaluateSlot(ctx context.Context, sl *slot.Slot, working map[slot.Key]domain.Value) layerResult {
	ctx, span := s.tracer.Start(ctx, "casefile.evaluateSlot",
		trace.WithAttributes(attribute.String("slot.key", string(sl.Key))))
	defer span.End()

	result, err := s.engine.Evaluate(ctx, sl.Key, sl.Calculation, working)
	out := casefile.SlotOutcome{
		SlotKey:    sl.Key,
		Value:      result.Value,
		Importance: sl.Importance.String(),
	}
	switch {
	case err != nil:
		out.Disposition = casefile.DispositionFailed
		out.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "slot evaluation failed",
				"slot_key", sl.Key,
				"error", err,
			)
		}
	case result.Err != nil && sl.Calculation.OnError == slot.OnErrorReturnNull:
		out.Disposition = casefile.DispositionNulled
		out.Error = result.Err.Error()
	case result.Err != nil:
		out.Disposition = casefile.DispositionDefaulted
		out.Error = result.Err.Error()
	default:
		out.Disposition = casefile.DispositionSucceeded
	}
	return layerResult{result: result, outcome: out}
}

// calculableSlots lists the active Calculated/Outcome slots applicable to
// the case's scope.
func (s *Service) calculableSlots(ctx context.Context, c *casefile.Case) ([]*slot.Slot, error) {
	filter := slotstore.ScopeFilter{Jurisdiction: c.Jurisdiction, Domain: c.Domain}
	slots, err := s.registry.ListActive(ctx, filter, slot.CategoryCalculated, slot.CategoryOutcome)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "slot registry unavailable")
	}
	calculable := slots[:0]
	for _, sl := range slots {
		if sl.Calculable() {
			calculable = append(calculable, sl)
		}
	}
	return calculable, nil
}

// acquire takes the case lock, mapping contention to a conflict the HTTP
// layer renders as 409.
func (s *Service) acquire(ctx context.Context, id domain.CaseID) (func(), error) {
	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrLocked) {
			return nil, dErrors.New(dErrors.CodeConflict, "case is being evaluated by another request")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "case lock unavailable")
	}
	return release, nil
}

// emit publishes an audit event best-effort: the computed values are already
// durable, so a trail outage degrades to a log line rather than failing the
// operation.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if err := s.audit.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			"action", event.Action,
			"case_id", event.CaseID,
			"error", err,
		)
	}
}

func passDetail(outcome *casefile.Outcome) map[string]string {
	return map[string]string{
		"slots":     strconv.Itoa(len(outcome.Slots)),
		"failed":    strconv.Itoa(len(outcome.Failed())),
		"defaulted": strconv.Itoa(len(outcome.Defaulted())),
	}
}
