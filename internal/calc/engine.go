// Package calc evaluates one slot's derived value from its already-known
// dependency values. Strategy dispatch is an exhaustive switch over the
// closed slot.Strategy union; adding a strategy is a compile-checked change.
package calc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"canlaw/internal/calc/metrics"
	"canlaw/internal/slot"
	"canlaw/pkg/domain"
	"canlaw/pkg/requestcontext"
)

// Defaults for the script sandbox budget; overridable per engine.
const (
	DefaultScriptMaxSteps = uint64(500_000)
	DefaultScriptTimeout  = 2 * time.Second
)

// Result is the audit record of one evaluation. DependencySnapshot is the
// exact inputs subset consumed, so the evaluation is reproducible later.
// Err is non-nil when the strategy failed; for degraded outcomes
// (use_default, return_null) Value still carries the substituted result.
type Result struct {
	SlotKey            slot.Key
	Value              domain.Value
	Timestamp          time.Time
	DependencySnapshot map[slot.Key]domain.Value
	Err                error
}

// Engine evaluates calculation specs. It is stateless and safe for
// concurrent use.
type Engine struct {
	script  scriptRunner
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithScriptBudget overrides the sandbox step cap and wall-clock deadline.
func WithScriptBudget(maxSteps uint64, timeout time.Duration) Option {
	return func(e *Engine) {
		e.script.maxSteps = maxSteps
		e.script.timeout = timeout
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		script: scriptRunner{maxSteps: DefaultScriptMaxSteps, timeout: DefaultScriptTimeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs one calculation against its dependency values.
//
// Missing declared dependencies are fatal to the evaluation and bypass the
// on_error policy entirely; the error names every missing key. Strategy
// failures go through on_error: Fail returns the error (the Result still
// carries the snapshot for the audit log), UseDefault and ReturnNull
// substitute a value and record the error on the Result.
func (e *Engine) Evaluate(ctx context.Context, key slot.Key, calc *slot.Calculation, inputs map[slot.Key]domain.Value) (*Result, error) {
	start := time.Now()
	result := &Result{
		SlotKey:            key,
		Timestamp:          requestcontext.Now(ctx),
		DependencySnapshot: snapshot(calc.Dependencies, inputs),
	}

	var missing []slot.Key
	for _, dep := range calc.Dependencies {
		if inputs[dep].IsMissing() {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		result.Err = &MissingDependencyError{SlotKey: key, Missing: missing}
		e.observe(calc, "missing_dependency", start)
		return result, result.Err
	}

	value, err := e.dispatch(key, calc, result.DependencySnapshot)
	if err != nil {
		return e.recover(ctx, calc, result, err, start)
	}

	if calc.Precision != nil {
		if n, ok := value.Number(); ok {
			value = domain.NumberValue(roundHalfAwayFromZero(n, *calc.Precision))
		}
	}
	result.Value = value
	e.observe(calc, "success", start)
	return result, nil
}

// dispatch is the exhaustive strategy switch.
func (e *Engine) dispatch(key slot.Key, calc *slot.Calculation, inputs map[slot.Key]domain.Value) (domain.Value, error) {
	switch st := calc.Strategy.(type) {
	case slot.Formula:
		return evaluateFormula(st.Expression, inputs)
	case slot.Script:
		return e.script.run(key, st, inputs)
	case slot.DecisionTree:
		return evaluateTree(st.Root, inputs)
	case slot.LookupTable:
		return evaluateLookup(st, inputs)
	}
	return domain.Value{}, fmt.Errorf("slot %s: unhandled calculation strategy %T", key, calc.Strategy)
}

// recover applies the on_error policy to a strategy failure. The error is
// always recorded on the Result; the policy only decides the visible value
// and whether the caller sees an error return.
func (e *Engine) recover(ctx context.Context, calc *slot.Calculation, result *Result, err error, start time.Time) (*Result, error) {
	result.Err = err
	switch calc.OnError {
	case slot.OnErrorUseDefault:
		result.Value = calc.OnErrorValue
		if e.logger != nil {
			e.logger.WarnContext(ctx, "calculation degraded to default",
				"slot_key", result.SlotKey,
				"error", err,
			)
		}
		e.observe(calc, "defaulted", start)
		return result, nil
	case slot.OnErrorReturnNull:
		result.Value = domain.NullValue()
		if e.logger != nil {
			e.logger.WarnContext(ctx, "calculation degraded to null",
				"slot_key", result.SlotKey,
				"error", err,
			)
		}
		e.observe(calc, "nulled", start)
		return result, nil
	default: // OnErrorFail
		e.observe(calc, "failed", start)
		return result, err
	}
}

func (e *Engine) observe(calc *slot.Calculation, outcome string, start time.Time) {
	e.metrics.ObserveEvaluation(calc.Strategy.Name(), outcome, time.Since(start))
}

// snapshot copies exactly the declared dependency values out of the working
// map. Missing entries stay absent so the snapshot mirrors what the case
// knew at evaluation time.
func snapshot(deps []slot.Key, inputs map[slot.Key]domain.Value) map[slot.Key]domain.Value {
	out := make(map[slot.Key]domain.Value, len(deps))
	for _, dep := range deps {
		if v, ok := inputs[dep]; ok && !v.IsMissing() {
			out[dep] = v
		}
	}
	return out
}
