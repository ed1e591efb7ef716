// Package interview decides what to ask next. It filters the input slots of
// a case's scope through visibility and skip rules, orders the survivors by
// importance, and derives the interview status on demand.
package interview

import (
	"context"
	"log/slog"
	"sort"

	"canlaw/internal/casefile"
	"canlaw/internal/rule"
	"canlaw/internal/slot"
	slotstore "canlaw/internal/slot/store"
	"canlaw/pkg/domain"
	dErrors "canlaw/pkg/domain-errors"
)

// Registry is the slot listing the engine reads.
type Registry interface {
	ListActive(ctx context.Context, filter slotstore.ScopeFilter, categories ...slot.Category) ([]*slot.Slot, error)
}

// Engine computes next questions and interview status. It is stateless.
type Engine struct {
	registry Registry
	logger   *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func New(registry Registry, opts ...Option) *Engine {
	e := &Engine{registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NextQuestions returns the unanswered, visible, non-skipped input slots for
// the case, most important first. Slots below the importance floor are left
// out; maxCount caps the result, with zero or negative meaning no cap. The
// sort is stable, so slots of equal importance keep registry order.
func (e *Engine) NextQuestions(ctx context.Context, c *casefile.Case, maxCount int, importanceFloor slot.Importance) ([]*slot.Slot, error) {
	applicable, err := e.applicableInputs(ctx, c)
	if err != nil {
		return nil, err
	}

	questions := make([]*slot.Slot, 0, len(applicable))
	for _, sl := range applicable {
		if answered(c, sl.Key) {
			continue
		}
		if sl.Importance.Rank() > importanceFloor.Rank() {
			continue
		}
		questions = append(questions, sl)
	}

	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Importance.Rank() < questions[j].Importance.Rank()
	})
	if maxCount > 0 && len(questions) > maxCount {
		questions = questions[:maxCount]
	}
	return questions, nil
}

// Status derives the interview lifecycle from the applicable question set.
// It is never stored: earlier answers change which questions apply, so a
// case may move back from complete when an answer reveals new questions.
func (e *Engine) Status(ctx context.Context, c *casefile.Case) (casefile.Status, error) {
	applicable, err := e.applicableInputs(ctx, c)
	if err != nil {
		return "", err
	}
	// Draft hinges on answered inputs only: calculated values in SlotValues
	// (a zero-dependency slot can be evaluated before any answer) do not
	// start the interview.
	var answeredInputs, unanswered int
	for _, sl := range applicable {
		if answered(c, sl.Key) {
			answeredInputs++
		} else {
			unanswered++
		}
	}
	switch {
	case unanswered == 0:
		return casefile.StatusComplete, nil
	case answeredInputs == 0:
		return casefile.StatusDraft, nil
	default:
		return casefile.StatusInProgress, nil
	}
}

// applicableInputs lists the active input slots in scope that are visible
// and not skipped given the case's current values.
func (e *Engine) applicableInputs(ctx context.Context, c *casefile.Case) ([]*slot.Slot, error) {
	filter := slotstore.ScopeFilter{Jurisdiction: c.Jurisdiction, Domain: c.Domain}
	inputs, err := e.registry.ListActive(ctx, filter, slot.CategoryInput)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "slot registry unavailable")
	}

	applicable := make([]*slot.Slot, 0, len(inputs))
	for _, sl := range inputs {
		visible, err := e.visible(sl, c.SlotValues)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		if sl.SkipIf != nil {
			skip, err := rule.Evaluate(*sl.SkipIf, c.SlotValues)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation,
					"skip rule for slot "+string(sl.Key)+" is malformed")
			}
			if skip {
				continue
			}
		}
		applicable = append(applicable, sl)
	}
	return applicable, nil
}

// visible applies the slot's visibility gate: every show_when rule must
// hold and no hide_when rule may hold. A slot without visibility is always
// visible.
func (e *Engine) visible(sl *slot.Slot, values map[slot.Key]domain.Value) (bool, error) {
	if sl.Visibility == nil {
		return true, nil
	}
	show, err := rule.EvaluateAll(sl.Visibility.ShowWhen, values)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInvariantViolation,
			"visibility rules for slot "+string(sl.Key)+" are malformed")
	}
	if !show {
		return false, nil
	}
	hide, err := rule.EvaluateAny(sl.Visibility.HideWhen, values)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInvariantViolation,
			"visibility rules for slot "+string(sl.Key)+" are malformed")
	}
	return !hide, nil
}

// answered reports whether the case carries a value for the slot. An
// explicit null answer counts as answered; only absence keeps a question
// open.
func answered(c *casefile.Case, key slot.Key) bool {
	v, ok := c.SlotValues[key]
	return ok && !v.IsMissing()
}
