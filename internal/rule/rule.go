// Package rule evaluates conditional rules against a case's current values.
// It is the single implementation behind both decision tree conditions and
// interview visibility/skip logic, so the two engines can never drift apart
// on operator semantics.
package rule

import (
	"fmt"
	"strings"

	"canlaw/internal/slot"
	"canlaw/pkg/domain"
)

// UnknownOperatorError marks an operator this evaluator does not implement.
// It is an authoring-time data error: surfaced to the caller, never a panic.
type UnknownOperatorError struct {
	Operator slot.Operator
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown rule operator %q", e.Operator)
}

// MalformedRuleError marks a rule whose comparison value has the wrong shape
// for its operator (e.g. a scalar operand for the "in" operator).
type MalformedRuleError struct {
	Operator slot.Operator
	Reason   string
}

func (e *MalformedRuleError) Error() string {
	return fmt.Sprintf("malformed %q rule: %s", e.Operator, e.Reason)
}

// Evaluate applies one rule to the values map. A slot absent from the map is
// Missing, and every branch below handles Missing explicitly:
//
//   - Exists is true when the value is present and non-null; NotExists is
//     its exact negation.
//   - Every comparison operator (Equals through Contains) is false when the
//     target value is Missing. A question that has not been answered cannot
//     satisfy, or fail to satisfy, a comparison.
func Evaluate(r slot.Rule, values map[slot.Key]domain.Value) (bool, error) {
	target := values[r.Slot] // zero Value is Missing

	switch r.Operator {
	case slot.OpExists:
		return !target.IsMissing() && !target.IsNull(), nil
	case slot.OpNotExists:
		return target.IsMissing() || target.IsNull(), nil
	}

	if target.IsMissing() {
		return false, nil
	}

	switch r.Operator {
	case slot.OpEquals:
		return target.Equal(r.Value), nil
	case slot.OpNotEquals:
		return !target.Equal(r.Value), nil
	case slot.OpGreaterThan:
		return compare(target, r.Value, func(c int) bool { return c > 0 })
	case slot.OpLessThan:
		return compare(target, r.Value, func(c int) bool { return c < 0 })
	case slot.OpIn:
		return membership(target, r)
	case slot.OpNotIn:
		in, err := membership(target, r)
		if err != nil {
			return false, err
		}
		return !in, nil
	case slot.OpContains:
		return contains(target, r.Value), nil
	}
	return false, &UnknownOperatorError{Operator: r.Operator}
}

// EvaluateAll reports whether every rule holds. An empty slice holds.
func EvaluateAll(rules []slot.Rule, values map[slot.Key]domain.Value) (bool, error) {
	for _, r := range rules {
		ok, err := Evaluate(r, values)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// EvaluateAny reports whether at least one rule holds. An empty slice does
// not hold.
func EvaluateAny(rules []slot.Rule, values map[slot.Key]domain.Value) (bool, error) {
	for _, r := range rules {
		ok, err := Evaluate(r, values)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// compare orders two values of the same scalar kind. Numbers order
// numerically; strings order lexically, which sorts ISO dates correctly.
// Mixed or unorderable kinds never satisfy the comparison.
func compare(target, operand domain.Value, accept func(int) bool) (bool, error) {
	if tn, ok := target.Number(); ok {
		on, ok := operand.Number()
		if !ok {
			return false, nil
		}
		switch {
		case tn < on:
			return accept(-1), nil
		case tn > on:
			return accept(1), nil
		default:
			return accept(0), nil
		}
	}
	if ts, ok := target.Text(); ok {
		os, ok := operand.Text()
		if !ok {
			return false, nil
		}
		return accept(strings.Compare(ts, os)), nil
	}
	return false, nil
}

func membership(target domain.Value, r slot.Rule) (bool, error) {
	items, ok := r.Value.Items()
	if !ok {
		return false, &MalformedRuleError{Operator: r.Operator, Reason: "comparison value must be a list"}
	}
	for _, item := range items {
		if target.Equal(item) {
			return true, nil
		}
	}
	return false, nil
}

// contains checks list membership when the target is a list, or substring
// containment when both sides are strings.
func contains(target, operand domain.Value) bool {
	if items, ok := target.Items(); ok {
		for _, item := range items {
			if item.Equal(operand) {
				return true
			}
		}
		return false
	}
	ts, ok := target.Text()
	if !ok {
		return false
	}
	os, ok := operand.Text()
	if !ok {
		return false
	}
	return strings.Contains(ts, os)
}
