package calc

import (
	"fmt"
	"sort"
	"strings"

	"canlaw/internal/slot"
)

// MissingDependencyError reports declared dependencies absent from the
// inputs map. It names all missing keys, and it is fatal to the single
// evaluation: on_error policies never apply to it.
type MissingDependencyError struct {
	SlotKey slot.Key
	Missing []slot.Key
}

func (e *MissingDependencyError) Error() string {
	names := make([]string, 0, len(e.Missing))
	for _, k := range e.Missing {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return fmt.Sprintf("slot %s: missing dependencies: %s", e.SlotKey, strings.Join(names, ", "))
}

// MalformedExpressionError reports a formula that does not parse. This is an
// authoring-time data error: surfaced, never a panic.
type MalformedExpressionError struct {
	Expression string
	Pos        int
	Reason     string
}

func (e *MalformedExpressionError) Error() string {
	return fmt.Sprintf("malformed expression at offset %d: %s", e.Pos, e.Reason)
}

// ScriptBudgetError reports a script terminated for exceeding its step or
// wall-clock budget. Subject to the slot's on_error policy like any other
// strategy error.
type ScriptBudgetError struct {
	SlotKey slot.Key
	Reason  string
}

func (e *ScriptBudgetError) Error() string {
	return fmt.Sprintf("slot %s: script budget exceeded: %s", e.SlotKey, e.Reason)
}

// ScriptError reports a script that failed for any non-budget reason:
// refused sandbox flag, runtime error, or a result the engine cannot
// convert.
type ScriptError struct {
	SlotKey slot.Key
	Reason  string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("slot %s: script failed: %s", e.SlotKey, e.Reason)
}
