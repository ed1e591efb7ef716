package calc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canlaw/internal/slot"
	"canlaw/pkg/domain"
)

func scriptCalc(source string, deps ...string) *slot.Calculation {
	depKeys := make([]slot.Key, 0, len(deps))
	for _, d := range deps {
		depKeys = append(depKeys, slot.Key(d))
	}
	return &slot.Calculation{
		Strategy:     slot.Script{Source: source, Sandboxed: true},
		Dependencies: depKeys,
	}
}

func TestScriptEvaluation(t *testing.T) {
	e := New()

	t.Run("computes from inputs", func(t *testing.T) {
		src := `
salary = inputs["annual_salary"]
years = inputs["years_of_service"]
result = salary / 52 * min(years, 8)
`
		result, err := e.Evaluate(context.Background(), "cap", scriptCalc(src, "annual_salary", "years_of_service"),
			map[slot.Key]domain.Value{
				"annual_salary":    domain.NumberValue(52000),
				"years_of_service": domain.NumberValue(3),
			})
		require.NoError(t, err)
		n, ok := result.Value.Number()
		require.True(t, ok)
		assert.InDelta(t, 3000, n, 1e-9)
	})

	t.Run("structured result", func(t *testing.T) {
		src := `result = {"eligible": True, "weeks": 8}`
		result, err := e.Evaluate(context.Background(), "k", scriptCalc(src), nil)
		require.NoError(t, err)
		fields, ok := result.Value.Fields()
		require.True(t, ok)
		assert.True(t, fields["eligible"].Equal(domain.BoolValue(true)))
		assert.True(t, fields["weeks"].Equal(domain.NumberValue(8)))
	})

	t.Run("missing result global", func(t *testing.T) {
		_, err := e.Evaluate(context.Background(), "k", scriptCalc(`x = 1`), nil)
		require.Error(t, err)
		var scriptErr *ScriptError
		require.ErrorAs(t, err, &scriptErr)
		assert.Contains(t, scriptErr.Reason, "result")
	})

	t.Run("unsandboxed spec refused", func(t *testing.T) {
		calc := scriptCalc(`result = 1`)
		st := calc.Strategy.(slot.Script)
		st.Sandboxed = false
		calc.Strategy = st

		_, err := e.Evaluate(context.Background(), "k", calc, nil)
		require.Error(t, err)
		var scriptErr *ScriptError
		require.ErrorAs(t, err, &scriptErr)
	})

	t.Run("runtime error surfaces", func(t *testing.T) {
		_, err := e.Evaluate(context.Background(), "k", scriptCalc(`result = 1 / 0`), nil)
		require.Error(t, err)
		var scriptErr *ScriptError
		require.ErrorAs(t, err, &scriptErr)
	})
}

func TestScriptStepBudget(t *testing.T) {
	e := New(WithScriptBudget(10_000, time.Second))
	src := `
total = 0
for i in range(1000000):
    total += i
result = total
`
	_, err := e.Evaluate(context.Background(), "runaway", scriptCalc(src), nil)
	require.Error(t, err)
	var budget *ScriptBudgetError
	require.ErrorAs(t, err, &budget)
}

func TestScriptBudgetSubjectToOnError(t *testing.T) {
	e := New(WithScriptBudget(1_000, time.Second))
	calc := scriptCalc(`
total = 0
for i in range(1000000):
    total += i
result = total
`)
	calc.OnError = slot.OnErrorReturnNull

	result, err := e.Evaluate(context.Background(), "runaway", calc, nil)
	require.NoError(t, err)
	assert.True(t, result.Value.IsNull())
	var budget *ScriptBudgetError
	require.ErrorAs(t, result.Err, &budget)
}

func TestScriptHasNoAmbientEnvironment(t *testing.T) {
	e := New()
	// No open, no load, no os: the predeclared environment is inputs only.
	for _, src := range []string{
		`result = open("/etc/passwd")`,
		`load("module.star", "thing"); result = 1`,
	} {
		_, err := e.Evaluate(context.Background(), "k", scriptCalc(src), nil)
		require.Error(t, err, "source: %s", src)
	}
}
