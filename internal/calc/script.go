package calc

import (
	"fmt"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"canlaw/internal/slot"
	"canlaw/pkg/domain"
)

// wallClockCancelReason is matched against interpreter errors to classify a
// wall-clock cancellation as a budget violation.
const wallClockCancelReason = "wall-clock budget exceeded"

// scriptRunner executes the script strategy inside a Starlark interpreter.
// The sandbox contract: no ambient I/O, no module loading, the predeclared
// environment is exactly the inputs dict, and both an instruction-step cap
// and a wall-clock deadline are enforced with cancellation.
type scriptRunner struct {
	maxSteps uint64
	timeout  time.Duration
}

func (r *scriptRunner) run(key slot.Key, script slot.Script, inputs map[slot.Key]domain.Value) (domain.Value, error) {
	// Slot configurations come from an untrusted authoring process; a spec
	// that opts out of sandboxing is an authoring error, not a request to
	// run unsandboxed.
	if !script.Sandboxed {
		return domain.Value{}, &ScriptError{SlotKey: key, Reason: "script strategy requires sandboxed=true"}
	}

	inputsDict := starlark.NewDict(len(inputs))
	for k, v := range inputs {
		sv, err := toStarlark(v)
		if err != nil {
			return domain.Value{}, &ScriptError{SlotKey: key, Reason: err.Error()}
		}
		if err := inputsDict.SetKey(starlark.String(k), sv); err != nil {
			return domain.Value{}, &ScriptError{SlotKey: key, Reason: err.Error()}
		}
	}

	thread := &starlark.Thread{Name: "calc:" + string(key)}
	thread.SetMaxExecutionSteps(r.maxSteps)
	timer := time.AfterFunc(r.timeout, func() {
		thread.Cancel(wallClockCancelReason)
	})
	defer timer.Stop()

	globals, err := starlark.ExecFileOptions(
		&syntax.FileOptions{},
		thread,
		string(key)+".star",
		script.Source,
		starlark.StringDict{"inputs": inputsDict},
	)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, wallClockCancelReason) {
			return domain.Value{}, &ScriptBudgetError{SlotKey: key, Reason: wallClockCancelReason}
		}
		if strings.Contains(msg, "too many steps") {
			return domain.Value{}, &ScriptBudgetError{SlotKey: key, Reason: "step budget exceeded"}
		}
		return domain.Value{}, &ScriptError{SlotKey: key, Reason: msg}
	}

	result, ok := globals["result"]
	if !ok {
		return domain.Value{}, &ScriptError{SlotKey: key, Reason: "script must assign a global named result"}
	}
	out, err := fromStarlark(result)
	if err != nil {
		return domain.Value{}, &ScriptError{SlotKey: key, Reason: err.Error()}
	}
	return out, nil
}

func toStarlark(v domain.Value) (starlark.Value, error) {
	switch v.Kind() {
	case domain.KindMissing, domain.KindNull:
		return starlark.None, nil
	case domain.KindBool:
		b, _ := v.Bool()
		return starlark.Bool(b), nil
	case domain.KindNumber:
		n, _ := v.Number()
		return starlark.Float(n), nil
	case domain.KindString:
		s, _ := v.Text()
		return starlark.String(s), nil
	case domain.KindList:
		items, _ := v.Items()
		elems := make([]starlark.Value, 0, len(items))
		for _, item := range items {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			elems = append(elems, sv)
		}
		return starlark.NewList(elems), nil
	case domain.KindRecord:
		fields, _ := v.Fields()
		dict := starlark.NewDict(len(fields))
		for k, field := range fields {
			sv, err := toStarlark(field)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	}
	return nil, fmt.Errorf("cannot convert %s value to script input", v.Kind())
}

func fromStarlark(v starlark.Value) (domain.Value, error) {
	switch t := v.(type) {
	case starlark.NoneType:
		return domain.NullValue(), nil
	case starlark.Bool:
		return domain.BoolValue(bool(t)), nil
	case starlark.Int, starlark.Float:
		f, ok := starlark.AsFloat(v)
		if !ok {
			return domain.Value{}, fmt.Errorf("script result %s does not fit a number", v.String())
		}
		return domain.NumberValue(f), nil
	case starlark.String:
		return domain.StringValue(string(t)), nil
	case *starlark.List:
		items := make([]domain.Value, 0, t.Len())
		for i := range t.Len() {
			item, err := fromStarlark(t.Index(i))
			if err != nil {
				return domain.Value{}, err
			}
			items = append(items, item)
		}
		return domain.ListValue(items...), nil
	case starlark.Tuple:
		items := make([]domain.Value, 0, t.Len())
		for i := range t.Len() {
			item, err := fromStarlark(t.Index(i))
			if err != nil {
				return domain.Value{}, err
			}
			items = append(items, item)
		}
		return domain.ListValue(items...), nil
	case *starlark.Dict:
		fields := make(map[string]domain.Value, t.Len())
		for _, kv := range t.Items() {
			k, ok := starlark.AsString(kv[0])
			if !ok {
				return domain.Value{}, fmt.Errorf("script result dict key %s is not a string", kv[0].String())
			}
			field, err := fromStarlark(kv[1])
			if err != nil {
				return domain.Value{}, err
			}
			fields[k] = field
		}
		return domain.RecordValue(fields), nil
	}
	return domain.Value{}, fmt.Errorf("script result type %s is not supported", v.Type())
}
