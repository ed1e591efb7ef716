package slot

import (
	"encoding/json"
	"fmt"

	"canlaw/contracts/slotconfig"
	"canlaw/pkg/domain"
)

// FromRecord converts a validated wire record into the domain model. The
// record is validated first so a registry row corrupted outside this service
// surfaces as an authoring-time data error, not a panic downstream.
func FromRecord(rec *slotconfig.Record) (*Slot, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	category, err := parseCategory(rec.Category)
	if err != nil {
		return nil, fmt.Errorf("slot %s: %w", rec.Key, err)
	}
	dataType, err := parseDataType(rec.DataType)
	if err != nil {
		return nil, fmt.Errorf("slot %s: %w", rec.Key, err)
	}
	importance, err := parseImportance(rec.Importance)
	if err != nil {
		return nil, fmt.Errorf("slot %s: %w", rec.Key, err)
	}

	s := &Slot{
		Key:        Key(rec.Key),
		Category:   category,
		DataType:   dataType,
		Importance: importance,
		Active:     rec.Active,
	}
	if rec.Scope != nil {
		s.Scope = &Scope{Jurisdiction: rec.Scope.Jurisdiction, Domain: rec.Scope.Domain}
	}
	if rec.Visibility != nil {
		vis := &Visibility{}
		for _, r := range rec.Visibility.ShowWhen {
			rule, err := ruleFromRecord(r)
			if err != nil {
				return nil, fmt.Errorf("slot %s: show_when: %w", rec.Key, err)
			}
			vis.ShowWhen = append(vis.ShowWhen, rule)
		}
		for _, r := range rec.Visibility.HideWhen {
			rule, err := ruleFromRecord(r)
			if err != nil {
				return nil, fmt.Errorf("slot %s: hide_when: %w", rec.Key, err)
			}
			vis.HideWhen = append(vis.HideWhen, rule)
		}
		s.Visibility = vis
	}
	if rec.SkipIf != nil {
		rule, err := ruleFromRecord(*rec.SkipIf)
		if err != nil {
			return nil, fmt.Errorf("slot %s: skip_if: %w", rec.Key, err)
		}
		s.SkipIf = &rule
	}
	if rec.Calculation != nil {
		calc, err := calculationFromRecord(rec.Calculation)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", rec.Key, err)
		}
		s.Calculation = calc
	}
	return s, nil
}

// ToRecord converts a domain slot back to its wire record, used by the
// registry stores to persist slots in the contract shape.
func ToRecord(s *Slot) (*slotconfig.Record, error) {
	rec := &slotconfig.Record{
		Key:        string(s.Key),
		Category:   s.Category.String(),
		DataType:   s.DataType.String(),
		Importance: s.Importance.String(),
		Active:     s.Active,
	}
	if s.Scope != nil {
		rec.Scope = &slotconfig.Scope{Jurisdiction: s.Scope.Jurisdiction, Domain: s.Scope.Domain}
	}
	if s.Visibility != nil {
		vis := &slotconfig.Visibility{}
		for _, r := range s.Visibility.ShowWhen {
			wire, err := ruleToRecord(r)
			if err != nil {
				return nil, err
			}
			vis.ShowWhen = append(vis.ShowWhen, wire)
		}
		for _, r := range s.Visibility.HideWhen {
			wire, err := ruleToRecord(r)
			if err != nil {
				return nil, err
			}
			vis.HideWhen = append(vis.HideWhen, wire)
		}
		rec.Visibility = vis
	}
	if s.SkipIf != nil {
		wire, err := ruleToRecord(*s.SkipIf)
		if err != nil {
			return nil, err
		}
		rec.SkipIf = &wire
	}
	if s.Calculation != nil {
		calc, err := calculationToRecord(s.Calculation)
		if err != nil {
			return nil, err
		}
		rec.Calculation = calc
	}
	return rec, nil
}

func calculationFromRecord(c *slotconfig.Calculation) (*Calculation, error) {
	deps := make([]Key, 0, len(c.Dependencies))
	for _, d := range c.Dependencies {
		deps = append(deps, Key(d))
	}

	calc := &Calculation{Dependencies: deps, Precision: c.Precision}

	switch c.OnError {
	case "", slotconfig.OnErrorFail:
		calc.OnError = OnErrorFail
	case slotconfig.OnErrorUseDefault:
		calc.OnError = OnErrorUseDefault
		v, err := domain.ValueFromJSON(c.OnErrorValue)
		if err != nil {
			return nil, fmt.Errorf("on_error_value: %w", err)
		}
		calc.OnErrorValue = v
	case slotconfig.OnErrorReturnNull:
		calc.OnError = OnErrorReturnNull
	default:
		return nil, fmt.Errorf("unknown on_error policy %q", c.OnError)
	}

	switch c.Strategy {
	case slotconfig.StrategyFormula:
		calc.Strategy = Formula{Expression: c.Expression}
	case slotconfig.StrategyScript:
		calc.Strategy = Script{Source: c.Source, Sandboxed: c.Sandboxed}
	case slotconfig.StrategyDecisionTree:
		root, err := treeFromRecord(c.Root)
		if err != nil {
			return nil, err
		}
		calc.Strategy = DecisionTree{Root: root}
	case slotconfig.StrategyLookupTable:
		mapping := make(map[string]domain.Value, len(c.Mapping))
		for k, raw := range c.Mapping {
			v, err := domain.ValueFromJSON(raw)
			if err != nil {
				return nil, fmt.Errorf("mapping[%s]: %w", k, err)
			}
			mapping[k] = v
		}
		def, err := domain.ValueFromJSON(c.DefaultValue)
		if err != nil {
			return nil, fmt.Errorf("default_value: %w", err)
		}
		if def.IsMissing() {
			def = domain.NullValue()
		}
		calc.Strategy = LookupTable{KeySlot: Key(c.KeySlot), Mapping: mapping, Default: def}
	default:
		return nil, fmt.Errorf("unknown calculation strategy %q", c.Strategy)
	}
	return calc, nil
}

func calculationToRecord(c *Calculation) (*slotconfig.Calculation, error) {
	deps := make([]string, 0, len(c.Dependencies))
	for _, d := range c.Dependencies {
		deps = append(deps, string(d))
	}
	rec := &slotconfig.Calculation{Dependencies: deps, Precision: c.Precision}

	switch c.OnError {
	case OnErrorFail:
		rec.OnError = slotconfig.OnErrorFail
	case OnErrorUseDefault:
		rec.OnError = slotconfig.OnErrorUseDefault
		raw, err := json.Marshal(c.OnErrorValue)
		if err != nil {
			return nil, err
		}
		rec.OnErrorValue = raw
	case OnErrorReturnNull:
		rec.OnError = slotconfig.OnErrorReturnNull
	}

	switch st := c.Strategy.(type) {
	case Formula:
		rec.Strategy = slotconfig.StrategyFormula
		rec.Expression = st.Expression
	case Script:
		rec.Strategy = slotconfig.StrategyScript
		rec.Source = st.Source
		rec.Sandboxed = st.Sandboxed
	case DecisionTree:
		rec.Strategy = slotconfig.StrategyDecisionTree
		root, err := treeToRecord(st.Root)
		if err != nil {
			return nil, err
		}
		rec.Root = root
	case LookupTable:
		rec.Strategy = slotconfig.StrategyLookupTable
		rec.KeySlot = string(st.KeySlot)
		rec.Mapping = make(map[string]json.RawMessage, len(st.Mapping))
		for k, v := range st.Mapping {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			rec.Mapping[k] = raw
		}
		raw, err := json.Marshal(st.Default)
		if err != nil {
			return nil, err
		}
		rec.DefaultValue = raw
	default:
		return nil, fmt.Errorf("unknown strategy type %T", c.Strategy)
	}
	return rec, nil
}

func treeFromRecord(n *slotconfig.TreeNode) (*TreeNode, error) {
	if n == nil {
		return nil, nil
	}
	node := &TreeNode{}
	if n.Condition != nil {
		rule, err := ruleFromRecord(*n.Condition)
		if err != nil {
			return nil, err
		}
		node.Condition = &rule
	}
	v, err := domain.ValueFromJSON(n.Value)
	if err != nil {
		return nil, fmt.Errorf("tree node value: %w", err)
	}
	node.Value = v
	for _, child := range n.Children {
		converted, err := treeFromRecord(child)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, converted)
	}
	return node, nil
}

func treeToRecord(n *TreeNode) (*slotconfig.TreeNode, error) {
	if n == nil {
		return nil, nil
	}
	rec := &slotconfig.TreeNode{}
	if n.Condition != nil {
		wire, err := ruleToRecord(*n.Condition)
		if err != nil {
			return nil, err
		}
		rec.Condition = &wire
	}
	if !n.Value.IsMissing() {
		raw, err := json.Marshal(n.Value)
		if err != nil {
			return nil, err
		}
		rec.Value = raw
	}
	for _, child := range n.Children {
		converted, err := treeToRecord(child)
		if err != nil {
			return nil, err
		}
		rec.Children = append(rec.Children, converted)
	}
	return rec, nil
}

func ruleFromRecord(r slotconfig.Rule) (Rule, error) {
	op, err := parseOperator(r.Operator)
	if err != nil {
		return Rule{}, err
	}
	v, err := domain.ValueFromJSON(r.Value)
	if err != nil {
		return Rule{}, fmt.Errorf("rule value: %w", err)
	}
	return Rule{Slot: Key(r.Slot), Operator: op, Value: v}, nil
}

func ruleToRecord(r Rule) (slotconfig.Rule, error) {
	wire := slotconfig.Rule{Slot: string(r.Slot), Operator: r.Operator.String()}
	if !r.Value.IsMissing() {
		raw, err := json.Marshal(r.Value)
		if err != nil {
			return slotconfig.Rule{}, err
		}
		wire.Value = raw
	}
	return wire, nil
}

func parseCategory(s string) (Category, error) {
	switch s {
	case slotconfig.CategoryInput:
		return CategoryInput, nil
	case slotconfig.CategoryCalculated:
		return CategoryCalculated, nil
	case slotconfig.CategoryOutcome:
		return CategoryOutcome, nil
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func parseDataType(s string) (DataType, error) {
	switch s {
	case slotconfig.DataTypeText:
		return DataTypeText, nil
	case slotconfig.DataTypeNumber:
		return DataTypeNumber, nil
	case slotconfig.DataTypeBoolean:
		return DataTypeBoolean, nil
	case slotconfig.DataTypeDate:
		return DataTypeDate, nil
	case slotconfig.DataTypeMoney:
		return DataTypeMoney, nil
	case slotconfig.DataTypeSingleSelect:
		return DataTypeSingleSelect, nil
	case slotconfig.DataTypeMultiSelect:
		return DataTypeMultiSelect, nil
	case slotconfig.DataTypeList:
		return DataTypeList, nil
	case slotconfig.DataTypeRecord:
		return DataTypeRecord, nil
	case slotconfig.DataTypeFileReference:
		return DataTypeFileReference, nil
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}

// ParseImportance maps the wire name to an Importance. Used for query
// parameters as well as record decoding.
func ParseImportance(s string) (Importance, error) {
	return parseImportance(s)
}

func parseImportance(s string) (Importance, error) {
	switch s {
	case slotconfig.ImportanceCritical:
		return ImportanceCritical, nil
	case slotconfig.ImportanceHigh:
		return ImportanceHigh, nil
	case slotconfig.ImportanceModerate:
		return ImportanceModerate, nil
	case slotconfig.ImportanceLow:
		return ImportanceLow, nil
	}
	return 0, fmt.Errorf("unknown importance %q", s)
}

func parseOperator(s string) (Operator, error) {
	switch s {
	case slotconfig.OperatorEquals:
		return OpEquals, nil
	case slotconfig.OperatorNotEquals:
		return OpNotEquals, nil
	case slotconfig.OperatorGreaterThan:
		return OpGreaterThan, nil
	case slotconfig.OperatorLessThan:
		return OpLessThan, nil
	case slotconfig.OperatorIn:
		return OpIn, nil
	case slotconfig.OperatorNotIn:
		return OpNotIn, nil
	case slotconfig.OperatorContains:
		return OpContains, nil
	case slotconfig.OperatorExists:
		return OpExists, nil
	case slotconfig.OperatorNotExists:
		return OpNotExists, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}
