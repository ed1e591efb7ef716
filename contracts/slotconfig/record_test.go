package slotconfig

import (
	"encoding/json"
	"strings"
	"testing"
)

const severanceRecord = `{
	"key": "severance",
	"category": "outcome",
	"data_type": "money",
	"importance": "critical",
	"scope": {"jurisdiction": "ON", "domain": "employment"},
	"calculation": {
		"strategy": "formula",
		"expression": "weekly_salary * notice_weeks",
		"dependencies": ["weekly_salary", "notice_weeks"],
		"precision": 2,
		"on_error": "fail"
	},
	"active": true
}`

func TestDecode(t *testing.T) {
	rec, err := Decode([]byte(severanceRecord))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Key != "severance" {
		t.Fatalf("expected key severance, got %q", rec.Key)
	}
	if rec.Calculation.Strategy != StrategyFormula {
		t.Fatalf("expected formula strategy, got %q", rec.Calculation.Strategy)
	}
	if rec.Calculation.Precision == nil || *rec.Calculation.Precision != 2 {
		t.Fatalf("expected precision 2, got %v", rec.Calculation.Precision)
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	// The authoring pipeline may add fields this engine does not interpret.
	raw := strings.Replace(severanceRecord, `"active": true`,
		`"active": true, "review_notes": "approved by counsel", "version": 7`, 1)
	rec, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode with extra fields: %v", err)
	}
	if rec.Key != "severance" {
		t.Fatalf("expected key severance, got %q", rec.Key)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr string
	}{
		{
			name:    "unknown category",
			mutate:  func(r *Record) { r.Category = "derived" },
			wantErr: "unknown category",
		},
		{
			name:    "unknown importance",
			mutate:  func(r *Record) { r.Importance = "urgent" },
			wantErr: "unknown importance",
		},
		{
			name:    "calculated slot without calculation",
			mutate:  func(r *Record) { r.Calculation = nil },
			wantErr: "requires a calculation",
		},
		{
			name: "input slot with calculation",
			mutate: func(r *Record) {
				r.Category = CategoryInput
			},
			wantErr: "must not carry a calculation",
		},
		{
			name: "unknown strategy",
			mutate: func(r *Record) {
				r.Calculation.Strategy = "regex"
			},
			wantErr: "unknown calculation strategy",
		},
		{
			name: "formula without expression",
			mutate: func(r *Record) {
				r.Calculation.Expression = ""
			},
			wantErr: "requires expression",
		},
		{
			name: "use_default without value",
			mutate: func(r *Record) {
				r.Calculation.OnError = OnErrorUseDefault
			},
			wantErr: "requires on_error_value",
		},
		{
			name: "unknown rule operator",
			mutate: func(r *Record) {
				r.SkipIf = &Rule{Slot: "province", Operator: "matches"}
			},
			wantErr: "unknown operator",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Decode([]byte(severanceRecord))
			if err != nil {
				t.Fatalf("decode base record: %v", err)
			}
			tt.mutate(rec)
			err = rec.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestValidateTreeShape(t *testing.T) {
	base := func() *Record {
		return &Record{
			Key:        "notice_weeks",
			Category:   CategoryCalculated,
			DataType:   DataTypeNumber,
			Importance: ImportanceHigh,
			Active:     true,
		}
	}

	t.Run("well formed tree", func(t *testing.T) {
		rec := base()
		rec.Calculation = &Calculation{
			Strategy:     StrategyDecisionTree,
			Dependencies: []string{"years_of_service"},
			Root: &TreeNode{
				Condition: &Rule{Slot: "years_of_service", Operator: OperatorLessThan, Value: json.RawMessage(`1`)},
				Children: []*TreeNode{
					{Value: json.RawMessage(`1`)},
					{Value: json.RawMessage(`2`)},
				},
			},
		}
		if err := rec.Validate(); err != nil {
			t.Fatalf("expected valid tree, got %v", err)
		}
	})

	t.Run("three children rejected", func(t *testing.T) {
		rec := base()
		rec.Calculation = &Calculation{
			Strategy:     StrategyDecisionTree,
			Dependencies: []string{"years_of_service"},
			Root: &TreeNode{
				Condition: &Rule{Slot: "years_of_service", Operator: OperatorExists},
				Children: []*TreeNode{
					{Value: json.RawMessage(`1`)},
					{Value: json.RawMessage(`2`)},
					{Value: json.RawMessage(`3`)},
				},
			},
		}
		err := rec.Validate()
		if err == nil || !strings.Contains(err.Error(), "max 2") {
			t.Fatalf("expected max children error, got %v", err)
		}
	})

	t.Run("leaf with children rejected", func(t *testing.T) {
		rec := base()
		rec.Calculation = &Calculation{
			Strategy:     StrategyDecisionTree,
			Dependencies: []string{"years_of_service"},
			Root: &TreeNode{
				Value:    json.RawMessage(`1`),
				Children: []*TreeNode{{Value: json.RawMessage(`2`)}},
			},
		}
		err := rec.Validate()
		if err == nil || !strings.Contains(err.Error(), "leaf must not have children") {
			t.Fatalf("expected leaf shape error, got %v", err)
		}
	})
}

func TestEncodeRoundTrip(t *testing.T) {
	rec, err := Decode([]byte(severanceRecord))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	again, err := Decode(data)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if again.Calculation.Expression != rec.Calculation.Expression {
		t.Fatalf("expression changed across round trip")
	}
}
