package casefile

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	POST(path string, body any, authorized bool) error
	GET(path string) error
	LastStatus() int
	ResponseField(path string) (any, error)
	SetCaseID(id string)
	CaseID() string
}

// RegisterSteps registers case lifecycle and calculation steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &caseSteps{tc: tc}

	ctx.Step(`^I create a case in jurisdiction "([^"]*)" and domain "([^"]*)"$`, steps.createCase)
	ctx.Step(`^I create a case without a token$`, steps.createCaseUnauthorized)
	ctx.Step(`^I submit the answer "([^"]*)" = (.+)$`, steps.submitAnswer)
	ctx.Step(`^I evaluate the case$`, steps.evaluateCase)
	ctx.Step(`^I fetch the case$`, steps.fetchCase)

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^slot "([^"]*)" should equal ([\d.]+)$`, steps.slotShouldEqualNumber)
	ctx.Step(`^slot "([^"]*)" should be absent$`, steps.slotShouldBeAbsent)
}

type caseSteps struct {
	tc TestContext
}

func (s *caseSteps) createCase(ctx context.Context, jurisdiction, legalDomain string) error {
	err := s.tc.POST("/v1/cases/", map[string]string{
		"jurisdiction": jurisdiction,
		"domain":       legalDomain,
	}, true)
	if err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return fmt.Errorf("expected 201 creating case, got %d", s.tc.LastStatus())
	}
	id, err := s.tc.ResponseField("id")
	if err != nil {
		return err
	}
	caseID, ok := id.(string)
	if !ok || caseID == "" {
		return fmt.Errorf("create case response has no id")
	}
	s.tc.SetCaseID(caseID)
	return nil
}

func (s *caseSteps) createCaseUnauthorized(ctx context.Context) error {
	return s.tc.POST("/v1/cases/", map[string]string{}, false)
}

func (s *caseSteps) submitAnswer(ctx context.Context, slotKey, rawValue string) error {
	var value any
	if err := json.Unmarshal([]byte(rawValue), &value); err != nil {
		return fmt.Errorf("answer value %q is not JSON: %w", rawValue, err)
	}
	err := s.tc.POST("/v1/cases/"+s.tc.CaseID()+"/answers", map[string]any{
		"slot_key": slotKey,
		"value":    value,
	}, true)
	if err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("expected 200 submitting %s, got %d", slotKey, s.tc.LastStatus())
	}
	return nil
}

func (s *caseSteps) evaluateCase(ctx context.Context) error {
	return s.tc.POST("/v1/cases/"+s.tc.CaseID()+"/evaluate", nil, true)
}

func (s *caseSteps) fetchCase(ctx context.Context) error {
	return s.tc.GET("/v1/cases/" + s.tc.CaseID())
}

func (s *caseSteps) responseStatusShouldBe(ctx context.Context, status int) error {
	if s.tc.LastStatus() != status {
		return fmt.Errorf("expected status %d, got %d", status, s.tc.LastStatus())
	}
	return nil
}

func (s *caseSteps) slotShouldEqualNumber(ctx context.Context, slotKey, expected string) error {
	if err := s.fetchCase(ctx); err != nil {
		return err
	}
	want, err := strconv.ParseFloat(expected, 64)
	if err != nil {
		return fmt.Errorf("expected value %q is not a number: %w", expected, err)
	}
	raw, err := s.tc.ResponseField("slot_values." + slotKey)
	if err != nil {
		return err
	}
	got, ok := raw.(float64)
	if !ok {
		return fmt.Errorf("slot %s is %T, not a number", slotKey, raw)
	}
	if math.Abs(got-want) > 1e-9 {
		return fmt.Errorf("slot %s: expected %v, got %v", slotKey, want, got)
	}
	return nil
}

func (s *caseSteps) slotShouldBeAbsent(ctx context.Context, slotKey string) error {
	if err := s.fetchCase(ctx); err != nil {
		return err
	}
	if _, err := s.tc.ResponseField("slot_values." + slotKey); err == nil {
		return fmt.Errorf("slot %s unexpectedly present", slotKey)
	}
	return nil
}
