package interview

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	GET(path string) error
	LastStatus() int
	ResponseField(path string) (any, error)
	CaseID() string
}

// RegisterSteps registers progressive disclosure steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &interviewSteps{tc: tc}

	ctx.Step(`^I request the next questions$`, steps.requestQuestions)
	ctx.Step(`^the next question should be "([^"]*)"$`, steps.nextQuestionShouldBe)
	ctx.Step(`^there should be no further questions$`, steps.noFurtherQuestions)
	ctx.Step(`^the case status should be "([^"]*)"$`, steps.caseStatusShouldBe)
}

type interviewSteps struct {
	tc TestContext
}

func (s *interviewSteps) requestQuestions(ctx context.Context) error {
	if err := s.tc.GET("/v1/cases/" + s.tc.CaseID() + "/questions"); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("expected 200 fetching questions, got %d", s.tc.LastStatus())
	}
	return nil
}

func (s *interviewSteps) questions() ([]any, error) {
	raw, err := s.tc.ResponseField("questions")
	if err != nil {
		return nil, err
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("questions is %T, not a list", raw)
	}
	return list, nil
}

func (s *interviewSteps) nextQuestionShouldBe(ctx context.Context, slotKey string) error {
	if err := s.requestQuestions(ctx); err != nil {
		return err
	}
	list, err := s.questions()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("expected next question %q, got none", slotKey)
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return fmt.Errorf("question entry is %T, not an object", list[0])
	}
	if first["slot_key"] != slotKey {
		return fmt.Errorf("expected next question %q, got %v", slotKey, first["slot_key"])
	}
	return nil
}

func (s *interviewSteps) noFurtherQuestions(ctx context.Context) error {
	if err := s.requestQuestions(ctx); err != nil {
		return err
	}
	list, err := s.questions()
	if err != nil {
		return err
	}
	if len(list) != 0 {
		return fmt.Errorf("expected no further questions, got %d", len(list))
	}
	return nil
}

func (s *interviewSteps) caseStatusShouldBe(ctx context.Context, status string) error {
	if err := s.tc.GET("/v1/cases/" + s.tc.CaseID() + "/status"); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("expected 200 fetching status, got %d", s.tc.LastStatus())
	}
	got, err := s.tc.ResponseField("status")
	if err != nil {
		return err
	}
	if got != status {
		return fmt.Errorf("expected status %q, got %v", status, got)
	}
	return nil
}
