package e2e

import (
	"github.com/cucumber/godog"

	"canlaw/e2e/steps/casefile"
	"canlaw/e2e/steps/interview"
)

// RegisterSteps registers all step definitions from the modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	casefile.RegisterSteps(ctx, tc)
	interview.RegisterSteps(ctx, tc)
}
