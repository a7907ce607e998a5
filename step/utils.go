package step

import (
	"github.com/bitrise-io/go-utils/colorstring"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-testplanner/output"
)

// Utils ...
type Utils struct {
	logger log.Logger
}

// NewUtils ...
func NewUtils(logger log.Logger) Utils {
	return Utils{logger: logger}
}

// PrintSummary logs the per-plan pass rates and stage progress.
func (u Utils) PrintSummary(summary output.Summary) {
	u.logger.Println()
	u.logger.Infof("Testplan summary")

	for _, plan := range summary.Testplans {
		u.logger.Printf("%s: %s passing (%d/%d), %d/%d tests written", plan.Name, colorPassRate(plan.FullyPassing, plan.Total, plan.PassRate), plan.Passing, plan.Total, plan.Written, plan.Tests)
		for _, stage := range plan.Stages {
			u.logger.Printf("  - %s: %s (%d/%d passing, %d written)", stage.Stage, stage.Progress, stage.Passing, stage.Total, stage.Written)
		}
		if plan.Covergroups != nil {
			u.logger.Printf("  - %s: %s (%d/%d sampled)", plan.Covergroups.Stage, plan.Covergroups.Progress, plan.Covergroups.Written, plan.Covergroups.Total)
		}
	}

	if len(summary.Orphans) > 0 {
		u.logger.Println()
		u.logger.Warnf("Test results without a testplan:")
		for _, orphan := range summary.Orphans {
			u.logger.Warnf("- %s", orphan)
		}
	}

	failing := summary.FailingTests()
	if len(failing) > 0 {
		u.logger.Println()
		u.logger.Errorf("Failing tests:")
		for _, name := range failing {
			u.logger.Printf("- %s", colorstring.Red(name))
		}
	}

	u.logger.Println()
	u.logger.Infof("Overall pass rate: %s", colorstring.Magenta(summary.PassRate))
}

func colorPassRate(fullyPassing bool, total int, rate string) string {
	switch {
	case total == 0:
		return colorstring.Yellow(rate)
	case fullyPassing:
		return colorstring.Green(rate)
	default:
		return colorstring.Red(rate)
	}
}
