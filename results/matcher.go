package results

import (
	"fmt"
	"slices"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-steplib/steps-testplanner/testplan"
)

// UnresolvedReferenceError reports a result record that matches no test of
// any testplan in the batch.
type UnresolvedReferenceError struct {
	Name string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("test result %s does not belong to any testplan", e.Name)
}

// CovergroupCoverage lists which covergroups of a plan were sampled.
type CovergroupCoverage struct {
	Testplan string
	Found    []string
	Missing  []string
}

// Progress returns the covergroup progress in the same shape as test stages.
func (c CovergroupCoverage) Progress() testplan.StageProgress {
	total := len(c.Found) + len(c.Missing)
	return testplan.StageProgress{Passing: len(c.Found), Written: len(c.Found), Total: total}
}

// Report ...
type Report struct {
	// Matched counts the records attached to at least one test.
	Matched int
	// Orphans keeps the records that matched nothing, in input order.
	Orphans     []ResultRecord
	Warnings    []error
	Covergroups []CovergroupCoverage
}

// Matcher attaches result records to the tests of assembled testplans.
type Matcher interface {
	Associate(doc Document, plans ...*testplan.Testplan) (Report, error)
}

type matcher struct {
	logger log.Logger
}

// NewMatcher ...
func NewMatcher(logger log.Logger) Matcher {
	return &matcher{logger: logger}
}

// Associate attaches every record to all tests of the same name. Repeated
// records of a test accumulate. Records are validated before anything is
// attached so a failing batch leaves the plans untouched.
func (m matcher) Associate(doc Document, plans ...*testplan.Testplan) (Report, error) {
	for _, record := range doc.Records {
		if err := record.Validate(); err != nil {
			return Report{}, err
		}
	}

	index := map[string][]*testplan.TestEntry{}
	for _, plan := range plans {
		for _, tp := range plan.Testpoints {
			if tp.NotMapped {
				continue
			}
			for _, entry := range tp.Tests {
				index[entry.Name] = append(index[entry.Name], entry)
			}
		}
	}

	var report Report
	for _, record := range doc.Records {
		entries := index[record.Name]
		if len(entries) == 0 {
			err := &UnresolvedReferenceError{Name: record.Name}
			m.logger.Warnf("%s", err)
			report.Orphans = append(report.Orphans, record)
			report.Warnings = append(report.Warnings, err)
			continue
		}

		res := record.result()
		for _, entry := range entries {
			entry.Result.Merge(res)
		}
		report.Matched++
	}

	for _, plan := range plans {
		if len(plan.Covergroups) == 0 {
			continue
		}
		coverage := CovergroupCoverage{Testplan: plan.Name}
		for _, cg := range plan.Covergroups {
			if slices.Contains(doc.Covergroups, cg.Name) {
				coverage.Found = append(coverage.Found, cg.Name)
			} else {
				coverage.Missing = append(coverage.Missing, cg.Name)
			}
		}
		report.Covergroups = append(report.Covergroups, coverage)
	}

	m.logger.Debugf("Associated %d test results, %d orphans", report.Matched, len(report.Orphans))

	return report, nil
}
