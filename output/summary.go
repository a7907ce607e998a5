package output

import (
	"github.com/bitrise-steplib/steps-testplanner/results"
	"github.com/bitrise-steplib/steps-testplanner/testplan"
)

// TestSummary ...
type TestSummary struct {
	Name          string   `json:"name"`
	Passing       int      `json:"passing"`
	Total         int      `json:"total"`
	PassRate      string   `json:"pass_rate"`
	JobRuntime    float64  `json:"job_runtime_seconds"`
	SimulatedTime float64  `json:"simulated_time_seconds"`
	Source        string   `json:"source,omitempty"`
	Line          int      `json:"line,omitempty"`
	PassingLogs   []string `json:"passing_logs,omitempty"`
	FailingLogs   []string `json:"failing_logs,omitempty"`
}

// TestpointSummary ...
type TestpointSummary struct {
	Name      string        `json:"name"`
	Stage     string        `json:"stage"`
	Tags      []string      `json:"tags,omitempty"`
	NotMapped bool          `json:"not_mapped,omitempty"`
	Passing   int           `json:"passing"`
	Total     int           `json:"total"`
	Tests     []TestSummary `json:"tests"`
}

// StageSummary ...
type StageSummary struct {
	Stage    string `json:"stage"`
	Passing  int    `json:"passing"`
	Written  int    `json:"written"`
	Total    int    `json:"total"`
	Progress string `json:"progress"`
}

// PlanSummary is the exported form of one assembled testplan.
type PlanSummary struct {
	Name         string             `json:"name"`
	Filename     string             `json:"filename"`
	Docs         string             `json:"docs,omitempty"`
	Passing      int                `json:"passing"`
	Total        int                `json:"total"`
	PassRate     string             `json:"pass_rate"`
	Tests        int                `json:"tests"`
	Written      int                `json:"written"`
	FullyPassing bool               `json:"fully_passing"`
	Stages       []StageSummary     `json:"stages"`
	Covergroups  *StageSummary      `json:"covergroups,omitempty"`
	Testpoints   []TestpointSummary `json:"testpoints"`
}

// Summary is the run level roll-up of every plan.
type Summary struct {
	Timestamp string        `json:"timestamp,omitempty"`
	Passing   int           `json:"passing"`
	Total     int           `json:"total"`
	PassRate  string        `json:"pass_rate"`
	Orphans   []string      `json:"orphans,omitempty"`
	Testplans []PlanSummary `json:"testplans"`
}

// Failed reports whether any executed test had failing runs.
func (s Summary) Failed() bool {
	return len(s.FailingTests()) > 0
}

// FailingTests lists "<plan>.<test>" for every executed test with failing runs.
func (s Summary) FailingTests() []string {
	var failing []string
	for _, plan := range s.Testplans {
		for _, tp := range plan.Testpoints {
			for _, test := range tp.Tests {
				if test.Total > 0 && test.Passing < test.Total {
					failing = append(failing, plan.Name+"."+test.Name)
				}
			}
		}
	}
	return failing
}

// NewPlanSummary converts an assembled plan. sources holds the resolved
// implementation link of each test entry.
func NewPlanSummary(plan *testplan.Testplan, docs string, sources map[*testplan.TestEntry]string) PlanSummary {
	totals := plan.Totals()
	summary := PlanSummary{
		Name:         plan.Name,
		Filename:     plan.Filename,
		Docs:         docs,
		Passing:      totals.Passing,
		Total:        totals.Total,
		PassRate:     totals.PassRate(),
		Tests:        totals.Tests,
		Written:      totals.Written,
		FullyPassing: plan.FullyPassing(),
	}

	progress := plan.Progress()
	for _, stage := range plan.Stages() {
		stat, ok := progress[stage]
		if !ok {
			continue
		}
		summary.Stages = append(summary.Stages, StageSummary{
			Stage:    stage,
			Passing:  stat.Passing,
			Written:  stat.Written,
			Total:    stat.Total,
			Progress: stat.Rate(),
		})
	}

	for _, tp := range plan.SortedByStage() {
		tpTotals := tp.Totals()
		tpSummary := TestpointSummary{
			Name:      tp.Name,
			Stage:     tp.Stage,
			Tags:      tp.Tags,
			NotMapped: tp.NotMapped,
			Passing:   tpTotals.Passing,
			Total:     tpTotals.Total,
			Tests:     []TestSummary{},
		}
		for _, entry := range tp.Tests {
			tpSummary.Tests = append(tpSummary.Tests, TestSummary{
				Name:          entry.Name,
				Passing:       entry.Result.Passing,
				Total:         entry.Result.Total,
				PassRate:      testplan.Percentage(entry.Result.Passing, entry.Result.Total),
				JobRuntime:    entry.Result.JobRuntime.Seconds(),
				SimulatedTime: entry.Result.SimulatedTime.Seconds(),
				Source:        sources[entry],
				Line:          entry.Result.Location.Line,
				PassingLogs:   entry.Result.PassingLogs,
				FailingLogs:   entry.Result.FailingLogs,
			})
		}
		summary.Testpoints = append(summary.Testpoints, tpSummary)
	}

	return summary
}

// NewCovergroupSummary reports the sampled covergroups of a plan as a stage.
func NewCovergroupSummary(coverage results.CovergroupCoverage) *StageSummary {
	progress := coverage.Progress()
	return &StageSummary{
		Stage:    "Covergroups",
		Passing:  progress.Passing,
		Written:  progress.Written,
		Total:    progress.Total,
		Progress: progress.Rate(),
	}
}

// NewSummary rolls up plan summaries of one run.
func NewSummary(timestamp string, plans []PlanSummary, orphans []results.ResultRecord) Summary {
	summary := Summary{
		Timestamp: timestamp,
		Testplans: plans,
	}
	for _, plan := range plans {
		summary.Passing += plan.Passing
		summary.Total += plan.Total
	}
	summary.PassRate = testplan.Percentage(summary.Passing, summary.Total)
	for _, orphan := range orphans {
		summary.Orphans = append(summary.Orphans, orphan.Name)
	}
	return summary
}
