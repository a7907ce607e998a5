package step

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bitrise-steplib/steps-testplanner/document"
	"github.com/bitrise-steplib/steps-testplanner/output"
	"github.com/bitrise-steplib/steps-testplanner/resourcemap"
	"github.com/bitrise-steplib/steps-testplanner/results"
	"github.com/bitrise-steplib/steps-testplanner/testplan"
)

// Resources resolved for the exported documents.
const (
	sourceResource = resourcemap.ResourceSource
	docsResource   = "docs_html"
)

// TestplanRunner ...
type TestplanRunner struct {
	logger         log.Logger
	reader         document.Reader
	pathChecker    pathutil.PathChecker
	fileManager    fileutil.FileManager
	matcher        results.Matcher
	outputExporter output.Exporter
	utils          Utils
}

// NewTestplanRunner ...
func NewTestplanRunner(logger log.Logger, reader document.Reader, pathChecker pathutil.PathChecker, fileManager fileutil.FileManager, matcher results.Matcher, outputExporter output.Exporter, utils Utils) TestplanRunner {
	return TestplanRunner{
		logger:         logger,
		reader:         reader,
		pathChecker:    pathChecker,
		fileManager:    fileManager,
		matcher:        matcher,
		outputExporter: outputExporter,
		utils:          utils,
	}
}

// PlanRun is an assembled testplan with its results and resolved resources.
type PlanRun struct {
	Plan     *testplan.Testplan
	Docs     string
	Sources  map[*testplan.TestEntry]string
	Coverage *results.CovergroupCoverage
}

// Result ...
type Result struct {
	Timestamp string
	Plans     []PlanRun
	Orphans   []results.ResultRecord
}

// Run assembles every testplan, attaches the simulation results and resolves
// the source and documentation links of the tests.
func (s TestplanRunner) Run(cfg Config) (Result, error) {
	var resources *resourcemap.Map
	if cfg.ResourceMap != "" {
		var err error
		if resources, err = resourcemap.Load(cfg.ResourceMap, s.fileManager); err != nil {
			return Result{}, err
		}
		s.logger.Printf("Resource map loaded: %s", cfg.ResourceMap)
	}

	var result Result
	var plans []*testplan.Testplan

	for _, input := range cfg.Testplans {
		s.logger.Infof("Assembling testplan: %s", input.Path)

		loader := testplan.NewLoader(s.reader, s.pathChecker, testplan.LoaderOptions{RepoTop: cfg.RepoTop, Tags: input.Tags}, s.logger)
		plan, err := loader.Load(input.Path)
		if err != nil {
			return Result{}, fmt.Errorf("failed to assemble testplan (%s): %w", input.Path, err)
		}
		s.logger.Printf("- %s: %d testpoints, %d tests", plan.Name, len(plan.Testpoints), len(plan.Tests()))

		plans = append(plans, plan)
		result.Plans = append(result.Plans, PlanRun{Plan: plan})

		if input.Results == "" {
			continue
		}
		report, timestamp, err := s.associate(input.Results, plan)
		if err != nil {
			return Result{}, err
		}
		result.addReport(report, timestamp)
	}

	if cfg.SharedResults != "" {
		report, timestamp, err := s.associate(cfg.SharedResults, plans...)
		if err != nil {
			return Result{}, err
		}
		result.addReport(report, timestamp)
	}

	if len(result.Orphans) > 0 {
		s.logger.Warnf("%d test results do not belong to any testplan", len(result.Orphans))
	}

	for i := range result.Plans {
		s.resolveResources(&result.Plans[i], resources, cfg)
	}

	s.logger.Println()
	s.logger.Donef("%d testplans assembled", len(result.Plans))

	return result, nil
}

func (s TestplanRunner) associate(pth string, plans ...*testplan.Testplan) (results.Report, string, error) {
	s.logger.Printf("Associating test results: %s", pth)

	data, err := s.reader.ReadFile(pth)
	if err != nil {
		return results.Report{}, "", fmt.Errorf("failed to read test results: %w", err)
	}
	doc, err := results.ParseDocument(data)
	if err != nil {
		return results.Report{}, "", fmt.Errorf("failed to parse test results (%s): %w", pth, err)
	}

	report, err := s.matcher.Associate(doc, plans...)
	if err != nil {
		return results.Report{}, "", fmt.Errorf("failed to associate test results (%s): %w", pth, err)
	}
	return report, doc.Timestamp, nil
}

func (r *Result) addReport(report results.Report, timestamp string) {
	if r.Timestamp == "" {
		r.Timestamp = timestamp
	}
	r.Orphans = append(r.Orphans, report.Orphans...)
	for _, coverage := range report.Covergroups {
		for i := range r.Plans {
			if r.Plans[i].Plan.Name == coverage.Testplan {
				coverage := coverage
				r.Plans[i].Coverage = &coverage
			}
		}
	}
}

// resolveResources looks up the documentation of the plan and the source of
// every test. A location reported with the results wins over the resource map.
func (s TestplanRunner) resolveResources(run *PlanRun, resources *resourcemap.Map, cfg Config) {
	plan := run.Plan
	planFile := plan.Filename
	if rel, err := filepath.Rel(cfg.RepoTop, plan.Filename); err == nil && !strings.HasPrefix(rel, "..") {
		planFile = filepath.ToSlash(rel)
	}
	custom := map[string]string{"repo_top": cfg.RepoTop}

	if docs, ok := resources.Resolve(resourcemap.Query{Resource: docsResource, Testplan: plan.Name, TestplanFile: planFile, Custom: custom}); ok {
		run.Docs = joinURL(cfg.DocsURLPrefix, docs)
	}

	run.Sources = map[*testplan.TestEntry]string{}
	for _, tp := range plan.Testpoints {
		for _, entry := range tp.Tests {
			if loc := entry.Result.Location; !loc.IsZero() {
				run.Sources[entry] = sourceLink(cfg.SourceURLPrefix, loc)
				continue
			}

			source, ok := resources.Resolve(resourcemap.Query{
				Resource:     sourceResource,
				Testplan:     plan.Name,
				TestplanFile: planFile,
				Testpoint:    tp.Name,
				Test:         entry.Name,
				Custom:       custom,
			})
			if !ok || source == "" {
				continue
			}
			run.Sources[entry] = joinURL(cfg.SourceURLPrefix, source)
		}
	}

	s.logger.Debugf("Resolved %d test sources of %s", len(run.Sources), plan.Name)
}

func sourceLink(prefix string, loc testplan.Location) string {
	link := joinURL(prefix, loc.File)
	if prefix != "" && loc.Line > 0 {
		link += fmt.Sprintf("#L%d", loc.Line)
	}
	return link
}

func joinURL(prefix, pth string) string {
	if prefix == "" || strings.Contains(pth, "://") {
		return pth
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(pth, "/")
}

// ExportOpts ...
type ExportOpts struct {
	OutputDir string
	Result    Result
}

// Export writes the summary documents and exports the run status.
func (s TestplanRunner) Export(opts ExportOpts) error {
	var plans []output.PlanSummary
	for _, run := range opts.Result.Plans {
		summary := output.NewPlanSummary(run.Plan, run.Docs, run.Sources)
		if run.Coverage != nil {
			summary.Covergroups = output.NewCovergroupSummary(*run.Coverage)
		}
		plans = append(plans, summary)
	}
	summary := output.NewSummary(opts.Result.Timestamp, plans, opts.Result.Orphans)

	s.utils.PrintSummary(summary)

	summaryPth, err := s.outputExporter.ExportSummary(opts.OutputDir, summary)
	if err != nil {
		return fmt.Errorf("failed to export summary: %w", err)
	}
	s.logger.Donef("Summary exported: %s", summaryPth)

	s.outputExporter.ExportPassRate(summary.PassRate)
	s.outputExporter.ExportTestRunResult(summary.Failed())

	if err := s.outputExporter.ExportFailingTests(summary.FailingTests()); err != nil {
		s.logger.Warnf("Failed to export failing tests: %s", err)
	}

	return nil
}
