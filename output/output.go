package output

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-io/go-utils/v2/log"
)

const (
	summaryPathEnvVarKey = "TESTPLANNER_SUMMARY_PATH"
	passRateEnvVarKey    = "TESTPLANNER_PASS_RATE"
	resultEnvVarKey      = "TESTPLANNER_RESULT"

	failingTestsEnvVarKey              = "TESTPLANNER_FAILING_TESTS"
	failingTestsEnvVarSizeLimitInBytes = 1024

	summaryFileName = "summary.json"
)

// Exporter ...
type Exporter interface {
	ExportSummary(outputDir string, summary Summary) (string, error)
	ExportTestRunResult(failed bool)
	ExportPassRate(passRate string)
	ExportFailingTests(failingTests []string) error
}

type exporter struct {
	envRepository env.Repository
	fileManager   fileutil.FileManager
	logger        log.Logger
}

// NewExporter ...
func NewExporter(envRepository env.Repository, fileManager fileutil.FileManager, logger log.Logger) Exporter {
	return &exporter{
		envRepository: envRepository,
		fileManager:   fileManager,
		logger:        logger,
	}
}

// ExportSummary writes summary.json and one <plan>.json per testplan into
// outputDir and returns the summary path.
func (e exporter) ExportSummary(outputDir string, summary Summary) (string, error) {
	for _, plan := range summary.Testplans {
		pth := filepath.Join(outputDir, planFileName(plan.Name))
		if err := e.writeJSON(pth, plan); err != nil {
			return "", err
		}
		e.logger.Debugf("Testplan %s exported to %s", plan.Name, pth)
	}

	summaryPth := filepath.Join(outputDir, summaryFileName)
	if err := e.writeJSON(summaryPth, summary); err != nil {
		return "", err
	}

	if err := e.envRepository.Set(summaryPathEnvVarKey, summaryPth); err != nil {
		e.logger.Warnf("Failed to export: %s: %s", summaryPathEnvVarKey, err)
	}

	return summaryPth, nil
}

func (e exporter) writeJSON(pth string, value any) error {
	content, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(pth), err)
	}
	if err := e.fileManager.Write(pth, string(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", pth, err)
	}
	return nil
}

func (e exporter) ExportTestRunResult(failed bool) {
	status := "succeeded"
	if failed {
		status = "failed"
	}
	if err := e.envRepository.Set(resultEnvVarKey, status); err != nil {
		e.logger.Warnf("Failed to export: %s: %s", resultEnvVarKey, err)
	}
}

func (e exporter) ExportPassRate(passRate string) {
	if err := e.envRepository.Set(passRateEnvVarKey, passRate); err != nil {
		e.logger.Warnf("Failed to export: %s: %s", passRateEnvVarKey, err)
	}
}

func (e exporter) ExportFailingTests(failingTests []string) error {
	if len(failingTests) == 0 {
		return nil
	}

	var message string
	for i, failingTest := range failingTests {
		line := fmt.Sprintf("- %s\n", failingTest)

		if len(message)+len(line) > failingTestsEnvVarSizeLimitInBytes {
			e.logger.Warnf("%s env var size limit (%d characters) exceeded. Skipping %d tests.", failingTestsEnvVarKey, failingTestsEnvVarSizeLimitInBytes, len(failingTests)-i)
			break
		}

		message += line
	}

	if err := e.envRepository.Set(failingTestsEnvVarKey, message); err != nil {
		return fmt.Errorf("failed to export %s: %w", failingTestsEnvVarKey, err)
	}

	return nil
}
