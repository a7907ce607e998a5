package main

import (
	"os"

	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bitrise-steplib/steps-testplanner/document"
	"github.com/bitrise-steplib/steps-testplanner/output"
	"github.com/bitrise-steplib/steps-testplanner/results"
	"github.com/bitrise-steplib/steps-testplanner/step"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := log.NewLogger()

	configParser := createConfigParser(logger)
	config, err := configParser.ProcessConfig()
	if err != nil {
		logger.Errorf("Process config: %s", err)
		return 1
	}

	testplanRunner := createTestplanRunner(logger)
	result, err := testplanRunner.Run(config)
	if err != nil {
		logger.Errorf("Run: %s", err)
		return 1
	}

	if err := testplanRunner.Export(step.ExportOpts{
		OutputDir: config.OutputDir,
		Result:    result,
	}); err != nil {
		logger.Errorf("Export outputs: %s", err)
		return 1
	}

	return 0
}

func createConfigParser(logger log.Logger) step.TestplanConfigParser {
	envRepository := env.NewRepository()
	inputParser := stepconf.NewInputParser(envRepository)
	pathModifier := pathutil.NewPathModifier()

	return step.NewTestplanConfigParser(inputParser, logger, pathModifier)
}

func createTestplanRunner(logger log.Logger) step.TestplanRunner {
	envRepository := env.NewRepository()
	fileManager := fileutil.NewFileManager()
	reader := document.NewReader(fileManager)
	pathChecker := pathutil.NewPathChecker()
	matcher := results.NewMatcher(logger)
	outputExporter := output.NewExporter(envRepository, fileManager, logger)
	utils := step.NewUtils(logger)

	return step.NewTestplanRunner(logger, reader, pathChecker, fileManager, matcher, outputExporter, utils)
}
