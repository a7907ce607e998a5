// Command testplanner assembles testplans, attaches simulation results and
// exports the roll-up documents.
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
	shellquote "github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
)

var logger = log.NewLogger()

func init() {
	flags := rootCmd.Flags()
	flags.StringSliceVarP(&rootCmd.simResults, "sim-results", "s", nil,
		"Result file, once for all testplans or once per testplan")
	flags.StringVarP(&rootCmd.repoTop, "repo-top", "r", ".",
		"Directory imported testplan paths are relative to")
	flags.StringVarP(&rootCmd.resourceMap, "resource-map", "m", "",
		"YAML resource map resolving sources and documentation links")
	flags.StringVar(&rootCmd.sourceURLPrefix, "source-url-prefix", "",
		"Prefix of relative source links")
	flags.StringVar(&rootCmd.docsURLPrefix, "docs-url-prefix", "",
		"Prefix of relative documentation links")
	flags.StringVarP(&rootCmd.outputDir, "output-dir", "o", "",
		"Directory the summary documents are written to")
	rootCmd.MarkFlagRequired("output-dir")
	rootCmd.PersistentFlags().BoolVarP(&rootCmd.verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.RunE = runTestplans
}

var rootCmd = struct {
	cobra.Command
	simResults      []string
	repoTop         string
	resourceMap     string
	sourceURLPrefix string
	docsURLPrefix   string
	outputDir       string
	verbose         bool
}{
	Command: cobra.Command{
		Use:          "testplanner [flags] <testplan[:tag...]>...",
		Short:        "Assemble testplans and map simulation results onto them",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
	},
}

// testplanInput maps the flags onto the step inputs, list flags become
// shell-quoted lists.
func testplanInput(testplans []string) step.Input {
	return step.Input{
		Testplans:       shellquote.Join(testplans...),
		SimResults:      shellquote.Join(rootCmd.simResults...),
		RepoTop:         rootCmd.repoTop,
		ResourceMap:     rootCmd.resourceMap,
		SourceURLPrefix: rootCmd.sourceURLPrefix,
		DocsURLPrefix:   rootCmd.docsURLPrefix,
		OutputDir:       rootCmd.outputDir,
		Verbose:         rootCmd.verbose,
	}
}

func runTestplans(cmd *cobra.Command, testplans []string) error {
	input := testplanInput(testplans)

	configParser := step.NewTestplanConfigParser(stepconf.NewInputParser(env.NewRepository()), logger, pathutil.NewPathModifier())
	config, err := configParser.ProcessInput(input)
	if err != nil {
		return err
	}

	fileManager := fileutil.NewFileManager()
	runner := step.NewTestplanRunner(
		logger,
		document.NewReader(fileManager),
		pathutil.NewPathChecker(),
		fileManager,
		results.NewMatcher(logger),
		output.NewExporter(env.NewRepository(), fileManager, logger),
		step.NewUtils(logger),
	)

	result, err := runner.Run(config)
	if err != nil {
		return err
	}

	return runner.Export(step.ExportOpts{OutputDir: config.OutputDir, Result: result})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
