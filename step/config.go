package step

import (
	"fmt"
	"strings"

	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	shellquote "github.com/kballard/go-shellquote"
)

const defaultRepoTop = "."

// Input ...
type Input struct {
	// Testplans
	Testplans  string `env:"testplans,required"`
	SimResults string `env:"sim_results"`
	RepoTop    string `env:"repo_top"`

	// Resources
	ResourceMap     string `env:"resource_map"`
	SourceURLPrefix string `env:"source_url_prefix"`
	DocsURLPrefix   string `env:"docs_url_prefix"`

	// Output export
	OutputDir string `env:"output_dir,required"`

	// Debug
	Verbose bool `env:"verbose,opt[yes,no]"`
}

// TestplanInput is one entry of the testplans input: a path optionally
// followed by ':' separated tag filters, e.g. foo_testplan.hjson:gls:-stress.
type TestplanInput struct {
	Path    string
	Tags    []string
	Results string
}

// Config ...
type Config struct {
	Testplans []TestplanInput
	// SharedResults is set when a single result file is given for several
	// testplans. Its records are matched against all of them at once.
	SharedResults string
	RepoTop       string

	ResourceMap     string
	SourceURLPrefix string
	DocsURLPrefix   string

	OutputDir string
}

// TestplanConfigParser ...
type TestplanConfigParser struct {
	inputParser  stepconf.InputParser
	logger       log.Logger
	pathModifier pathutil.PathModifier
}

// NewTestplanConfigParser ...
func NewTestplanConfigParser(inputParser stepconf.InputParser, logger log.Logger, pathModifier pathutil.PathModifier) TestplanConfigParser {
	return TestplanConfigParser{
		inputParser:  inputParser,
		logger:       logger,
		pathModifier: pathModifier,
	}
}

// ProcessConfig ...
func (s TestplanConfigParser) ProcessConfig() (Config, error) {
	var input Input
	if err := s.inputParser.Parse(&input); err != nil {
		return Config{}, err
	}

	stepconf.Print(input)
	s.logger.Println()

	return s.ProcessInput(input)
}

// ProcessInput validates already parsed inputs.
func (s TestplanConfigParser) ProcessInput(input Input) (Config, error) {
	s.logger.EnableDebugLog(input.Verbose)

	testplanEntries, err := shellquote.Split(input.Testplans)
	if err != nil {
		return Config{}, fmt.Errorf("provided testplans (%s) are not valid CLI parameters: %w", input.Testplans, err)
	}
	if len(testplanEntries) == 0 {
		return Config{}, fmt.Errorf("no testplan provided (testplans)")
	}

	resultPaths, err := shellquote.Split(input.SimResults)
	if err != nil {
		return Config{}, fmt.Errorf("provided sim_results (%s) are not valid CLI parameters: %w", input.SimResults, err)
	}
	if len(resultPaths) > 1 && len(resultPaths) != len(testplanEntries) {
		return Config{}, fmt.Errorf("invalid number of result files (sim_results): %d, should be 1 or one per testplan (%d)", len(resultPaths), len(testplanEntries))
	}

	repoTop := input.RepoTop
	if repoTop == "" {
		repoTop = defaultRepoTop
	}
	if repoTop, err = s.pathModifier.AbsPath(repoTop); err != nil {
		return Config{}, fmt.Errorf("failed to get absolute repo top path: %w", err)
	}

	cfg := Config{
		RepoTop:         repoTop,
		SourceURLPrefix: input.SourceURLPrefix,
		DocsURLPrefix:   input.DocsURLPrefix,
	}

	for i, entry := range testplanEntries {
		plan, err := parseTestplanEntry(entry)
		if err != nil {
			return Config{}, err
		}
		if plan.Path, err = s.pathModifier.AbsPath(plan.Path); err != nil {
			return Config{}, fmt.Errorf("failed to get absolute testplan path: %w", err)
		}
		if len(resultPaths) == len(testplanEntries) {
			if plan.Results, err = s.pathModifier.AbsPath(resultPaths[i]); err != nil {
				return Config{}, fmt.Errorf("failed to get absolute result file path: %w", err)
			}
		}
		cfg.Testplans = append(cfg.Testplans, plan)
	}
	if len(resultPaths) == 1 && len(testplanEntries) > 1 {
		if cfg.SharedResults, err = s.pathModifier.AbsPath(resultPaths[0]); err != nil {
			return Config{}, fmt.Errorf("failed to get absolute result file path: %w", err)
		}
	}

	if input.ResourceMap != "" {
		if cfg.ResourceMap, err = s.pathModifier.AbsPath(input.ResourceMap); err != nil {
			return Config{}, fmt.Errorf("failed to get absolute resource map path: %w", err)
		}
	}

	if cfg.OutputDir, err = s.pathModifier.AbsPath(input.OutputDir); err != nil {
		return Config{}, fmt.Errorf("failed to get absolute output dir path: %w", err)
	}

	s.logger.Printf("- testplans: %d", len(cfg.Testplans))
	s.logger.Printf("- repo top: %s", cfg.RepoTop)
	s.logger.Println()

	return cfg, nil
}

func parseTestplanEntry(entry string) (TestplanInput, error) {
	parts := strings.Split(entry, ":")
	if parts[0] == "" {
		return TestplanInput{}, fmt.Errorf("invalid testplan (%s): missing path", entry)
	}

	plan := TestplanInput{Path: parts[0]}
	for _, tag := range parts[1:] {
		if tag == "" || tag == "-" {
			return TestplanInput{}, fmt.Errorf("invalid testplan (%s): empty tag", entry)
		}
		plan.Tags = append(plan.Tags, tag)
	}
	return plan, nil
}
