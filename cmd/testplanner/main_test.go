package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bitrise-steplib/steps-testplanner/step"
	shellquote "github.com/kballard/go-shellquote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resourceRules = `
testplans:
  - name: "(uart|spi)"
    docs_html: "https://docs.example.com/{{ regex_groups.testplan[0] | upper }}"
    testpoints:
      - name: csr
        tests:
          - name: "{{ testplan }}_csr_(.*)"
            source: "hw/ip/{{ testplan }}/dv/{{ regex_groups.test[0] }}_vseq.sv"
`

func Test_GivenFlags_WhenTestplanInputBuilt_ThenListsAreShellQuoted(t *testing.T) {
	// Given
	require.NoError(t, rootCmd.ParseFlags([]string{
		"--sim-results", "foo results.hjson",
		"-s", "bar.hjson",
		"--repo-top", "repo",
		"-m", "resources.yml",
		"--source-url-prefix", "https://github.com/org/repo/blob/main",
		"-o", "out",
		"-v",
	}))
	testplans := []string{"hw/ip/foo/data/foo_testplan.hjson:gls:-stress", "hw/ip/bar baz/data/bar_testplan.hjson"}

	// When
	input := testplanInput(testplans)

	// Then
	planEntries, err := shellquote.Split(input.Testplans)
	require.NoError(t, err)
	assert.Equal(t, testplans, planEntries)

	resultPaths, err := shellquote.Split(input.SimResults)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo results.hjson", "bar.hjson"}, resultPaths)

	assert.Equal(t, "repo", input.RepoTop)
	assert.Equal(t, "resources.yml", input.ResourceMap)
	assert.Equal(t, "https://github.com/org/repo/blob/main", input.SourceURLPrefix)
	assert.Equal(t, "out", input.OutputDir)
	assert.True(t, input.Verbose)

	configParser := step.NewTestplanConfigParser(stepconf.NewInputParser(env.NewRepository()), logger, pathutil.NewPathModifier())
	cfg, err := configParser.ProcessInput(input)
	require.NoError(t, err)
	require.Len(t, cfg.Testplans, 2)
	assert.Equal(t, []string{"gls", "-stress"}, cfg.Testplans[0].Tags)
	assert.Equal(t, "foo results.hjson", filepath.Base(cfg.Testplans[0].Results))
	assert.Equal(t, "bar_testplan.hjson", filepath.Base(cfg.Testplans[1].Path))
}

func Test_GivenRuleFile_WhenResolveRuns_ThenPrintsResource(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{
			name: "testplan resource",
			args: []string{"--testplan", "uart", "docs_html"},
			want: "https://docs.example.com/UART\n",
		},
		{
			name: "test source",
			args: []string{"--testplan", "spi", "--testpoint", "csr", "--test", "spi_csr_rw", "source"},
			want: "hw/ip/spi/dv/rw_vseq.sv\n",
		},
		{
			name:    "unknown resource",
			args:    []string{"--testplan", "uart", "waveforms"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given
			pth := filepath.Join(t.TempDir(), "resources.yml")
			require.NoError(t, os.WriteFile(pth, []byte(resourceRules), 0600))
			resolveCmd.query.Testpoint = ""
			resolveCmd.query.Test = ""

			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetErr(&bytes.Buffer{})
			rootCmd.SetArgs(append([]string{"resolve", "--resource-map", pth}, tt.args...))
			t.Cleanup(func() { rootCmd.SetArgs(nil) })

			// When
			err := rootCmd.Execute()

			// Then
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.String())
		})
	}
}
