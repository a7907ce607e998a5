package testplan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bitrise-steplib/steps-testplanner/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(opts LoaderOptions) Loader {
	return NewLoader(document.NewReader(fileutil.NewFileManager()), pathutil.NewPathChecker(), opts, log.NewLogger())
}

func writeTestplan(t *testing.T, dir, name, content string) string {
	pth := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(pth, []byte(content), 0600))
	return pth
}

func testNames(tp *Testpoint) []string {
	var names []string
	for _, entry := range tp.Tests {
		names = append(names, entry.Name)
	}
	return names
}

func testpointNames(plan *Testplan) []string {
	var names []string
	for _, tp := range plan.Testpoints {
		names = append(names, tp.Name)
	}
	return names
}

func Test_GivenTestplanImportingCommonPlan_WhenLoaded_ThenImportIsExpandedWithHostWildcards(t *testing.T) {
	// Given
	loader := newTestLoader(LoaderOptions{})

	// When
	plan, err := loader.Load(filepath.Join("testdata", "foo_testplan.hjson"))

	// Then
	require.NoError(t, err)
	assert.Equal(t, "foo", plan.Name)
	assert.Equal(t, []string{"smoke", "stress", "xbar", "csr"}, testpointNames(plan))

	csr := plan.Testpoint("csr")
	require.NotNil(t, csr)
	assert.Equal(t, []string{
		"foo_tl_csr_hw_reset",
		"foo_jtag_csr_hw_reset",
		"foo_tl_csr_rw",
		"foo_jtag_csr_rw",
		"foo_tl_csr_bit_bash",
		"foo_jtag_csr_bit_bash",
		"foo_tl_csr_aliasing",
		"foo_jtag_csr_aliasing",
	}, testNames(csr))
	assert.Equal(t, "V1", csr.Stage)
	for _, entry := range csr.Tests {
		assert.Same(t, csr, entry.Testpoint())
	}

	assert.Equal(t, []string{"foo_smoke"}, testNames(plan.Testpoint("smoke")))
	assert.True(t, plan.Testpoint("xbar").NotMapped)
	assert.Empty(t, plan.Testpoint("xbar").Tests)
	require.Len(t, plan.Covergroups, 1)
	assert.Equal(t, "foo_cfg_cg", plan.Covergroups[0].Name)
	assert.Equal(t, []string{"common_testplan.hjson"}, plan.Imports)
	assert.NotContains(t, plan.Substitutions, KeyName)
}

func Test_GivenTagFilter_WhenLoaded_ThenExcludedTestpointsAreDropped(t *testing.T) {
	// Given
	loader := newTestLoader(LoaderOptions{Tags: []string{"-stress"}})

	// When
	plan, err := loader.Load(filepath.Join("testdata", "foo_testplan.hjson"))

	// Then
	require.NoError(t, err)
	assert.Equal(t, []string{"smoke", "xbar", "csr"}, testpointNames(plan))
}

func Test_GivenCyclicImports_WhenLoaded_ThenFailsWithCycle(t *testing.T) {
	// Given
	loader := newTestLoader(LoaderOptions{})

	// When
	_, err := loader.Load(filepath.Join("testdata", "cycle_a_testplan.hjson"))

	// Then
	var cycleErr *CyclicImportError
	require.True(t, errors.As(err, &cycleErr))
	require.Len(t, cycleErr.Cycle, 3)
	assert.Equal(t, "cycle_a_testplan.hjson", filepath.Base(cycleErr.Cycle[0]))
	assert.Equal(t, "cycle_b_testplan.hjson", filepath.Base(cycleErr.Cycle[1]))
	assert.Equal(t, cycleErr.Cycle[0], cycleErr.Cycle[2])
}

func Test_GivenImportRelativeToRepoTop_WhenLoaded_ThenRepoTopIsSearchedFirst(t *testing.T) {
	// Given
	repoTop := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repoTop, "hw", "dv"), 0700))
	require.NoError(t, os.MkdirAll(filepath.Join(repoTop, "hw", "ip", "bar"), 0700))
	writeTestplan(t, repoTop, filepath.Join("hw", "dv", "shared_testplan.hjson"), `{
  name: shared
  testpoints: [
    { name: "intr", tests: ["{name}_intr_test"] }
  ]
}`)
	pth := writeTestplan(t, repoTop, filepath.Join("hw", "ip", "bar", "bar_testplan.hjson"), `{
  name: bar
  import_testplans: ["hw/dv/shared_testplan.hjson"]
}`)
	loader := newTestLoader(LoaderOptions{RepoTop: repoTop})

	// When
	plan, err := loader.Load(pth)

	// Then
	require.NoError(t, err)
	require.NotNil(t, plan.Testpoint("intr"))
	assert.Equal(t, []string{"bar_intr_test"}, testNames(plan.Testpoint("intr")))
}

func Test_GivenSameTestpointInHostAndImport_WhenLoaded_ThenTestsAreMerged(t *testing.T) {
	// Given
	dir := t.TempDir()
	writeTestplan(t, dir, "sub_testplan.hjson", `{
  name: sub
  testpoints: [
    { name: "smoke", tags: ["gls"], tests: ["{name}_smoke", "{name}_smoke_slow"] }
  ]
}`)
	pth := writeTestplan(t, dir, "host_testplan.hjson", `{
  name: host
  import_testplans: ["sub_testplan.hjson"]
  testpoints: [
    { name: "smoke", stage: "V1", tests: ["{name}_smoke"] }
  ]
}`)
	loader := newTestLoader(LoaderOptions{})

	// When
	plan, err := loader.Load(pth)

	// Then
	require.NoError(t, err)
	require.Len(t, plan.Testpoints, 1)
	smoke := plan.Testpoints[0]
	assert.Equal(t, []string{"host_smoke", "host_smoke_slow"}, testNames(smoke))
	assert.Equal(t, []string{"gls"}, smoke.Tags)
	assert.Equal(t, "V1", smoke.Stage)
	for _, entry := range smoke.Tests {
		assert.Same(t, smoke, entry.Testpoint())
	}
}

func Test_GivenInvalidTestplans_WhenLoaded_ThenFailsWithValidationError(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing name",
			content: `{ testpoints: [] }`,
		},
		{
			name:    "empty name",
			content: `{ name: "" }`,
		},
		{
			name: "duplicate testpoint",
			content: `{
  name: dup
  testpoints: [
    { name: "a", tests: ["x"] }
    { name: "a", tests: ["y"] }
  ]
}`,
		},
		{
			name: "covergroup without suffix",
			content: `{
  name: cg
  covergroups: [ { name: "cfg" } ]
}`,
		},
		{
			name: "tests is not a list",
			content: `{
  name: bad
  testpoints: [ { name: "a", tests: "x" } ]
}`,
		},
		{
			name: "missing import",
			content: `{
  name: bad
  import_testplans: ["missing_testplan.hjson"]
}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given
			pth := writeTestplan(t, t.TempDir(), "bad_testplan.hjson", tt.content)
			loader := newTestLoader(LoaderOptions{})

			// When
			_, err := loader.Load(pth)

			// Then
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "unexpected error: %v", err)
			assert.Equal(t, pth, validationErr.File)
		})
	}
}

func Test_GivenUnreadableTestplan_WhenLoaded_ThenReaderErrorIsWrapped(t *testing.T) {
	// Given
	loader := newTestLoader(LoaderOptions{})
	pth := filepath.Join(t.TempDir(), "missing_testplan.hjson")

	// When
	_, err := loader.Load(pth)

	// Then
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read testplan")
}
