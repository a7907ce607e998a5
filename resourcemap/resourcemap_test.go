package resourcemap

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ruleDocument = `
version: 2
testplans:
  - name: "(uart|spi)_host"
    docs_html: "https://docs.example.com/ip/{{ regex_groups.testplan[0] }}/index.html"
    owner: "{{ custom.owner }}"
    title: "{{ testplan | upper }}"
    slug: "{{ testplan | replace('_', '-') }}/{{ custom_data.owner | default('nobody') }}"
    testpoints:
      - name: "csr"
        source: "hw/dv/sv/csr_utils/{{ testpoint }}_seq.sv"
        tests:
          - name: "{{ testplan }}_csr_(.*)"
            source: "hw/ip/{{ regex_groups['testplan'][0] }}/dv/{{ regex_groups.test[0] }}_vseq.sv"
            notes: "derived from {{ test_source }}"
      - name: ".*"
        docs_html: "https://docs.example.com/testpoints/{{ testpoint }}.html"
        tests:
          - source: "hw/ip/{{ regex_groups.testplan[0] }}/dv/{{ test }}_vseq.sv"
  - filename: "hw/top_(.*)/data/.*\\.hjson"
    source: "hw/top_{{ regex_groups.testplan[0] }}"
    docs_html: "https://docs.example.com/top/{{ regex_groups.testplan[0] }}.html"
  - docs_html: "https://docs.example.com/fallback.html"
`

func parseRules(t *testing.T) *Map {
	m, err := Parse([]byte(ruleDocument))
	require.NoError(t, err)
	return m
}

func Test_GivenRuleDocument_WhenResolved_ThenFirstMatchingChainWins(t *testing.T) {
	m := parseRules(t)

	tests := []struct {
		name   string
		query  Query
		want   string
		wantOK bool
	}{
		{
			name:   "testplan level resource with capture group",
			query:  Query{Resource: "docs_html", Testplan: "uart_host"},
			want:   "https://docs.example.com/ip/uart/index.html",
			wantOK: true,
		},
		{
			name:   "shallowest taken rule provides the resource",
			query:  Query{Resource: "docs_html", Testplan: "spi_host", Testpoint: "smoke"},
			want:   "https://docs.example.com/ip/spi/index.html",
			wantOK: true,
		},
		{
			name:   "test level source with groups of every level",
			query:  Query{Resource: "source", Testplan: "uart_host", Testpoint: "csr", Test: "uart_host_csr_rw"},
			want:   "hw/ip/uart/dv/rw_vseq.sv",
			wantOK: true,
		},
		{
			name:   "test_source is the source resolved along the chain",
			query:  Query{Resource: "notes", Testplan: "uart_host", Testpoint: "csr", Test: "uart_host_csr_rw"},
			want:   "derived from hw/ip/uart/dv/rw_vseq.sv",
			wantOK: true,
		},
		{
			name:   "testpoint level source only applies to testpoint queries",
			query:  Query{Resource: "source", Testplan: "uart_host", Testpoint: "csr"},
			want:   "hw/dv/sv/csr_utils/csr_seq.sv",
			wantOK: true,
		},
		{
			name:   "templated test pattern is quoted and anchored",
			query:  Query{Resource: "source", Testplan: "uart_host", Testpoint: "csr", Test: "spi_host_csr_rw"},
			wantOK: false,
		},
		{
			name:   "catch-all test rule",
			query:  Query{Resource: "source", Testplan: "spi_host", Testpoint: "smoke", Test: "spi_host_smoke"},
			want:   "hw/ip/spi/dv/spi_host_smoke_vseq.sv",
			wantOK: true,
		},
		{
			name:   "testplan level source does not apply to tests",
			query:  Query{Resource: "source", Testplan: "earlgrey", TestplanFile: "hw/top_earlgrey/data/chip_testplan.hjson", Testpoint: "chip_smoke", Test: "chip_sw_smoke"},
			wantOK: false,
		},
		{
			name:   "filename rule",
			query:  Query{Resource: "source", Testplan: "earlgrey", TestplanFile: "hw/top_earlgrey/data/chip_testplan.hjson"},
			want:   "hw/top_earlgrey",
			wantOK: true,
		},
		{
			name:   "unconditional rule",
			query:  Query{Resource: "docs_html", Testplan: "aes", TestplanFile: "hw/ip/aes/data/aes_testplan.hjson"},
			want:   "https://docs.example.com/fallback.html",
			wantOK: true,
		},
		{
			name:   "pattern must match the whole name",
			query:  Query{Resource: "owner", Testplan: "uart_host_extra"},
			wantOK: false,
		},
		{
			name:   "custom data",
			query:  Query{Resource: "owner", Testplan: "uart_host", Custom: map[string]string{"owner": "dv-team"}},
			want:   "dv-team",
			wantOK: true,
		},
		{
			name:   "missing custom data is empty",
			query:  Query{Resource: "owner", Testplan: "uart_host"},
			want:   "",
			wantOK: true,
		},
		{
			name:   "filter",
			query:  Query{Resource: "title", Testplan: "uart_host"},
			want:   "UART_HOST",
			wantOK: true,
		},
		{
			name:   "filter arguments and custom_data",
			query:  Query{Resource: "slug", Testplan: "spi_host", Custom: map[string]string{"owner": "dv-team"}},
			want:   "spi-host/dv-team",
			wantOK: true,
		},
		{
			name:   "default filter on missing custom data",
			query:  Query{Resource: "slug", Testplan: "spi_host"},
			want:   "spi-host/nobody",
			wantOK: true,
		},
		{
			name:   "unknown resource",
			query:  Query{Resource: "waveforms", Testplan: "uart_host"},
			wantOK: false,
		},
		{
			name:   "reserved resource",
			query:  Query{Resource: "name", Testplan: "uart_host"},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Resolve(tt.query)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_GivenLaterRuleWithResource_WhenFirstRuleLacksIt_ThenItIsNotConsulted(t *testing.T) {
	// Given
	m, err := New([]RuleSpec{
		{Name: "foo", Resources: map[string]string{"owner": "a"}},
		{Name: "f.*", Resources: map[string]string{"docs_html": "b"}},
	})
	require.NoError(t, err)

	// When
	_, ok := m.Resolve(Query{Resource: "docs_html", Testplan: "foo"})

	// Then
	assert.False(t, ok)
}

func Test_GivenInvalidRules_WhenParsed_ThenFailsWithRulePosition(t *testing.T) {
	tests := []struct {
		name      string
		document  string
		wantPath  string
		wantField string
	}{
		{
			name: "invalid regex",
			document: `
testplans:
  - name: foo
  - name: bar
    testpoints:
      - name: "csr_(rw"
`,
			wantPath:  "testplans[1].testpoints[0]",
			wantField: "name",
		},
		{
			name: "invalid templated regex",
			document: `
testplans:
  - name: "{{ testplan }}(["
`,
			wantPath:  "testplans[0]",
			wantField: "name",
		},
		{
			name: "non scalar resource",
			document: `
testplans:
  - name: foo
    source: ["a", "b"]
`,
			wantPath:  "testplans[0]",
			wantField: "source",
		},
		{
			name: "misplaced tests",
			document: `
testplans:
  - name: foo
    tests:
      - name: foo_smoke
`,
			wantPath:  "testplans[0]",
			wantField: "tests",
		},
		{
			name: "filename below testplan",
			document: `
testplans:
  - testpoints:
      - filename: "x"
`,
			wantPath:  "testplans[0].testpoints[0]",
			wantField: "filename",
		},
		{
			name: "unclosed expression",
			document: `
testplans:
  - name: foo
    docs_html: "https://docs.example.com/{{ testplan"
`,
			wantPath:  "testplans[0]",
			wantField: "docs_html",
		},
		{
			name: "malformed template",
			document: `
testplans:
  - name: foo
    docs_html: "{{ regex_groups[ }}"
`,
			wantPath:  "testplans[0]",
			wantField: "docs_html",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When
			_, err := Parse([]byte(tt.document))

			// Then
			var ruleErr *RuleError
			require.True(t, errors.As(err, &ruleErr), "unexpected error: %v", err)
			assert.Equal(t, tt.wantPath, ruleErr.Path)
			assert.Equal(t, tt.wantField, ruleErr.Field)
		})
	}
}

func Test_GivenRuleFile_WhenLoaded_ThenResolves(t *testing.T) {
	// Given
	pth := filepath.Join(t.TempDir(), "resources.yml")
	require.NoError(t, os.WriteFile(pth, []byte(ruleDocument), 0600))

	// When
	m, err := Load(pth, fileutil.NewFileManager())

	// Then
	require.NoError(t, err)
	got, ok := m.Resolve(Query{Resource: "docs_html", Testplan: "uart_host"})
	assert.True(t, ok)
	assert.Equal(t, "https://docs.example.com/ip/uart/index.html", got)
}

func Test_GivenNilMap_WhenResolved_ThenNothingResolves(t *testing.T) {
	var m *Map

	_, ok := m.Resolve(Query{Resource: "source", Testplan: "foo"})

	assert.False(t, ok)
}

func Test_GivenSharedMap_WhenResolvedConcurrently_ThenResultsAreIndependent(t *testing.T) {
	// Given
	m := parseRules(t)
	var wg sync.WaitGroup

	// When
	results := make([]string, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			plan := "uart_host"
			if i%2 == 1 {
				plan = "spi_host"
			}
			results[i], _ = m.Resolve(Query{Resource: "docs_html", Testplan: plan})
		}(i)
	}
	wg.Wait()

	// Then
	for i, got := range results {
		want := "https://docs.example.com/ip/uart/index.html"
		if i%2 == 1 {
			want = "https://docs.example.com/ip/spi/index.html"
		}
		assert.Equal(t, want, got)
	}
}

func Test_GivenContext_WhenGroupsAdded_ThenOriginalIsUnchanged(t *testing.T) {
	// Given
	base := NewRegexContext(Query{Testplan: "uart"}).WithGroups("testplan", []string{"u"})

	// When
	next := base.WithGroups("testpoint", []string{"csr"}).WithSource("a.sv")

	// Then
	assert.Empty(t, base.Groups("testpoint"))
	assert.Equal(t, []string{"csr"}, next.Groups("testpoint"))

	rendered, err := next.Render("{{testplan}}:{{ regex_groups['testplan'][0] }}:{{regex_groups.testpoint[5]}}:{{ test_source }}:{{ unknown }}")
	require.NoError(t, err)
	assert.Equal(t, "uart:u::a.sv:", rendered)

	rendered, err = base.Render("{{ test_source }}|{{ testplan | upper }}")
	require.NoError(t, err)
	assert.Equal(t, "|UART", rendered)

	_, err = base.Render("{{ half")
	assert.Error(t, err)
}

func Test_GivenTemplatedPattern_WhenValueHasRegexMetacharacters_ThenItMatchesLiterally(t *testing.T) {
	// Given
	m, err := New([]RuleSpec{{
		Testpoints: []RuleSpec{{
			Name:      "{{ testplan | lower }}\\.csr",
			Resources: map[string]string{"docs_html": "{{ regex_groups.testplan | length }}"},
		}},
	}})
	require.NoError(t, err)

	// When
	matched, ok := m.Resolve(Query{Resource: "docs_html", Testplan: "A+B", Testpoint: "a+b.csr"})
	_, wildcardOK := m.Resolve(Query{Resource: "docs_html", Testplan: "A+B", Testpoint: "aab.csr"})

	// Then
	assert.True(t, ok)
	assert.Equal(t, "0", matched)
	assert.False(t, wildcardOK)
}
