package testplan

import (
	"slices"
	"strings"
	"time"

	"github.com/bitrise-steplib/steps-testplanner/wildcard"
)

// Reserved top-level testplan keys, every other key is a wildcard value.
const (
	KeyName            = "name"
	KeyImportTestplans = "import_testplans"
	KeyTestpoints      = "testpoints"
	KeyCovergroups     = "covergroups"
)

// StageNotAssigned is the stage of testpoints that do not declare one.
const StageNotAssigned = "N.A."

// NotMappedMarker as the only test of a testpoint excludes it from result mapping.
const NotMappedMarker = "N/A"

// Location points at the implementation of a test.
type Location struct {
	File string
	Line int
}

// IsZero ...
func (l Location) IsZero() bool {
	return l.File == ""
}

// Result holds the execution statistics attached to a TestEntry.
type Result struct {
	Passing int
	Total   int
	Runs    int

	JobRuntime       time.Duration
	MaxJobRuntime    time.Duration
	SimulatedTime    time.Duration
	MaxSimulatedTime time.Duration

	Location          Location
	PassingLogs       []string
	FailingLogs       []string
	AdditionalSources map[string]string
}

// Merge accumulates other into r: counts and runtimes are summed, logs are
// appended and the first known location and sources are kept.
func (r *Result) Merge(other Result) {
	r.Passing += other.Passing
	r.Total += other.Total
	r.Runs += other.Runs

	r.JobRuntime += other.JobRuntime
	r.MaxJobRuntime = max(r.MaxJobRuntime, other.MaxJobRuntime)
	r.SimulatedTime += other.SimulatedTime
	r.MaxSimulatedTime = max(r.MaxSimulatedTime, other.MaxSimulatedTime)

	if r.Location.IsZero() {
		r.Location = other.Location
	}
	r.PassingLogs = append(r.PassingLogs, other.PassingLogs...)
	r.FailingLogs = append(r.FailingLogs, other.FailingLogs...)
	for name, source := range other.AdditionalSources {
		if r.AdditionalSources == nil {
			r.AdditionalSources = map[string]string{}
		}
		if _, ok := r.AdditionalSources[name]; !ok {
			r.AdditionalSources[name] = source
		}
	}
}

// TestEntry is one concrete, wildcard-expanded test of a Testpoint.
type TestEntry struct {
	Name   string
	Tags   []string
	Result Result

	testpoint *Testpoint
}

// Testpoint returns the testpoint owning the entry.
func (e *TestEntry) Testpoint() *Testpoint {
	return e.testpoint
}

// Executed reports whether any run was recorded for the test.
func (e *TestEntry) Executed() bool {
	return e.Result.Total > 0
}

// Passed reports whether the test ran and every run passed.
func (e *TestEntry) Passed() bool {
	return e.Result.Total > 0 && e.Result.Passing == e.Result.Total
}

// Testpoint is a planned design feature verified by a list of tests.
type Testpoint struct {
	Name      string
	Desc      string
	Stage     string
	Tags      []string
	Tests     []*TestEntry
	NotMapped bool
}

// NewTestpoint creates a testpoint whose entries are the given test names.
// Empty names are skipped and duplicates removed keeping the first occurrence.
func NewTestpoint(name, desc, stage string, tags []string, tests []string) *Testpoint {
	if stage == "" {
		stage = StageNotAssigned
	}
	tp := &Testpoint{
		Name:  name,
		Desc:  desc,
		Stage: stage,
		Tags:  union(nil, tags),
	}
	for _, test := range tests {
		if test == "" {
			continue
		}
		tp.AddTest(test, tp.Tags)
	}
	return tp
}

// Test returns the entry with the given name, if any.
func (tp *Testpoint) Test(name string) *TestEntry {
	for _, entry := range tp.Tests {
		if entry.Name == name {
			return entry
		}
	}
	return nil
}

// AddTest appends a test entry unless one with the same name already exists.
func (tp *Testpoint) AddTest(name string, tags []string) *TestEntry {
	if existing := tp.Test(name); existing != nil {
		return existing
	}
	entry := &TestEntry{
		Name:      name,
		Tags:      slices.Clone(tags),
		testpoint: tp,
	}
	tp.Tests = append(tp.Tests, entry)
	return entry
}

// Merge folds other into tp: tests missing from tp are appended in order and
// tags are united.
func (tp *Testpoint) Merge(other *Testpoint) {
	if tp.Desc == "" {
		tp.Desc = other.Desc
	}
	if tp.Stage == StageNotAssigned {
		tp.Stage = other.Stage
	}
	tp.Tags = union(tp.Tags, other.Tags)
	for _, entry := range other.Tests {
		tp.AddTest(entry.Name, entry.Tags)
	}
	tp.NotMapped = tp.NotMapped && other.NotMapped && len(tp.Tests) == 0
}

// HasTags reports whether the testpoint passes the tag filter. A filter tag
// prefixed with '-' excludes testpoints carrying it, any other tag is
// required. An empty filter accepts everything.
func (tp *Testpoint) HasTags(filter []string) bool {
	return hasTags(tp.Tags, filter)
}

// Covergroup is a functional coverage goal of the testplan.
type Covergroup struct {
	Name string
	Desc string
	Tags []string
}

// Merge folds other into cg.
func (cg *Covergroup) Merge(other *Covergroup) {
	if cg.Desc == "" {
		cg.Desc = other.Desc
	}
	cg.Tags = union(cg.Tags, other.Tags)
}

// Testplan is a fully assembled verification plan.
type Testplan struct {
	Name          string
	Filename      string
	Testpoints    []*Testpoint
	Covergroups   []*Covergroup
	Substitutions wildcard.Substitutions
	Imports       []string
}

// Testpoint returns the testpoint with the given name, if any.
func (p *Testplan) Testpoint(name string) *Testpoint {
	for _, tp := range p.Testpoints {
		if tp.Name == name {
			return tp
		}
	}
	return nil
}

// Covergroup returns the covergroup with the given name, if any.
func (p *Testplan) Covergroup(name string) *Covergroup {
	for _, cg := range p.Covergroups {
		if cg.Name == name {
			return cg
		}
	}
	return nil
}

// MergeTestpoint merges tp into the testpoint of the same name or appends it.
func (p *Testplan) MergeTestpoint(tp *Testpoint) {
	if existing := p.Testpoint(tp.Name); existing != nil {
		existing.Merge(tp)
		return
	}

	adopted := &Testpoint{
		Name:      tp.Name,
		Desc:      tp.Desc,
		Stage:     tp.Stage,
		Tags:      slices.Clone(tp.Tags),
		NotMapped: tp.NotMapped,
	}
	for _, entry := range tp.Tests {
		adopted.AddTest(entry.Name, entry.Tags)
	}
	p.Testpoints = append(p.Testpoints, adopted)
}

// MergeCovergroup merges cg into the covergroup of the same name or appends it.
func (p *Testplan) MergeCovergroup(cg *Covergroup) {
	if existing := p.Covergroup(cg.Name); existing != nil {
		existing.Merge(cg)
		return
	}
	p.Covergroups = append(p.Covergroups, &Covergroup{
		Name: cg.Name,
		Desc: cg.Desc,
		Tags: slices.Clone(cg.Tags),
	})
}

// Tests returns every entry of the plan in testpoint order.
func (p *Testplan) Tests() []*TestEntry {
	var entries []*TestEntry
	for _, tp := range p.Testpoints {
		entries = append(entries, tp.Tests...)
	}
	return entries
}

// FilterTags drops the testpoints rejected by the tag filter.
func (p *Testplan) FilterTags(filter []string) {
	if len(filter) == 0 {
		return
	}
	p.Testpoints = slices.DeleteFunc(p.Testpoints, func(tp *Testpoint) bool {
		return !tp.HasTags(filter)
	})
}

func hasTags(tags, filter []string) bool {
	for _, tag := range filter {
		if excluded, ok := strings.CutPrefix(tag, "-"); ok {
			if slices.Contains(tags, excluded) {
				return false
			}
			continue
		}
		if !slices.Contains(tags, tag) {
			return false
		}
	}
	return true
}

func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, s := range b {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
