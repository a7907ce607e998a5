package testplan

import (
	"fmt"
	"time"
)

// Totals is the roll-up of the results beneath a testpoint or a testplan.
type Totals struct {
	// Tests is the number of test entries, Written the number of entries
	// with at least one run and FullyPassing the number of entries whose
	// every run passed.
	Tests        int
	Written      int
	FullyPassing int

	Passing int
	Total   int

	JobRuntime       time.Duration
	MaxJobRuntime    time.Duration
	SimulatedTime    time.Duration
	MaxSimulatedTime time.Duration
}

func (t *Totals) addEntry(e *TestEntry) {
	t.Tests++
	if e.Executed() {
		t.Written++
	}
	if e.Passed() {
		t.FullyPassing++
	}
	t.Passing += e.Result.Passing
	t.Total += e.Result.Total
	t.JobRuntime += e.Result.JobRuntime
	t.MaxJobRuntime = max(t.MaxJobRuntime, e.Result.MaxJobRuntime)
	t.SimulatedTime += e.Result.SimulatedTime
	t.MaxSimulatedTime = max(t.MaxSimulatedTime, e.Result.MaxSimulatedTime)
}

func (t *Totals) add(other Totals) {
	t.Tests += other.Tests
	t.Written += other.Written
	t.FullyPassing += other.FullyPassing
	t.Passing += other.Passing
	t.Total += other.Total
	t.JobRuntime += other.JobRuntime
	t.MaxJobRuntime = max(t.MaxJobRuntime, other.MaxJobRuntime)
	t.SimulatedTime += other.SimulatedTime
	t.MaxSimulatedTime = max(t.MaxSimulatedTime, other.MaxSimulatedTime)
}

// PassRate formats Passing/Total as a percentage.
func (t Totals) PassRate() string {
	return Percentage(t.Passing, t.Total)
}

// Totals sums the results of the testpoint's entries.
func (tp *Testpoint) Totals() Totals {
	var totals Totals
	for _, entry := range tp.Tests {
		totals.addEntry(entry)
	}
	return totals
}

// FullyPassing reports whether the testpoint has tests and all of them ran
// and passed.
func (tp *Testpoint) FullyPassing() bool {
	if len(tp.Tests) == 0 {
		return false
	}
	for _, entry := range tp.Tests {
		if !entry.Passed() {
			return false
		}
	}
	return true
}

// NotExercised reports whether no run was recorded for any test.
func (tp *Testpoint) NotExercised() bool {
	return tp.Totals().Total == 0
}

// Totals sums the totals of every testpoint.
func (p *Testplan) Totals() Totals {
	var totals Totals
	for _, tp := range p.Testpoints {
		totals.add(tp.Totals())
	}
	return totals
}

// FullyPassing reports whether every testpoint mapped to results is fully
// passing.
func (p *Testplan) FullyPassing() bool {
	mapped := 0
	for _, tp := range p.Testpoints {
		if tp.NotMapped {
			continue
		}
		mapped++
		if !tp.FullyPassing() {
			return false
		}
	}
	return mapped > 0
}

// NotExercised reports whether no run was recorded anywhere in the plan.
func (p *Testplan) NotExercised() bool {
	return p.Totals().Total == 0
}

// StageProgress counts tests of one stage: Total planned tests, Written
// tests that ran at least once and Passing tests whose runs all passed.
type StageProgress struct {
	Passing int
	Written int
	Total   int
}

// Rate formats Passing/Total as a percentage.
func (s StageProgress) Rate() string {
	return Percentage(s.Passing, s.Total)
}

// Progress returns the per-stage progress of the plan. Each test name is
// counted once, in the stage of the first testpoint listing it. A mapped
// testpoint without tests counts as a single test that was not written.
func (p *Testplan) Progress() map[string]StageProgress {
	progress := map[string]StageProgress{}
	seen := map[string]bool{}

	for _, tp := range p.Testpoints {
		if tp.NotMapped {
			continue
		}
		stat := progress[tp.Stage]
		if len(tp.Tests) == 0 && !seen[tp.Name] {
			seen[tp.Name] = true
			stat.Total++
		}
		for _, entry := range tp.Tests {
			if seen[entry.Name] {
				continue
			}
			seen[entry.Name] = true

			stat.Total++
			if entry.Executed() {
				stat.Written++
			}
			if entry.Passed() {
				stat.Passing++
			}
		}
		progress[tp.Stage] = stat
	}

	return progress
}

// Percentage formats value/total with one decimal place: "--%" when total is
// zero, "100%" when everything passed.
func Percentage(value, total int) string {
	if total == 0 {
		return "--%"
	}
	if value == total {
		return "100%"
	}
	return fmt.Sprintf("%.1f%%", float64(value)/float64(total)*100)
}
