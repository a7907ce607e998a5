package results

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-steplib/steps-testplanner/testplan"
	"github.com/hjson/hjson-go/v4"
)

// ResultRecord is the outcome of one executed test, usually repeated runs of
// it in one regression.
type ResultRecord struct {
	Name          string
	Passing       int
	Total         int
	JobRuntime    time.Duration
	SimulatedTime time.Duration

	// File and Lineno locate the test implementation when the simulator
	// reports it.
	File   string
	Lineno int

	PassingLogs       []string
	FailingLogs       []string
	AdditionalSources map[string]string
}

// Validate rejects unnamed records and inconsistent counts.
func (r ResultRecord) Validate() error {
	if r.Name == "" {
		return testplan.NewValidationError("", "name", "result record name is missing or empty")
	}
	field := fmt.Sprintf("test_results[%s]", r.Name)
	if r.Passing < 0 {
		return testplan.NewValidationError("", field+".passing", fmt.Sprintf("negative passing count: %d", r.Passing))
	}
	if r.Total < 0 {
		return testplan.NewValidationError("", field+".total", fmt.Sprintf("negative total count: %d", r.Total))
	}
	if r.Passing > r.Total {
		return testplan.NewValidationError("", field+".passing", fmt.Sprintf("passing count %d exceeds total %d", r.Passing, r.Total))
	}
	return nil
}

func (r ResultRecord) result() testplan.Result {
	res := testplan.Result{
		Passing:           r.Passing,
		Total:             r.Total,
		Runs:              1,
		JobRuntime:        r.JobRuntime,
		MaxJobRuntime:     r.JobRuntime,
		SimulatedTime:     r.SimulatedTime,
		MaxSimulatedTime:  r.SimulatedTime,
		PassingLogs:       r.PassingLogs,
		FailingLogs:       r.FailingLogs,
		AdditionalSources: r.AdditionalSources,
	}
	if r.File != "" {
		res.Location = testplan.Location{File: r.File, Line: r.Lineno}
	}
	return res
}

// Document is a decoded simulation result file.
type Document struct {
	Timestamp   string
	Records     []ResultRecord
	Covergroups []string
}

type rawRecord struct {
	Name              string            `json:"name"`
	Passing           int               `json:"passing"`
	Total             int               `json:"total"`
	JobRuntime        any               `json:"job_runtime"`
	SimulatedTime     any               `json:"simulated_time"`
	File              string            `json:"file"`
	Lineno            int               `json:"lineno"`
	PassingLogs       []string          `json:"passing_logs"`
	FailingLogs       []string          `json:"failing_logs"`
	AdditionalSources map[string]string `json:"additional_sources"`
}

type rawDocument struct {
	Timestamp   any         `json:"timestamp"`
	TestResults []rawRecord `json:"test_results"`
	Covergroups []string    `json:"covergroups"`
}

// ParseDocument decodes an HJSON result document and validates its records.
func ParseDocument(data []byte) (Document, error) {
	var raw rawDocument
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("unable to decode result document: %w", err)
	}

	doc := Document{
		Covergroups: raw.Covergroups,
	}
	if raw.Timestamp != nil {
		doc.Timestamp = fmt.Sprint(raw.Timestamp)
	}

	for i, item := range raw.TestResults {
		jobRuntime, err := ParseDuration(item.JobRuntime)
		if err != nil {
			return Document{}, testplan.NewValidationError("", fmt.Sprintf("test_results[%d].job_runtime", i), err.Error())
		}
		simulatedTime, err := ParseDuration(item.SimulatedTime)
		if err != nil {
			return Document{}, testplan.NewValidationError("", fmt.Sprintf("test_results[%d].simulated_time", i), err.Error())
		}

		record := ResultRecord{
			Name:              item.Name,
			Passing:           item.Passing,
			Total:             item.Total,
			JobRuntime:        jobRuntime,
			SimulatedTime:     simulatedTime,
			File:              item.File,
			Lineno:            item.Lineno,
			PassingLogs:       item.PassingLogs,
			FailingLogs:       item.FailingLogs,
			AdditionalSources: item.AdditionalSources,
		}
		if err := record.Validate(); err != nil {
			return Document{}, err
		}
		doc.Records = append(doc.Records, record)
	}

	return doc, nil
}

var durationPattern = regexp.MustCompile(`^(\d+(?:\.\d*)?)\s*([a-zµ]+)$`)

var durationUnits = map[string]float64{
	"fs": 1e-6,
	"ps": 1e-3,
	"ns": 1,
	"us": 1e3,
	"µs": 1e3,
	"ms": 1e6,
	"s":  1e9,
	"m":  60e9,
	"h":  3600e9,
}

// ParseDuration converts a reported runtime: a number of seconds or a
// "<value> <unit>" string. A nil value is zero.
func ParseDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return seconds(v)
	case int:
		return seconds(float64(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return seconds(f)
		}
		m := durationPattern.FindStringSubmatch(s)
		if m == nil {
			return 0, fmt.Errorf("malformed duration: %q", v)
		}
		unit, ok := durationUnits[m[2]]
		if !ok {
			return 0, fmt.Errorf("unknown duration unit %q in %q", m[2], v)
		}
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("malformed duration: %q: %w", v, err)
		}
		return time.Duration(math.Round(f * unit)), nil
	default:
		return 0, fmt.Errorf("unsupported duration type %T", value)
	}
}

func seconds(f float64) (time.Duration, error) {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid duration: %v", f)
	}
	return time.Duration(math.Round(f * float64(time.Second))), nil
}
