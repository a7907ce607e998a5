package resourcemap

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"

	"github.com/bitrise-io/go-utils/v2/fileutil"
	"gopkg.in/yaml.v3"
)

// ResourceSource is the resource holding the implementation path of a test.
// It only resolves from rules of the query's own level.
const ResourceSource = "source"

const (
	levelTestplan = iota
	levelTestpoint
	levelTest
)

var (
	levelNames = []string{"testplan", "testpoint", "test"}
	levelLists = []string{"testplans", "testpoints", "tests"}
)

const (
	keyName     = "name"
	keyFilename = "filename"
)

var reservedKeys = []string{keyName, keyFilename, "testplans", "testpoints", "tests"}

// RuleSpec is one rule of a resource map. Name and Filename are regular
// expressions, empty means match anything. Resource values and patterns are
// Jinja templates.
// Testpoints only nest under testplan rules, Tests only under testpoint
// rules.
type RuleSpec struct {
	Name       string
	Filename   string
	Resources  map[string]string
	Testpoints []RuleSpec
	Tests      []RuleSpec
}

type pattern struct {
	tmpl template
	re   *regexp.Regexp
}

func anchored(expr string) string {
	return "^(?:" + expr + ")$"
}

// probeContext stands in for a query when templated patterns are checked at
// load time.
var probeContext = NewRegexContext(Query{Testplan: "x", TestplanFile: "x", Testpoint: "x", Test: "x"}).
	WithGroups(levelNames[levelTestplan], []string{"x"}).
	WithGroups(levelNames[levelTestpoint], []string{"x"})

func compilePattern(s string) (*pattern, error) {
	t, err := parseTemplate(s)
	if err != nil {
		return nil, err
	}

	p := &pattern{tmpl: t}
	if t.isStatic() {
		if p.re, err = regexp.Compile(anchored(s)); err != nil {
			return nil, err
		}
		return p, nil
	}

	probe, err := t.render(probeContext.vars(regexp.QuoteMeta))
	if err != nil {
		return nil, err
	}
	if _, err := regexp.Compile(anchored(probe)); err != nil {
		return nil, err
	}
	return p, nil
}

// match renders a templated pattern with regex-quoted variables before
// matching value against it.
func (p *pattern) match(ctx RegexContext, value string) ([]string, bool) {
	re := p.re
	if re == nil {
		expr, err := p.tmpl.render(ctx.vars(regexp.QuoteMeta))
		if err != nil {
			return nil, false
		}
		if re, err = regexp.Compile(anchored(expr)); err != nil {
			return nil, false
		}
	}
	m := re.FindStringSubmatch(value)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}

type rule struct {
	name      *pattern
	filename  *pattern
	resources map[string]template
	children  []rule
}

// Map is a compiled resource map. It is immutable and safe for concurrent use.
type Map struct {
	rules []rule
}

// New compiles rules, failing on the first malformed one.
func New(specs []RuleSpec) (*Map, error) {
	rules, err := compileRules(specs, levelTestplan, "")
	if err != nil {
		return nil, err
	}
	return &Map{rules: rules}, nil
}

func compileRules(specs []RuleSpec, level int, parent string) ([]rule, error) {
	var rules []rule
	for i, spec := range specs {
		pth := rulePath(parent, level, i)

		r, err := compileRule(spec, level, pth)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func compileRule(spec RuleSpec, level int, pth string) (rule, error) {
	var r rule
	var err error

	if spec.Name != "" {
		if r.name, err = compilePattern(spec.Name); err != nil {
			return rule{}, &RuleError{Path: pth, Field: keyName, Err: err}
		}
	}
	if spec.Filename != "" {
		if level != levelTestplan {
			return rule{}, &RuleError{Path: pth, Field: keyFilename, Err: errors.New("filename is only allowed on testplan rules")}
		}
		if r.filename, err = compilePattern(spec.Filename); err != nil {
			return rule{}, &RuleError{Path: pth, Field: keyFilename, Err: err}
		}
	}

	if len(spec.Testpoints) > 0 && level != levelTestplan {
		return rule{}, &RuleError{Path: pth, Field: levelLists[levelTestpoint], Err: errors.New("testpoints only nest under testplan rules")}
	}
	if len(spec.Tests) > 0 && level != levelTestpoint {
		return rule{}, &RuleError{Path: pth, Field: levelLists[levelTest], Err: errors.New("tests only nest under testpoint rules")}
	}

	r.resources = make(map[string]template, len(spec.Resources))
	for resource, value := range spec.Resources {
		if slices.Contains(reservedKeys, resource) {
			return rule{}, &RuleError{Path: pth, Field: resource, Err: errors.New("reserved key used as resource")}
		}
		if r.resources[resource], err = parseTemplate(value); err != nil {
			return rule{}, &RuleError{Path: pth, Field: resource, Err: err}
		}
	}

	switch level {
	case levelTestplan:
		r.children, err = compileRules(spec.Testpoints, levelTestpoint, pth)
	case levelTestpoint:
		r.children, err = compileRules(spec.Tests, levelTest, pth)
	}
	if err != nil {
		return rule{}, err
	}

	return r, nil
}

func rulePath(parent string, level, idx int) string {
	if parent == "" {
		return fmt.Sprintf("%s[%d]", levelLists[level], idx)
	}
	return fmt.Sprintf("%s.%s[%d]", parent, levelLists[level], idx)
}

// Parse decodes a YAML rule document. Root keys other than testplans are
// ignored.
func Parse(data []byte) (*Map, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unable to decode resource map: %w", err)
	}

	specs, err := decodeRules(doc[levelLists[levelTestplan]], levelTestplan, "")
	if err != nil {
		return nil, err
	}
	return New(specs)
}

// Load reads and parses the YAML rule document at pth.
func Load(pth string, fileManager fileutil.FileManager) (*Map, error) {
	f, err := fileManager.Open(pth)
	if err != nil {
		return nil, fmt.Errorf("failed to open resource map (%s): %w", pth, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource map (%s): %w", pth, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse resource map (%s): %w", pth, err)
	}
	return m, nil
}

func decodeRules(value any, level int, parent string) ([]RuleSpec, error) {
	if value == nil {
		return nil, nil
	}
	items, ok := value.([]any)
	if !ok {
		pth := levelLists[level]
		if parent != "" {
			pth = parent + "." + pth
		}
		return nil, &RuleError{Path: pth, Err: fmt.Errorf("expected a list, got %T", value)}
	}

	var specs []RuleSpec
	for i, item := range items {
		pth := rulePath(parent, level, i)

		fields, ok := item.(map[string]any)
		if !ok {
			return nil, &RuleError{Path: pth, Err: fmt.Errorf("expected a mapping, got %T", item)}
		}

		spec := RuleSpec{Resources: map[string]string{}}
		for key, raw := range fields {
			var err error
			switch key {
			case levelLists[levelTestpoint]:
				spec.Testpoints, err = decodeRules(raw, levelTestpoint, pth)
			case levelLists[levelTest]:
				spec.Tests, err = decodeRules(raw, levelTest, pth)
			case levelLists[levelTestplan]:
				err = &RuleError{Path: pth, Field: key, Err: errors.New("testplans only appear at the document root")}
			default:
				s, ok := scalarString(raw)
				if !ok {
					return nil, &RuleError{Path: pth, Field: key, Err: fmt.Errorf("expected a scalar, got %T", raw)}
				}
				switch key {
				case keyName:
					spec.Name = s
				case keyFilename:
					spec.Filename = s
				default:
					spec.Resources[key] = s
				}
			}
			if err != nil {
				return nil, err
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

// Resolve looks up q.Resource. At every level down to the query level the
// first applying rule is taken and the scan of that level stops. The
// shallowest taken rule defining the resource provides it. Resources of
// rules that were not taken are never visible. A nil Map resolves nothing.
func (m *Map) Resolve(q Query) (string, bool) {
	if m == nil || q.Resource == "" || slices.Contains(reservedKeys, q.Resource) {
		return "", false
	}

	depth := q.depth()
	ctx := NewRegexContext(q)
	candidates := m.rules

	for level := levelTestplan; level <= depth; level++ {
		name := q.name(level)
		if name == "" {
			return "", false
		}

		r, groups, ok := firstApplying(candidates, level, ctx, q)
		if !ok {
			return "", false
		}
		ctx = ctx.WithGroups(levelNames[level], groups)

		if tmpl, ok := r.resources[ResourceSource]; ok {
			source := ctx.expand(tmpl)
			if q.Resource == ResourceSource && level == depth {
				return source, true
			}
			ctx = ctx.WithSource(source)
		}

		if q.Resource != ResourceSource {
			if tmpl, ok := r.resources[q.Resource]; ok {
				return ctx.expand(tmpl), true
			}
		}

		candidates = r.children
	}

	return "", false
}

func firstApplying(rules []rule, level int, ctx RegexContext, q Query) (rule, []string, bool) {
	for _, r := range rules {
		var groups []string

		if r.name != nil {
			m, ok := r.name.match(ctx, q.name(level))
			if !ok {
				continue
			}
			groups = append(groups, m...)
		}
		if r.filename != nil {
			m, ok := r.filename.match(ctx, q.TestplanFile)
			if !ok {
				continue
			}
			groups = append(groups, m...)
		}

		return r, groups, true
	}
	return rule{}, nil, false
}
