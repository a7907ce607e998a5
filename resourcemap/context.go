package resourcemap

import (
	"maps"
	"slices"
)

// Query selects a resource of a testplan, testpoint or test. The query level
// is the deepest non-empty of Testplan, Testpoint and Test.
type Query struct {
	Resource     string
	Testplan     string
	TestplanFile string
	Testpoint    string
	Test         string
	// Custom is exposed to templates as custom.<key> and custom_data.<key>.
	Custom map[string]string
}

func (q Query) depth() int {
	switch {
	case q.Test != "":
		return levelTest
	case q.Testpoint != "":
		return levelTestpoint
	default:
		return levelTestplan
	}
}

func (q Query) name(level int) string {
	switch level {
	case levelTestplan:
		return q.Testplan
	case levelTestpoint:
		return q.Testpoint
	default:
		return q.Test
	}
}

// RegexContext holds the template variables of one query. It is a value:
// every With* method returns a new context and leaves the receiver intact.
type RegexContext struct {
	query  Query
	source string
	groups map[string][]string
}

// NewRegexContext ...
func NewRegexContext(q Query) RegexContext {
	return RegexContext{query: q}
}

// WithGroups returns a copy with the capture groups matched at level.
func (c RegexContext) WithGroups(level string, groups []string) RegexContext {
	next := c
	next.groups = maps.Clone(c.groups)
	if next.groups == nil {
		next.groups = map[string][]string{}
	}
	next.groups[level] = slices.Clone(groups)
	return next
}

// WithSource returns a copy whose test_source is source.
func (c RegexContext) WithSource(source string) RegexContext {
	next := c
	next.source = source
	return next
}

// Groups returns the capture groups matched at level.
func (c RegexContext) Groups(level string) []string {
	return slices.Clone(c.groups[level])
}

// vars returns the template variables of the context. Every string value
// is passed through escape when it is set. All levels of regex_groups are
// present, so a missing capture group renders empty.
func (c RegexContext) vars(escape func(string) string) map[string]any {
	if escape == nil {
		escape = func(s string) string { return s }
	}

	groups := make(map[string]any, len(levelNames))
	for _, level := range levelNames {
		values := make([]string, 0, len(c.groups[level]))
		for _, group := range c.groups[level] {
			values = append(values, escape(group))
		}
		groups[level] = values
	}

	custom := make(map[string]any, len(c.query.Custom))
	for key, value := range c.query.Custom {
		custom[key] = escape(value)
	}

	return map[string]any{
		VarTestplan:     escape(c.query.Testplan),
		VarTestpoint:    escape(c.query.Testpoint),
		VarTest:         escape(c.query.Test),
		VarTestplanFile: escape(c.query.TestplanFile),
		VarTestSource:   escape(c.source),
		VarRegexGroups:  groups,
		VarCustom:       custom,
		VarCustomData:   custom,
	}
}

// expand renders t, a template failing at render time expands to the empty
// string.
func (c RegexContext) expand(t template) string {
	out, err := t.render(c.vars(nil))
	if err != nil {
		return ""
	}
	return out
}

// Render expands a Jinja template string against the context. Undefined
// variables and missing capture groups expand to the empty string.
func (c RegexContext) Render(s string) (string, error) {
	t, err := parseTemplate(s)
	if err != nil {
		return "", err
	}
	return t.render(c.vars(nil))
}
