package resourcemap

import (
	"fmt"
	"strings"

	"github.com/nikolalohinski/gonja"
)

// Template variables available to resources and rule patterns.
const (
	VarTestplan     = "testplan"
	VarTestpoint    = "testpoint"
	VarTest         = "test"
	VarTestplanFile = "testplan_file"
	VarTestSource   = "test_source"
	VarRegexGroups  = "regex_groups"
	VarCustom       = "custom"
	VarCustomData   = "custom_data"
)

// template is a Jinja string compiled once at load time. Static strings
// skip the template engine.
type template struct {
	raw     string
	execute func(vars map[string]any) (string, error)
}

func hasTemplateSyntax(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%") || strings.Contains(s, "{#")
}

func parseTemplate(s string) (template, error) {
	t := template{raw: s}
	if !hasTemplateSyntax(s) {
		return t, nil
	}

	tpl, err := gonja.FromString(s)
	if err != nil {
		return template{}, fmt.Errorf("invalid template %q: %w", s, err)
	}
	t.execute = func(vars map[string]any) (string, error) {
		return tpl.Execute(vars)
	}
	return t, nil
}

func (t template) isStatic() bool {
	return t.execute == nil
}

func (t template) render(vars map[string]any) (string, error) {
	if t.execute == nil {
		return t.raw, nil
	}
	out, err := t.execute(vars)
	if err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", t.raw, err)
	}
	return out, nil
}
