package testplan

import (
	"fmt"
	"strings"

	"github.com/bitrise-steplib/steps-testplanner/wildcard"
)

const covergroupSuffix = "_cg"

// draft is a decoded testplan document before its imports are resolved.
type draft struct {
	name          string
	testpoints    []map[string]any
	covergroups   []map[string]any
	imports       []string
	substitutions wildcard.Substitutions
}

func decodeDraft(file string, doc map[string]any) (draft, error) {
	d := draft{substitutions: wildcard.Substitutions{}}

	name, err := stringField(file, KeyName, doc[KeyName])
	if err != nil {
		return draft{}, err
	}
	if name == "" {
		return draft{}, NewValidationError(file, KeyName, "testplan name is missing or empty")
	}
	d.name = name

	if d.imports, err = stringList(file, KeyImportTestplans, doc[KeyImportTestplans]); err != nil {
		return draft{}, err
	}
	if d.testpoints, err = objectList(file, KeyTestpoints, doc[KeyTestpoints]); err != nil {
		return draft{}, err
	}
	if d.covergroups, err = objectList(file, KeyCovergroups, doc[KeyCovergroups]); err != nil {
		return draft{}, err
	}

	for key, value := range doc {
		switch key {
		case KeyName, KeyImportTestplans, KeyTestpoints, KeyCovergroups:
		default:
			d.substitutions[key] = value
		}
	}

	return d, nil
}

func decodeTestpoint(file string, idx int, raw map[string]any, subs wildcard.Substitutions) (*Testpoint, error) {
	field := fmt.Sprintf("%s[%d]", KeyTestpoints, idx)

	name, err := stringField(file, field+".name", raw["name"])
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, NewValidationError(file, field+".name", "testpoint name is missing or empty")
	}
	field = fmt.Sprintf("%s[%s]", KeyTestpoints, name)

	desc, err := stringField(file, field+".desc", raw["desc"])
	if err != nil {
		return nil, err
	}
	stage, err := stringField(file, field+".stage", raw["stage"])
	if err != nil {
		return nil, err
	}
	tags, err := stringList(file, field+".tags", raw["tags"])
	if err != nil {
		return nil, err
	}
	tests, err := stringList(file, field+".tests", raw["tests"])
	if err != nil {
		return nil, err
	}

	if len(tests) == 1 && tests[0] == NotMappedMarker {
		tp := NewTestpoint(name, desc, stage, tags, nil)
		tp.NotMapped = true
		return tp, nil
	}

	return NewTestpoint(name, desc, stage, tags, wildcard.ExpandList(tests, subs)), nil
}

func decodeCovergroup(file string, idx int, raw map[string]any) (*Covergroup, error) {
	field := fmt.Sprintf("%s[%d]", KeyCovergroups, idx)

	name, err := stringField(file, field+".name", raw["name"])
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, NewValidationError(file, field+".name", "covergroup name is missing or empty")
	}
	if !strings.HasSuffix(name, covergroupSuffix) {
		return nil, NewValidationError(file, field+".name", fmt.Sprintf("covergroup name %s needs to end with suffix %q", name, covergroupSuffix))
	}

	desc, err := stringField(file, field+".desc", raw["desc"])
	if err != nil {
		return nil, err
	}
	tags, err := stringList(file, field+".tags", raw["tags"])
	if err != nil {
		return nil, err
	}

	return &Covergroup{Name: name, Desc: desc, Tags: union(nil, tags)}, nil
}

func stringField(file, field string, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", NewValidationError(file, field, fmt.Sprintf("expected a string, got %T", value))
	}
}

func stringList(file, field string, value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		list := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, NewValidationError(file, fmt.Sprintf("%s[%d]", field, i), fmt.Sprintf("expected a string, got %T", item))
			}
			list = append(list, s)
		}
		return list, nil
	default:
		return nil, NewValidationError(file, field, fmt.Sprintf("expected a list, got %T", value))
	}
}

func objectList(file, field string, value any) ([]map[string]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return v, nil
	case []any:
		list := make([]map[string]any, 0, len(v))
		for i, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, NewValidationError(file, fmt.Sprintf("%s[%d]", field, i), fmt.Sprintf("expected an object, got %T", item))
			}
			list = append(list, obj)
		}
		return list, nil
	default:
		return nil, NewValidationError(file, field, fmt.Sprintf("expected a list, got %T", value))
	}
}
