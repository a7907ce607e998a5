package wildcard

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
)

// Substitutions maps wildcard names to their values. A value is either a
// scalar (string, number, bool) or an ordered list of scalars; lists fan out.
type Substitutions map[string]any

type segment struct {
	literal string
	ident   string
}

func (s segment) isPlaceholder() bool {
	return s.ident != ""
}

// Expand returns every substitution of the {identifier} placeholders of
// template. List-valued wildcards produce one result per combination, the
// first referenced wildcard varying slowest. Undefined wildcards expand to
// the empty string. The returned sequence can be iterated more than once.
func Expand(template string, subs Substitutions) iter.Seq[string] {
	segments := parse(template)
	idents := placeholders(segments)

	axes := make([][]string, len(idents))
	for i, ident := range idents {
		axes[i] = values(subs, ident)
	}

	return func(yield func(string) bool) {
		for _, axis := range axes {
			if len(axis) == 0 {
				return
			}
		}

		indexes := make([]int, len(axes))
		for {
			binding := make(map[string]string, len(idents))
			for i, ident := range idents {
				binding[ident] = axes[i][indexes[i]]
			}
			if !yield(render(segments, binding)) {
				return
			}

			// odometer, last axis turns fastest
			pos := len(indexes) - 1
			for ; pos >= 0; pos-- {
				indexes[pos]++
				if indexes[pos] < len(axes[pos]) {
					break
				}
				indexes[pos] = 0
			}
			if pos < 0 {
				return
			}
		}
	}
}

// ExpandAll collects Expand into a slice.
func ExpandAll(template string, subs Substitutions) []string {
	return slices.Collect(Expand(template, subs))
}

// ExpandList expands every template in order and concatenates the results.
func ExpandList(templates []string, subs Substitutions) []string {
	var expanded []string
	for _, template := range templates {
		expanded = append(expanded, ExpandAll(template, subs)...)
	}
	return expanded
}

// Placeholders returns the distinct wildcard names referenced by template,
// in order of first appearance.
func Placeholders(template string) []string {
	return placeholders(parse(template))
}

func parse(template string) []segment {
	var segments []segment
	var literal strings.Builder

	for i := 0; i < len(template); {
		if template[i] == '{' {
			if end := identEnd(template, i+1); end > i+1 && end < len(template) && template[end] == '}' {
				if literal.Len() > 0 {
					segments = append(segments, segment{literal: literal.String()})
					literal.Reset()
				}
				segments = append(segments, segment{ident: template[i+1 : end]})
				i = end + 1
				continue
			}
		}
		literal.WriteByte(template[i])
		i++
	}
	if literal.Len() > 0 {
		segments = append(segments, segment{literal: literal.String()})
	}

	return segments
}

func identEnd(s string, start int) int {
	i := start
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	return i
}

func isIdentByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func placeholders(segments []segment) []string {
	var idents []string
	for _, seg := range segments {
		if seg.isPlaceholder() && !slices.Contains(idents, seg.ident) {
			idents = append(idents, seg.ident)
		}
	}
	return idents
}

func render(segments []segment, binding map[string]string) string {
	var b strings.Builder
	for _, seg := range segments {
		if seg.isPlaceholder() {
			b.WriteString(binding[seg.ident])
		} else {
			b.WriteString(seg.literal)
		}
	}
	return b.String()
}

func values(subs Substitutions, ident string) []string {
	value, ok := subs[ident]
	if !ok || value == nil {
		return []string{""}
	}

	switch v := value.(type) {
	case []string:
		return v
	case []any:
		list := make([]string, 0, len(v))
		for _, item := range v {
			list = append(list, Scalar(item))
		}
		return list
	default:
		return []string{Scalar(v)}
	}
}

// Scalar renders a single substitution value as text.
func Scalar(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
