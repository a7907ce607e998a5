package resourcemap

import "fmt"

// RuleError is returned for a malformed rule, Path locates it in the rule
// document (e.g. testplans[1].testpoints[0]).
type RuleError struct {
	Path  string
	Field string
	Err   error
}

func (e *RuleError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid resource rule %s: %s", e.Path, e.Err)
	}
	return fmt.Sprintf("invalid resource rule %s (%s): %s", e.Path, e.Field, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}
