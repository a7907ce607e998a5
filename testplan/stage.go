package testplan

import (
	"regexp"
	"slices"
	"strings"

	version "github.com/hashicorp/go-version"
)

var versionedStagePattern = regexp.MustCompile(`^[vV]?(\d+(?:\.\d+)*)(.*)$`)

type stageKey struct {
	label   string
	version *version.Version
	suffix  string
}

func newStageKey(stage string) stageKey {
	key := stageKey{label: stage}
	if m := versionedStagePattern.FindStringSubmatch(stage); m != nil {
		if v, err := version.NewVersion(m[1]); err == nil {
			key.version = v
			key.suffix = m[2]
		}
	}
	return key
}

// CompareStages orders stage labels: the not assigned stage first, then
// versioned labels (V1 < V2 < V2S < V10), then everything else lexically.
func CompareStages(a, b string) int {
	if a == b {
		return 0
	}
	if a == StageNotAssigned {
		return -1
	}
	if b == StageNotAssigned {
		return 1
	}

	ka, kb := newStageKey(a), newStageKey(b)
	switch {
	case ka.version != nil && kb.version != nil:
		if c := ka.version.Compare(kb.version); c != 0 {
			return c
		}
		return strings.Compare(ka.suffix, kb.suffix)
	case ka.version != nil:
		return -1
	case kb.version != nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// SortedByStage returns the testpoints stably ordered by stage.
func (p *Testplan) SortedByStage() []*Testpoint {
	sorted := slices.Clone(p.Testpoints)
	slices.SortStableFunc(sorted, func(a, b *Testpoint) int {
		return CompareStages(a.Stage, b.Stage)
	})
	return sorted
}

// Stages returns the distinct stages of the plan in stage order.
func (p *Testplan) Stages() []string {
	var stages []string
	for _, tp := range p.Testpoints {
		if !slices.Contains(stages, tp.Stage) {
			stages = append(stages, tp.Stage)
		}
	}
	slices.SortFunc(stages, CompareStages)
	return stages
}
