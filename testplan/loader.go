package testplan

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bitrise-steplib/steps-testplanner/wildcard"
)

// DocumentReader decodes a testplan file into its raw key-value form.
type DocumentReader interface {
	ReadDocument(pth string) (map[string]any, error)
}

// LoaderOptions ...
type LoaderOptions struct {
	// RepoTop is the directory imported testplan paths are relative to.
	RepoTop string
	// Tags filters the testpoints of the assembled plan, see Testpoint.HasTags.
	Tags []string
}

// Loader assembles testplans with all of their imports resolved.
type Loader interface {
	Load(pth string) (*Testplan, error)
}

type loader struct {
	reader      DocumentReader
	pathChecker pathutil.PathChecker
	opts        LoaderOptions
	logger      log.Logger
}

// NewLoader ...
func NewLoader(reader DocumentReader, pathChecker pathutil.PathChecker, opts LoaderOptions, logger log.Logger) Loader {
	return &loader{
		reader:      reader,
		pathChecker: pathChecker,
		opts:        opts,
		logger:      logger,
	}
}

// Load reads the testplan at pth, merges every imported testplan into it and
// expands all test name wildcards. Imported plans are expanded with the
// wildcard values of the root plan.
func (l loader) Load(pth string) (*Testplan, error) {
	plan, err := l.load(pth, nil, nil)
	if err != nil {
		return nil, err
	}

	plan.FilterTags(l.opts.Tags)

	l.logger.Debugf("Assembled testplan %s (%s): %d testpoints, %d covergroups", plan.Name, plan.Filename, len(plan.Testpoints), len(plan.Covergroups))

	return plan, nil
}

func (l loader) load(pth string, hostSubs wildcard.Substitutions, active []string) (*Testplan, error) {
	key := canonicalPath(pth)
	if idx := slices.Index(active, key); idx >= 0 {
		cycle := append(slices.Clone(active[idx:]), key)
		return nil, &CyclicImportError{Cycle: cycle}
	}

	l.logger.Debugf("Loading testplan: %s", pth)

	doc, err := l.reader.ReadDocument(pth)
	if err != nil {
		return nil, fmt.Errorf("failed to read testplan (%s): %w", pth, err)
	}

	d, err := decodeDraft(pth, doc)
	if err != nil {
		return nil, err
	}

	// {name} always refers to the root plan
	subs := hostSubs
	if subs == nil {
		subs = maps.Clone(d.substitutions)
		subs[KeyName] = d.name
	}

	plan := &Testplan{
		Name:          d.name,
		Filename:      pth,
		Substitutions: d.substitutions,
		Imports:       d.imports,
	}

	for i, raw := range d.testpoints {
		tp, err := decodeTestpoint(pth, i, raw, subs)
		if err != nil {
			return nil, err
		}
		if plan.Testpoint(tp.Name) != nil {
			return nil, NewValidationError(pth, KeyTestpoints, fmt.Sprintf("duplicate testpoint: %s", tp.Name))
		}
		plan.Testpoints = append(plan.Testpoints, tp)
	}

	for i, raw := range d.covergroups {
		cg, err := decodeCovergroup(pth, i, raw)
		if err != nil {
			return nil, err
		}
		if plan.Covergroup(cg.Name) != nil {
			return nil, NewValidationError(pth, KeyCovergroups, fmt.Sprintf("duplicate covergroup: %s", cg.Name))
		}
		plan.Covergroups = append(plan.Covergroups, cg)
	}

	nextActive := append(slices.Clone(active), key)
	for _, imported := range d.imports {
		importPth, err := l.resolveImport(pth, imported)
		if err != nil {
			return nil, err
		}

		sub, err := l.load(importPth, subs, nextActive)
		if err != nil {
			return nil, err
		}

		l.logger.Debugf("Merging %s into %s: %d testpoints, %d covergroups", sub.Name, plan.Name, len(sub.Testpoints), len(sub.Covergroups))

		for _, tp := range sub.Testpoints {
			plan.MergeTestpoint(tp)
		}
		for _, cg := range sub.Covergroups {
			plan.MergeCovergroup(cg)
		}
	}

	return plan, nil
}

// resolveImport looks for an imported testplan relative to the repository
// root first, then relative to the importing testplan, then as given.
func (l loader) resolveImport(parent, imported string) (string, error) {
	var candidates []string
	if !filepath.IsAbs(imported) {
		if l.opts.RepoTop != "" {
			candidates = append(candidates, filepath.Join(l.opts.RepoTop, imported))
		}
		candidates = append(candidates, filepath.Join(filepath.Dir(parent), imported))
	}
	candidates = append(candidates, imported)

	for _, candidate := range candidates {
		exists, err := l.pathChecker.IsPathExists(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check imported testplan (%s): %w", candidate, err)
		}
		if exists {
			return candidate, nil
		}
	}

	return "", NewValidationError(parent, KeyImportTestplans, fmt.Sprintf("imported testplan %s does not exist", imported))
}

func canonicalPath(pth string) string {
	if abs, err := filepath.Abs(pth); err == nil {
		return abs
	}
	return filepath.Clean(pth)
}
