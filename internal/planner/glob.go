package planner

import (
	"path/filepath"
	"sort"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

// DefaultGlobExpander expands a file Source's Globs against RootDir,
// dropping any path matched by one of Ignore, per §4.4's "expand file
// globs relative to rootDir" step. Results are deduplicated and sorted
// lexicographically.
func DefaultGlobExpander(src dtif.Source) ([]string, error) {
	seen := make(map[string]struct{})
	var matches []string

	for _, pattern := range src.Globs {
		found, err := filepath.Glob(filepath.Join(src.RootDir, pattern))
		if err != nil {
			return nil, err
		}
		for _, path := range found {
			if _, ok := seen[path]; ok {
				continue
			}
			if ignored(path, src.Ignore) {
				continue
			}
			seen[path] = struct{}{}
			matches = append(matches, path)
		}
	}

	sort.Strings(matches)
	return matches, nil
}

func ignored(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
	}
	return false
}
