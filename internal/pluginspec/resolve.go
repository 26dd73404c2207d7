// Package pluginspec resolves plugin module specifiers against a
// configuration directory, per §4.10's plugin specifier resolution rules.
// Both the Policy Engine and the Diff Engine's rename/impact/summary
// strategies share this resolution logic.
package pluginspec

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
)

// Resolved is a specifier after resolution: always either a file:// URL or
// a bare name.
type Resolved struct {
	URL      string
	BareName string
}

// Resolve applies the resolution rules:
//   - file:// URL: used as-is.
//   - relative path: resolved against configDirectory, converted to file://.
//   - absolute filesystem path: converted to file://.
//   - bare name (no path separators, no scheme): used as-is.
//   - any other URL scheme (node:, data:, http:, ...): rejected.
func Resolve(specifier, configDirectory string) (Resolved, error) {
	if u, err := url.Parse(specifier); err == nil && u.Scheme != "" {
		if u.Scheme == "file" {
			return Resolved{URL: specifier}, nil
		}
		if !looksLikeDriveLetter(u.Scheme) {
			return Resolved{}, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeUnsupportedSpecifier,
				"unsupported plugin specifier scheme: "+u.Scheme+":")
		}
	}

	if filepath.IsAbs(specifier) {
		return Resolved{URL: "file://" + filepath.ToSlash(specifier)}, nil
	}

	if isPathLike(specifier) {
		resolved := filepath.Join(configDirectory, specifier)
		return Resolved{URL: "file://" + filepath.ToSlash(resolved)}, nil
	}

	return Resolved{BareName: specifier}, nil
}

func looksLikeDriveLetter(scheme string) bool {
	return len(scheme) == 1
}

func isPathLike(specifier string) bool {
	return strings.HasPrefix(specifier, "./") ||
		strings.HasPrefix(specifier, "../") ||
		strings.Contains(specifier, "/") ||
		strings.HasSuffix(specifier, ".wasm")
}
