// Package locator enumerates query files across ordered search roots.
//
// Each root follows the queries/<language>/<name>.scm layout. Roots may be
// glob patterns (a plugin directory of the form plugins/*/runtime, say);
// matches are expanded in sorted order so resolution stays deterministic.
// Results are merged in root order and deduplicated by path.
package locator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Locator implements the query.Lookup contract over the filesystem.
type Locator struct {
	roots []string
}

// New builds a locator over the given search roots, earliest root first.
func New(roots ...string) *Locator {
	return &Locator{roots: roots}
}

// FromEnv builds a locator from the TREEQUERY_PATH environment variable,
// a list separated by the platform's path list separator.
func FromEnv() *Locator {
	value := os.Getenv("TREEQUERY_PATH")
	if value == "" {
		return New()
	}
	var roots []string
	for _, root := range strings.Split(value, string(os.PathListSeparator)) {
		if root != "" {
			roots = append(roots, root)
		}
	}
	return New(roots...)
}

// Roots returns the configured search roots in order.
func (l *Locator) Roots() []string {
	out := make([]string, len(l.roots))
	copy(out, l.roots)
	return out
}

// FindQueryFiles returns every queries/<language>/<queryName>.scm found
// under the roots, merged in root order and deduplicated by absolute path.
func (l *Locator) FindQueryFiles(language, queryName string) ([]string, error) {
	if language == "" || queryName == "" {
		return nil, fmt.Errorf("language and query name must be non-empty")
	}

	var files []string
	seen := make(map[string]bool)
	for _, root := range l.roots {
		pattern := filepath.Join(root, "queries", language, queryName+".scm")
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("globbing %s: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, match := range matches {
			abs, err := filepath.Abs(match)
			if err != nil {
				return nil, fmt.Errorf("resolving %s: %w", match, err)
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			files = append(files, abs)
		}
	}
	return files, nil
}
