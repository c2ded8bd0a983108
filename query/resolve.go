package query

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Lookup supplies the candidate files for a (language, query name) pair,
// already merged across search roots. The locator package provides the
// filesystem-backed implementation.
type Lookup interface {
	FindQueryFiles(language, queryName string) ([]string, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(language, queryName string) ([]string, error)

// FindQueryFiles calls the wrapped function.
func (f LookupFunc) FindQueryFiles(language, queryName string) ([]string, error) {
	return f(language, queryName)
}

// Resolver turns a (language, query name) pair into the ordered list of
// source fragments that together form the query text: one base file,
// recursively resolved files of inherited languages, then extension files.
type Resolver struct {
	lookup Lookup
}

// NewResolver builds a resolver over a file lookup collaborator.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns the ordered file set for the query, or an empty list when
// no candidate files exist. An unreadable candidate file aborts resolution.
func (r *Resolver) Resolve(language, queryName string) ([]string, error) {
	seen := map[string]bool{language: true}
	files, err := r.resolve(language, queryName, false, seen)
	if err != nil {
		return nil, err
	}
	return dedupePaths(files), nil
}

// resolve implements one level of the recursion. included is true when this
// language was reached through an inherits modeline, which disables optional
// inherits to stop mutual inclusion from expanding forever. seen guards
// against non-optional inheritance cycles, a hardening beyond the modeline
// rules themselves.
func (r *Resolver) resolve(language, queryName string, included bool, seen map[string]bool) ([]string, error) {
	candidates, err := r.lookup.FindQueryFiles(language, queryName)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var (
		base       string
		extensions []string
		inherited  []string
	)
	inheritedSet := make(map[string]bool)

	for _, file := range dedupePaths(candidates) {
		ml, err := scanModeline(file)
		if err != nil {
			return nil, err
		}

		isExtension := ml.extends
		for _, ref := range ml.inherits {
			if ref.name == language {
				// Self-reference: the file extends its own language's base
				// rather than pulling in a new one.
				isExtension = true
				continue
			}
			if ref.optional && included {
				continue
			}
			if !inheritedSet[ref.name] {
				inheritedSet[ref.name] = true
				inherited = append(inherited, ref.name)
			}
		}

		if isExtension {
			extensions = append(extensions, file)
		} else if base == "" {
			base = file
		}
		// Additional non-extension files after the first are ignored: only
		// one base per language and query is honored.
	}

	var result []string
	if base != "" {
		result = append(result, base)
	}
	for _, inh := range inherited {
		if seen[inh] {
			continue
		}
		seen[inh] = true
		sub, err := r.resolve(inh, queryName, true, seen)
		if err != nil {
			return nil, err
		}
		result = append(result, sub...)
	}
	result = append(result, extensions...)
	return result, nil
}

// inheritRef is one language named by an inherits modeline. Parenthesized
// names are optional: they are expanded only at the top level of resolution.
type inheritRef struct {
	name     string
	optional bool
}

type modeline struct {
	extends  bool
	inherits []inheritRef
}

var (
	inheritsPattern = regexp.MustCompile(`^;+\s*inherits\s*:?\s*([\w()-]+(?:\s*,\s*[\w()-]+)*)\s*$`)
	extendsPattern  = regexp.MustCompile(`^;+\s*extends\s*$`)
)

// scanModeline reads the leading run of ';' comment lines of a query file
// and extracts its inheritance declarations. Scanning stops at the first
// non-comment line. A read failure is fatal to the whole resolution.
func scanModeline(path string) (modeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return modeline{}, fmt.Errorf("reading query file %s: %w", path, err)
	}
	defer f.Close()

	var ml modeline
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, ";") {
			break
		}
		if m := inheritsPattern.FindStringSubmatch(line); m != nil {
			for _, item := range strings.Split(m[1], ",") {
				item = strings.TrimSpace(item)
				if item == "" {
					continue
				}
				ref := inheritRef{name: item}
				if strings.HasPrefix(item, "(") && strings.HasSuffix(item, ")") {
					ref.name = item[1 : len(item)-1]
					ref.optional = true
				}
				if ref.name == "" {
					continue
				}
				ml.inherits = append(ml.inherits, ref)
			}
		} else if extendsPattern.MatchString(line) {
			ml.extends = true
		}
	}
	if err := scanner.Err(); err != nil {
		return modeline{}, fmt.Errorf("reading query file %s: %w", path, err)
	}
	return ml, nil
}

// dedupePaths drops repeated paths, keeping first occurrences. Within a
// resolved file set no path may appear twice, regardless of how inheritance
// recursion reached it.
func dedupePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0:0]
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
