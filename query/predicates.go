package query

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// regexCache memoizes compiled patterns across every match? style predicate.
// Keyed by raw pattern text, shared between the match? aliases.
var regexCache = struct {
	mu sync.RWMutex
	m  map[string]*regexp.Regexp
}{m: make(map[string]*regexp.Regexp)}

func cachedRegexp(pattern string) (*regexp.Regexp, error) {
	regexCache.mu.RLock()
	re, ok := regexCache.m[pattern]
	regexCache.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("match? pattern %q: %w", pattern, err)
	}
	regexCache.mu.Lock()
	regexCache.m[pattern] = re
	regexCache.mu.Unlock()
	return re, nil
}

func registerBuiltinPredicates(r *PredicateRegistry) {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(r.Register("eq?", predEq, false))
	must(r.Register("match?", predMatch, false))
	// Aliases kept for queries written against the reference dialect. Both
	// share the match? handler and its compiled-pattern cache; Go regexp has
	// no magic modes, so the dialects collapse into one.
	must(r.Register("lua-match?", predMatch, false))
	must(r.Register("vim-match?", predMatch, false))
	must(r.Register("contains?", predContains, false))
	must(r.Register("any-of?", predAnyOf, false))
}

// predEq implements (#eq? @capture "literal") and (#eq? @capture @other).
// The subject capture is guaranteed present by the evaluation loop; a
// comparison capture that resolves to nothing fails the predicate.
func predEq(q *Query, m *Match, source []byte, inv *Invocation) (bool, error) {
	if len(inv.Args) != 2 || inv.Args[0].Kind != ArgCapture {
		return false, fmt.Errorf("eq? expects a capture and a comparison value, got %d args", len(inv.Args))
	}
	subject, ok := captureText(m, inv.Args[0].Capture, source)
	if !ok {
		return true, nil
	}

	switch inv.Args[1].Kind {
	case ArgString:
		return subject == inv.Args[1].Value, nil
	case ArgCapture:
		other, ok := captureText(m, inv.Args[1].Capture, source)
		if !ok {
			return false, nil
		}
		return subject == other, nil
	}
	return false, nil
}

// predMatch implements (#match? @capture "regexp") using Go regexp syntax.
func predMatch(q *Query, m *Match, source []byte, inv *Invocation) (bool, error) {
	if len(inv.Args) != 2 || inv.Args[0].Kind != ArgCapture || inv.Args[1].Kind != ArgString {
		return false, fmt.Errorf("match? expects a capture and a pattern, got %d args", len(inv.Args))
	}
	subject, ok := captureText(m, inv.Args[0].Capture, source)
	if !ok {
		return true, nil
	}
	re, err := cachedRegexp(inv.Args[1].Value)
	if err != nil {
		return false, err
	}
	return re.MatchString(subject), nil
}

// predContains implements (#contains? @capture "a" "b" ...): true when the
// capture's text contains any of the literals as a substring.
func predContains(q *Query, m *Match, source []byte, inv *Invocation) (bool, error) {
	if len(inv.Args) < 2 || inv.Args[0].Kind != ArgCapture {
		return false, fmt.Errorf("contains? expects a capture and at least one literal")
	}
	subject, ok := captureText(m, inv.Args[0].Capture, source)
	if !ok {
		return true, nil
	}
	for _, a := range inv.Args[1:] {
		if a.Kind != ArgString {
			return false, fmt.Errorf("contains? arguments must be literals")
		}
		if strings.Contains(subject, a.Value) {
			return true, nil
		}
	}
	return false, nil
}

// predAnyOf implements (#any-of? @capture "a" "b" ...): exact membership in
// the literal set. The set is memoized on the invocation, so repeated
// evaluation over many matches does not rebuild it. An empty set is false.
func predAnyOf(q *Query, m *Match, source []byte, inv *Invocation) (bool, error) {
	if len(inv.Args) < 1 || inv.Args[0].Kind != ArgCapture {
		return false, fmt.Errorf("any-of? expects a capture and literals")
	}
	subject, ok := captureText(m, inv.Args[0].Capture, source)
	if !ok {
		return true, nil
	}
	_, member := inv.literalSet()[subject]
	return member, nil
}
