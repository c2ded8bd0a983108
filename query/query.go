// Package query resolves, compiles, and evaluates tree-sitter queries.
//
// A query is named pattern text looked up per language across search roots,
// composed through inheritance modelines, compiled by the tree-sitter
// bindings, and then evaluated match by match: predicates (#name? ...) gate
// acceptance, directives (#name! ...) annotate accepted matches with
// metadata. Both handler tables are user-extensible.
package query

import (
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// ArgKind discriminates invocation arguments.
type ArgKind uint8

const (
	// ArgString is a literal string argument.
	ArgString ArgKind = iota
	// ArgCapture references a capture by id.
	ArgCapture
)

// Arg is one argument of a predicate or directive invocation.
type Arg struct {
	Kind    ArgKind
	Capture uint32 // valid when Kind == ArgCapture
	Value   string // valid when Kind == ArgString
}

// Invocation is one predicate or directive declared on a pattern, in
// declaration order. The name keeps its trailing '?' or '!' marker and may
// carry a "not-" negation prefix.
type Invocation struct {
	Name string
	Args []Arg

	// any-of? memoizes its literal set here on first evaluation.
	memoOnce sync.Once
	memoSet  map[string]struct{}
}

// IsDirective reports whether the invocation names a side-effecting
// directive rather than a predicate.
func (inv *Invocation) IsDirective() bool {
	return strings.HasSuffix(inv.Name, "!")
}

// literalSet returns the memoized set of literal arguments after the first
// one (the subject capture).
func (inv *Invocation) literalSet() map[string]struct{} {
	inv.memoOnce.Do(func() {
		inv.memoSet = make(map[string]struct{}, len(inv.Args))
		for _, a := range inv.Args[1:] {
			if a.Kind == ArgString {
				inv.memoSet[a.Value] = struct{}{}
			}
		}
	})
	return inv.memoSet
}

// Capture pairs a capture id with the node it bound.
type Capture struct {
	Index uint32
	Node  *sitter.Node
}

// Match is one candidate produced by the raw matcher. The capture table is
// sparse: in a multi-pattern query a capture need not appear in every match.
// Metadata is populated once the match has been accepted.
type Match struct {
	Pattern  uint32
	Caps     []Capture
	Metadata *Metadata

	index map[uint32]*sitter.Node
}

func newMatch(raw *sitter.QueryMatch) *Match {
	m := &Match{
		Pattern: uint32(raw.PatternIndex),
		Caps:    make([]Capture, 0, len(raw.Captures)),
		index:   make(map[uint32]*sitter.Node, len(raw.Captures)),
	}
	for _, c := range raw.Captures {
		m.Caps = append(m.Caps, Capture{Index: c.Index, Node: c.Node})
		m.index[c.Index] = c.Node
	}
	return m
}

// NodeFor returns the node bound to a capture id. The second return value
// distinguishes an absent capture from one bound to a nil node.
func (m *Match) NodeFor(id uint32) (*sitter.Node, bool) {
	n, ok := m.index[id]
	return n, ok
}

// Query is an immutable compiled query for one language. Instances are
// shared through the compiler's cache; the cache holds them weakly, so a
// Query lives exactly as long as some caller keeps a reference.
type Query struct {
	language     string
	sq           *sitter.Query
	captureNames []string
	invocations  map[uint32][]*Invocation

	predicates *PredicateRegistry
	directives *DirectiveRegistry
}

// Language returns the owning language name.
func (q *Query) Language() string {
	return q.language
}

// CaptureNames returns the capture-id-to-name table. The slice is shared;
// callers must not mutate it.
func (q *Query) CaptureNames() []string {
	return q.captureNames
}

// CaptureName returns the name for a capture id, or "" if out of range.
func (q *Query) CaptureName(id uint32) string {
	if int(id) >= len(q.captureNames) {
		return ""
	}
	return q.captureNames[id]
}

// PatternCount returns the number of top-level patterns in the query.
func (q *Query) PatternCount() uint32 {
	return q.sq.PatternCount()
}

// Invocations returns the predicate and directive invocations declared on a
// pattern, in declaration order.
func (q *Query) Invocations(pattern uint32) []*Invocation {
	return q.invocations[pattern]
}

// newQuery wraps a compiled sitter query, extracting the capture-name table
// and the per-pattern invocation lists.
func newQuery(language string, sq *sitter.Query, preds *PredicateRegistry, dirs *DirectiveRegistry) (*Query, error) {
	q := &Query{
		language:    language,
		sq:          sq,
		invocations: make(map[uint32][]*Invocation),
		predicates:  preds,
		directives:  dirs,
	}

	for i := uint32(0); i < sq.CaptureCount(); i++ {
		q.captureNames = append(q.captureNames, sq.CaptureNameForId(i))
	}

	for p := uint32(0); p < sq.PatternCount(); p++ {
		for _, steps := range sq.PredicatesForPattern(p) {
			inv, err := parseInvocation(sq, steps)
			if err != nil {
				return nil, err
			}
			if inv != nil {
				q.invocations[p] = append(q.invocations[p], inv)
			}
		}
	}

	return q, nil
}

// parseInvocation turns one raw predicate step group into an Invocation.
// The first string step is the operator name; everything else is arguments.
func parseInvocation(sq *sitter.Query, steps []sitter.QueryPredicateStep) (*Invocation, error) {
	inv := &Invocation{}
	for _, step := range steps {
		switch step.Type {
		case sitter.QueryPredicateStepTypeDone:
			// group separator, carried by some binding versions
		case sitter.QueryPredicateStepTypeCapture:
			if inv.Name == "" {
				return nil, fmt.Errorf("predicate must begin with a literal name, got capture @%s",
					sq.CaptureNameForId(step.ValueId))
			}
			inv.Args = append(inv.Args, Arg{Kind: ArgCapture, Capture: step.ValueId})
		case sitter.QueryPredicateStepTypeString:
			value := sq.StringValueForId(step.ValueId)
			if inv.Name == "" {
				inv.Name = unescapeOperator(value)
			} else {
				inv.Args = append(inv.Args, Arg{Kind: ArgString, Value: value})
			}
		}
	}
	if inv.Name == "" {
		return nil, nil
	}
	return inv, nil
}

// accept runs every predicate invocation declared for the match's pattern,
// requiring all to hold. An invocation whose subject capture is absent from
// this match is vacuously true.
func (q *Query) accept(m *Match, source []byte) (bool, error) {
	for _, inv := range q.invocations[m.Pattern] {
		if inv.IsDirective() {
			continue
		}
		if n, referenced := subjectCapture(inv); referenced {
			if _, present := m.NodeFor(n); !present {
				continue
			}
		}
		ok, err := q.predicates.test(q, m, source, inv)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// applyDirectives runs every directive invocation declared for the match's
// pattern against the metadata container. Directives never gate acceptance.
func (q *Query) applyDirectives(m *Match, source []byte, md *Metadata) error {
	for _, inv := range q.invocations[m.Pattern] {
		if !inv.IsDirective() {
			continue
		}
		if err := q.directives.apply(q, m, source, inv, md); err != nil {
			return err
		}
	}
	return nil
}

// subjectCapture returns the first capture argument of the invocation, which
// predicates treat as their subject.
func subjectCapture(inv *Invocation) (uint32, bool) {
	for _, a := range inv.Args {
		if a.Kind == ArgCapture {
			return a.Capture, true
		}
	}
	return 0, false
}

// captureText returns the source text of the node a capture bound, and
// whether the capture is present in the match.
func captureText(m *Match, id uint32, source []byte) (string, bool) {
	n, ok := m.NodeFor(id)
	if !ok || n == nil {
		return "", false
	}
	return n.Content(source), true
}
