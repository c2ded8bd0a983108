package query

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"weak"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/termfx/treequery/lang"
)

// ErrNoQuery is returned by Get when no query files exist for the language
// and name. It distinguishes "no query" from a present-but-empty query.
var ErrNoQuery = errors.New("treequery: no query files found")

type cacheKey struct {
	language string
	text     string
}

type nameKey struct {
	language string
	name     string
}

// Compiler resolves, reads, and compiles named queries. Compiled queries are
// memoized per (language, exact source text) behind weak pointers: the cache
// is never the reason a Query stays alive, so entries vanish with their last
// outside holder.
type Compiler struct {
	langs      *lang.Registry
	resolver   *Resolver
	predicates *PredicateRegistry
	directives *DirectiveRegistry

	mu        sync.Mutex
	cache     map[cacheKey]weak.Pointer[Query]
	overrides map[nameKey]*Query
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithLanguages overrides the grammar registry (default: lang.DefaultRegistry).
func WithLanguages(r *lang.Registry) CompilerOption {
	return func(c *Compiler) { c.langs = r }
}

// WithPredicates overrides the predicate registry (default: DefaultPredicates).
func WithPredicates(r *PredicateRegistry) CompilerOption {
	return func(c *Compiler) { c.predicates = r }
}

// WithDirectives overrides the directive registry (default: DefaultDirectives).
func WithDirectives(r *DirectiveRegistry) CompilerOption {
	return func(c *Compiler) { c.directives = r }
}

// NewCompiler builds a compiler over a file lookup collaborator.
func NewCompiler(lookup Lookup, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		langs:      lang.DefaultRegistry,
		resolver:   NewResolver(lookup),
		predicates: DefaultPredicates,
		directives: DefaultDirectives,
		cache:      make(map[cacheKey]weak.Pointer[Query]),
		overrides:  make(map[nameKey]*Query),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolver exposes the file-set resolver the compiler was built with.
func (c *Compiler) Resolver() *Resolver {
	return c.resolver
}

// Get returns the compiled query for (language, queryName). An explicit
// override registered with SetQuery wins over file resolution. Returns
// ErrNoQuery when no files resolve.
func (c *Compiler) Get(language, queryName string) (*Query, error) {
	c.mu.Lock()
	if q, ok := c.overrides[nameKey{language, queryName}]; ok {
		c.mu.Unlock()
		return q, nil
	}
	c.mu.Unlock()

	files, err := c.resolver.Resolve(language, queryName)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoQuery, language, queryName)
	}

	// Fragments concatenate with no separator: patterns are self-delimiting
	// and whitespace-insensitive.
	var text strings.Builder
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading query file %s: %w", file, err)
		}
		text.Write(content)
	}

	return c.Compile(language, text.String())
}

// SetQuery registers q for the (language, queryName) pair. Subsequent Get
// calls return it without touching the filesystem or the text cache. A nil
// q removes the override.
func (c *Compiler) SetQuery(language, queryName string, q *Query) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if q == nil {
		delete(c.overrides, nameKey{language, queryName})
		return
	}
	c.overrides[nameKey{language, queryName}] = q
}

// Compile compiles query text for a language. Identical (language, text)
// pairs return the same Query instance for as long as any caller holds one.
// Parser errors (unknown syntax, bad captures) propagate verbatim.
func (c *Compiler) Compile(language, text string) (*Query, error) {
	key := cacheKey{language, text}

	c.mu.Lock()
	if wp, ok := c.cache[key]; ok {
		if q := wp.Value(); q != nil {
			c.mu.Unlock()
			return q, nil
		}
	}
	c.mu.Unlock()

	sl, err := c.langs.Get(language)
	if err != nil {
		return nil, err
	}

	sq, err := sitter.NewQuery([]byte(escapeOperators(text)), sl)
	if err != nil {
		return nil, err
	}

	q, err := newQuery(language, sq, c.predicates, c.directives)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// Someone may have compiled the same text while we were; keep the first
	// instance so identity stays stable.
	if wp, ok := c.cache[key]; ok {
		if prev := wp.Value(); prev != nil {
			c.mu.Unlock()
			return prev, nil
		}
	}
	c.cache[key] = weak.Make(q)
	c.mu.Unlock()

	runtime.AddCleanup(q, func(k cacheKey) {
		c.mu.Lock()
		if wp, ok := c.cache[k]; ok && wp.Value() == nil {
			delete(c.cache, k)
		}
		c.mu.Unlock()
	}, key)

	return q, nil
}

// cacheLen reports live cache entries, for tests.
func (c *Compiler) cacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// The bindings hard-validate the arity of a fixed operator set at compile
// time, and their #set! check predates the per-capture form this dialect
// supports. Escaping the name before compilation routes it past that check;
// introspection strips the escape again, so handlers and callers only ever
// see the real name.
const opEscape = "tq-"

var escapedOperators = []string{"set!"}

func escapeOperators(text string) string {
	for _, op := range escapedOperators {
		text = strings.ReplaceAll(text, "(#"+op, "(#"+opEscape+op)
	}
	return text
}

func unescapeOperator(name string) string {
	return strings.TrimPrefix(name, opEscape)
}
