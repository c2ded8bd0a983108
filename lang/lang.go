// Package lang maps language identifiers to tree-sitter grammars.
//
// The registry is language-agnostic: grammars are registered explicitly
// (built-ins in this package, anything else by the caller) and looked up
// by canonical name, alias, or file extension.
package lang

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// UnsupportedError is returned when no grammar is registered for an identifier.
type UnsupportedError struct{ Lang string }

func (e *UnsupportedError) Error() string {
	return "unsupported language: " + e.Lang
}

// Registry manages tree-sitter grammars with thread-safe operations.
type Registry struct {
	mu         sync.RWMutex
	languages  map[string]*sitter.Language // canonical name -> grammar
	aliases    map[string]string           // alias -> canonical name
	extensions map[string]string           // extension -> canonical name
}

// NewRegistry creates an empty registry. Use Register to add grammars.
func NewRegistry() *Registry {
	return &Registry{
		languages:  make(map[string]*sitter.Language),
		aliases:    make(map[string]string),
		extensions: make(map[string]string),
	}
}

// Register adds a grammar under a canonical name with optional aliases and
// file extensions. Conflicts with existing registrations are errors.
func (r *Registry) Register(name string, language *sitter.Language, aliases, extensions []string) error {
	if name == "" {
		return fmt.Errorf("language name cannot be empty")
	}
	if language == nil {
		return fmt.Errorf("grammar for %q cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.languages[name]; exists {
		return fmt.Errorf("language %q already registered", name)
	}
	r.languages[name] = language

	for _, alias := range aliases {
		if alias == "" {
			continue
		}
		if existing, exists := r.aliases[alias]; exists {
			return fmt.Errorf("alias %q conflicts with existing mapping to %q", alias, existing)
		}
		r.aliases[alias] = name
	}

	for _, ext := range extensions {
		if ext == "" {
			continue
		}
		if ext[0] != '.' {
			ext = "." + ext
		}
		if existing, exists := r.extensions[ext]; exists {
			return fmt.Errorf("extension %q conflicts with existing mapping to %q", ext, existing)
		}
		r.extensions[ext] = name
	}

	return nil
}

// Get retrieves a grammar by canonical name, alias, or file extension.
func (r *Registry) Get(identifier string) (*sitter.Language, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if l, exists := r.languages[identifier]; exists {
		return l, nil
	}
	if canonical, exists := r.aliases[identifier]; exists {
		if l, exists := r.languages[canonical]; exists {
			return l, nil
		}
	}
	ext := identifier
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	if canonical, exists := r.extensions[ext]; exists {
		if l, exists := r.languages[canonical]; exists {
			return l, nil
		}
	}

	return nil, &UnsupportedError{Lang: identifier}
}

// Canonical resolves an identifier (name, alias, or extension) to the
// canonical language name.
func (r *Registry) Canonical(identifier string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.languages[identifier]; exists {
		return identifier, nil
	}
	if canonical, exists := r.aliases[identifier]; exists {
		return canonical, nil
	}
	ext := identifier
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	if canonical, exists := r.extensions[ext]; exists {
		return canonical, nil
	}

	return "", &UnsupportedError{Lang: identifier}
}

// ForFile resolves a grammar from a filename's extension.
func (r *Registry) ForFile(filename string) (string, *sitter.Language, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		return "", nil, fmt.Errorf("file %s has no extension", filename)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, exists := r.extensions[ext]
	if !exists {
		return "", nil, &UnsupportedError{Lang: ext}
	}
	return canonical, r.languages[canonical], nil
}

// Has reports whether the identifier resolves to a registered grammar.
func (r *Registry) Has(identifier string) bool {
	_, err := r.Get(identifier)
	return err == nil
}

// List returns all registered canonical names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.languages))
	for name := range r.languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in grammars.
var DefaultRegistry = NewRegistry()

func init() {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(DefaultRegistry.Register("go", golang.GetLanguage(), []string{"golang"}, []string{".go"}))
	must(DefaultRegistry.Register("javascript", javascript.GetLanguage(), []string{"js"}, []string{".js", ".jsx", ".mjs"}))
	must(DefaultRegistry.Register("python", python.GetLanguage(), []string{"py"}, []string{".py"}))
	must(DefaultRegistry.Register("typescript", typescript.GetLanguage(), []string{"ts"}, []string{".ts"}))
}

// Register adds a grammar to the default registry.
func Register(name string, language *sitter.Language, aliases, extensions []string) error {
	return DefaultRegistry.Register(name, language, aliases, extensions)
}

// Get retrieves a grammar from the default registry.
func Get(identifier string) (*sitter.Language, error) {
	return DefaultRegistry.Get(identifier)
}

// ForFile resolves a grammar from the default registry by filename.
func ForFile(filename string) (string, *sitter.Language, error) {
	return DefaultRegistry.ForFile(filename)
}

// List returns all canonical names in the default registry.
func List() []string {
	return DefaultRegistry.List()
}
