package query

import (
	"path/filepath"
	"reflect"
	"testing"
)

// mapLookup is a canned file-enumeration collaborator.
type mapLookup map[string][]string

func (m mapLookup) FindQueryFiles(language, queryName string) ([]string, error) {
	return m[language+"/"+queryName], nil
}

func TestResolveNoFiles(t *testing.T) {
	r := NewResolver(mapLookup{})
	files, err := r.Resolve("go", "highlights")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected empty resolution, got %v", files)
	}
}

func TestResolveBaseThenExtension(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "highlights.scm", "(identifier) @id\n")
	ext := writeFile(t, dir, "injections.scm", ";extends\n(comment) @c\n")

	r := NewResolver(mapLookup{"demo/highlights": {base, ext}})
	files, err := r.Resolve("demo", "highlights")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := []string{base, ext}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("Resolve = %v, want %v", files, want)
	}
}

func TestResolveSingleFileIsBase(t *testing.T) {
	dir := t.TempDir()
	only := writeFile(t, dir, "injections.scm", "(comment) @c\n")

	r := NewResolver(mapLookup{"demo/injections": {only}})
	files, err := r.Resolve("demo", "injections")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !reflect.DeepEqual(files, []string{only}) {
		t.Errorf("Resolve = %v, want [%s]", files, only)
	}
}

func TestResolveIdempotent(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "a.scm", "(identifier) @id\n")
	ext := writeFile(t, dir, "b.scm", "; extends\n(comment) @c\n")
	r := NewResolver(mapLookup{"demo/highlights": {base, ext}})

	first, err := r.Resolve("demo", "highlights")
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	second, err := r.Resolve("demo", "highlights")
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("resolution not idempotent: %v vs %v", first, second)
	}
}

func TestResolveInherits(t *testing.T) {
	dir := t.TempDir()
	cpp := writeFile(t, dir, "cpp.scm", ";; inherits: c\n(identifier) @id\n")
	c := writeFile(t, dir, "c.scm", "(number_literal) @num\n")

	r := NewResolver(mapLookup{
		"cpp/highlights": {cpp},
		"c/highlights":   {c},
	})
	files, err := r.Resolve("cpp", "highlights")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := []string{cpp, c}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("Resolve = %v, want %v", files, want)
	}
}

func TestResolveInheritsDeclarationOrder(t *testing.T) {
	dir := t.TempDir()
	top := writeFile(t, dir, "top.scm", "; inherits: b,a\n(identifier) @id\n")
	a := writeFile(t, dir, "a.scm", "(a) @a\n")
	b := writeFile(t, dir, "b.scm", "(b) @b\n")

	r := NewResolver(mapLookup{
		"top/highlights": {top},
		"a/highlights":   {a},
		"b/highlights":   {b},
	})
	files, err := r.Resolve("top", "highlights")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := []string{top, b, a}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("Resolve = %v, want %v", files, want)
	}
}

func TestResolveOptionalInheritOnlyAtTopLevel(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.scm", "; inherits: b\n(a) @a\n")
	b := writeFile(t, dir, "b.scm", "; inherits: (c)\n(b) @b\n")
	c := writeFile(t, dir, "c.scm", "(c) @c\n")

	lookup := mapLookup{
		"a/highlights": {a},
		"b/highlights": {b},
		"c/highlights": {c},
	}
	r := NewResolver(lookup)

	// Resolving b directly expands the optional include.
	files, err := r.Resolve("b", "highlights")
	if err != nil {
		t.Fatalf("Resolve(b) failed: %v", err)
	}
	if !reflect.DeepEqual(files, []string{b, c}) {
		t.Errorf("Resolve(b) = %v, want [b c]", files)
	}

	// Reached through a's inheritance, the optional include is skipped.
	files, err = r.Resolve("a", "highlights")
	if err != nil {
		t.Fatalf("Resolve(a) failed: %v", err)
	}
	if !reflect.DeepEqual(files, []string{a, b}) {
		t.Errorf("Resolve(a) = %v, want [a b]", files)
	}
}

func TestResolveSelfReferenceIsExtension(t *testing.T) {
	dir := t.TempDir()
	extra := writeFile(t, dir, "extra.scm", ";inherits: demo\n(extra) @e\n")
	base := writeFile(t, dir, "base.scm", "(base) @b\n")

	r := NewResolver(mapLookup{"demo/highlights": {extra, base}})
	files, err := r.Resolve("demo", "highlights")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	// The self-referencing file yields its base slot and lands after it.
	want := []string{base, extra}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("Resolve = %v, want %v", files, want)
	}
}

func TestResolveSecondBaseIgnored(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "first.scm", "(one) @a\n")
	second := writeFile(t, dir, "second.scm", "(two) @b\n")

	r := NewResolver(mapLookup{"demo/highlights": {first, second}})
	files, err := r.Resolve("demo", "highlights")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !reflect.DeepEqual(files, []string{first}) {
		t.Errorf("Resolve = %v, want only the first base", files)
	}
}

func TestResolveDeduplicatesAcrossInheritance(t *testing.T) {
	dir := t.TempDir()
	shared := writeFile(t, dir, "shared.scm", "(shared) @s\n")
	a := writeFile(t, dir, "a.scm", "; inherits: b,c\n(a) @a\n")
	b := writeFile(t, dir, "b.scm", "; inherits: c\n(b) @b\n")

	r := NewResolver(mapLookup{
		"a/highlights": {a},
		"b/highlights": {b},
		"c/highlights": {shared},
	})
	files, err := r.Resolve("a", "highlights")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := []string{a, b, shared}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("Resolve = %v, want %v (no duplicate paths)", files, want)
	}
}

func TestResolveMutualInheritanceTerminates(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.scm", "; inherits: b\n(a) @a\n")
	b := writeFile(t, dir, "b.scm", "; inherits: a\n(b) @b\n")

	r := NewResolver(mapLookup{
		"a/highlights": {a},
		"b/highlights": {b},
	})
	files, err := r.Resolve("a", "highlights")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := []string{a, b}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("Resolve = %v, want %v", files, want)
	}
}

func TestResolveUnreadableFileIsFatal(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone.scm")
	r := NewResolver(mapLookup{"demo/highlights": {missing}})

	if _, err := r.Resolve("demo", "highlights"); err == nil {
		t.Error("expected a fatal error for an unreadable candidate file")
	}
}

func TestModelineForms(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		content  string
		extends  bool
		inherits []inheritRef
	}{
		{"plain", "(a) @a\n", false, nil},
		{"extends bare", ";extends\n(a) @a\n", true, nil},
		{"extends spaced", ";;;  extends  \n(a) @a\n", true, nil},
		{"inherits colon", "; inherits: c\n", false, []inheritRef{{name: "c"}}},
		{"inherits no colon", ";inherits c\n", false, []inheritRef{{name: "c"}}},
		{"inherits list", ";; inherits: a,(b),c\n", false, []inheritRef{
			{name: "a"}, {name: "b", optional: true}, {name: "c"},
		}},
		{"header only", "(a) @a\n; inherits: c\n", false, nil},
		{"extends in body ignored", "(a) @a\n;extends\n", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name+".scm", tt.content)
			ml, err := scanModeline(path)
			if err != nil {
				t.Fatalf("scanModeline failed: %v", err)
			}
			if ml.extends != tt.extends {
				t.Errorf("extends = %v, want %v", ml.extends, tt.extends)
			}
			if !reflect.DeepEqual(ml.inherits, tt.inherits) {
				t.Errorf("inherits = %+v, want %+v", ml.inherits, tt.inherits)
			}
		})
	}
}
