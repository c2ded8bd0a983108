package query

import (
	"errors"
	"testing"
)

func TestSetMatchLevel(t *testing.T) {
	source := []byte(testSource)
	q := compileTest(t, `((function_declaration name: (identifier) @name)
		(#set! "kind" "function"))`)

	matches := collectMatches(t, q, source)
	if len(matches) != 2 {
		t.Fatalf("set! affected acceptance: got %d matches, want 2", len(matches))
	}
	for _, m := range matches {
		v, ok := m.Metadata.Get("kind")
		if !ok || v != "function" {
			t.Errorf("match metadata kind = %v (%v), want function", v, ok)
		}
	}
}

func TestSetPerCapture(t *testing.T) {
	source := []byte(testSource)
	q := compileTest(t, `((function_declaration name: (identifier) @x)
		(#set! @x "foo" "bar"))`)

	matches := collectMatches(t, q, source)
	if len(matches) == 0 {
		t.Fatal("no matches")
	}
	id := captureIDByName(t, q, "x")
	for _, m := range matches {
		caps := m.Metadata.Capture(id)
		if caps == nil || caps["foo"] != "bar" {
			t.Errorf("capture metadata = %v, want foo=bar", caps)
		}
		if _, ok := m.Metadata.Get("foo"); ok {
			t.Error("per-capture set! leaked into match-level metadata")
		}
	}
}

func TestMetadataFreshPerMatch(t *testing.T) {
	source := []byte(testSource)
	q := compileTest(t, `((function_declaration name: (identifier) @x)
		(#set! @x "foo" "bar"))`)

	matches := collectMatches(t, q, source)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Metadata == matches[1].Metadata {
		t.Error("metadata container shared between matches")
	}
}

func TestOffsetZeroDeltasWritesOriginalRange(t *testing.T) {
	source := []byte(testSource)
	q := compileTest(t, `((function_declaration name: (identifier) @x)
		(#offset! @x 0 0 0 0))`)

	matches := collectMatches(t, q, source)
	id := captureIDByName(t, q, "x")
	for _, m := range matches {
		r, ok := m.Metadata.Range(id)
		if !ok {
			t.Fatal("zero-delta offset! wrote no range")
		}
		n, _ := m.NodeFor(id)
		if r != NodeRange(n) {
			t.Errorf("range = %+v, want unchanged %+v", r, NodeRange(n))
		}
	}
}

func TestOffsetShift(t *testing.T) {
	source := []byte(testSource)
	q := compileTest(t, `((function_declaration name: (identifier) @x)
		(#offset! @x 0 1 0 -1))`)

	matches := collectMatches(t, q, source)
	id := captureIDByName(t, q, "x")
	for _, m := range matches {
		r, ok := m.Metadata.Range(id)
		if !ok {
			t.Fatal("offset! wrote no range")
		}
		n, _ := m.NodeFor(id)
		orig := NodeRange(n)
		if r.StartCol != orig.StartCol+1 || r.EndCol != orig.EndCol-1 {
			t.Errorf("range = %+v, want columns shifted from %+v", r, orig)
		}
	}
}

func TestOffsetInvertedRangeDiscarded(t *testing.T) {
	source := []byte(testSource)
	q := compileTest(t, `((function_declaration name: (identifier) @x)
		(#offset! @x 0 0 0 -1000))`)

	matches := collectMatches(t, q, source)
	if len(matches) == 0 {
		t.Fatal("no matches")
	}
	id := captureIDByName(t, q, "x")
	for _, m := range matches {
		if _, ok := m.Metadata.Range(id); ok {
			t.Error("ill-formed shifted range was written")
		}
		// Discarding the range is local recovery, not an error: the match
		// itself is still accepted.
	}
}

func TestUnknownDirectiveIsFatal(t *testing.T) {
	source := []byte(testSource)
	q := compileTest(t, `((function_declaration name: (identifier) @x)
		(#frob! @x))`)

	tree := parseTest(t, source)
	it := q.Matches(tree.RootNode(), source)
	if _, ok := it.Next(); ok {
		t.Fatal("expected iteration to stop on unknown directive")
	}
	if !errors.Is(it.Err(), ErrUnknownDirective) {
		t.Errorf("err = %v, want ErrUnknownDirective", it.Err())
	}
}

func TestRegisterDirective(t *testing.T) {
	r := NewDirectiveRegistry()
	handler := func(q *Query, m *Match, source []byte, inv *Invocation, md *Metadata) error {
		md.Set("seen", true)
		return nil
	}

	if err := r.Register("custom!", handler, false); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("custom!", handler, false); !errors.Is(err, ErrDuplicateHandler) {
		t.Errorf("duplicate register err = %v, want ErrDuplicateHandler", err)
	}
	if err := r.Register("custom!", handler, true); err != nil {
		t.Errorf("forced register failed: %v", err)
	}
	if err := r.Register("nomarker", handler, false); err == nil {
		t.Error("expected error for name without ! marker")
	}
}

func TestCustomDirectiveThroughPipeline(t *testing.T) {
	source := []byte(testSource)
	dirs := NewDirectiveRegistry()
	err := dirs.Register("upcase!", func(q *Query, m *Match, source []byte, inv *Invocation, md *Metadata) error {
		md.Set("upcase", true)
		return nil
	}, false)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	c := NewCompiler(emptyLookup(), WithDirectives(dirs))
	q, err := c.Compile("go", `((function_declaration name: (identifier) @x)
		(#upcase! @x))`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	matches := collectMatches(t, q, source)
	if len(matches) == 0 {
		t.Fatal("no matches")
	}
	if v, ok := matches[0].Metadata.Get("upcase"); !ok || v != true {
		t.Errorf("custom directive did not run: %v (%v)", v, ok)
	}
}
