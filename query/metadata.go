package query

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Range is a row/column span. Columns are byte offsets within the row, rows
// and columns are 0-based, the end position is exclusive.
type Range struct {
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
}

// NodeRange returns the span covered by a syntax node.
func NodeRange(n *sitter.Node) Range {
	return Range{
		StartRow: int(n.StartPoint().Row),
		StartCol: int(n.StartPoint().Column),
		EndRow:   int(n.EndPoint().Row),
		EndCol:   int(n.EndPoint().Column),
	}
}

// Valid reports whether the range is well-formed: the start position must not
// come after the end position.
func (r Range) Valid() bool {
	if r.StartRow != r.EndRow {
		return r.StartRow < r.EndRow
	}
	return r.StartCol <= r.EndCol
}

// Shift offsets the range by the given deltas. The result may be ill-formed;
// callers decide what to do with it.
func (r Range) Shift(startRow, startCol, endRow, endCol int) Range {
	return Range{
		StartRow: r.StartRow + startRow,
		StartCol: r.StartCol + startCol,
		EndRow:   r.EndRow + endRow,
		EndCol:   r.EndCol + endCol,
	}
}

// Metadata carries directive output for one accepted match. It holds
// match-level keys plus nested per-capture keys and is rebuilt for every
// accepted match; nothing here survives the caller consuming the match.
type Metadata struct {
	match map[string]any
	caps  map[uint32]map[string]any
}

// NewMetadata returns an empty metadata container.
func NewMetadata() *Metadata {
	return &Metadata{}
}

// Set stores a match-level entry.
func (md *Metadata) Set(key string, value any) {
	if md.match == nil {
		md.match = make(map[string]any)
	}
	md.match[key] = value
}

// Get returns a match-level entry.
func (md *Metadata) Get(key string) (any, bool) {
	v, ok := md.match[key]
	return v, ok
}

// SetCapture stores an entry scoped to one capture id.
func (md *Metadata) SetCapture(id uint32, key string, value any) {
	if md.caps == nil {
		md.caps = make(map[uint32]map[string]any)
	}
	m := md.caps[id]
	if m == nil {
		m = make(map[string]any)
		md.caps[id] = m
	}
	m[key] = value
}

// Capture returns the entries scoped to one capture id, or nil when none
// were written. The returned map is the live storage, not a copy.
func (md *Metadata) Capture(id uint32) map[string]any {
	return md.caps[id]
}

// Range returns the range override a directive wrote for the capture, if any.
func (md *Metadata) Range(id uint32) (Range, bool) {
	m := md.caps[id]
	if m == nil {
		return Range{}, false
	}
	r, ok := m["range"].(Range)
	return r, ok
}

// Len reports the number of match-level entries plus capture scopes, mostly
// useful in tests.
func (md *Metadata) Len() int {
	return len(md.match) + len(md.caps)
}
