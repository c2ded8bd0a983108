package query

import (
	sitter "github.com/smacker/go-tree-sitter"
)

type iterConfig struct {
	startRow int
	endRow   int
	hasRange bool
}

// IterOption configures match iteration.
type IterOption func(*iterConfig)

// WithRowRange restricts iteration to the half-open row range [start, end).
// Without it, iteration covers the root node's own row span.
func WithRowRange(start, end int) IterOption {
	return func(cfg *iterConfig) {
		cfg.startRow = start
		cfg.endRow = end
		cfg.hasRange = true
	}
}

// newCursor sets up a fresh raw-match cursor over the node and row range.
// Each call owns its own cursor: returned sequences are independent and not
// restartable.
func (q *Query) newCursor(root *sitter.Node, opts []IterOption) *sitter.QueryCursor {
	cfg := iterConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.hasRange {
		cfg.startRow = int(root.StartPoint().Row)
		// The underlying scan is end-exclusive, so the root's last row is
		// included by advancing past it.
		cfg.endRow = int(root.EndPoint().Row) + 1
	}

	qc := sitter.NewQueryCursor()
	qc.SetPointRange(
		sitter.Point{Row: uint32(cfg.startRow), Column: 0},
		sitter.Point{Row: uint32(cfg.endRow), Column: 0},
	)
	qc.Exec(q.sq, root)
	return qc
}

// MatchIterator lazily yields accepted matches. Predicate rejection skips to
// the next raw match; it never ends iteration. The loop is iterative, so a
// long run of rejected matches costs no stack.
type MatchIterator struct {
	q      *Query
	source []byte
	cursor *sitter.QueryCursor
	err    error
	done   bool
}

// Matches returns a new, independent iterator over accepted matches of the
// query below root. source must be the text root was parsed from.
func (q *Query) Matches(root *sitter.Node, source []byte, opts ...IterOption) *MatchIterator {
	return &MatchIterator{
		q:      q,
		source: source,
		cursor: q.newCursor(root, opts),
	}
}

// Next returns the next accepted match. It returns false at the end of the
// sequence or on error; check Err afterwards to tell the two apart.
func (it *MatchIterator) Next() (*Match, bool) {
	if it.done {
		return nil, false
	}
	for {
		raw, ok := it.cursor.NextMatch()
		if !ok {
			it.done = true
			return nil, false
		}

		m := newMatch(raw)
		accepted, err := it.q.accept(m, it.source)
		if err != nil {
			it.err = err
			it.done = true
			return nil, false
		}
		if !accepted {
			continue
		}

		md := NewMetadata()
		if err := it.q.applyDirectives(m, it.source, md); err != nil {
			it.err = err
			it.done = true
			return nil, false
		}
		m.Metadata = md
		return m, true
	}
}

// Err returns the error that stopped iteration, if any.
func (it *MatchIterator) Err() error {
	return it.err
}

// CaptureIterator lazily yields one capture at a time across all accepted
// matches. Captures belonging to a rejected match are skipped with it.
type CaptureIterator struct {
	matches *MatchIterator
	current *Match
	next    int
}

// Captures returns a new, independent iterator over the accepted captures of
// the query below root.
func (q *Query) Captures(root *sitter.Node, source []byte, opts ...IterOption) *CaptureIterator {
	return &CaptureIterator{matches: q.Matches(root, source, opts...)}
}

// Next returns the next capture together with its match's metadata. It
// returns false at the end of the sequence or on error.
func (it *CaptureIterator) Next() (Capture, *Metadata, bool) {
	for {
		if it.current != nil && it.next < len(it.current.Caps) {
			c := it.current.Caps[it.next]
			it.next++
			return c, it.current.Metadata, true
		}
		m, ok := it.matches.Next()
		if !ok {
			return Capture{}, nil, false
		}
		it.current = m
		it.next = 0
	}
}

// Err returns the error that stopped iteration, if any.
func (it *CaptureIterator) Err() error {
	return it.matches.Err()
}
