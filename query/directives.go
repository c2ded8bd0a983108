package query

import (
	"fmt"
	"strconv"
)

func registerBuiltinDirectives(r *DirectiveRegistry) {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(r.Register("set!", dirSet, false))
	must(r.Register("offset!", dirOffset, false))
}

// dirSet implements (#set! "key" "value") for match-level metadata and
// (#set! @capture "key" "value") for per-capture metadata.
func dirSet(q *Query, m *Match, source []byte, inv *Invocation, md *Metadata) error {
	args := inv.Args
	switch {
	case len(args) == 3 && args[0].Kind == ArgCapture &&
		args[1].Kind == ArgString && args[2].Kind == ArgString:
		md.SetCapture(args[0].Capture, args[1].Value, args[2].Value)
		return nil
	case len(args) == 2 && args[0].Kind == ArgString && args[1].Kind == ArgString:
		md.Set(args[0].Value, args[1].Value)
		return nil
	default:
		return fmt.Errorf("set! expects (key value) or (@capture key value), got %d args", len(args))
	}
}

// dirOffset implements (#offset! @capture sr sc er ec): shifts the captured
// node's reported range by four signed deltas, each defaulting to 0. The
// shifted range is written under the capture's "range" key only when it is
// well-formed; an inverted result is dropped without error.
func dirOffset(q *Query, m *Match, source []byte, inv *Invocation, md *Metadata) error {
	if len(inv.Args) < 1 || inv.Args[0].Kind != ArgCapture {
		return fmt.Errorf("offset! expects a capture and up to four integer deltas")
	}
	if len(inv.Args) > 5 {
		return fmt.Errorf("offset! takes at most four deltas, got %d", len(inv.Args)-1)
	}

	id := inv.Args[0].Capture
	node, ok := m.NodeFor(id)
	if !ok || node == nil {
		return nil
	}

	var deltas [4]int
	for i, a := range inv.Args[1:] {
		if a.Kind != ArgString {
			return fmt.Errorf("offset! deltas must be literals")
		}
		n, err := strconv.Atoi(a.Value)
		if err != nil {
			return fmt.Errorf("offset! delta %q: %w", a.Value, err)
		}
		deltas[i] = n
	}

	shifted := NodeRange(node).Shift(deltas[0], deltas[1], deltas[2], deltas[3])
	if !shifted.Valid() {
		return nil
	}
	md.SetCapture(id, "range", shifted)
	return nil
}
