package planner

import (
	"encoding/json"
	"strings"

	"github.com/j-94/waggle-dance/internal/dag"
)

// firstNodeDetector watches a streaming plan response for the first task
// that could start immediately: the earliest complete node object in the
// "nodes" array that no edge seen so far points at. It fires its callback
// at most once.
type firstNodeDetector struct {
	notify func(dag.Node)
	fired  bool
}

func newFirstNodeDetector(notify func(dag.Node)) *firstNodeDetector {
	return &firstNodeDetector{notify: notify}
}

// Feed re-examines the accumulated response. Safe to call on every chunk.
func (d *firstNodeDetector) Feed(partial string) {
	if d.fired || d.notify == nil {
		return
	}
	node, ok := detectFirstNode(partial)
	if !ok {
		return
	}
	d.fired = true
	d.notify(node)
}

// detectFirstNode scans a possibly truncated plan document for the first
// node with no incoming edge among the edges visible so far. The check is
// structural: it never interprets id text.
func detectFirstNode(partial string) (dag.Node, bool) {
	rawNodes := scanArrayObjects(partial, `"nodes"`)
	if len(rawNodes) == 0 {
		return dag.Node{}, false
	}

	targeted := make(map[string]bool)
	for _, rawEdge := range scanArrayObjects(partial, `"edges"`) {
		var e planEdge
		if json.Unmarshal([]byte(rawEdge), &e) == nil && e.Target != "" {
			targeted[e.Target] = true
		}
	}

	for _, raw := range rawNodes {
		var pn planNode
		if json.Unmarshal([]byte(raw), &pn) != nil {
			continue
		}
		node, err := normalizeNode(pn)
		if err != nil {
			continue
		}
		if targeted[node.ID] {
			continue
		}
		return node, true
	}
	return dag.Node{}, false
}

// scanArrayObjects returns the complete top-level objects of the JSON array
// following key, tolerating a truncated tail. A partially streamed object is
// simply not returned yet.
func scanArrayObjects(s, key string) []string {
	at := strings.Index(s, key)
	if at == -1 {
		return nil
	}
	rest := s[at+len(key):]
	open := strings.IndexByte(rest, '[')
	if open == -1 {
		return nil
	}
	rest = rest[open+1:]

	var out []string
	var inString, escaped bool
	depth := 0
	start := -1

	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				out = append(out, rest[start:i+1])
				start = -1
			}
		case ']':
			if depth == 0 {
				return out
			}
		}
	}
	return out
}
