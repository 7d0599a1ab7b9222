package legal

import (
	"regexp"
	"slices"
	"strings"
	"sync"
)

// refRe finds "Clause 19.1", "clause 7(a)" and "Schedule 4 Part 3".
var refRe = regexp.MustCompile(`(?i)\b(?:Clause\s+((?:\d+\.)*\d+(?:\([a-zA-Z]+\))?)|Schedule\s+(\d+)\s+Part\s+(\d+))`)

// Edge is one cross reference from the clause containing it to its target.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// FindReferences returns the normalised targets referenced in text, in
// order of first appearance.
func FindReferences(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range refRe.FindAllStringSubmatch(text, -1) {
		var ref string
		if m[1] != "" {
			ref = m[1]
		} else {
			ref = "Schedule-" + m[2] + "-" + m[3]
		}
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}

// NormalizeLocation turns "Clause 19.1." or "19.1" into "19.1".
func NormalizeLocation(loc string) string {
	loc = strings.TrimSpace(loc)
	loc = strings.TrimSpace(strings.TrimRight(loc, "."))
	if len(loc) >= len("clause") && strings.EqualFold(loc[:len("clause")], "clause") {
		loc = strings.TrimSpace(loc[len("clause"):])
	}
	return loc
}

// RefGraph is a directed graph of cross references within one document.
// It is safe for concurrent use.
type RefGraph struct {
	mu  sync.RWMutex
	out map[string]map[string]struct{}
	in  map[string]map[string]struct{}
}

func NewRefGraph() *RefGraph {
	return &RefGraph{
		out: make(map[string]map[string]struct{}),
		in:  make(map[string]map[string]struct{}),
	}
}

// AddText records an edge from location to every reference found in text
// and returns how many new edges were added. Self references are ignored.
func (g *RefGraph) AddText(location, text string) int {
	from := NormalizeLocation(location)
	if from == "" {
		return 0
	}
	added := 0
	for _, to := range FindReferences(text) {
		if g.AddEdge(from, to) {
			added++
		}
	}
	return added
}

// AddEdge adds from -> to, reporting whether it was new.
func (g *RefGraph) AddEdge(from, to string) bool {
	if from == "" || to == "" || from == to {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.out[from][to]; ok {
		return false
	}
	if g.out[from] == nil {
		g.out[from] = make(map[string]struct{})
	}
	if g.in[to] == nil {
		g.in[to] = make(map[string]struct{})
	}
	g.out[from][to] = struct{}{}
	g.in[to][from] = struct{}{}
	return true
}

// Edges returns every edge sorted by source then target.
func (g *RefGraph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var edges []Edge
	for from, tos := range g.out {
		for to := range tos {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	slices.SortFunc(edges, func(a, b Edge) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}
		return strings.Compare(a.To, b.To)
	})
	return edges
}

// References lists what from refers to.
func (g *RefGraph) References(from string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.out[from])
}

// ReferencedBy lists the clauses that refer to to.
func (g *RefGraph) ReferencedBy(to string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.in[to])
}

// Len is the number of edges.
func (g *RefGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, tos := range g.out {
		n += len(tos)
	}
	return n
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
