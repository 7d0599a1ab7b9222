package chunker

import "strings"

// Entry is one open clause on the hierarchy stack.
type Entry struct {
	ClauseID string `json:"clause_id"`
	Title    string `json:"title"`
	Level    int    `json:"level"`
}

// Stack holds the open clauses, outermost first. The zero value is empty.
// Levels strictly increase from bottom to top.
type Stack []Entry

// Level is the nesting depth of a cleaned clause id: one per dot and one
// per lettered suffix. "19" is 0, "19.2" is 1, "4.2(a)" is 2.
func Level(clauseID string) int {
	return strings.Count(clauseID, ".") + strings.Count(clauseID, "(")
}

// NewEntry builds a stack entry from a header's raw number and title.
func NewEntry(rawNumber, title string) Entry {
	id := CleanClauseID(rawNumber)
	return Entry{ClauseID: id, Title: title, Level: Level(id)}
}

// Push closes every open clause at the same or deeper level, then opens e.
func (s *Stack) Push(e Entry) {
	st := *s
	for len(st) > 0 && st[len(st)-1].Level >= e.Level {
		st = st[:len(st)-1]
	}
	*s = append(st, e)
}

// Clone returns an independent copy.
func (s Stack) Clone() Stack {
	if s == nil {
		return nil
	}
	out := make(Stack, len(s))
	copy(out, s)
	return out
}

// Top returns the innermost open clause.
func (s Stack) Top() (Entry, bool) {
	if len(s) == 0 {
		return Entry{}, false
	}
	return s[len(s)-1], true
}

// IDs returns the clause ids, outermost first. Never nil.
func (s Stack) IDs() []string {
	ids := make([]string, len(s))
	for i, e := range s {
		ids[i] = e.ClauseID
	}
	return ids
}

// Snapshot is the hierarchy view recorded on a chunk.
type Snapshot struct {
	Hierarchy   []string
	Clause      *string
	ClauseTitle *string
}

func (s Stack) Snapshot() Snapshot {
	snap := Snapshot{Hierarchy: s.IDs()}
	if top, ok := s.Top(); ok {
		id, title := top.ClauseID, top.Title
		snap.Clause, snap.ClauseTitle = &id, &title
	}
	return snap
}
