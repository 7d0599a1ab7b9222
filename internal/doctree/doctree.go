package doctree

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Document is a parsed source file, split into pages in reading order.
type Document struct {
	Title  string // Document title (from metadata or filename)
	Source string // Source identifier copied into every chunk
	Pages  []Page
}

// Page is one page of extracted text. Number is 1-based; 0 means the format has no pages.
type Page struct {
	Number int
	Text   string
}

// DocRef identifies an ingested document to the indexing backends.
type DocRef struct {
	DocID       string
	UserID      string
	Title       string
	Source      string
	ContentHash string
	Pages       int
}

// Chunk is one emitted segment of contract text with its clause context.
type Chunk struct {
	ID       string   `json:"id,omitempty"`
	Index    int      `json:"index"` // Sequence number within document
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Metadata describes where a chunk sits in the clause hierarchy.
//
// Hierarchy holds the clause ids of the active stack, outermost first.
// Clause and ClauseTitle name the innermost entry and are nil when the
// stack was empty at flush time.
type Metadata struct {
	Source      string
	PageNumber  *int
	Hierarchy   []string
	Clause      *string
	ClauseTitle *string
	Extra       map[string]any // Caller-supplied keys, passed through untouched
}

const (
	keySource      = "source"
	keyPageNumber  = "page_number"
	keyHierarchy   = "hierarchy"
	keyClause      = "clause"
	keyClauseTitle = "clause_title"
)

// Map flattens the metadata into a single map. Caller keys come first and
// are overwritten by the fixed keys; page_number is only set when known.
func (m Metadata) Map() map[string]any {
	out := make(map[string]any, len(m.Extra)+5)
	maps.Copy(out, m.Extra)
	out[keySource] = m.Source
	if m.PageNumber != nil {
		out[keyPageNumber] = *m.PageNumber
	}
	h := m.Hierarchy
	if h == nil {
		h = []string{}
	}
	out[keyHierarchy] = h
	out[keyClause] = m.Clause
	out[keyClauseTitle] = m.ClauseTitle
	return out
}

// ClauseID returns the innermost clause id, or "" when there is none.
func (m Metadata) ClauseID() string {
	if m.Clause == nil {
		return ""
	}
	return *m.Clause
}

// InClause reports whether id is anywhere on the chunk's hierarchy.
func (m Metadata) InClause(id string) bool {
	for _, h := range m.Hierarchy {
		if h == id {
			return true
		}
	}
	return false
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	if v, ok := raw[keySource]; ok {
		if err := json.Unmarshal(v, &m.Source); err != nil {
			return fmt.Errorf("metadata source: %w", err)
		}
		delete(raw, keySource)
	}
	if v, ok := raw[keyPageNumber]; ok {
		if err := json.Unmarshal(v, &m.PageNumber); err != nil {
			return fmt.Errorf("metadata page_number: %w", err)
		}
		delete(raw, keyPageNumber)
	}
	if v, ok := raw[keyHierarchy]; ok {
		if err := json.Unmarshal(v, &m.Hierarchy); err != nil {
			return fmt.Errorf("metadata hierarchy: %w", err)
		}
		delete(raw, keyHierarchy)
	}
	if v, ok := raw[keyClause]; ok {
		if err := json.Unmarshal(v, &m.Clause); err != nil {
			return fmt.Errorf("metadata clause: %w", err)
		}
		delete(raw, keyClause)
	}
	if v, ok := raw[keyClauseTitle]; ok {
		if err := json.Unmarshal(v, &m.ClauseTitle); err != nil {
			return fmt.Errorf("metadata clause_title: %w", err)
		}
		delete(raw, keyClauseTitle)
	}
	if m.Hierarchy == nil {
		m.Hierarchy = []string{}
	}
	if len(raw) == 0 {
		return nil
	}
	m.Extra = make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("metadata %s: %w", k, err)
		}
		m.Extra[k] = val
	}
	return nil
}

// PageRef returns a pointer to n, or nil when n is zero.
func PageRef(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
