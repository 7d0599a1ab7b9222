package legal

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/clausegest/internal/chunker"
)

// borderRe matches a grid table border such as "+-----+=====+".
var borderRe = regexp.MustCompile(`^\+[-=+]*[-=][-=+]*\+$`)

// Table is an ASCII grid table found in contract text.
type Table struct {
	Text    string `json:"table"`
	Line    int    `json:"line"`              // 0-based line where the table starts
	Clause  string `json:"clause,omitempty"`  // nearest preceding clause id
	Context string `json:"context,omitempty"` // "Clause 21: Service Credits"
}

// ExtractTables finds "+---+" framed tables. A table runs from a border line
// through the last border line of an unbroken block of border and "|" rows.
// Each is tagged with the closest clause header above it.
func ExtractTables(text string) []Table {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var tables []Table
	var ctxClause, ctxTitle string

	for i := 0; i < len(lines); i++ {
		s := strings.TrimSpace(lines[i])
		if !borderRe.MatchString(s) {
			if m, ok := chunker.MatchHeader(s); ok && chunker.ValidClause(m.RawNumber, m.Title) {
				ctxClause, ctxTitle = chunker.CleanClauseID(m.RawNumber), m.Title
			}
			continue
		}

		last := -1
		j := i
		for ; j < len(lines); j++ {
			row := strings.TrimSpace(lines[j])
			if borderRe.MatchString(row) {
				last = j
				continue
			}
			if !strings.HasPrefix(row, "|") {
				break
			}
		}
		if last <= i {
			continue
		}

		t := Table{Text: strings.Join(trimAll(lines[i:last+1]), "\n"), Line: i}
		if ctxClause != "" {
			t.Clause = ctxClause
			t.Context = fmt.Sprintf("Clause %s: %s", ctxClause, ctxTitle)
		}
		tables = append(tables, t)
		i = last
	}
	return tables
}

func trimAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSpace(l)
	}
	return out
}
