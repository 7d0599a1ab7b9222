package chunker

import (
	"strings"
)

var conjunctions = map[string]bool{
	"or": true, "and": true, "but": true, "for": true, "nor": true, "yet": true,
}

// headerSpan is the result of composing a title starting at a header line.
type headerSpan struct {
	end   int // index of the first line not consumed by the header
	title string
}

// composeTitle builds the title for the header at lines[start], whose
// remainder after the clause number is rest. Lines merged into the title
// are consumed; lines read for enrichment or extension are not.
func (c *Chunker) composeTitle(lines []string, start int, rest string) headerSpan {
	parts := []string{rest}
	j := start + 1
	for j < len(lines) {
		next := strings.TrimSpace(lines[j])
		if !continuesTitle(next) {
			break
		}
		parts = append(parts, next)
		j++
	}
	title := strings.TrimSpace(strings.Join(parts, " "))

	title = c.enrichTitle(title, lines, j)
	if j < len(lines) {
		title = c.extendTitle(title, lines[j])
	}
	title = trimWords(title, c.cfg.MaxTitleWords)
	title = strings.TrimRight(title, " ,;:")
	title = stripEmphasis(title)
	return headerSpan{end: j, title: title}
}

// enrichTitle appends following lines to a short title until it reaches
// MinTitleWords or MaxEnrichLines lines have been read.
func (c *Chunker) enrichTitle(title string, lines []string, from int) string {
	words := len(strings.Fields(title))
	for i, used := from, 0; words < c.cfg.MinTitleWords && i < len(lines) && used < c.cfg.MaxEnrichLines; i, used = i+1, used+1 {
		next := strings.TrimSpace(lines[i])
		if !continuesTitle(next) {
			break
		}
		title += " " + next
		words += len(strings.Fields(next))
	}
	return title
}

// extendTitle finishes a title that visibly stops mid-phrase with the first
// ExtendWords words of next. List items are never borrowed.
func (c *Chunker) extendTitle(title, next string) string {
	if !endsIncomplete(title) {
		return title
	}
	next = strings.TrimSpace(next)
	if next == "" || isListItem(next) {
		return title
	}
	words := strings.Fields(next)
	if len(words) > c.cfg.ExtendWords {
		words = words[:c.cfg.ExtendWords]
	}
	return title + " " + strings.Join(words, " ")
}

func endsIncomplete(title string) bool {
	words := strings.Fields(title)
	if len(words) == 0 {
		return false
	}
	last := words[len(words)-1]
	if strings.HasSuffix(last, ",") || strings.HasSuffix(last, ":") || strings.HasSuffix(last, "(") {
		return true
	}
	return conjunctions[strings.TrimRight(strings.ToLower(last), ".,:;")]
}

func trimWords(title string, max int) string {
	words := strings.Fields(title)
	if max <= 0 || len(words) <= max {
		return title
	}
	return strings.Join(words[:max], " ") + "..."
}

// stripEmphasis removes symmetric markdown wrappers: "**Fees**" becomes "Fees".
func stripEmphasis(s string) string {
	s = strings.TrimSpace(s)
	for len(s) > 1 && (s[0] == '*' || s[0] == '_') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
