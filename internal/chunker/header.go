package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// Optional "Clause" keyword, a dotted number with optional trailing dot and
	// optional lettered suffix, then whitespace and a non-blank title.
	headerRe    = regexp.MustCompile(`^\s*(?:Clause\s+)?((?:\d+\.)*\d+\.?(?:\([a-zA-Z]+\))?)[ \t]+(\S.*)`)
	clauseNumRe = regexp.MustCompile(`^(?:\d+\.)*\d+\.?(?:\([a-zA-Z]+\))?$`)
	bareNumRe   = regexp.MustCompile(`^\d+$`)
	docuSignRe  = regexp.MustCompile(`(?i)DocuSign Envelope ID:`)
	listItemRe  = regexp.MustCompile(`^\s*\(?[a-zA-Z0-9]+[.)]`)
	pageNumRe   = regexp.MustCompile(`^\s*\d+\s*$`)
	markerRe    = regexp.MustCompile(`^\([\da-zA-Z]+\)$`)
)

// HeaderMatch is a line that has the shape of a numbered clause header.
type HeaderMatch struct {
	RawNumber string // Number as written, e.g. "19." or "4.2(a)"
	Title     string // Remainder of the line after the number
}

// MatchHeader reports whether line has clause-header shape. Shape alone does
// not make a header; see ValidClause.
func MatchHeader(line string) (HeaderMatch, bool) {
	m := headerRe.FindStringSubmatch(line)
	if m == nil {
		return HeaderMatch{}, false
	}
	return HeaderMatch{RawNumber: m[1], Title: strings.TrimSpace(m[2])}, true
}

// IsClauseNumber reports whether s is a whole clause number like "4", "4.2." or "4.2(a)".
func IsClauseNumber(s string) bool {
	return clauseNumRe.MatchString(s)
}

// CleanClauseID drops trailing dots: "19." becomes "19".
func CleanClauseID(raw string) string {
	return strings.TrimRight(raw, ".")
}

// ValidClause decides whether a header-shaped line is a real clause header.
// rawNumber may carry a trailing dot; title is the fully composed title.
func ValidClause(rawNumber, title string) bool {
	if !IsClauseNumber(rawNumber) || title == "" {
		return false
	}
	if !bareNumRe.MatchString(CleanClauseID(rawNumber)) {
		return true
	}
	return !looksLikeSentence(title) && !looksLikeParenthetical(title) && !looksLikeScheduleRef(title)
}

// looksLikeSentence catches prose that opens with a number, as in
// "10 days' notice shall be given". Headings are capitalised.
func looksLikeSentence(title string) bool {
	return startsLower(title) && len(strings.Fields(title)) > 1
}

// looksLikeParenthetical catches "5 (five) Business Days" style amounts.
func looksLikeParenthetical(title string) bool {
	return strings.HasPrefix(title, "(")
}

// looksLikeScheduleRef catches a wrapped "Schedule 4 Part 3" reference
// whose second line starts "4 Part 3 ...".
func looksLikeScheduleRef(title string) bool {
	return strings.HasPrefix(strings.ToLower(title), "part ") && len(strings.Fields(title)) > 1
}

func startsLower(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsLower(r)
}

// isSpurious reports lines to drop outright: blanks, e-signature stamps and
// bare page numbers. Bracketed list markers such as "(a)" are never spurious.
func isSpurious(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" {
		return true
	}
	if markerRe.MatchString(s) {
		return false
	}
	return docuSignRe.MatchString(s) || pageNumRe.MatchString(s)
}

func isListItem(line string) bool {
	return listItemRe.MatchString(line)
}

// continuesTitle reports whether a following line may be folded into a
// header title. Any blank, spurious, header-shaped or list-item line stops it.
func continuesTitle(line string) bool {
	if isSpurious(line) || isListItem(line) {
		return false
	}
	_, ok := MatchHeader(line)
	return !ok
}
