package chunker

import "testing"

func TestMatchHeader(t *testing.T) {
	tests := []struct {
		line      string
		wantOK    bool
		wantNum   string
		wantTitle string
	}{
		{"19. Liability", true, "19.", "Liability"},
		{"19.1 Nothing in this Agreement", true, "19.1", "Nothing in this Agreement"},
		{"Clause 4.2(a) Fees", true, "4.2(a)", "Fees"},
		{"  3\tScope of Services", true, "3", "Scope of Services"},
		{"10 days' notice shall be given", true, "10", "days' notice shall be given"},
		{"19.", false, "", ""},
		{"Payment terms apply", false, "", ""},
		{"(a) the Customer", false, "", ""},
	}
	for _, tt := range tests {
		m, ok := MatchHeader(tt.line)
		if ok != tt.wantOK {
			t.Errorf("MatchHeader(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			continue
		}
		if m.RawNumber != tt.wantNum || m.Title != tt.wantTitle {
			t.Errorf("MatchHeader(%q) = %+v, want %q / %q", tt.line, m, tt.wantNum, tt.wantTitle)
		}
	}
}

func TestValidClause(t *testing.T) {
	tests := []struct {
		num, title string
		want       bool
	}{
		{"19.", "Liability", true},
		{"19.2", "subject to clause 19.1", true}, // dotted numbers are never treated as prose
		{"18", "Record Keeping", true},
		{"10", "days' notice shall be given", false},
		{"10.", "days' notice shall be given", false},
		{"5.", "(five) Business Days", false},
		{"4.", "Part 3 of the Schedule", false},
		{"5", "(five) Business Days", false},
		{"4", "Part 3 of the Schedule", false},
		{"4", "Partnership", true},
		{"7", "x", true},
		{"7", "", false},
		{"7a", "Fees", false},
	}
	for _, tt := range tests {
		if got := ValidClause(tt.num, tt.title); got != tt.want {
			t.Errorf("ValidClause(%q, %q) = %v, want %v", tt.num, tt.title, got, tt.want)
		}
	}
}

func TestIsSpurious(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"12", true},
		{"  7  ", true},
		{"DocuSign Envelope ID: 1A2B-3C4D", true},
		{"docusign envelope id: abc", true},
		{"(a)", false},
		{"(iv)", false},
		{"Payment terms", false},
	}
	for _, tt := range tests {
		if got := isSpurious(tt.line); got != tt.want {
			t.Errorf("isSpurious(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestIsListItem(t *testing.T) {
	for _, line := range []string{"(a) the Customer", "1. First", "i) second", "  (b) indented"} {
		if !isListItem(line) {
			t.Errorf("isListItem(%q) = false, want true", line)
		}
	}
	for _, line := range []string{"Payment terms", "the Customer shall"} {
		if isListItem(line) {
			t.Errorf("isListItem(%q) = true, want false", line)
		}
	}
}

func TestCleanClauseIDAndLevel(t *testing.T) {
	tests := []struct {
		raw   string
		id    string
		level int
	}{
		{"19.", "19", 0},
		{"19", "19", 0},
		{"19.2", "19.2", 1},
		{"19.2.", "19.2", 1},
		{"4.2(a)", "4.2(a)", 2},
		{"1.1.3", "1.1.3", 2},
	}
	for _, tt := range tests {
		e := NewEntry(tt.raw, "t")
		if e.ClauseID != tt.id || e.Level != tt.level {
			t.Errorf("NewEntry(%q) = %+v, want id %q level %d", tt.raw, e, tt.id, tt.level)
		}
	}
}
