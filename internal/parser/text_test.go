package parser

import (
	"strings"
	"testing"
)

func TestTextParser_FormFeedPages(t *testing.T) {
	input := "1. Definitions\nIn this Agreement:\f\f2. Services\nThe Supplier shall provide the Services.\n"
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "contracts/msa.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "msa" || doc.Source != "msa.txt" {
		t.Errorf("title/source = %q/%q", doc.Title, doc.Source)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}
	// The blank second page keeps its number slot.
	if doc.Pages[0].Number != 1 || doc.Pages[1].Number != 3 {
		t.Errorf("page numbers = %d, %d", doc.Pages[0].Number, doc.Pages[1].Number)
	}
	if !strings.HasPrefix(doc.Pages[1].Text, "2. Services") {
		t.Errorf("page 3 text = %q", doc.Pages[1].Text)
	}
}

func TestTextParser_UnpaginatedKeepsLines(t *testing.T) {
	input := "First line.\n\n\nSecond line.\n   \nThird."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	if doc.Pages[0].Number != 0 {
		t.Errorf("expected unnumbered page, got %d", doc.Pages[0].Number)
	}
	if doc.Pages[0].Text != input {
		t.Errorf("text changed: %q", doc.Pages[0].Text)
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader("  \n"), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "empty" {
		t.Errorf("expected title %q, got %q", "empty", doc.Title)
	}
	if len(doc.Pages) != 0 {
		t.Errorf("expected 0 pages for blank input, got %d", len(doc.Pages))
	}
}

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.txt", "b.MD", "c.markdown", "d.csv", "e.htm", "f.pdf", "g.docx"} {
		if _, err := ForFile(name, Options{}); err != nil {
			t.Errorf("ForFile(%q): %v", name, err)
		}
		if !IsSupportedExtension(name) {
			t.Errorf("IsSupportedExtension(%q) = false", name)
		}
	}
	if _, err := ForFile("h.xlsx", Options{}); err == nil {
		t.Error("expected error for .xlsx")
	}

	p, _ := ForFile("scan.pdf", Options{PDFFallbackPdftotext: true})
	if pp, ok := p.(*PDFParser); !ok || !pp.FallbackPdftotext {
		t.Errorf("pdf parser options not applied: %#v", p)
	}
}
