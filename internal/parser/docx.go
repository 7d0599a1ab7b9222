package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/clausegest/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Paragraphs become lines, table rows
// become " | "-joined lines, and explicit page breaks start a new page.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// go-docx needs a ReaderAt+size, so write to temp file.
	tmp, err := os.CreateTemp("", "clausegest-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	defer tmp.Close()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	w := &pageWriter{}
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			w.paragraph(it)
		case *docx.Table:
			w.table(it)
		}
	}

	out := &doctree.Document{Title: baseTitle(filename), Source: filepath.Base(filename)}
	out.Pages = splitPages(strings.Join(w.lines, "\n"))
	return out, nil
}

// pageWriter accumulates lines, marking page breaks with a form feed line.
type pageWriter struct {
	lines []string
	cur   strings.Builder
}

func (w *pageWriter) endLine() {
	w.lines = append(w.lines, strings.TrimRight(w.cur.String(), " \t"))
	w.cur.Reset()
}

func (w *pageWriter) paragraph(para *docx.Paragraph) {
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			w.run(c)
		case *docx.Hyperlink:
			w.run(&c.Run)
		}
	}
	w.endLine()
}

func (w *pageWriter) run(run *docx.Run) {
	for _, rc := range run.Children {
		switch x := rc.(type) {
		case *docx.Text:
			w.cur.WriteString(x.Text)
		case *docx.Tab:
			w.cur.WriteByte(' ')
		case *docx.BarterRabbet:
			if x.Type == "page" {
				w.endLine()
				w.cur.WriteByte('\f')
			}
			w.endLine()
		}
	}
}

func (w *pageWriter) table(tbl *docx.Table) {
	for _, row := range tbl.TableRows {
		var cells []string
		for _, cell := range row.TableCells {
			var parts []string
			for _, para := range cell.Paragraphs {
				sub := &pageWriter{}
				sub.paragraph(para)
				parts = append(parts, strings.TrimSpace(strings.Join(sub.lines, " ")))
			}
			cells = append(cells, strings.TrimSpace(strings.Join(parts, " ")))
		}
		w.lines = append(w.lines, strings.Join(cells, " | "))
	}
}
