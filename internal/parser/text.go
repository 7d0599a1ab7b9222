package parser

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dgallion1/clausegest/internal/doctree"
)

// maxTextBytes bounds a single plain-text upload read into memory.
const maxTextBytes = 64 << 20

// TextParser handles plain text files. Form feeds separate pages, which is
// what pdftotext and most print-to-text exports emit.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxTextBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	if len(data) > maxTextBytes {
		return nil, fmt.Errorf("text file exceeds %d bytes", maxTextBytes)
	}

	return &doctree.Document{
		Title:  baseTitle(filename),
		Source: filepath.Base(filename),
		Pages:  splitPages(string(data)),
	}, nil
}
