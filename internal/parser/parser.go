package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/clausegest/internal/doctree"
)

// Parser extracts page-ordered text from raw document bytes.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// Options tunes parser behavior for formats that support it.
type Options struct {
	PDFFallbackPdftotext bool // Shell out to pdftotext when the Go PDF reader fails.
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// baseTitle strips the directory and extension from filename.
func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// singlePage wraps text from an unpaginated format. Page number 0 means
// chunks carry no page_number.
func singlePage(filename string, lines []string) *doctree.Document {
	doc := &doctree.Document{Title: baseTitle(filename), Source: filepath.Base(filename)}
	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text != "" {
		doc.Pages = []doctree.Page{{Text: text}}
	}
	return doc
}

// splitPages splits on form feeds and numbers pages from 1. Blank pages
// keep their number but are dropped. A single unbroken page is unnumbered.
func splitPages(text string) []doctree.Page {
	parts := strings.Split(text, "\f")
	var pages []doctree.Page
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		n := i + 1
		if len(parts) == 1 {
			n = 0
		}
		pages = append(pages, doctree.Page{Number: n, Text: p})
	}
	return pages
}
