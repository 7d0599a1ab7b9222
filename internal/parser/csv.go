package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/clausegest/internal/doctree"
)

// csvRowsPerPage groups plain CSV rows into pages.
const csvRowsPerPage = 50

// CSVParser handles CSV exports. A clause register (a header row with
// "clause" and "text" columns, optionally "title") is rendered back into
// numbered clause lines; any other CSV becomes "header: value" rows.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return singlePage(filename, nil), nil
	}

	headers := records[0]
	cols := map[string]int{}
	for i, h := range headers {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	clauseCol, hasClause := cols["clause"]
	textCol, hasText := cols["text"]
	if hasClause && hasText {
		titleCol, hasTitle := cols["title"]
		var lines []string
		for _, row := range records[1:] {
			header := cell(row, clauseCol)
			if hasTitle {
				header += " " + cell(row, titleCol)
			}
			lines = append(lines, strings.TrimSpace(header), "", cell(row, textCol), "")
		}
		return singlePage(filename, lines), nil
	}

	var pages []string
	rows := records[1:]
	for i := 0; i < len(rows); i += csvRowsPerPage {
		end := min(i+csvRowsPerPage, len(rows))
		var b strings.Builder
		for _, row := range rows[i:end] {
			fields := make([]string, 0, len(row))
			for j, v := range row {
				if j < len(headers) {
					fields = append(fields, headers[j]+": "+v)
				} else {
					fields = append(fields, v)
				}
			}
			b.WriteString(strings.Join(fields, ", "))
			b.WriteByte('\n')
		}
		pages = append(pages, b.String())
	}
	doc := singlePage(filename, nil)
	doc.Pages = splitPages(strings.Join(pages, "\f"))
	return doc, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}
