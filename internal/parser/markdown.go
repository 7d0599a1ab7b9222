package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/clausegest/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Markup is dropped
// and every block is rendered back to plain lines, so "## 4. Fees" becomes
// "4. Fees" and ordered-list numbering is restored as line text.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var lines []string
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		block := blockLines(n, src)
		if len(block) == 0 {
			continue
		}
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, block...)
	}
	return singlePage(filename, lines), nil
}

// blockLines renders a block node as plain text lines.
func blockLines(n ast.Node, src []byte) []string {
	switch node := n.(type) {
	case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
		return nonEmpty(strings.Split(inlineText(n, src), "\n"))
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		var out []string
		segs := n.Lines()
		for i := 0; i < segs.Len(); i++ {
			seg := segs.At(i)
			out = append(out, strings.TrimRight(string(seg.Value(src)), "\r\n"))
		}
		return out
	case *ast.List:
		var out []string
		num := node.Start
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			var itemLines []string
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				itemLines = append(itemLines, blockLines(c, src)...)
			}
			if len(itemLines) == 0 {
				continue
			}
			if node.IsOrdered() {
				itemLines[0] = fmt.Sprintf("%d%c %s", num, node.Marker, itemLines[0])
				num++
			}
			out = append(out, itemLines...)
		}
		return out
	case *ast.ThematicBreak:
		return nil
	default:
		var out []string
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, blockLines(c, src)...)
		}
		return out
	}
}

// inlineText concatenates the inline children of n, keeping line breaks.
func inlineText(n ast.Node, src []byte) string {
	var buf strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.HardLineBreak() || t.SoftLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.String:
				buf.Write(t.Value)
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return buf.String()
}

func nonEmpty(lines []string) []string {
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, strings.TrimSpace(l))
		}
	}
	return out
}
