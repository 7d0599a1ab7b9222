package chunker

import (
	"log/slog"
	"maps"
	"strings"

	"github.com/dgallion1/clausegest/internal/doctree"
)

// accumulator collects pending lines for one page and turns them into chunks.
type accumulator struct {
	c      *Chunker
	in     PageInput
	stack  *Stack // live stack, read at flush time unless overridden
	lines  []string
	chunks []doctree.Chunk
}

func (a *accumulator) append(lines ...string) {
	a.lines = append(a.lines, lines...)
}

func (a *accumulator) len() int { return len(a.lines) }

func (a *accumulator) tokens() int {
	return a.c.counter.Count(strings.Join(a.lines, "\n"))
}

// flush emits the pending lines as one chunk and reseeds the buffer with
// overlap. Hierarchy metadata comes from override when set, otherwise from
// the live stack. A lone short header line is discarded instead of emitted.
func (a *accumulator) flush(overlap []string, override *Stack) {
	if len(a.lines) == 0 {
		a.lines = overlap
		return
	}
	text := strings.TrimSpace(strings.Join(a.lines, "\n"))
	switch {
	case text == "":
	case a.c.isHeaderOnly(text):
		a.c.log.Debug("header-only chunk discarded", "source", a.in.Source, "text", text)
	default:
		stack := a.stack
		if override != nil {
			stack = override
		}
		a.chunks = append(a.chunks, doctree.Chunk{Text: text, Metadata: a.metadata(*stack)})
		a.c.log.Debug("chunk flushed",
			"source", a.in.Source,
			"lines", len(a.lines),
			"hierarchy", stack.IDs(),
		)
	}
	a.lines = overlap
}

func (a *accumulator) metadata(stack Stack) doctree.Metadata {
	snap := stack.Snapshot()
	md := doctree.Metadata{
		Source:      a.in.Source,
		Hierarchy:   snap.Hierarchy,
		Clause:      snap.Clause,
		ClauseTitle: snap.ClauseTitle,
		Extra:       maps.Clone(a.in.Extra),
	}
	if a.in.PageNumber != nil {
		n := *a.in.PageNumber
		md.PageNumber = &n
	}
	return md
}

// isHeaderOnly reports a single line of header shape whose title, counted
// with its number, is at most HeaderOnlyMaxWords words.
func (c *Chunker) isHeaderOnly(text string) bool {
	if len(splitLines(text)) != 1 {
		return false
	}
	m, ok := MatchHeader(text)
	if !ok {
		return false
	}
	return len(strings.Fields(m.Title))+1 <= c.cfg.HeaderOnlyMaxWords
}

// splitPending flushes the head of an oversized buffer and carries the last
// lines into the next chunk. It reports whether a split with overlap happened.
func (c *Chunker) splitPending(a *accumulator) bool {
	n := a.len()
	if n <= 1 {
		c.log.Debug("oversized line flushed", "source", a.in.Source, "tokens", a.tokens())
		a.flush(nil, nil)
		return false
	}
	k := OverlapLines(n, c.cfg.OverlapRatio)
	tail := make([]string, k)
	copy(tail, a.lines[n-k:])
	a.lines = a.lines[:n-k]
	c.log.Debug("split triggered", slog.String("source", a.in.Source), slog.Int("lines", n), slog.Int("overlap", k))
	a.flush(tail, nil)
	return true
}

// OverlapLines is the number of trailing lines carried over when n pending
// lines are split: floor(n*ratio), at least 1 and at most n-1.
func OverlapLines(n int, ratio float64) int {
	k := int(float64(n) * ratio)
	if k < 1 {
		k = 1
	}
	if k > n-1 {
		k = n - 1
	}
	return k
}
