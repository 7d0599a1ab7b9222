package chunker

import (
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/clausegest/internal/doctree"
)

// Config controls chunking behavior. Zero fields fall back to DefaultConfig.
type Config struct {
	MaxTokens          int     // Token bound that triggers a split.
	OverlapRatio       float64 // Fraction of lines carried into the next chunk on a split.
	MinTitleWords      int     // Short titles are enriched up to this many words.
	MaxTitleWords      int     // Longer titles are truncated with "...".
	HeaderOnlyMaxWords int     // Lone header lines at or under this size are not emitted.
	MaxEnrichLines     int
	ExtendWords        int
}

// DefaultConfig returns the defaults used for contract documents.
func DefaultConfig() Config {
	return Config{
		MaxTokens:          400,
		OverlapRatio:       0.3,
		MinTitleWords:      10,
		MaxTitleWords:      40,
		HeaderOnlyMaxWords: 8,
		MaxEnrichLines:     3,
		ExtendWords:        10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.OverlapRatio <= 0 {
		c.OverlapRatio = d.OverlapRatio
	}
	if c.MinTitleWords <= 0 {
		c.MinTitleWords = d.MinTitleWords
	}
	if c.MaxTitleWords <= 0 {
		c.MaxTitleWords = d.MaxTitleWords
	}
	if c.HeaderOnlyMaxWords <= 0 {
		c.HeaderOnlyMaxWords = d.HeaderOnlyMaxWords
	}
	if c.MaxEnrichLines <= 0 {
		c.MaxEnrichLines = d.MaxEnrichLines
	}
	if c.ExtendWords <= 0 {
		c.ExtendWords = d.ExtendWords
	}
	return c
}

// Chunker splits contract pages into clause-aware chunks. It holds no
// per-document state and is safe for concurrent use when its TokenCounter is.
type Chunker struct {
	cfg     Config
	counter TokenCounter
	log     *slog.Logger
}

type Option func(*Chunker)

func WithTokenCounter(tc TokenCounter) Option {
	return func(c *Chunker) {
		if tc != nil {
			c.counter = tc
		}
	}
}

// WithLogger sets the logger for per-decision debug records.
func WithLogger(log *slog.Logger) Option {
	return func(c *Chunker) {
		if log != nil {
			c.log = log
		}
	}
}

func New(cfg Config, opts ...Option) *Chunker {
	c := &Chunker{
		cfg:     cfg.withDefaults(),
		counter: WordCounter{},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config { return c.cfg }

// WithConfig returns a copy of c that uses cfg. The token counter and
// logger are shared with c.
func (c *Chunker) WithConfig(cfg Config) *Chunker {
	cp := *c
	cp.cfg = cfg.withDefaults()
	return &cp
}

// PageInput is one page of text plus the context carried into it.
type PageInput struct {
	Text       string
	Source     string
	PageNumber *int
	Extra      map[string]any // Copied into every chunk's metadata
	Stack      Stack          // Clause stack left open by the previous page
}

// PageResult holds the chunks of one page and the stack to pass to the next.
type PageResult struct {
	Chunks []doctree.Chunk
	Stack  Stack
}

// ChunkPage chunks a single page. The input stack is not modified.
func (c *Chunker) ChunkPage(in PageInput) PageResult {
	lines := splitLines(in.Text)
	stack := in.Stack.Clone()
	acc := &accumulator{c: c, in: in, stack: &stack}
	justSplit := false

	for i := 0; i < len(lines); {
		line := lines[i]
		stripped := strings.TrimSpace(line)
		if isSpurious(stripped) {
			i++
			continue
		}

		m, isHeader := MatchHeader(stripped)
		consumed := lines[i : i+1]
		switch {
		case isHeader && justSplit:
			c.log.Debug("header suppressed after split", "source", in.Source, "clause", m.RawNumber)
		case isHeader:
			span := c.composeTitle(lines, i, m.Title)
			consumed = lines[i:span.end]
			if !ValidClause(m.RawNumber, span.title) {
				c.log.Debug("header rejected", "source", in.Source, "clause", m.RawNumber, "title", span.title)
				break
			}
			prev := stack.Clone()
			acc.flush(nil, &prev)
			entry := NewEntry(m.RawNumber, span.title)
			stack.Push(entry)
			c.log.Debug("header accepted",
				"source", in.Source,
				"clause", entry.ClauseID,
				"level", entry.Level,
				"title", entry.Title,
			)
		}
		i += len(consumed)

		// The budget is checked per line so a long header span cannot
		// push a multi-line chunk past MaxTokens. A split inside a span
		// carries overlap from the lines appended so far, not the whole span.
		for _, l := range consumed {
			acc.append(l)
			justSplit = false
			if acc.tokens() > c.cfg.MaxTokens {
				justSplit = c.splitPending(acc)
			}
		}
	}
	acc.flush(nil, nil)

	return PageResult{Chunks: acc.chunks, Stack: stack}
}

// WholePage returns the page as one chunk tagged with the incoming stack,
// without looking for headers. A blank page yields no chunks.
func (c *Chunker) WholePage(in PageInput) PageResult {
	stack := in.Stack.Clone()
	res := PageResult{Stack: stack}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return res
	}
	acc := &accumulator{c: c, in: in, stack: &stack}
	res.Chunks = []doctree.Chunk{{Text: text, Metadata: acc.metadata(stack)}}
	return res
}

// ChunkPages chunks pages in order, threading the stack between them. Only
// the first page's Stack is read; later pages inherit from their predecessor.
func (c *Chunker) ChunkPages(pages []PageInput) PageResult {
	var out PageResult
	if len(pages) > 0 {
		out.Stack = pages[0].Stack
	}
	for _, p := range pages {
		p.Stack = out.Stack
		res := c.ChunkPage(p)
		out.Chunks = append(out.Chunks, res.Chunks...)
		out.Stack = res.Stack
	}
	return out
}

// splitLines splits on any line break, including form feeds and vertical
// tabs. Blank lines are kept; a trailing break does not add an empty line.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var lines []string
	start := 0
	for i, r := range text {
		switch r {
		case '\n', '\r', '\f', '\v', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
			lines = append(lines, text[start:i])
			start = i + utf8.RuneLen(r)
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
