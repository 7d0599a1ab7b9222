package chunker

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
)

// recorder keeps the messages of every log record it handles.
type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, rec.Message)
	return nil
}

func (r *recorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *recorder) WithGroup(string) slog.Handler      { return r }

func (r *recorder) count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m == msg {
			n++
		}
	}
	return n
}

func page(n int) *int { return &n }

func TestChunkPage_LiabilityScenario(t *testing.T) {
	text := strings.Join([]string{
		"19. Liability",
		"19.1 Nothing in this Agreement shall limit or exclude either party's liability for death or personal injury caused by its negligence.",
		"19.2 Subject to Clause 19.1, neither party shall be liable for any indirect or consequential loss.",
	}, "\n")

	rec := &recorder{}
	c := New(Config{}, WithLogger(slog.New(rec)))
	res := c.ChunkPage(PageInput{Text: text, Source: "msa.pdf", PageNumber: page(12)})

	if len(res.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(res.Chunks), res.Chunks)
	}
	want := [][]string{{"19", "19.1"}, {"19", "19.2"}}
	for i, ch := range res.Chunks {
		if !reflect.DeepEqual(ch.Metadata.Hierarchy, want[i]) {
			t.Errorf("chunk %d hierarchy = %v, want %v", i, ch.Metadata.Hierarchy, want[i])
		}
		if got := ch.Metadata.ClauseID(); got != want[i][1] {
			t.Errorf("chunk %d clause = %q", i, got)
		}
		if ch.Metadata.Source != "msa.pdf" || ch.Metadata.PageNumber == nil || *ch.Metadata.PageNumber != 12 {
			t.Errorf("chunk %d source/page = %q/%v", i, ch.Metadata.Source, ch.Metadata.PageNumber)
		}
	}
	if !strings.HasPrefix(res.Chunks[0].Text, "19.1 Nothing") {
		t.Errorf("chunk 0 text = %q", res.Chunks[0].Text)
	}
	if *res.Chunks[1].Metadata.ClauseTitle != "Subject to Clause 19.1, neither party shall be liable for any indirect or consequential loss." {
		t.Errorf("chunk 1 title = %q", *res.Chunks[1].Metadata.ClauseTitle)
	}
	if got := res.Stack.IDs(); !reflect.DeepEqual(got, []string{"19", "19.2"}) {
		t.Errorf("final stack = %v", got)
	}
	if rec.count("header accepted") != 3 {
		t.Errorf("header accepted events = %d, want 3", rec.count("header accepted"))
	}
	if rec.count("header-only chunk discarded") != 1 {
		t.Errorf("header-only discards = %d, want 1", rec.count("header-only chunk discarded"))
	}
}

func TestChunkPage_RejectsSentenceStartingWithNumber(t *testing.T) {
	text := strings.Join([]string{
		"5. Termination",
		"",
		"Either party may terminate this Agreement by giving notice.",
		"10 days' notice shall be given in writing.",
	}, "\n")

	rec := &recorder{}
	c := New(Config{}, WithLogger(slog.New(rec)))
	res := c.ChunkPage(PageInput{Text: text, Source: "s"})

	if len(res.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(res.Chunks))
	}
	if got := res.Chunks[0].Metadata.ClauseID(); got != "5" {
		t.Errorf("clause = %q, want 5", got)
	}
	if !strings.Contains(res.Chunks[0].Text, "10 days' notice") {
		t.Errorf("rejected header should stay as content: %q", res.Chunks[0].Text)
	}
	if got := res.Stack.IDs(); !reflect.DeepEqual(got, []string{"5"}) {
		t.Errorf("stack = %v", got)
	}
	if rec.count("header rejected") != 1 {
		t.Errorf("header rejected events = %d, want 1", rec.count("header rejected"))
	}
}

func TestChunkPage_DiscardsHeaderOnlyChunk(t *testing.T) {
	text := "18. Record Keeping\n18.1 The Supplier shall keep complete and accurate records."
	res := New(Config{}).ChunkPage(PageInput{Text: text, Source: "s"})

	if len(res.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %+v", len(res.Chunks), res.Chunks)
	}
	if res.Chunks[0].Text == "18. Record Keeping" {
		t.Error("header-only chunk was emitted")
	}
	if got := res.Chunks[0].Metadata.Hierarchy; !reflect.DeepEqual(got, []string{"18", "18.1"}) {
		t.Errorf("hierarchy = %v", got)
	}
}

func TestChunkPage_KeepsLongSingleLineHeader(t *testing.T) {
	// Both headers have eight title words, one over the discard threshold
	// once the number is counted.
	text := "3. Definitions and Interpretation of Terms Used In This\n3.1 In this Agreement the following defined terms apply."
	res := New(Config{}).ChunkPage(PageInput{Text: text, Source: "s"})
	if len(res.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(res.Chunks))
	}
	if got := res.Chunks[0].Metadata.Hierarchy; !reflect.DeepEqual(got, []string{"3"}) {
		t.Errorf("hierarchy = %v", got)
	}
	if got := res.Chunks[1].Metadata.Hierarchy; !reflect.DeepEqual(got, []string{"3", "3.1"}) {
		t.Errorf("hierarchy = %v", got)
	}
}

func TestChunkPage_DropsShortTrailingHeader(t *testing.T) {
	text := "3. Definitions and Interpretation of Terms Used In This\n3.1 In this Agreement the following definitions apply."
	res := New(Config{}).ChunkPage(PageInput{Text: text, Source: "s"})
	if len(res.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(res.Chunks))
	}
	if got := res.Stack.IDs(); !reflect.DeepEqual(got, []string{"3", "3.1"}) {
		t.Errorf("stack = %v", got)
	}
}

func TestIsHeaderOnly_Threshold(t *testing.T) {
	c := New(Config{})
	tests := []struct {
		text string
		want bool
	}{
		{"3.1 In this Agreement the following definitions apply.", true},   // 7 title words
		{"3.1 In this Agreement the following defined terms apply.", false}, // 8 title words
		{"19. Liability", true},
		{"19. Liability\n19.1 Caps", false},
		{"The Supplier shall keep records.", false},
	}
	for _, tt := range tests {
		if got := c.isHeaderOnly(tt.text); got != tt.want {
			t.Errorf("isHeaderOnly(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestChunkPage_CrossPageContinuity(t *testing.T) {
	initial := Stack{{ClauseID: "19.2", Title: "Subject to Clause 19.1", Level: 1}}
	text := "neither party shall be liable for loss of profits.\nThis applies to all claims under this Agreement."

	res := New(Config{}).ChunkPage(PageInput{Text: text, Source: "s", PageNumber: page(13), Stack: initial})

	if len(res.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(res.Chunks))
	}
	md := res.Chunks[0].Metadata
	if !reflect.DeepEqual(md.Hierarchy, []string{"19.2"}) || md.ClauseID() != "19.2" {
		t.Errorf("metadata = %+v", md)
	}
	if !reflect.DeepEqual(res.Stack, initial) {
		t.Errorf("final stack = %+v", res.Stack)
	}
}

func TestChunkPages_ThreadsStack(t *testing.T) {
	pages := []PageInput{
		{Text: "19. Liability\n19.1 Nothing in this Agreement limits liability for fraud.\n19.2 Subject to Clause 19.1, neither party is liable for indirect loss.", Source: "s", PageNumber: page(1)},
		{Text: "This exclusion survives termination of the Agreement.", Source: "s", PageNumber: page(2)},
		{Text: "20. Force Majeure\nNeither party is liable for delay caused by events beyond its control.", Source: "s", PageNumber: page(3)},
	}
	res := New(Config{}).ChunkPages(pages)

	var got [][]string
	for _, ch := range res.Chunks {
		got = append(got, ch.Metadata.Hierarchy)
	}
	want := [][]string{{"19", "19.1"}, {"19", "19.2"}, {"19", "19.2"}, {"20"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("hierarchies = %v, want %v", got, want)
	}
	if *res.Chunks[2].Metadata.PageNumber != 2 {
		t.Errorf("page = %d", *res.Chunks[2].Metadata.PageNumber)
	}
}

func TestChunkPage_SplitCarriesOverlap(t *testing.T) {
	var lines []string
	for _, w := range []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"} {
		lines = append(lines, "plain line "+w)
	}
	c := New(Config{MaxTokens: 10, OverlapRatio: 0.5})
	res := c.ChunkPage(PageInput{Text: strings.Join(lines, "\n"), Source: "s"})

	want := []string{
		lines[0] + "\n" + lines[1],
		lines[2] + "\n" + lines[3],
		lines[4] + "\n" + lines[5],
		lines[6] + "\n" + lines[7],
	}
	if len(res.Chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(res.Chunks))
	}
	for i, ch := range res.Chunks {
		if ch.Text != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, ch.Text, want[i])
		}
	}
}

func TestChunkPage_SuppressesHeaderAfterSplit(t *testing.T) {
	text := strings.Join([]string{
		"plain line alpha",
		"plain line bravo",
		"plain line charlie",
		"plain line delta",
		"plain line echo",
		"7.1 Sub heading appears here",
		"7.2 Another heading here now",
		"plain closing words",
	}, "\n")

	rec := &recorder{}
	c := New(Config{MaxTokens: 12, OverlapRatio: 0.5}, WithLogger(slog.New(rec)))
	res := c.ChunkPage(PageInput{Text: text, Source: "s"})

	if rec.count("header suppressed after split") != 1 {
		t.Fatalf("suppressed events = %d, want 1", rec.count("header suppressed after split"))
	}
	for _, ch := range res.Chunks {
		if ch.Metadata.ClauseID() == "7.1" {
			t.Errorf("7.1 opened a clause after a split: %+v", ch)
		}
	}
	if len(res.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(res.Chunks))
	}
	if !strings.Contains(res.Chunks[1].Text, "7.1 Sub heading") || len(res.Chunks[1].Metadata.Hierarchy) != 0 {
		t.Errorf("chunk 1 = %+v", res.Chunks[1])
	}
	if got := res.Stack.IDs(); !reflect.DeepEqual(got, []string{"7.2"}) {
		t.Errorf("stack = %v", got)
	}
}

func TestChunkPage_TokenBound(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&b, "%d. Heading Number %d\n", i, i)
		for j := 0; j < 9; j++ {
			fmt.Fprintf(&b, "The Supplier shall perform obligation %d of clause %d with care.\n", j, i)
		}
	}
	max := 40
	res := New(Config{MaxTokens: max}).ChunkPage(PageInput{Text: b.String(), Source: "s"})
	if len(res.Chunks) < 12 {
		t.Fatalf("expected at least 12 chunks, got %d", len(res.Chunks))
	}
	for i, ch := range res.Chunks {
		if n := EstimateTokens(ch.Text); n > max && strings.Contains(ch.Text, "\n") {
			t.Errorf("chunk %d has %d tokens over %d", i, n, max)
		}
	}
}

func TestChunkPage_OversizedLineEmittedAlone(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("lorem ", 30))
	rec := &recorder{}
	res := New(Config{MaxTokens: 5}, WithLogger(slog.New(rec))).ChunkPage(PageInput{Text: long, Source: "s"})
	if len(res.Chunks) != 1 || res.Chunks[0].Text != long {
		t.Fatalf("chunks = %+v", res.Chunks)
	}
	if rec.count("oversized line flushed") != 1 {
		t.Errorf("oversized events = %d", rec.count("oversized line flushed"))
	}
}

func TestChunkPage_SkipsSpuriousLines(t *testing.T) {
	text := "DocuSign Envelope ID: 1A2B-3C4D\n4. Payment\nThe Customer shall pay within 30 days.\n\n17\n(a)\ninvoices are due monthly."
	res := New(Config{}).ChunkPage(PageInput{Text: text, Source: "s"})
	if len(res.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(res.Chunks))
	}
	got := res.Chunks[0].Text
	if strings.Contains(got, "DocuSign") || strings.Contains(got, "\n17\n") {
		t.Errorf("spurious line kept: %q", got)
	}
	if !strings.Contains(got, "\n(a)\n") {
		t.Errorf("list marker dropped: %q", got)
	}
}

func TestChunkPage_ExtraMetadataCopied(t *testing.T) {
	extra := map[string]any{"party": "Acme Ltd"}
	res := New(Config{}).ChunkPage(PageInput{Text: "1. Parties\nThis Agreement is made between Acme Ltd and Beta plc.", Source: "s", Extra: extra})
	if len(res.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(res.Chunks))
	}
	extra["party"] = "changed"
	if res.Chunks[0].Metadata.Extra["party"] != "Acme Ltd" {
		t.Errorf("extra = %v", res.Chunks[0].Metadata.Extra)
	}
	if res.Chunks[0].Metadata.PageNumber != nil {
		t.Errorf("page number should be nil")
	}
}

func TestChunkPage_Deterministic(t *testing.T) {
	in := PageInput{
		Text:   "2. Services\nThe Supplier shall provide the Services.\n2.1 Standards\nThe Services shall meet the agreed standards.\n2.2 Personnel\nThe Supplier shall use suitably qualified staff.",
		Source: "s",
		Extra:  map[string]any{"k": "v"},
		Stack:  Stack{NewEntry("1", "Definitions")},
	}
	c := New(Config{MaxTokens: 12})
	a, b := c.ChunkPage(in), c.ChunkPage(in)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("results differ:\n%+v\n%+v", a, b)
	}
	if len(in.Stack) != 1 {
		t.Errorf("input stack mutated: %+v", in.Stack)
	}
}

func TestOverlapLines(t *testing.T) {
	tests := []struct {
		n     int
		ratio float64
		want  int
	}{
		{2, 0.3, 1},
		{4, 0.3, 1},
		{7, 0.3, 2},
		{10, 0.3, 3},
		{4, 0.5, 2},
		{3, 0.9, 2},
		{5, 1.0, 4},
	}
	for _, tt := range tests {
		if got := OverlapLines(tt.n, tt.ratio); got != tt.want {
			t.Errorf("OverlapLines(%d, %v) = %d, want %d", tt.n, tt.ratio, got, tt.want)
		}
	}
}

func TestSplitLines(t *testing.T) {
	got := splitLines("a\r\nb\n\nc\fd\n")
	want := []string{"a", "b", "", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitLines = %q, want %q", got, want)
	}
}

func TestWholePage(t *testing.T) {
	c := New(Config{})
	stack := Stack{{ClauseID: "19", Title: "Liability", Level: 0}}
	res := c.WholePage(PageInput{Text: "  19.1 Caps apply.\n\n", Source: "a.txt", Stack: stack})
	if len(res.Chunks) != 1 {
		t.Fatalf("got %d chunks", len(res.Chunks))
	}
	ch := res.Chunks[0]
	if ch.Text != "19.1 Caps apply." || ch.Metadata.ClauseID() != "19" {
		t.Errorf("chunk = %+v", ch)
	}
	if len(res.Stack) != 1 || res.Stack[0].ClauseID != "19" {
		t.Errorf("stack = %+v", res.Stack)
	}
	if got := c.WholePage(PageInput{Text: " \n "}); len(got.Chunks) != 0 {
		t.Errorf("blank page produced %d chunks", len(got.Chunks))
	}
}
