package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/clausegest/internal/config"
	"github.com/dgallion1/clausegest/internal/doctree"
	"github.com/dgallion1/clausegest/internal/legal"
	"github.com/dgallion1/clausegest/internal/parser"
	"github.com/dgallion1/clausegest/internal/pipeline"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clausegest",
		Short: "Clause-aware chunking for contracts",
		Long: `clausegest splits contracts into retrieval chunks that follow the
clause hierarchy. Every chunk carries the stack of clauses it sits under.

Supported formats: TXT, MD, CSV, HTML, PDF, DOCX`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log chunker decisions to stderr")

	rootCmd.AddCommand(chunkCmd())
	rootCmd.AddCommand(refsCmd())
	rootCmd.AddCommand(tablesCmd())
	return rootCmd
}

func chunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Chunk a contract and print the chunks as JSON",
		Long: `Chunk a contract page by page, carrying the clause stack across pages.

Defaults come from the environment and CHUNKER_CONFIG, as for the server.
Flags override both.

Example:
  clausegest chunk msa.pdf
  clausegest chunk msa.pdf --max-tokens 250 --metadata contract_id=MSA-1
  clausegest chunk msa.docx --format langchain --output chunks.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			md, _ := cmd.Flags().GetStringToString("metadata")

			if format != "chunks" && format != "langchain" {
				return fmt.Errorf("--format must be chunks or langchain, got %q", format)
			}

			settings, err := chunkerSettings(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cmd)
			ch, err := settings.NewChunker(log)
			if err != nil {
				return err
			}

			doc, err := parseFile(args[0])
			if err != nil {
				return err
			}

			var extra map[string]any
			if len(md) > 0 {
				extra = make(map[string]any, len(md))
				for k, v := range md {
					extra[k] = v
				}
			}
			chunks, err := pipeline.ChunkDocument(cmd.Context(), ch, doc, pipeline.ChunkOptions{
				Extra:          extra,
				ShortPageWords: settings.ShortPageWords,
			}, log)
			if err != nil {
				return fmt.Errorf("chunking %s: %w", args[0], err)
			}
			log.Debug("chunked", "file", args[0], "pages", len(doc.Pages), "chunks", len(chunks))

			var out any = chunks
			if format == "langchain" {
				ref := doctree.DocRef{DocID: doc.Title, Title: doc.Title, Source: doc.Source, Pages: len(doc.Pages)}
				out = pipeline.ToDocuments(ref, chunks)
			}
			return writeOutput(cmd, output, out)
		},
	}

	cmd.Flags().Int("max-tokens", 0, "token budget per chunk")
	cmd.Flags().Float64("overlap-ratio", 0, "share of the previous chunk carried into the next, in [0, 1)")
	cmd.Flags().Int("short-page-words", 0, "keep pages with at most this many words whole")
	cmd.Flags().String("token-counter", "", "token counter: words or tiktoken")
	cmd.Flags().String("encoding", "", "tiktoken encoding")
	cmd.Flags().StringToString("metadata", nil, "key=value pairs copied into every chunk")
	cmd.Flags().StringP("format", "f", "chunks", "output format: chunks or langchain")
	cmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	return cmd
}

func refsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refs <file>",
		Short: "List clause cross references in a contract",
		Long: `List the "Clause 19.1" style cross references in a contract, attributed
to the clause that contains them.

Example:
  clausegest refs msa.pdf
  clausegest refs msa.pdf --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			settings, err := chunkerSettings(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cmd)
			ch, err := settings.NewChunker(log)
			if err != nil {
				return err
			}
			doc, err := parseFile(args[0])
			if err != nil {
				return err
			}
			chunks, err := pipeline.ChunkDocument(cmd.Context(), ch, doc, pipeline.ChunkOptions{}, log)
			if err != nil {
				return fmt.Errorf("chunking %s: %w", args[0], err)
			}

			graph := legal.NewRefGraph()
			for _, c := range chunks {
				graph.AddText(c.Metadata.ClauseID(), c.Text)
			}
			edges := graph.Edges()

			switch format {
			case "table":
				w := cmd.OutOrStdout()
				if len(edges) == 0 {
					fmt.Fprintln(w, "No cross references found.")
					return nil
				}
				for _, e := range edges {
					fmt.Fprintf(w, "%-16s -> %s\n", e.From, e.To)
				}
				return nil
			case "json":
				if edges == nil {
					edges = []legal.Edge{}
				}
				return writeOutput(cmd, output, edges)
			default:
				return fmt.Errorf("--format must be table or json, got %q", format)
			}
		},
	}
	cmd.Flags().StringP("format", "f", "table", "output format: table or json")
	cmd.Flags().StringP("output", "o", "", "write JSON to file instead of stdout")
	return cmd
}

func tablesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables <file>",
		Short: "Extract ASCII grid tables from a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")

			doc, err := parseFile(args[0])
			if err != nil {
				return err
			}
			tables := legal.ExtractTables(pipeline.DocumentText(doc))
			if tables == nil {
				tables = []legal.Table{}
			}
			return writeOutput(cmd, output, tables)
		},
	}
	cmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	return cmd
}

// chunkerSettings loads the configured chunker settings and applies the
// flags the user set explicitly.
func chunkerSettings(cmd *cobra.Command) (config.ChunkerSettings, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.ChunkerSettings{}, err
	}
	s := cfg.Chunker

	flags := cmd.Flags()
	if flags.Changed("max-tokens") {
		s.MaxTokens, _ = flags.GetInt("max-tokens")
	}
	if flags.Changed("overlap-ratio") {
		s.OverlapRatio, _ = flags.GetFloat64("overlap-ratio")
	}
	if flags.Changed("short-page-words") {
		s.ShortPageWords, _ = flags.GetInt("short-page-words")
	}
	if flags.Changed("token-counter") {
		tc, _ := flags.GetString("token-counter")
		s.TokenCounter = strings.ToLower(tc)
	}
	if flags.Changed("encoding") {
		s.TiktokenEncoding, _ = flags.GetString("encoding")
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func parseFile(path string) (*doctree.Document, error) {
	p, err := parser.ForFile(path, parser.Options{PDFFallbackPdftotext: true})
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	doc, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func writeOutput(cmd *cobra.Command, output string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize JSON: %w", err)
	}
	if output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(output, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
	return nil
}
