package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const contract = "19. Liability\n" +
	"19.1 Nothing in this Agreement shall limit or exclude either party's liability for death or personal injury caused by its negligence.\n" +
	"19.2 Subject to Clause 19.1, neither party shall be liable for any indirect or consequential loss.\n" +
	"+-----+----+\n| KPI | 5% |\n+-----+----+\n"

func writeContract(t *testing.T) string {
	t.Helper()
	t.Setenv("CHUNKER_CONFIG", "")
	t.Setenv("CHUNK_MAX_TOKENS", "")
	t.Setenv("TOKEN_COUNTER", "")
	path := filepath.Join(t.TempDir(), "msa.txt")
	if err := os.WriteFile(path, []byte(contract), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestChunkCommand(t *testing.T) {
	path := writeContract(t)
	out, err := run(t, "chunk", path, "--metadata", "contract_id=MSA-1")
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}

	var chunks []struct {
		Index    int            `json:"index"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(out), &chunks); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	last := chunks[1]
	if last.Index != 1 || last.Metadata["clause"] != "19.2" || last.Metadata["contract_id"] != "MSA-1" {
		t.Errorf("last chunk = %+v", last)
	}
}

func TestChunkCommand_Langchain(t *testing.T) {
	path := writeContract(t)
	out, err := run(t, "chunk", path, "--format", "langchain")
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}
	var docs []map[string]any
	if err := json.Unmarshal([]byte(out), &docs); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("got %d documents", len(docs))
	}
}

func TestChunkCommand_BadFlags(t *testing.T) {
	path := writeContract(t)
	if _, err := run(t, "chunk", path, "--overlap-ratio", "1.2"); err == nil {
		t.Error("expected error for overlap ratio")
	}
	if _, err := run(t, "chunk", path, "--format", "xml"); err == nil {
		t.Error("expected error for format")
	}
	if _, err := run(t, "chunk", filepath.Join(t.TempDir(), "x.xls")); err == nil {
		t.Error("expected error for unsupported file")
	}
}

func TestRefsCommand(t *testing.T) {
	path := writeContract(t)
	out, err := run(t, "refs", path)
	if err != nil {
		t.Fatalf("refs: %v", err)
	}
	if !strings.Contains(out, "19.2") || !strings.Contains(out, "-> 19.1") {
		t.Errorf("output = %q", out)
	}
}

func TestTablesCommand(t *testing.T) {
	path := writeContract(t)
	out, err := run(t, "tables", path)
	if err != nil {
		t.Fatalf("tables: %v", err)
	}
	var tables []map[string]any
	if err := json.Unmarshal([]byte(out), &tables); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if len(tables) != 1 || tables[0]["clause"] != "19.2" {
		t.Errorf("tables = %v", tables)
	}
}
