package filewalker

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"timetable-import/internal/ingest"
)

func TestWalk(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"year10.txt",
		"year11.TSV",
		"saved/response.json",
		"portal/page.html",
		"notes.md",
		".cache/old.txt",
	}
	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	w := NewWalker(ingest.NewEngine(nil))
	entries, err := w.Walk(dir)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	var got []string
	for _, e := range entries {
		rel, _ := filepath.Rel(dir, e.Path)
		got = append(got, filepath.ToSlash(rel)+" "+e.Ext)
	}
	sort.Strings(got)

	want := []string{
		"portal/page.html .html",
		"saved/response.json .json",
		"year10.txt .txt",
		"year11.TSV .tsv",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	for _, e := range entries {
		if e.Parser == nil || !e.Parser.CanParse(e.Ext) {
			t.Errorf("expected a matching parser for %s", e.Path)
		}
	}
}

func TestWalk_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewWalker(ingest.NewEngine(nil)).Walk(file); err == nil {
		t.Error("expected error for a file root")
	}
}

func TestParserFor(t *testing.T) {
	w := NewWalker(ingest.NewEngine(nil))
	if _, err := w.ParserFor("export.HTM"); err != nil {
		t.Errorf("expected htm to be supported: %v", err)
	}
	if _, err := w.ParserFor("export.pdf"); err == nil {
		t.Error("expected pdf to be rejected")
	}
}
