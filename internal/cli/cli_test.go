package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"timetable-import/internal/cache"
	"timetable-import/internal/filewalker"
	"timetable-import/internal/ingest"
	"timetable-import/internal/schedule"
	"timetable-import/internal/store"
	"timetable-import/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const sampleExport = "Day 1\tDay 2\n" +
	"Period 1\n" +
	"8:35am-9:35am\n" +
	"Mathematics (10MA1) M 7\tEnglish (10EN1) Ms Jane Doe\n"

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("RULES_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	rulesPath = ""

	var out bytes.Buffer
	cmd := NewRootCmd(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseCommand_Entries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.tsv")
	if err := os.WriteFile(path, []byte(sampleExport), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := run(t, "", "parse", "--entries", path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var entries []schedule.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Day != "Day 2" || entries[1].Teacher != "Ms Jane Doe" {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestParseCommand_StdinJSON(t *testing.T) {
	stdin := `{"days": ["Day 1", "Day 2"], "periods": [{"name": "Period 1", "startTime": "8:35am", "endTime": "9:35am"}], "classes": {"Day 1": {"Period 1": [{"subject": "Art"}]}, "Day 2": {"Per`

	out, err := run(t, stdin, "parse", "-")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var doc schedule.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(doc.Classes) != 1 || len(doc.Slot("Day 1", "Period 1")) != 1 {
		t.Errorf("expected recovered Day 1 block only, got %+v", doc.Classes)
	}
}

func TestParseCommand_Unusable(t *testing.T) {
	if _, err := run(t, "nothing to see", "parse", "-"); err == nil {
		t.Error("expected error for unusable input")
	}
	if _, err := run(t, "", "parse", "timetable.pdf"); err == nil {
		t.Error("expected error for unsupported file type")
	}
}

func TestExportCommand(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	if err := os.MkdirAll(filepath.Join(in, "year10"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(in, "year10", "export.txt"), []byte(sampleExport), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(in, "notice.txt"), []byte("No timetable yet."), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := run(t, "", "export", in, out); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, "year10", "export.txt.json"))
	if err != nil {
		t.Fatalf("expected exported file: %v", err)
	}
	var res ingest.Result
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(res.Entries) != 2 || res.Method != ingest.MethodStructural {
		t.Errorf("unexpected export: %+v", res)
	}

	if _, err := os.Stat(filepath.Join(out, "notice.txt.json")); !os.IsNotExist(err) {
		t.Error("expected no output for an unusable file")
	}
}

func TestSetLogLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"WARN":  zerolog.WarnLevel,
		"bogus": zerolog.InfoLevel,
		"":      zerolog.InfoLevel,
	}
	for in, want := range cases {
		setLogLevel(in)
		if got := zerolog.GlobalLevel(); got != want {
			t.Errorf("level %q: expected %s, got %s", in, want, got)
		}
	}
}

type recordingSaver struct {
	sources []string
}

func (r *recordingSaver) SaveImport(_ context.Context, imp *store.Import) (uuid.UUID, error) {
	r.sources = append(r.sources, imp.Source)
	return uuid.New(), nil
}

func TestSaveResults_SkipsRepeatedContent(t *testing.T) {
	doc := schedule.NewDocument()
	result := func(source, hash string) *ingest.Result {
		return &ingest.Result{Source: source, Hash: hash, Document: doc}
	}
	results := []worker.Task[filewalker.FileEntry, *ingest.Result]{
		{Result: result("a/export.txt", "h1")},
		{Result: result("b/export-copy.txt", "h1")},
		{Result: result("c/other.txt", "h2")},
		{Err: errors.New("unusable")},
		{},
	}

	saver := &recordingSaver{}
	stored, skipped, failed := saveResults(context.Background(), saver, cache.NewDocumentCache(nil), nil, results)

	if stored != 2 || skipped != 2 || failed != 1 {
		t.Errorf("expected 2 stored, 2 skipped, 1 failed, got %d, %d, %d", stored, skipped, failed)
	}
	want := []string{"a/export.txt", "c/other.txt"}
	if len(saver.sources) != len(want) || saver.sources[0] != want[0] || saver.sources[1] != want[1] {
		t.Errorf("expected saves %v, got %v", want, saver.sources)
	}
}
