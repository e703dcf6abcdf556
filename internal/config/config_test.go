package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRules_MissingFileUsesDefaults(t *testing.T) {
	rules, err := LoadRules(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	opts := rules.ParserOptions()
	if opts.HeaderScanLines != 8 {
		t.Errorf("expected 8 header lines, got %d", opts.HeaderScanLines)
	}
	cycle, err := rules.DayCycle()
	if err != nil || cycle.Len() != 10 {
		t.Errorf("expected default ten-day cycle, got %v (%v)", cycle, err)
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	content := `
[parser]
extra_labels = ["Homeroom", "lunch", "  "]
header_scan_lines = 12

[[cycle]]
day = 1
week = "Odd"
weekday = "Monday"

[[cycle]]
day = 2
week = "Odd"
weekday = "wed"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}

	opts := rules.ParserOptions()
	if opts.HeaderScanLines != 12 {
		t.Errorf("expected 12 header lines, got %d", opts.HeaderScanLines)
	}
	homeroom := 0
	for _, l := range opts.SpecialLabels {
		if l == "Homeroom" {
			homeroom++
		}
		if l == "lunch" {
			t.Error("expected duplicate label to be skipped")
		}
	}
	if homeroom != 1 {
		t.Errorf("expected Homeroom once, got %d", homeroom)
	}

	cycle, err := rules.DayCycle()
	if err != nil {
		t.Fatalf("DayCycle: %v", err)
	}
	slot, ok := cycle.Resolve("Day 2")
	if !ok || slot.Week != "Odd" || slot.Weekday != time.Wednesday {
		t.Errorf("unexpected Day 2 slot: %+v", slot)
	}
	if _, ok := cycle.Resolve("Day 3"); ok {
		t.Error("expected Day 3 to be outside the cycle")
	}
}

func TestLoadRules_InvalidCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	content := "[[cycle]]\nday = 1\nweekday = \"Funday\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRules(path); err == nil {
		t.Error("expected error for unknown weekday")
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("WORKER_COUNT", "3")
	if n := getEnvInt("WORKER_COUNT", 8); n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
	t.Setenv("WORKER_COUNT", "many")
	if n := getEnvInt("WORKER_COUNT", 8); n != 8 {
		t.Errorf("expected fallback 8, got %d", n)
	}
}
