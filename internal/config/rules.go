package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"timetable-import/internal/parser"
	"timetable-import/internal/schedule"

	"github.com/BurntSushi/toml"
)

// Rules holds school-specific parsing rules read from a TOML file.
type Rules struct {
	Parser ParserRules `toml:"parser"`
	Cycle  []CycleDay  `toml:"cycle"`
}

type ParserRules struct {
	// ExtraLabels are period names added to the built-in list.
	ExtraLabels     []string `toml:"extra_labels"`
	HeaderScanLines int      `toml:"header_scan_lines"`
}

// CycleDay places one cycle day on the calendar.
type CycleDay struct {
	Day     int    `toml:"day"`
	Week    string `toml:"week"`
	Weekday string `toml:"weekday"`
}

// DefaultRules returns the built-in rules.
func DefaultRules() *Rules {
	return &Rules{
		Parser: ParserRules{HeaderScanLines: parser.DefaultOptions().HeaderScanLines},
	}
}

// LoadRules reads a TOML rules file. If the file does not exist, built-in
// defaults are returned without error.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()

	if path == "" {
		return rules, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return rules, nil
	}

	if _, err := toml.DecodeFile(path, rules); err != nil {
		return nil, fmt.Errorf("decode rules %s: %w", path, err)
	}
	if _, err := rules.DayCycle(); err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return rules, nil
}

// ParserOptions merges the rules into the default parser options.
func (r *Rules) ParserOptions() parser.Options {
	opts := parser.DefaultOptions()
	seen := make(map[string]bool)
	for _, l := range opts.SpecialLabels {
		seen[strings.ToLower(l)] = true
	}
	for _, l := range r.Parser.ExtraLabels {
		l = strings.TrimSpace(l)
		if l == "" || seen[strings.ToLower(l)] {
			continue
		}
		seen[strings.ToLower(l)] = true
		opts.SpecialLabels = append(opts.SpecialLabels, l)
	}
	if r.Parser.HeaderScanLines > 0 {
		opts.HeaderScanLines = r.Parser.HeaderScanLines
	}
	return opts
}

// DayCycle builds the cycle table, or the default ten-day cycle when the
// rules define none.
func (r *Rules) DayCycle() (*schedule.Cycle, error) {
	if len(r.Cycle) == 0 {
		return schedule.DefaultCycle(), nil
	}

	slots := make(map[int]schedule.Slot, len(r.Cycle))
	for _, d := range r.Cycle {
		if d.Day < 1 {
			return nil, fmt.Errorf("cycle day %d out of range", d.Day)
		}
		if _, dup := slots[d.Day]; dup {
			return nil, fmt.Errorf("cycle day %d defined twice", d.Day)
		}
		wd, err := parseWeekday(d.Weekday)
		if err != nil {
			return nil, fmt.Errorf("cycle day %d: %w", d.Day, err)
		}
		slots[d.Day] = schedule.Slot{Week: d.Week, Weekday: wd}
	}
	return schedule.NewCycle(slots), nil
}

func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
