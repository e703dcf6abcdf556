package parser

import (
	"sort"
	"strings"
	"unicode/utf8"

	"timetable-import/internal/schedule"

	"github.com/rs/zerolog/log"
)

// discoverPeriods scans for period definitions in priority order: a label
// line followed by a time line, a label and time on one line, then a bare
// time line whose label is inferred. Names are unique (first wins) and the
// result is sorted by start time.
func (p *Parser) discoverPeriods(lines []string) []schedule.Period {
	var periods []schedule.Period
	seen := make(map[string]bool)
	add := func(name string, r schedule.TimeRange) {
		if seen[name] {
			return
		}
		seen[name] = true
		periods = append(periods, schedule.Period{Name: name, StartTime: r.Start, EndTime: r.End})
	}

	prev := ""
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		if name, ok := p.label(line); ok {
			if r, at, ok := p.rangeAfterLabel(lines, i); ok {
				add(name, r)
				i = at
				prev = ""
				continue
			}
			prev = name
			continue
		}

		if name, r, ok := p.labelWithRange(line); ok {
			add(name, r)
			prev = ""
			continue
		}

		if r, ok := timeOnly(line); ok {
			add(inferLabel(prev, r), r)
			prev = ""
			continue
		}

		prev = line
	}

	sort.SliceStable(periods, func(i, j int) bool {
		a, _ := schedule.ParseClock(periods[i].StartTime)
		b, _ := schedule.ParseClock(periods[j].StartTime)
		return a < b
	})

	if len(periods) == 0 {
		log.Warn().Msg("No periods found in timetable text")
	}
	return periods
}

// rangeAfterLabel finds the time range belonging to the label on lines[i].
// The range normally sits on the next line; one stray line in between is
// skipped. It returns the range and the index of the line holding it.
func (p *Parser) rangeAfterLabel(lines []string, i int) (schedule.TimeRange, int, bool) {
	for k := 1; k <= 2 && i+k < len(lines); k++ {
		next := lines[i+k]
		if r, ok := timeOnly(next); ok {
			return r, i + k, true
		}
		if _, ok := p.label(next); ok || strings.Contains(next, "\t") {
			break
		}
	}
	return schedule.TimeRange{}, i, false
}

// inferLabel names a bare time range. A short plain line just above it is
// used as-is; otherwise the name is derived from the range.
func inferLabel(prev string, r schedule.TimeRange) string {
	if isPlainLabel(prev) {
		return prev
	}

	start, _ := r.Minutes()
	switch {
	case start >= 12*60 && start < 14*60:
		return "Lunch (" + r.String() + ")"
	case r.Duration() <= 15:
		return "Break (" + r.String() + ")"
	default:
		return r.String()
	}
}

// isPlainLabel reports whether a line looks like a short period name rather
// than class text.
func isPlainLabel(s string) bool {
	if s == "" || utf8.RuneCountInString(s) >= 30 {
		return false
	}
	if strings.ContainsAny(s, "()\t") {
		return false
	}
	return len(dayNumbers(s)) == 0
}
