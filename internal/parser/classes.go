package parser

import (
	"strings"

	"timetable-import/internal/schedule"
	"timetable-import/internal/textutil"

	"github.com/rs/zerolog/log"
)

// extractClasses walks the lines after the day header, tracking the current
// period and reading tab-separated class lines into per-day slots.
func (p *Parser) extractClasses(doc *schedule.Document, lines []string) {
	header, columns := locateHeader(lines)
	current := ""

	for i := header + 1; i < len(lines); i++ {
		raw := strings.TrimRight(lines[i], " \r")
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if r, ok := timeOnly(line); ok {
			if name := periodByRange(doc, r); name != "" {
				current = name
			}
			continue
		}

		if name, ok := p.periodName(doc, line); ok {
			current = name
			if _, at, ok := p.rangeAfterLabel(lines, i); ok {
				i = at
			}
			continue
		}

		if name, _, ok := p.labelWithRange(line); ok {
			current = name
			continue
		}

		if current == "" {
			log.Debug().Int("line", i+1).Str("text", textutil.Truncate(line, 40)).Msg("Skipping line before first period")
			continue
		}

		if strings.Contains(raw, "\t") {
			p.addClassLine(doc, current, raw, columns)
			continue
		}

		backfillOrphan(doc, current, line, i+1)
	}
}

// periodName matches a line that is exactly a period label or the name of a
// discovered period.
func (p *Parser) periodName(doc *schedule.Document, line string) (string, bool) {
	if name, ok := p.label(line); ok {
		return name, true
	}
	for _, def := range doc.Periods {
		if strings.EqualFold(def.Name, line) {
			return def.Name, true
		}
	}
	return "", false
}

func periodByRange(doc *schedule.Document, r schedule.TimeRange) string {
	for _, def := range doc.Periods {
		if def.StartTime == r.Start && def.EndTime == r.End {
			return def.Name
		}
	}
	return ""
}

// addClassLine splits a class line into per-day cells and records each one.
func (p *Parser) addClassLine(doc *schedule.Document, period, raw string, columns []string) {
	def, _ := doc.Period(period)

	for idx, cell := range strings.Split(raw, "\t") {
		cell = strings.TrimSpace(cell)
		if cell == "" || IsTimeRange(cell) {
			continue
		}

		day := dayForColumn(doc, columns, idx)
		if day == "" {
			log.Debug().Int("column", idx).Str("cell", textutil.Truncate(cell, 40)).Msg("Cell has no day column")
			continue
		}

		entry := parseCell(cell, false)
		if entry.Empty() {
			log.Debug().Str("day", day).Str("period", period).Str("cell", textutil.Truncate(cell, 40)).Msg("Dropping cell without subject or code")
			continue
		}
		entry.StartTime = def.StartTime
		entry.EndTime = def.EndTime

		addEntry(doc, day, period, entry)
	}
}

func dayForColumn(doc *schedule.Document, columns []string, idx int) string {
	if columns != nil {
		if idx < len(columns) {
			return columns[idx]
		}
		return ""
	}
	if idx < len(doc.Days) {
		return doc.Days[idx]
	}
	return ""
}

// addEntry appends entry to its slot, merging into an existing entry for the
// same subject or code instead of duplicating it.
func addEntry(doc *schedule.Document, day, period string, entry schedule.ClassEntry) {
	if doc.Classes[day] == nil {
		doc.Classes[day] = make(map[string][]schedule.ClassEntry)
	}
	slot := doc.Classes[day][period]
	for i := range slot {
		if slot[i].Matches(entry) {
			slot[i] = slot[i].Merge(entry)
			return
		}
	}
	doc.Classes[day][period] = append(slot, entry)
}

// backfillOrphan treats a non-tabular line carrying a code, room or teacher
// as a continuation of the most recent class in the current period. The
// target is the last entry of the first day, in day order, whose slot has
// entries and whose last entry still has empty fields.
func backfillOrphan(doc *schedule.Document, period, line string, lineNum int) {
	detail := parseCell(line, true)
	if detail.Code == "" && detail.Room == "" && detail.Teacher == "" {
		log.Debug().Int("line", lineNum).Str("text", textutil.Truncate(line, 40)).Msg("Skipping unrecognised line")
		return
	}

	for _, day := range doc.Days {
		slot := doc.Classes[day][period]
		if len(slot) == 0 {
			continue
		}
		last := &slot[len(slot)-1]
		if !last.Missing() {
			continue
		}
		*last = last.Merge(detail)
		return
	}

	log.Debug().Int("line", lineNum).Str("period", period).Msg("No class to attach detail line to")
}
