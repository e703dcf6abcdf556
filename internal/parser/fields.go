package parser

import (
	"regexp"
	"strings"

	"timetable-import/internal/schedule"
)

// fieldRule is one candidate pattern for a class field. Rules are tried in
// order and the first match wins.
type fieldRule struct {
	name    string
	pattern *regexp.Regexp
	format  func(m []string) string
}

// roomRules: "M 7", "Room M 7", "M7" / "M-7", "MRoom 7".
var roomRules = []fieldRule{
	{name: "plain", pattern: regexp.MustCompile(`\b([A-Z])\s+(\d{1,3})\b`), format: formatRoom},
	{name: "prefixed", pattern: regexp.MustCompile(`\b(?i:room)\s+([A-Z])\s*-?\s*(\d{1,3})\b`), format: formatRoom},
	{name: "compact", pattern: regexp.MustCompile(`\b([A-Z])-?(\d{1,3})\b`), format: formatRoom},
	{name: "suffixed", pattern: regexp.MustCompile(`\b([A-Z])Room\s*(\d{1,3})\b`), format: formatRoom},
}

const (
	namePart = `[A-Z][a-z'\-]+`
	titles   = `Mrs|Mr|Ms|Miss|Mx|Dr|Prof`
)

// teacherRules: "Mr John Smith", "John Smith", "John M. Smith", "John Smith (HOD)".
// Only the title-prefixed form may appear inside other text.
var teacherRules = []fieldRule{
	{
		name:    "titled",
		pattern: regexp.MustCompile(`\b(` + titles + `)\.?\s+((?:[A-Z]\.\s*)?[A-Z][A-Za-z'\-]+(?:\s+[A-Z][A-Za-z'\-]+)*)`),
		format:  func(m []string) string { return m[1] + " " + m[2] },
	},
	{
		name:    "first-last",
		pattern: regexp.MustCompile(`^(` + namePart + `)\s+(` + namePart + `)$`),
		format:  func(m []string) string { return m[1] + " " + m[2] },
	},
	{
		name:    "middle-initial",
		pattern: regexp.MustCompile(`^(` + namePart + `)\s+([A-Z])\.\s*(` + namePart + `)$`),
		format:  func(m []string) string { return m[1] + " " + m[2] + ". " + m[3] },
	},
	{
		name:    "designation",
		pattern: regexp.MustCompile(`^(` + namePart + `)\s+(` + namePart + `)\s*\(([^()]+)\)$`),
		format:  func(m []string) string { return m[1] + " " + m[2] },
	},
}

var (
	codePattern  = regexp.MustCompile(`\(([^()]*)\)`)
	titledPrefix = regexp.MustCompile(`\b(?:` + titles + `)\.?\s+[A-Z]`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// formatRoom renders a room as "<LETTER> <NN>", zero-padding single digits.
func formatRoom(m []string) string {
	num := m[2]
	if len(num) == 1 {
		num = "0" + num
	}
	return strings.ToUpper(m[1]) + " " + num
}

// firstMatch applies rules in order and returns the formatted value and the
// match location of the first rule that hits.
func firstMatch(rules []fieldRule, text string) (string, []int) {
	for _, r := range rules {
		loc := r.pattern.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}
		return r.format(groups), loc[:2]
	}
	return "", nil
}

// cleanField collapses whitespace and strips separator punctuation.
func cleanField(s string) string {
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.Trim(s, " -–—,|/;:")
}

// parseCell extracts class fields from one cell of class text. The subject
// is the text before the first "(" and the code is the text inside it; room
// and teacher are looked for in what follows. When there is no code the
// subject ends where the first room or titled teacher starts.
//
// An orphan line is a continuation: it has no subject of its own unless one
// precedes a code, and the code is never promoted to subject.
func parseCell(cell string, orphan bool) schedule.ClassEntry {
	var entry schedule.ClassEntry

	subject, detail := cell, ""
	if loc := codePattern.FindStringSubmatchIndex(cell); loc != nil {
		entry.Code = cleanField(cell[loc[2]:loc[3]])
		subject, detail = cell[:loc[0]], cell[loc[1]:]
	} else if orphan {
		subject, detail = "", cell
	} else if at := detailStart(cell); at >= 0 {
		subject, detail = cell[:at], cell[at:]
	}
	entry.Subject = cleanField(subject)

	if room, loc := firstMatch(roomRules, detail); loc != nil {
		entry.Room = room
		detail = detail[:loc[0]] + " " + detail[loc[1]:]
	}
	entry.Teacher, _ = firstMatch(teacherRules, cleanField(detail))

	if entry.Subject == "" && !orphan {
		entry.Subject = entry.Code
	}
	return entry
}

// detailStart is the offset of the first room or titled teacher in a cell
// without a code, or -1.
func detailStart(cell string) int {
	at := -1
	if _, loc := firstMatch(roomRules, cell); loc != nil {
		at = loc[0]
	}
	if loc := titledPrefix.FindStringIndex(cell); loc != nil && (at < 0 || loc[0] < at) {
		at = loc[0]
	}
	return at
}
