package parser

import (
	"regexp"
	"strings"

	"timetable-import/internal/schedule"
	"timetable-import/internal/textutil"

	"github.com/rs/zerolog/log"
)

// DefaultSpecialLabels are the non-numbered period names recognised on their own line.
var DefaultSpecialLabels = []string{
	"Training", "Tutorial", "Lunch", "Recess", "Break",
	"Assembly", "Chapel", "Study", "Sport",
}

// Options configures the structural parser.
type Options struct {
	// SpecialLabels are period names accepted in addition to "Period <n>".
	SpecialLabels []string
	// HeaderScanLines bounds how many non-empty lines are searched for a day header.
	HeaderScanLines int
}

// DefaultOptions returns the built-in parsing rules.
func DefaultOptions() Options {
	return Options{
		SpecialLabels:   append([]string{}, DefaultSpecialLabels...),
		HeaderScanLines: 8,
	}
}

// Parser turns loosely structured timetable text into a schedule.Document.
// A Parser holds only compiled rules; every Parse call owns its own state,
// so one Parser may be shared between goroutines.
type Parser struct {
	opts        Options
	labelExact  *regexp.Regexp
	labelPrefix *regexp.Regexp
}

// New compiles a parser for the given options.
func New(opts Options) *Parser {
	if len(opts.SpecialLabels) == 0 {
		opts.SpecialLabels = DefaultSpecialLabels
	}
	if opts.HeaderScanLines <= 0 {
		opts.HeaderScanLines = 8
	}

	alts := []string{`period\s*\d+`}
	for _, l := range opts.SpecialLabels {
		if l = strings.TrimSpace(l); l != "" {
			alts = append(alts, regexp.QuoteMeta(l))
		}
	}
	group := `(` + strings.Join(alts, "|") + `)`

	return &Parser{
		opts:        opts,
		labelExact:  regexp.MustCompile(`(?i)^` + group + `$`),
		labelPrefix: regexp.MustCompile(`(?i)^` + group + `\b`),
	}
}

var defaultParser = New(DefaultOptions())

// ParseTimetable parses raw timetable text with the default rules. It never
// fails: the returned document may have no days, periods or classes, and
// callers should run schedule.Validate before importing it.
func ParseTimetable(raw string) *schedule.Document {
	return defaultParser.Parse(raw)
}

// Parse runs the staged parse over raw text.
func (p *Parser) Parse(raw string) *schedule.Document {
	lines := strings.Split(normalize(raw), "\n")

	doc := schedule.NewDocument()
	doc.Days = p.discoverDays(lines)
	doc.Periods = p.discoverPeriods(lines)
	p.extractClasses(doc, lines)
	doc.Finalize()

	log.Debug().
		Int("lines", len(lines)).
		Int("days", len(doc.Days)).
		Int("periods", len(doc.Periods)).
		Int("classes", doc.ClassCount()).
		Msg("Parsed timetable text")

	return doc
}

var (
	leadingBlankLines  = regexp.MustCompile(`^(?:[ \t]*\n)+`)
	trailingBlankLines = regexp.MustCompile(`(?:\n[ \t]*)+$`)
	blankLineRun       = regexp.MustCompile(`\n(?:[ \t]*\n){3,}`)
)

// normalize folds the text, drops blank lines around it and collapses runs of
// three or more blank lines into one. Tabs at the start of the first line and
// the end of the last line are kept because they carry column positions.
func normalize(raw string) string {
	text := textutil.Fold(raw)
	text = strings.TrimRight(trailingBlankLines.ReplaceAllString(text, ""), " ")
	text = leadingBlankLines.ReplaceAllString(text, "")
	return blankLineRun.ReplaceAllString(text, "\n\n")
}

// label returns the canonical period label when line is exactly one.
func (p *Parser) label(line string) (string, bool) {
	m := p.labelExact.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", false
	}
	return p.canonicalLabel(m[1]), true
}

// labelWithRange matches a line carrying both a period label and a time range.
func (p *Parser) labelWithRange(line string) (string, schedule.TimeRange, bool) {
	m := p.labelPrefix.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", schedule.TimeRange{}, false
	}
	r, ok := schedule.FindRange(line)
	if !ok {
		return "", schedule.TimeRange{}, false
	}
	return p.canonicalLabel(m[1]), r, true
}

var periodNumber = regexp.MustCompile(`(?i)^period\s*(\d+)$`)

func (p *Parser) canonicalLabel(s string) string {
	s = strings.TrimSpace(s)
	if m := periodNumber.FindStringSubmatch(s); m != nil {
		return "Period " + m[1]
	}
	for _, l := range p.opts.SpecialLabels {
		if strings.EqualFold(l, s) {
			return l
		}
	}
	return s
}

// IsPeriodLabel reports whether s is a period label under the default rules.
func IsPeriodLabel(s string) bool {
	_, ok := defaultParser.label(s)
	return ok
}

// IsTimeRange reports whether s consists of nothing but a time range.
func IsTimeRange(s string) bool {
	_, ok := timeOnly(s)
	return ok
}

// timeOnly parses s when the whole trimmed line is a single time range.
func timeOnly(s string) (schedule.TimeRange, bool) {
	s = strings.TrimSpace(s)
	loc := schedule.RangePattern.FindStringIndex(s)
	if loc == nil || loc[0] != 0 || loc[1] != len(s) {
		return schedule.TimeRange{}, false
	}
	return schedule.FindRange(s)
}
