package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var clockPattern = regexp.MustCompile(`(?i)^\s*(\d{1,2}):(\d{2})\s*([ap])\.?m\.?\s*$`)

// RangePattern matches a 12-hour time range such as "8:35am–9:35am".
var RangePattern = regexp.MustCompile(`(?i)(\d{1,2}:\d{2}\s*[ap]\.?m\.?)\s*(?:-|–|—|to)\s*(\d{1,2}:\d{2}\s*[ap]\.?m\.?)`)

// ParseClock converts a 12-hour wall-clock value into minutes since midnight.
// "12:05am" is 5, "12:05pm" is 725, "1:05pm" is 785.
func ParseClock(s string) (int, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, fmt.Errorf("clock value out of range %q", s)
	}

	pm := strings.EqualFold(m[3], "p")
	switch {
	case pm && hour < 12:
		hour += 12
	case !pm && hour == 12:
		hour = 0
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight in canonical H:MMam|pm form.
func FormatClock(minutes int) string {
	minutes = ((minutes % 1440) + 1440) % 1440
	hour, minute := minutes/60, minutes%60
	suffix := "am"
	if hour >= 12 {
		suffix = "pm"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%02d%s", hour, minute, suffix)
}

// NormalizeClock rewrites a clock value in canonical form. Values that do not
// parse are returned trimmed but otherwise untouched.
func NormalizeClock(s string) string {
	m, err := ParseClock(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return FormatClock(m)
}

// TimeRange is a parsed start/end pair in canonical form.
type TimeRange struct {
	Start string
	End   string
}

// Minutes returns the start and end as minutes since midnight.
func (r TimeRange) Minutes() (int, int) {
	start, _ := ParseClock(r.Start)
	end, _ := ParseClock(r.End)
	return start, end
}

// Duration returns the length of the range in minutes.
func (r TimeRange) Duration() int {
	start, end := r.Minutes()
	return end - start
}

func (r TimeRange) String() string {
	return r.Start + "-" + r.End
}

// FindRange locates the first valid time range in s. The start must precede
// the end within the same day.
func FindRange(s string) (TimeRange, bool) {
	m := RangePattern.FindStringSubmatch(s)
	if m == nil {
		return TimeRange{}, false
	}
	start, err := ParseClock(m[1])
	if err != nil {
		return TimeRange{}, false
	}
	end, err := ParseClock(m[2])
	if err != nil || end <= start {
		return TimeRange{}, false
	}
	return TimeRange{Start: FormatClock(start), End: FormatClock(end)}, true
}
