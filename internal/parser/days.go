package parser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"timetable-import/internal/schedule"

	"github.com/rs/zerolog/log"
)

var (
	boldDayHeader = regexp.MustCompile(`(?i)\*\*((?:\s*day\s*\d+\s*)+)\*\*`)
	dayMention    = regexp.MustCompile(`(?i)day\s*(\d+)`)
	leadingDay    = regexp.MustCompile(`(?i)^\s*day\s*\d+`)
)

// dayNumbers returns every "Day n" mention in s, in order of appearance.
// "Day 1Day 2" yields both; "Monday 3" yields nothing.
func dayNumbers(s string) []int {
	var nums []int
	for _, loc := range dayMention.FindAllStringSubmatchIndex(s, -1) {
		if loc[0] > 0 {
			prev := rune(s[loc[0]-1])
			if unicode.IsLetter(prev) {
				continue
			}
		}
		n, err := strconv.Atoi(s[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	return nums
}

// discoverDays finds the cycle days, de-duplicated and sorted by number.
// Fewer than two days is reported as an empty sequence.
func (p *Parser) discoverDays(lines []string) []string {
	var source string
	if m := boldDayHeader.FindStringSubmatch(strings.Join(lines, "\n")); m != nil {
		source = m[1]
	} else {
		scanned := 0
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if scanned++; scanned > p.opts.HeaderScanLines {
				break
			}
			if len(dayNumbers(line)) >= 2 || (strings.Contains(line, "\t") && leadingDay.MatchString(line)) {
				source = line
				break
			}
		}
	}

	seen := make(map[int]bool)
	var nums []int
	for _, n := range dayNumbers(source) {
		if !seen[n] {
			seen[n] = true
			nums = append(nums, n)
		}
	}
	if len(nums) < 2 {
		log.Warn().Int("found", len(nums)).Msg("No day header found in timetable text")
		return []string{}
	}

	sort.Ints(nums)
	days := make([]string, len(nums))
	for i, n := range nums {
		days[i] = schedule.DayLabel(n)
	}
	return days
}

// locateHeader finds the line that maps columns to days. A tab-separated
// header yields an explicit column table; a header without tabs yields nil
// columns, meaning cell i belongs to days[i].
func locateHeader(lines []string) (int, []string) {
	fallback := -1
	for i, line := range lines {
		if len(dayNumbers(line)) < 2 {
			continue
		}
		if !strings.Contains(line, "\t") {
			if fallback < 0 {
				fallback = i
			}
			continue
		}

		cells := strings.Split(line, "\t")
		columns := make([]string, len(cells))
		for j, cell := range cells {
			if n, ok := schedule.DayNumber(strings.Trim(cell, " *")); ok {
				columns[j] = schedule.DayLabel(n)
			}
		}
		return i, columns
	}
	return fallback, nil
}
