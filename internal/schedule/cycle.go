package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var dayLabelPattern = regexp.MustCompile(`(?i)^\s*day\s*(\d+)\s*$`)

// DayNumber extracts n from a "Day n" label.
func DayNumber(label string) (int, bool) {
	m := dayLabelPattern.FindStringSubmatch(label)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// DayLabel renders the canonical label for day n.
func DayLabel(n int) string {
	return fmt.Sprintf("Day %d", n)
}

// Slot places a cycle day on the calendar.
type Slot struct {
	Week    string
	Weekday time.Weekday
}

func (s Slot) String() string {
	if s.Week == "" {
		return s.Weekday.String()
	}
	return fmt.Sprintf("Week %s %s", s.Week, s.Weekday)
}

// Cycle translates cycle day labels into calendar slots. It is consumed by
// callers of the normalizer; the parser never looks at it.
type Cycle struct {
	slots map[int]Slot
}

// NewCycle builds a cycle from an explicit day-number table.
func NewCycle(slots map[int]Slot) *Cycle {
	c := &Cycle{slots: make(map[int]Slot, len(slots))}
	for n, s := range slots {
		c.slots[n] = s
	}
	return c
}

// DefaultCycle is the ten-day Week A / Week B school cycle: Day 1-5 fall on
// Monday-Friday of Week A, Day 6-10 on Monday-Friday of Week B.
func DefaultCycle() *Cycle {
	slots := make(map[int]Slot, 10)
	for n := 1; n <= 10; n++ {
		week := "A"
		if n > 5 {
			week = "B"
		}
		slots[n] = Slot{Week: week, Weekday: time.Monday + time.Weekday((n-1)%5)}
	}
	return &Cycle{slots: slots}
}

// Resolve looks up the calendar slot for a day label.
func (c *Cycle) Resolve(label string) (Slot, bool) {
	n, ok := DayNumber(label)
	if !ok {
		return Slot{}, false
	}
	s, ok := c.slots[n]
	return s, ok
}

// Len returns the number of days in the cycle.
func (c *Cycle) Len() int {
	return len(c.slots)
}
