package schedule

import (
	"errors"
	"strings"
)

// Unusable-result errors. A document without days or periods has no temporal
// structure and must not be imported.
var (
	ErrNoDays    = errors.New("no days found")
	ErrNoPeriods = errors.New("no periods found")
)

// Period is a named time block shared across every day of the cycle.
type Period struct {
	// Name is unique within a document ("Period 1", "Lunch", ...).
	Name string `json:"name"`
	// StartTime and EndTime are wall-clock values in H:MMam|pm form.
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// ClassEntry is one scheduled subject occurrence within a day and period.
type ClassEntry struct {
	Subject   string `json:"subject"`
	Code      string `json:"code,omitempty"`
	Room      string `json:"room,omitempty"`
	Teacher   string `json:"teacher,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// Empty reports whether the entry carries neither a subject nor a code.
func (c ClassEntry) Empty() bool {
	return strings.TrimSpace(c.Subject) == "" && strings.TrimSpace(c.Code) == ""
}

// Matches reports whether two entries describe the same logical class.
func (c ClassEntry) Matches(other ClassEntry) bool {
	if c.Subject != "" && strings.EqualFold(c.Subject, other.Subject) {
		return true
	}
	return c.Code != "" && strings.EqualFold(c.Code, other.Code)
}

// Missing reports whether any optional field is still empty.
func (c ClassEntry) Missing() bool {
	return c.Subject == "" || c.Code == "" || c.Room == "" || c.Teacher == ""
}

// Merge fills the empty fields of c from other. Non-empty fields are kept.
func (c ClassEntry) Merge(other ClassEntry) ClassEntry {
	c.Subject = firstNonEmpty(c.Subject, other.Subject)
	c.Code = firstNonEmpty(c.Code, other.Code)
	c.Room = firstNonEmpty(c.Room, other.Room)
	c.Teacher = firstNonEmpty(c.Teacher, other.Teacher)
	c.StartTime = firstNonEmpty(c.StartTime, other.StartTime)
	c.EndTime = firstNonEmpty(c.EndTime, other.EndTime)
	return c
}

// Document is the canonical schedule produced by both the structural parser
// and the recovery engine.
type Document struct {
	Days    []string                           `json:"days"`
	Periods []Period                           `json:"periods"`
	Classes map[string]map[string][]ClassEntry `json:"classes"`
}

// NewDocument returns an empty document with initialised collections.
func NewDocument() *Document {
	return &Document{
		Days:    []string{},
		Periods: []Period{},
		Classes: make(map[string]map[string][]ClassEntry),
	}
}

// Period looks up a period definition by name.
func (d *Document) Period(name string) (Period, bool) {
	for _, p := range d.Periods {
		if p.Name == name {
			return p, true
		}
	}
	return Period{}, false
}

// Slot returns the entries recorded for a day and period.
func (d *Document) Slot(day, period string) []ClassEntry {
	if d.Classes == nil {
		return nil
	}
	return d.Classes[day][period]
}

// Finalize makes sure every day x period pair has a (possibly empty) slot.
func (d *Document) Finalize() {
	if d.Classes == nil {
		d.Classes = make(map[string]map[string][]ClassEntry)
	}
	for _, day := range d.Days {
		if d.Classes[day] == nil {
			d.Classes[day] = make(map[string][]ClassEntry)
		}
		for _, p := range d.Periods {
			if d.Classes[day][p.Name] == nil {
				d.Classes[day][p.Name] = []ClassEntry{}
			}
		}
	}
}

// ClassCount returns the total number of class entries in the document.
func (d *Document) ClassCount() int {
	n := 0
	for _, periods := range d.Classes {
		for _, entries := range periods {
			n += len(entries)
		}
	}
	return n
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		Days:    append([]string{}, d.Days...),
		Periods: append([]Period{}, d.Periods...),
		Classes: make(map[string]map[string][]ClassEntry, len(d.Classes)),
	}
	for day, periods := range d.Classes {
		cp := make(map[string][]ClassEntry, len(periods))
		for name, entries := range periods {
			cp[name] = append([]ClassEntry{}, entries...)
		}
		out.Classes[day] = cp
	}
	return out
}

// Validate rejects documents that have no temporal structure.
func Validate(d *Document) error {
	if d == nil || len(d.Days) == 0 {
		return ErrNoDays
	}
	if len(d.Periods) == 0 {
		return ErrNoPeriods
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
