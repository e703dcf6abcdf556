package schedule

import "sort"

// Entry is the flat record downstream storage and display consume.
type Entry struct {
	Day       string `json:"day"`
	Period    string `json:"period"`
	Subject   string `json:"subject"`
	Code      string `json:"code"`
	Room      string `json:"room"`
	Teacher   string `json:"teacher"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// ToEntries flattens a document into schedule entries. Days and periods keep
// document order; slots keyed by labels missing from Days or Periods follow
// in sorted order so no class is lost. Clock values are written in canonical
// form. The document is not modified.
func ToEntries(doc *Document) []Entry {
	if doc == nil {
		return nil
	}

	var entries []Entry
	for _, day := range orderedKeys(doc.Days, doc.Classes) {
		periods := doc.Classes[day]
		names := make([]string, 0, len(doc.Periods))
		for _, p := range doc.Periods {
			names = append(names, p.Name)
		}
		for _, name := range orderedKeys(names, periods) {
			def, _ := doc.Period(name)
			for _, c := range periods[name] {
				if c.Empty() {
					continue
				}
				entries = append(entries, Entry{
					Day:       day,
					Period:    name,
					Subject:   firstNonEmpty(c.Subject, c.Code),
					Code:      c.Code,
					Room:      c.Room,
					Teacher:   c.Teacher,
					StartTime: NormalizeClock(firstNonEmpty(c.StartTime, def.StartTime)),
					EndTime:   NormalizeClock(firstNonEmpty(c.EndTime, def.EndTime)),
				})
			}
		}
	}
	return entries
}

// orderedKeys returns the known labels followed by any extra map keys, sorted.
func orderedKeys[V any](known []string, m map[string]V) []string {
	seen := make(map[string]bool, len(known))
	out := make([]string, 0, len(m))
	for _, k := range known {
		if seen[k] {
			continue
		}
		seen[k] = true
		if _, ok := m[k]; ok {
			out = append(out, k)
		}
	}

	var extra []string
	for k := range m {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
