package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"timetable-import/internal/schedule"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

// GraphQuerier reads schedules back out of the graph.
type GraphQuerier struct {
	driver neo4j.DriverWithContext
}

// NewGraphQuerier creates a new graph querier.
func NewGraphQuerier(driver neo4j.DriverWithContext) *GraphQuerier {
	return &GraphQuerier{driver: driver}
}

// TeacherSchedule returns every class taught by the named teacher, matched
// case-insensitively, ordered by day and start time.
func (gq *GraphQuerier) TeacherSchedule(ctx context.Context, name string) ([]schedule.Entry, error) {
	session := gq.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (t:Teacher)-[k:TEACHES]->(s:Subject)
		WHERE toLower(t.name) = toLower($name)
		OPTIONAL MATCH (s)-[h:HELD_IN {day: k.day, period: k.period}]->(r:Room)
		RETURN t.name AS teacher, s.name AS subject, coalesce(s.code, '') AS code,
		       coalesce(r.name, '') AS room, k.day AS day, k.period AS period,
		       coalesce(k.startTime, '') AS startTime, coalesce(k.endTime, '') AS endTime
	`, map[string]any{"name": strings.TrimSpace(name)})
	if err != nil {
		return nil, fmt.Errorf("query teacher schedule: %w", err)
	}

	var entries []schedule.Entry
	for result.Next(ctx) {
		record := result.Record()
		entries = append(entries, schedule.Entry{
			Teacher:   recordString(record, "teacher"),
			Subject:   recordString(record, "subject"),
			Code:      recordString(record, "code"),
			Room:      recordString(record, "room"),
			Day:       recordString(record, "day"),
			Period:    recordString(record, "period"),
			StartTime: recordString(record, "startTime"),
			EndTime:   recordString(record, "endTime"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read teacher schedule: %w", err)
	}

	SortEntries(entries)
	log.Debug().Str("teacher", name).Int("entries", len(entries)).Msg("Graph query complete")
	return entries, nil
}

// SortEntries orders entries by cycle day number, then start time, then period.
func SortEntries(entries []schedule.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if da, db := dayRank(a.Day), dayRank(b.Day); da != db {
			return da < db
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if sa, sb := clockRank(a.StartTime), clockRank(b.StartTime); sa != sb {
			return sa < sb
		}
		return a.Period < b.Period
	})
}

func dayRank(day string) int {
	if n, ok := schedule.DayNumber(day); ok {
		return n
	}
	return 1 << 30
}

func clockRank(s string) int {
	if m, err := schedule.ParseClock(s); err == nil {
		return m
	}
	return 1 << 30
}

func recordString(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
