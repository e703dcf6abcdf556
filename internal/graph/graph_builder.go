package graph

import (
	"context"
	"fmt"

	"timetable-import/internal/schedule"
	"timetable-import/internal/worker"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

const upsertBatchSize = 200

// GraphBuilder projects schedule entries into the Neo4j graph:
// (:Teacher)-[:TEACHES]->(:Subject)-[:HELD_IN]->(:Room).
type GraphBuilder struct {
	driver neo4j.DriverWithContext
}

// NewGraphBuilder creates a new graph builder.
func NewGraphBuilder(driver neo4j.DriverWithContext) *GraphBuilder {
	return &GraphBuilder{driver: driver}
}

// EnsureSchema creates constraints on the Neo4j database.
func (gb *GraphBuilder) EnsureSchema(ctx context.Context) error {
	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (t:Teacher) REQUIRE t.name IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (s:Subject) REQUIRE s.name IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (r:Room) REQUIRE r.name IS UNIQUE",
	}

	for _, c := range constraints {
		if _, err := session.Run(ctx, c, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}

	log.Info().Msg("Graph schema ensured")
	return nil
}

// UpsertEntries merges the entries of one import into the graph. Entries
// without a teacher still link their subject to its room.
func (gb *GraphBuilder) UpsertEntries(ctx context.Context, importID string, entries []schedule.Entry) error {
	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	rows := entryParams(importID, entries)
	for _, batch := range worker.Batch(rows, upsertBatchSize) {
		_, err := session.Run(ctx, `
			UNWIND $rows AS row
			MERGE (s:Subject {name: row.subject})
			SET s.code = CASE WHEN row.code <> '' THEN row.code ELSE s.code END
			FOREACH (_ IN CASE WHEN row.teacher <> '' THEN [1] ELSE [] END |
				MERGE (t:Teacher {name: row.teacher})
				MERGE (t)-[k:TEACHES {day: row.day, period: row.period}]->(s)
				SET k.startTime = row.startTime, k.endTime = row.endTime, k.importId = row.importId
			)
			FOREACH (_ IN CASE WHEN row.room <> '' THEN [1] ELSE [] END |
				MERGE (r:Room {name: row.room})
				MERGE (s)-[h:HELD_IN {day: row.day, period: row.period}]->(r)
				SET h.importId = row.importId
			)
		`, map[string]any{"rows": batch})
		if err != nil {
			return fmt.Errorf("upsert entries: %w", err)
		}
	}

	log.Info().Str("import", importID).Int("entries", len(rows)).Msg("Projected entries into graph")
	return nil
}

// entryParams converts entries into Cypher parameter maps, skipping entries
// with no subject.
func entryParams(importID string, entries []schedule.Entry) []map[string]any {
	rows := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		if e.Subject == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"importId":  importID,
			"day":       e.Day,
			"period":    e.Period,
			"subject":   e.Subject,
			"code":      e.Code,
			"room":      e.Room,
			"teacher":   e.Teacher,
			"startTime": e.StartTime,
			"endTime":   e.EndTime,
		})
	}
	return rows
}
