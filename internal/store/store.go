// Package store persists imported timetables in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"timetable-import/internal/schedule"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when no stored row matches.
var ErrNotFound = errors.New("not found")

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS timetable_imports (
		id         UUID PRIMARY KEY,
		source     TEXT NOT NULL,
		hash       TEXT NOT NULL,
		format     TEXT NOT NULL,
		method     TEXT NOT NULL,
		stage      TEXT NOT NULL DEFAULT '',
		document   JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS timetable_imports_hash_idx ON timetable_imports (hash, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS timetable_entries (
		import_id  UUID NOT NULL REFERENCES timetable_imports (id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		day        TEXT NOT NULL,
		period     TEXT NOT NULL,
		subject    TEXT NOT NULL,
		code       TEXT NOT NULL,
		room       TEXT NOT NULL,
		teacher    TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time   TEXT NOT NULL,
		week       TEXT NOT NULL,
		weekday    TEXT NOT NULL,
		PRIMARY KEY (import_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS timetable_entries_teacher_idx ON timetable_entries (lower(teacher))`,
}

var entryColumns = []string{
	"import_id", "position", "day", "period", "subject", "code",
	"room", "teacher", "start_time", "end_time", "week", "weekday",
}

// Import is one parsed input ready to be stored.
type Import struct {
	ID        uuid.UUID
	Source    string
	Hash      string
	Format    string
	Method    string
	Stage     string
	Document  *schedule.Document
	Entries   []schedule.Entry
	CreatedAt time.Time
}

// Summary describes a stored import without its entries.
type Summary struct {
	ID        uuid.UUID `json:"id"`
	Source    string    `json:"source"`
	Method    string    `json:"method"`
	Stage     string    `json:"stage,omitempty"`
	Entries   int       `json:"entries"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store reads and writes imports through a pgx pool.
type Store struct {
	pool  *pgxpool.Pool
	cycle *schedule.Cycle
}

// New creates a store. Entry rows are placed on the calendar with cycle.
func New(pool *pgxpool.Pool, cycle *schedule.Cycle) *Store {
	if cycle == nil {
		cycle = schedule.DefaultCycle()
	}
	return &Store{pool: pool, cycle: cycle}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	log.Info().Int("statements", len(migrations)).Msg("Database schema ensured")
	return nil
}

// SaveImport stores the import row and its entries in one transaction and
// returns the new import id.
func (s *Store) SaveImport(ctx context.Context, imp *Import) (uuid.UUID, error) {
	if imp.ID == uuid.Nil {
		imp.ID = uuid.New()
	}

	doc, err := json.Marshal(imp.Document)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode document: %w", err)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO timetable_imports (id, source, hash, format, method, stage, document)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, imp.ID, imp.Source, imp.Hash, imp.Format, imp.Method, imp.Stage, doc)
		if err != nil {
			return fmt.Errorf("insert import: %w", err)
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{"timetable_entries"}, entryColumns,
			pgx.CopyFromSlice(len(imp.Entries), func(i int) ([]any, error) {
				return s.entryRow(imp.ID, i, imp.Entries[i]), nil
			}))
		if err != nil {
			return fmt.Errorf("copy entries: %w", err)
		}
		if int(n) != len(imp.Entries) {
			return fmt.Errorf("copy entries: wrote %d of %d", n, len(imp.Entries))
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	log.Info().
		Str("id", imp.ID.String()).
		Str("source", imp.Source).
		Int("entries", len(imp.Entries)).
		Msg("Stored timetable import")
	return imp.ID, nil
}

func (s *Store) entryRow(id uuid.UUID, pos int, e schedule.Entry) []any {
	week, weekday := "", ""
	if slot, ok := s.cycle.Resolve(e.Day); ok {
		week, weekday = slot.Week, slot.Weekday.String()
	}
	return []any{
		id, pos, e.Day, e.Period, e.Subject, e.Code,
		e.Room, e.Teacher, e.StartTime, e.EndTime, week, weekday,
	}
}

// FindDocument returns the most recently stored document for a content hash.
func (s *Store) FindDocument(ctx context.Context, hash string) (*schedule.Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT document FROM timetable_imports
		WHERE hash = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, hash).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	return decodeDocument(raw)
}

// ListDocuments returns the latest document for every stored hash.
func (s *Store) ListDocuments(ctx context.Context) (map[string]*schedule.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (hash) hash, document
		FROM timetable_imports
		ORDER BY hash, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make(map[string]*schedule.Document)
	for rows.Next() {
		var hash string
		var raw []byte
		if err := rows.Scan(&hash, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			log.Warn().Err(err).Str("hash", hash).Msg("Skipping undecodable stored document")
			continue
		}
		docs[hash] = doc
	}
	return docs, rows.Err()
}

// ListEntries returns the entries of one import in their stored order.
func (s *Store) ListEntries(ctx context.Context, id uuid.UUID) ([]schedule.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT day, period, subject, code, room, teacher, start_time, end_time
		FROM timetable_entries
		WHERE import_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (schedule.Entry, error) {
		var e schedule.Entry
		err := row.Scan(&e.Day, &e.Period, &e.Subject, &e.Code, &e.Room, &e.Teacher, &e.StartTime, &e.EndTime)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}
	if len(entries) == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM timetable_imports WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check import: %w", err)
		}
		if !exists {
			return nil, ErrNotFound
		}
	}
	return entries, nil
}

// ListImports returns the most recent imports first.
func (s *Store) ListImports(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.source, i.method, i.stage, i.created_at, count(e.position)
		FROM timetable_imports i
		LEFT JOIN timetable_entries e ON e.import_id = i.id
		GROUP BY i.id
		ORDER BY i.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Summary, error) {
		var sum Summary
		err := row.Scan(&sum.ID, &sum.Source, &sum.Method, &sum.Stage, &sum.CreatedAt, &sum.Entries)
		return sum, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan imports: %w", err)
	}
	return out, nil
}

func decodeDocument(raw []byte) (*schedule.Document, error) {
	var doc schedule.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc.Finalize()
	return &doc, nil
}
