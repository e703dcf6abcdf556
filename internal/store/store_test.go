package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"timetable-import/internal/schedule"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestEntryRowPlacesDayOnCycle(t *testing.T) {
	s := New(nil, nil)
	id := uuid.New()

	row := s.entryRow(id, 3, schedule.Entry{Day: "Day 7", Period: "Period 1", Subject: "Art"})
	if len(row) != len(entryColumns) {
		t.Fatalf("expected %d values, got %d", len(entryColumns), len(row))
	}
	if row[0] != id || row[1] != 3 {
		t.Errorf("unexpected key values: %v %v", row[0], row[1])
	}
	if row[10] != "B" || row[11] != "Tuesday" {
		t.Errorf("expected Week B Tuesday, got %v %v", row[10], row[11])
	}

	row = s.entryRow(id, 0, schedule.Entry{Day: "Monday"})
	if row[10] != "" || row[11] != "" {
		t.Errorf("expected no calendar slot for a weekday label, got %v %v", row[10], row[11])
	}
}

func TestDecodeDocumentFinalizes(t *testing.T) {
	doc, err := decodeDocument([]byte(`{"days":["Day 1"],"periods":[{"name":"Period 1","startTime":"8:35am","endTime":"9:35am"}],"classes":{}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if slot, ok := doc.Classes["Day 1"]["Period 1"]; !ok || slot == nil {
		t.Errorf("expected finalized slot, got %v", doc.Classes)
	}

	if _, err := decodeDocument([]byte(`{"days":`)); err == nil {
		t.Error("expected decode error")
	}
}

// TestStoreRoundTrip needs a disposable database in TEST_DATABASE_URL.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	s := New(pool, nil)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	doc := schedule.NewDocument()
	doc.Days = []string{"Day 1", "Day 2"}
	doc.Periods = []schedule.Period{{Name: "Period 1", StartTime: "8:35am", EndTime: "9:35am"}}
	doc.Classes["Day 1"] = map[string][]schedule.ClassEntry{"Period 1": {{Subject: "Maths", Room: "M 07"}}}
	doc.Finalize()

	hash := uuid.NewString()
	id, err := s.SaveImport(ctx, &Import{
		Source:   "test.txt",
		Hash:     hash,
		Format:   "text",
		Method:   "structural",
		Document: doc,
		Entries:  schedule.ToEntries(doc),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	entries, err := s.ListEntries(ctx, id)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Room != "M 07" {
		t.Errorf("unexpected entries: %+v", entries)
	}

	found, err := s.FindDocument(ctx, hash)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found.Days) != 2 {
		t.Errorf("expected 2 days, got %v", found.Days)
	}

	if _, err := s.ListEntries(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
