package journal

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndList(t *testing.T) {
	j := testJournal(t)
	ctx := context.Background()

	now := time.Now()
	j.Record(ctx, Entry{
		ChunkPath: "/data/chunks/dataset_chunk_0.xlsx",
		Artifact:  "dataset_chunk_0.xlsx",
		Outcome:   OutcomeSuccess,
		StartedAt: now.Add(-time.Minute),
		EndedAt:   now,
	})
	j.Record(ctx, Entry{
		ChunkPath: "/data/chunks/dataset_chunk_1.xlsx",
		Artifact:  "dataset_chunk_1.xlsx",
		Outcome:   OutcomeFailure,
		Detail:    "monitoring row never appeared",
		StartedAt: now,
		EndedAt:   now.Add(time.Minute),
	})

	entries, err := j.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Outcome != OutcomeSuccess || entries[1].Outcome != OutcomeFailure {
		t.Fatalf("unexpected outcomes: %s, %s", entries[0].Outcome, entries[1].Outcome)
	}
	if entries[1].Detail == "" {
		t.Fatal("failure detail was not stored")
	}
}

func TestListEmpty(t *testing.T) {
	j := testJournal(t)
	entries, err := j.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
