package store

import (
	"context"
	"testing"
	"time"
)

func sampleRecord(id string, seq int64, created time.Time) RunRecord {
	return RunRecord{
		ID:          id,
		Seq:         seq,
		Path:        "src/api.go",
		Kind:        "modified",
		Fingerprint: "abc123",
		Overall:     "warning",
		Outcomes: []OutcomeRecord{
			{
				Check:  "code_quality",
				Status: "warning",
				Issues: []IssueRecord{
					{Description: "unused variable", Severity: "low", Line: 14},
				},
				DurationMS: 1200,
			},
			{
				Check:      "newline",
				Status:     "fixed",
				Fixes:      []string{"normalized trailing newline"},
				DurationMS: 3,
			},
		},
		CreatedAt: created,
	}
}

func TestAppendRun_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Now().Truncate(time.Millisecond)

	if err := s.AppendRun(ctx, sampleRecord("run-1", 1, created)); err != nil {
		t.Fatalf("AppendRun() failed: %v", err)
	}

	runs, err := s.RunsByPath(ctx, "src/api.go", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("RunsByPath() failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}

	got := runs[0]
	if got.ID != "run-1" || got.Seq != 1 || got.Overall != "warning" {
		t.Errorf("record mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if len(got.Outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(got.Outcomes))
	}
	if got.Outcomes[0].Check != "code_quality" || got.Outcomes[1].Check != "newline" {
		t.Error("outcome order not preserved through serialization")
	}
	if len(got.Outcomes[0].Issues) != 1 || got.Outcomes[0].Issues[0].Line != 14 {
		t.Errorf("issue not preserved: %+v", got.Outcomes[0].Issues)
	}
}

func TestAppendRun_DuplicateIDIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Now()

	rec := sampleRecord("run-dup", 1, created)
	if err := s.AppendRun(ctx, rec); err != nil {
		t.Fatalf("first AppendRun() failed: %v", err)
	}
	// A retried append with the same ID must not fail or duplicate.
	rec.Overall = "denied"
	if err := s.AppendRun(ctx, rec); err != nil {
		t.Fatalf("second AppendRun() failed: %v", err)
	}

	runs, err := s.RunsByPath(ctx, "src/api.go", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("RunsByPath() failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Overall != "warning" {
		t.Error("duplicate append must not overwrite the original record")
	}
}

func TestRunsByPath_OrderedBySeq(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	// Insert out of order.
	for _, rec := range []RunRecord{
		sampleRecord("run-c", 3, now),
		sampleRecord("run-a", 1, now),
		sampleRecord("run-b", 2, now),
	} {
		if err := s.AppendRun(ctx, rec); err != nil {
			t.Fatalf("AppendRun() failed: %v", err)
		}
	}

	runs, err := s.RunsByPath(ctx, "src/api.go", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("RunsByPath() failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	for i, want := range []int64{1, 2, 3} {
		if runs[i].Seq != want {
			t.Errorf("runs[%d].Seq = %d, want %d", i, runs[i].Seq, want)
		}
	}
}

func TestRunsByPath_TimeBounds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Truncate(time.Millisecond)

	for i := 0; i < 3; i++ {
		rec := sampleRecord("run-"+string(rune('a'+i)), int64(i+1), base.Add(time.Duration(i)*time.Hour))
		if err := s.AppendRun(ctx, rec); err != nil {
			t.Fatalf("AppendRun() failed: %v", err)
		}
	}

	runs, err := s.RunsByPath(ctx, "src/api.go", base.Add(30*time.Minute), base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("RunsByPath() failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Seq != 2 {
		t.Errorf("time-bounded query returned %d runs, want the middle one", len(runs))
	}
}

func TestRunsByPath_FiltersOtherPaths(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("run-x", 1, time.Now())
	if err := s.AppendRun(ctx, rec); err != nil {
		t.Fatalf("AppendRun() failed: %v", err)
	}

	runs, err := s.RunsByPath(ctx, "other/file.go", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("RunsByPath() failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d runs for unrelated path, want 0", len(runs))
	}
}
