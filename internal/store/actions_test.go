package store

import (
	"context"
	"sync"
	"testing"
)

func TestReserveAction_FirstWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ok, err := s.ReserveAction(ctx, "f.go", "security", "fp1")
	if err != nil {
		t.Fatalf("ReserveAction() failed: %v", err)
	}
	if !ok {
		t.Fatal("first reservation should succeed")
	}

	ok, err = s.ReserveAction(ctx, "f.go", "security", "fp1")
	if err != nil {
		t.Fatalf("second ReserveAction() failed: %v", err)
	}
	if ok {
		t.Error("second reservation of the same tuple should be refused")
	}
}

func TestReserveAction_DistinctTuples(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tuples := [][3]string{
		{"f.go", "security", "fp1"},
		{"f.go", "security", "fp2"},     // content changed
		{"f.go", "code_quality", "fp1"}, // different check
		{"g.go", "security", "fp1"},     // different path
	}
	for _, tup := range tuples {
		ok, err := s.ReserveAction(ctx, tup[0], tup[1], tup[2])
		if err != nil {
			t.Fatalf("ReserveAction(%v) failed: %v", tup, err)
		}
		if !ok {
			t.Errorf("tuple %v should reserve independently", tup)
		}
	}
}

func TestReserveAction_ConcurrentExactlyOneWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wins := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ReserveAction(ctx, "f.go", "security", "fp")
			if err != nil {
				t.Errorf("ReserveAction() failed: %v", err)
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Errorf("%d concurrent reservations won, want exactly 1", won)
	}
}

func TestCompleteAction_RecordsReference(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.ReserveAction(ctx, "f.go", "security", "fp"); err != nil {
		t.Fatal(err)
	}

	// No reference before completion.
	ref, err := s.ActionReference(ctx, "f.go", "security", "fp")
	if err != nil {
		t.Fatalf("ActionReference() failed: %v", err)
	}
	if ref != "" {
		t.Errorf("reserved tuple has reference %q, want empty", ref)
	}

	if err := s.CompleteAction(ctx, "f.go", "security", "fp", "TICKET-42"); err != nil {
		t.Fatalf("CompleteAction() failed: %v", err)
	}

	ref, err = s.ActionReference(ctx, "f.go", "security", "fp")
	if err != nil {
		t.Fatalf("ActionReference() failed: %v", err)
	}
	if ref != "TICKET-42" {
		t.Errorf("ActionReference() = %q, want TICKET-42", ref)
	}
}

func TestReleaseAction_MakesTupleRetryable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.ReserveAction(ctx, "f.go", "security", "fp"); err != nil {
		t.Fatal(err)
	}
	if err := s.ReleaseAction(ctx, "f.go", "security", "fp"); err != nil {
		t.Fatalf("ReleaseAction() failed: %v", err)
	}

	ok, err := s.ReserveAction(ctx, "f.go", "security", "fp")
	if err != nil {
		t.Fatalf("re-reservation failed: %v", err)
	}
	if !ok {
		t.Error("released tuple should be reservable again")
	}
}

func TestReleaseAction_NeverDropsCompleted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.ReserveAction(ctx, "f.go", "security", "fp"); err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteAction(ctx, "f.go", "security", "fp", "TICKET-7"); err != nil {
		t.Fatal(err)
	}
	if err := s.ReleaseAction(ctx, "f.go", "security", "fp"); err != nil {
		t.Fatalf("ReleaseAction() failed: %v", err)
	}

	// Completed record survives, so no new reservation is possible.
	ok, err := s.ReserveAction(ctx, "f.go", "security", "fp")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("completed tuple must never become reservable again")
	}
	ref, _ := s.ActionReference(ctx, "f.go", "security", "fp")
	if ref != "TICKET-7" {
		t.Errorf("reference lost after release attempt: %q", ref)
	}
}
