package store

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestDedupKey_HashFieldSeparation(t *testing.T) {
	// Concatenation ambiguity: ("a","bc") and ("ab","c") must not collide.
	a := DedupKey{Message: "a", Source: "bc", Line: 1}
	b := DedupKey{Message: "ab", Source: "c", Line: 1}
	if a.Hash() == b.Hash() {
		t.Error("field boundaries must be part of the hash")
	}

	if a.Hash() != (DedupKey{Message: "a", Source: "bc", Line: 1}).Hash() {
		t.Error("hash must be stable for equal keys")
	}
	if a.Hash() == (DedupKey{Message: "a", Source: "bc", Line: 2}).Hash() {
		t.Error("line number must participate in the hash")
	}
}

func TestSeen_UnknownKey(t *testing.T) {
	s := openTestStore(t)

	seen, err := s.Seen(context.Background(), DedupKey{Message: "boom", Source: "app.log", Line: 3})
	if err != nil {
		t.Fatalf("Seen() failed: %v", err)
	}
	if seen {
		t.Error("unknown key reported as seen")
	}
}

func TestRecord_ThenSeen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := DedupKey{Message: "connection refused", Source: "app.log", Line: 17}

	if err := s.Record(ctx, key, time.Now()); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	seen, err := s.Seen(ctx, key)
	if err != nil {
		t.Fatalf("Seen() failed: %v", err)
	}
	if !seen {
		t.Error("recorded key not reported as seen")
	}
}

func TestRecord_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := DedupKey{Message: "boom", Source: "app.log", Line: 1}

	for i := 0; i < 3; i++ {
		if err := s.Record(ctx, key, time.Now()); err != nil {
			t.Fatalf("Record() iteration %d failed: %v", i, err)
		}
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM seen_errors`).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d rows, want 1", count)
	}
}

func TestRecord_ConcurrentSameKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := DedupKey{Message: "race", Source: "app.log", Line: 9}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Record(ctx, key, time.Now())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent Record() failed: %v", err)
		}
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM seen_errors`).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d rows after concurrent inserts, want 1", count)
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := DedupKey{Message: "old", Source: "app.log", Line: 1}
	recent := DedupKey{Message: "recent", Source: "app.log", Line: 2}
	if err := s.Record(ctx, old, now.Add(-48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, recent, now); err != nil {
		t.Fatal(err)
	}

	n, err := s.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() evicted %d, want 1", n)
	}

	if seen, _ := s.Seen(ctx, old); seen {
		t.Error("pruned key still reported as seen")
	}
	if seen, _ := s.Seen(ctx, recent); !seen {
		t.Error("recent key was pruned")
	}
}
