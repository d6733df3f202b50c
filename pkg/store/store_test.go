package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, NewRun("x", "h", 1).ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: err = %v", err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := range 3 {
		r := NewRun(fmt.Sprintf("comp%d", i), "hash", uint64(i))
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		r.Outputs = []string{"out.json"}
		if err := s.Put(ctx, r); err != nil {
			t.Fatalf("Put: %v", err)
		}
		ids = append(ids, r.ID)
	}

	got, err := s.Get(ctx, ids[1])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Composition != "comp1" || got.Seed != 1 || got.Status != StatusRunning || len(got.Outputs) != 1 {
		t.Errorf("Get = %+v", got)
	}

	got.Finish(StatusFailed, errors.New("boom"))
	if err := s.Put(ctx, got); err != nil {
		t.Fatal(err)
	}
	again, _ := s.Get(ctx, ids[1])
	if again.Status != StatusFailed || again.Error != "boom" || again.FinishedAt.IsZero() {
		t.Errorf("updated run = %+v", again)
	}

	list, err := s.List(ctx, 0)
	if err != nil || len(list) != 3 {
		t.Fatalf("List = %d runs, %v", len(list), err)
	}
	if list[0].ID != ids[2] || list[2].ID != ids[0] {
		t.Errorf("List not newest first: %s %s %s", list[0].Composition, list[1].Composition, list[2].Composition)
	}
	if list, _ := s.List(ctx, 2); len(list) != 2 {
		t.Errorf("List(2) = %d runs", len(list))
	}

	if err := s.Delete(ctx, ids[0]); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, ids[0]); err != nil {
		t.Errorf("second Delete: %v", err)
	}
	if _, err := s.Get(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted run still found: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.Path() != dir {
		t.Errorf("Path() = %s", s.Path())
	}
	testStore(t, s)
}

func TestFileStoreRejectsBadIDs(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := s.Get(ctx, "../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get traversal: %v", err)
	}
	if err := s.Put(ctx, &Run{ID: "../x"}); err == nil {
		t.Error("Put accepted a bad id")
	}
}

func TestStatusDone(t *testing.T) {
	if StatusRunning.Done() || Status("").Done() {
		t.Error("running should not be done")
	}
	for _, s := range []Status{StatusSucceeded, StatusCancelled, StatusFailed} {
		if !s.Done() {
			t.Errorf("%s should be done", s)
		}
	}
}
