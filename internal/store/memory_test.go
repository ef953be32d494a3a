package store

import (
	"context"
	"testing"
)

func TestInMemoryRunStore(t *testing.T) {
	testRunStoreContract(t, func(t *testing.T) RunStore {
		return NewInMemoryRunStore()
	})
}

func TestInMemoryRunStore_DuplicateID(t *testing.T) {
	s := NewInMemoryRunStore()
	ctx := context.Background()

	run := sampleRun(1, 2)
	run.ID = "dup"
	if _, err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	again := sampleRun(1)
	again.ID = "dup"
	if _, err := s.SaveRun(ctx, again); err == nil {
		t.Error("SaveRun() expected error for duplicate ID")
	}
}

func TestInMemoryRunStore_SaveCopies(t *testing.T) {
	s := NewInMemoryRunStore()
	ctx := context.Background()

	run := sampleRun(1, 2)
	id, _ := s.SaveRun(ctx, run)
	run.Series.Believers[1] = 50

	got, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Series.Believers[1] != 2 {
		t.Errorf("stored series aliased the caller's slice")
	}
}
