package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/yuqie6/MirrorQuest/internal/testutil"
)

func TestKVRepositoryLoadMissingReturnsNil(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewKVRepository(db)

	got, err := repo.Load(context.Background(), "reward_profile")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got != nil {
		t.Fatalf("got=%q, want nil", got)
	}
}

func TestKVRepositorySaveOverwrites(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewKVRepository(db)
	ctx := context.Background()

	if err := repo.Save(ctx, "reward_profile", []byte(`{"totalXp":10}`)); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := repo.Save(ctx, "reward_profile", []byte(`{"totalXp":35}`)); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := repo.Load(ctx, "reward_profile")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if string(got) != `{"totalXp":35}` {
		t.Fatalf("got=%q, want latest value", got)
	}

	var count int64
	db.Table("kv_store").Count(&count)
	if count != 1 {
		t.Fatalf("rows=%d, want 1", count)
	}
}

func TestKVRepositoryDelete(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewKVRepository(db)
	ctx := context.Background()

	if err := repo.Save(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := repo.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := repo.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete missing error: %v", err)
	}
	got, _ := repo.Load(ctx, "k")
	if got != nil {
		t.Fatalf("got=%q after delete, want nil", got)
	}
}

func TestKVRepositoryUpdateReadsCurrentValue(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewKVRepository(db)
	ctx := context.Background()

	var seen [][]byte
	appendX := func(current []byte) ([]byte, error) {
		seen = append(seen, current)
		return append(append([]byte(nil), current...), 'x'), nil
	}
	if err := repo.Update(ctx, "k", appendX); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if err := repo.Update(ctx, "k", appendX); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	if seen[0] != nil {
		t.Fatalf("first current=%q, want nil", seen[0])
	}
	if string(seen[1]) != "x" {
		t.Fatalf("second current=%q, want x", seen[1])
	}
	got, _ := repo.Load(ctx, "k")
	if string(got) != "xx" {
		t.Fatalf("got=%q, want xx", got)
	}
}

func TestKVRepositoryUpdateNilSkipsWrite(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewKVRepository(db)
	ctx := context.Background()

	if err := repo.Update(ctx, "k", func([]byte) ([]byte, error) { return nil, nil }); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got, _ := repo.Load(ctx, "k"); got != nil {
		t.Fatalf("got=%q, want no record", got)
	}
}

func TestKVRepositoryUpdateErrorRollsBack(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewKVRepository(db)
	ctx := context.Background()

	if err := repo.Save(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	boom := errors.New("boom")
	err := repo.Update(ctx, "k", func([]byte) ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want boom", err)
	}
	if got, _ := repo.Load(ctx, "k"); string(got) != "v1" {
		t.Fatalf("got=%q, want v1", got)
	}
}
