package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	if err := Migrate(db); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestHashRepo_GetSet(t *testing.T) {
	repo := NewHashRepo(newTestDB(t))
	ctx := context.Background()

	if _, err := repo.Get(ctx, "设定/人物.md"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() on empty table error = %v, want ErrNotFound", err)
	}

	if err := repo.Set(ctx, "设定/人物.md", "hash-1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := repo.Get(ctx, "设定/人物.md")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "hash-1" {
		t.Errorf("Get() = %q, want hash-1", got)
	}
}

func TestHashRepo_SetOverwrites(t *testing.T) {
	repo := NewHashRepo(newTestDB(t))
	ctx := context.Background()

	if err := repo.Set(ctx, "Vol1/第1章.md", "hash-1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set(ctx, "Vol1/第1章.md", "hash-2"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	got, err := repo.Get(ctx, "Vol1/第1章.md")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "hash-2" {
		t.Errorf("Get() = %q, want hash-2", got)
	}
}

func TestHashRepo_Delete(t *testing.T) {
	repo := NewHashRepo(newTestDB(t))
	ctx := context.Background()

	if err := repo.Set(ctx, "Vol1/第1章.md", "hash-1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Delete(ctx, "Vol1/第1章.md"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, "Vol1/第1章.md"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}

	// Deleting a missing path is not an error
	if err := repo.Delete(ctx, "Vol1/不存在.md"); err != nil {
		t.Errorf("Delete() on missing path error = %v", err)
	}
}

func TestHashRepo_ListPaths(t *testing.T) {
	repo := NewHashRepo(newTestDB(t))
	ctx := context.Background()

	paths, err := repo.ListPaths(ctx)
	if err != nil {
		t.Fatalf("ListPaths() error = %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("ListPaths() on empty table = %v, want empty", paths)
	}

	for _, p := range []string{"Vol2/第5章.md", "Vol1/第1章.md", "设定/人物.md"} {
		if err := repo.Set(ctx, p, "h"); err != nil {
			t.Fatalf("Set(%q) error = %v", p, err)
		}
	}

	paths, err = repo.ListPaths(ctx)
	if err != nil {
		t.Fatalf("ListPaths() error = %v", err)
	}
	want := []string{"Vol1/第1章.md", "Vol2/第5章.md", "设定/人物.md"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("ListPaths() = %v, want %v", paths, want)
	}
}
