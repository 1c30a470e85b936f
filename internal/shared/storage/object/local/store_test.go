package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cardscan-backend/internal/shared/storage/object"
	"cardscan-backend/internal/shared/util"
)

func TestStoreSaveOverwritesByName(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store := New(base)

	if _, err := store.Save(ctx, "demo", "card.jpg", strings.NewReader("first")); err != nil {
		t.Fatalf("save: %v", err)
	}
	obj, err := store.Save(ctx, "demo", "card.jpg", strings.NewReader("second!"))
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if obj.SizeBytes != int64(len("second!")) {
		t.Fatalf("unexpected size: %d", obj.SizeBytes)
	}

	data, err := os.ReadFile(filepath.Join(base, util.HashSessionKey("demo"), "card.jpg"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != "second!" {
		t.Fatalf("expected overwritten content, got %q", data)
	}
}

func TestStoreListSortedAndClear(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())

	for _, name := range []string{"c.png", "a.jpg", "b.pdf"} {
		if _, err := store.Save(ctx, "demo", name, strings.NewReader(name)); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}

	objs, err := store.List(ctx, "demo")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var names []string
	for _, o := range objs {
		names = append(names, o.Name)
	}
	if strings.Join(names, ",") != "a.jpg,b.pdf,c.png" {
		t.Fatalf("unexpected order: %v", names)
	}

	removed, err := store.Clear(ctx, "demo")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	objs, err = store.List(ctx, "demo")
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if len(objs) != 0 {
		t.Fatalf("expected empty directory, got %d entries", len(objs))
	}
}

func TestStoreListMissingSessionIsEmpty(t *testing.T) {
	objs, err := New(t.TempDir()).List(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objs) != 0 {
		t.Fatalf("expected no objects, got %d", len(objs))
	}
}

func TestStoreRejectsTraversal(t *testing.T) {
	base := t.TempDir()
	store := New(base)
	ctx := context.Background()

	obj, err := store.Save(ctx, "demo", "../escape.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if obj.Name != ".._escape.jpg" {
		t.Fatalf("expected flattened name, got %s", obj.Name)
	}
	if _, err := os.Stat(filepath.Join(base, util.HashSessionKey("demo"), obj.Name)); err != nil {
		t.Fatalf("expected file inside the session directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "escape.jpg")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file escaped the session directory: %v", err)
	}

	for _, name := range []string{".", ".."} {
		if _, err := store.Save(ctx, "demo", name, strings.NewReader("x")); !errors.Is(err, object.ErrInvalidName) {
			t.Fatalf("expected ErrInvalidName for %q, got %v", name, err)
		}
	}
	_, err = store.Open(ctx, "demo", "missing.jpg")
	if !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
