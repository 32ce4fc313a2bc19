package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	ctx := context.Background()

	key, err := store.Save(ctx, []byte("png-bytes"), SaveOptions{BaseName: "branded_abc_0", Extension: "png"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if key != "branded_abc_0.png" {
		t.Fatalf("unexpected key %q", key)
	}
	if _, err := os.Stat(filepath.Join(dir, key)); err != nil {
		t.Fatalf("file not written: %v", err)
	}

	data, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, key); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound after delete, got %v", err)
	}
	// 重复删除不报错
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(filepath.Join(dir, "outputs"))
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	secret := filepath.Join(dir, "secret.txt")
	if err := os.WriteFile(secret, []byte("top"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"../secret.txt", "/etc/passwd", "a/../../secret.txt", "..\\secret.txt", ""} {
		if _, err := store.Load(context.Background(), key); !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("key %q: expected ErrObjectNotFound, got %v", key, err)
		}
	}
}

func TestLocalStorageSaveValidation(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(context.Background(), nil, SaveOptions{BaseName: "x", Extension: "png"}); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := store.Save(context.Background(), []byte("x"), SaveOptions{Extension: "png"}); err == nil {
		t.Fatal("expected error for missing base name")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Save(ctx, []byte("x"), SaveOptions{BaseName: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuildObjectKey(t *testing.T) {
	tests := []struct {
		name     string
		category string
		base     string
		ext      string
		want     string
	}{
		{name: "无分类", base: "output_1_0", ext: "png", want: "output_1_0.png"},
		{name: "带分类", category: "Raw", base: "output_1_0", ext: ".jpg", want: "raw/output_1_0.jpg"},
		{name: "缺少扩展名", base: "blob", want: "blob.bin"},
		{name: "过滤非法字符", base: "../evil name", ext: "png", want: "evil-name.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildObjectKey(tt.category, tt.base, tt.ext)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestContentTypeForKey(t *testing.T) {
	if got := ContentTypeForKey("branded_a_0.png"); got != "image/png" {
		t.Errorf("expected image/png, got %s", got)
	}
	if got := ContentTypeForKey("noext"); got != "application/octet-stream" {
		t.Errorf("expected octet-stream, got %s", got)
	}
}
