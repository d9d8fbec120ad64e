package vault

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSystemVault(t *testing.T) {
	v, err := NewFileSystemVault("local", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	exerciseVault(t, v)
}

func TestNewFileSystemVault_CreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")
	if _, err := NewFileSystemVault("local", root); err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	for _, dir := range []string{"content", "snapshots"} {
		if _, err := os.Stat(filepath.Join(root, dir)); err != nil {
			t.Errorf("%s directory not created: %v", dir, err)
		}
	}
}

func TestFileSystemVault_ShardsContent(t *testing.T) {
	v, err := NewFileSystemVault("local", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	data := "pdf bytes"
	if err := v.PutContent(context.Background(), "e3b0c442", strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(v.contentDir, "e3", "e3b0c442"))
	if err != nil {
		t.Fatalf("sharded file missing: %v", err)
	}
	if string(got) != data {
		t.Errorf("file = %q", got)
	}
}

func TestFileSystemVault_RejectsPathKeys(t *testing.T) {
	v, err := NewFileSystemVault("local", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := v.PutContent(ctx, "../escape", strings.NewReader("x"), 1); err == nil {
		t.Error("PutContent() accepted a path checksum")
	}
	if err := v.PutSnapshot(ctx, "dev", "a/b", strings.NewReader("x"), 1, 1); err == nil {
		t.Error("PutSnapshot() accepted a path name")
	}
	if _, err := v.SnapshotVersion(ctx, "..", "db"); err == nil {
		t.Error("SnapshotVersion() accepted a path device id")
	}
}

func TestFileSystemVault_SizeMismatchLeavesNoTempFiles(t *testing.T) {
	v, err := NewFileSystemVault("local", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := v.PutSnapshot(context.Background(), "dev", "db", strings.NewReader("abc"), 99, 1); err == nil {
		t.Fatal("PutSnapshot() expected size mismatch")
	}
	entries, err := os.ReadDir(filepath.Join(v.snapshotDir, "dev"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestFileSystemVault_ValidateSetup_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")
	v, err := NewFileSystemVault("local", root)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}
	if err := v.ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() expected error after root removal")
	}
}
