package local

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryTokenStore_SetGetDelete(t *testing.T) {
	store := NewMemoryTokenStore()

	if got := store.Get(KeyToken); got != "" {
		t.Errorf("expected empty value for missing key, got %q", got)
	}

	if err := store.Set(KeyToken, "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := store.Get(KeyToken); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}

	if err := store.Delete(KeyToken); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := store.Get(KeyToken); got != "" {
		t.Errorf("expected empty value after delete, got %q", got)
	}
}

func TestFileTokenStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store := NewFileTokenStore(path)
	if err := store.Set(KeyToken, "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(KeyEmail, "admin@demo.com"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// 再起動に相当する別インスタンスからの読み出し
	reopened := NewFileTokenStore(path)
	if got := reopened.Get(KeyToken); got != "abc" {
		t.Errorf("expected persisted token, got %q", got)
	}
	if got := reopened.Get(KeyEmail); got != "admin@demo.com" {
		t.Errorf("expected persisted email, got %q", got)
	}
}

func TestFileTokenStore_MissingFile_ReturnsEmpty(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "missing.json"))
	if got := store.Get(KeyToken); got != "" {
		t.Errorf("expected empty value for missing file, got %q", got)
	}
}

func TestFileTokenStore_CorruptedFile_TreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("not json at all"), 0o600); err != nil {
		t.Fatalf("failed to write corrupted file: %v", err)
	}

	store := NewFileTokenStore(path)
	if got := store.Get(KeyToken); got != "" {
		t.Errorf("expected corrupted file to read as empty, got %q", got)
	}

	// 書き込みで上書き復旧できること
	if err := store.Set(KeyToken, "fresh"); err != nil {
		t.Fatalf("Set on corrupted file failed: %v", err)
	}
	if got := store.Get(KeyToken); got != "fresh" {
		t.Errorf("expected fresh value after recovery, got %q", got)
	}
}

func TestFileTokenStore_Delete_RemovesSingleKey(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "session.json"))
	if err := store.Set(KeyToken, "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(KeyEmail, "admin@demo.com"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := store.Delete(KeyToken); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := store.Get(KeyToken); got != "" {
		t.Errorf("expected deleted key to be empty, got %q", got)
	}
	if got := store.Get(KeyEmail); got != "admin@demo.com" {
		t.Errorf("expected other key untouched, got %q", got)
	}
}
