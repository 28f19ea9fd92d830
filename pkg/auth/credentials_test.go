package auth

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCredentialManager(t *testing.T) {
	mockStore := NewMockStore()
	manager := NewManagerWithStores(mockStore)

	cred := &Credential{Provider: "pixabay", APIKey: "  12345678-abcdefghijkl  "}
	if err := manager.Store(cred); err != nil {
		t.Fatalf("Failed to store key: %v", err)
	}

	retrieved, err := manager.Retrieve("pixabay")
	if err != nil {
		t.Fatalf("Failed to retrieve key: %v", err)
	}
	if retrieved.APIKey != "12345678-abcdefghijkl" {
		t.Errorf("Expected trimmed key, got %q", retrieved.APIKey)
	}
	if retrieved.LastModified.IsZero() {
		t.Error("Expected LastModified to be set")
	}
	if got := manager.APIKey("pixabay"); got != retrieved.APIKey {
		t.Errorf("APIKey mismatch: %q", got)
	}
	if got := manager.APIKey("unsplash"); got != "" {
		t.Errorf("Expected no unsplash key, got %q", got)
	}

	sanitized := Sanitize(retrieved)
	if sanitized.APIKey != "1234...ijkl" {
		t.Errorf("Unexpected masked key %q", sanitized.APIKey)
	}

	if err := manager.Delete("pixabay"); err != nil {
		t.Fatalf("Failed to delete key: %v", err)
	}
	if _, err := manager.Retrieve("pixabay"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected empty store, got %d", mockStore.Count())
	}
}

func TestManagerRejectsEmptyInput(t *testing.T) {
	manager := NewManagerWithStores(NewMockStore())
	if err := manager.Store(&Credential{APIKey: "x"}); err == nil {
		t.Error("Expected error without provider")
	}
	if err := manager.Store(&Credential{Provider: "pixabay", APIKey: "   "}); err == nil {
		t.Error("Expected error for blank key")
	}
	if err := manager.Delete("pixabay"); err == nil {
		t.Error("Expected error deleting a missing key")
	}
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = fmt.Errorf("keychain locked")
	working := NewMockStore()
	manager := NewManagerWithStores(broken, working)

	if err := manager.Store(&Credential{Provider: "unsplash", APIKey: "access-key"}); err != nil {
		t.Fatalf("Expected fallback store to accept the key: %v", err)
	}
	if !working.Exists("unsplash") {
		t.Error("Expected key in fallback store")
	}
}

func TestManagerListPrefersNewest(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()
	older.Store(&Credential{Provider: "pixabay", APIKey: "old", LastModified: time.Now().Add(-time.Hour)})
	newer.Store(&Credential{Provider: "pixabay", APIKey: "new", LastModified: time.Now()})
	newer.Store(&Credential{Provider: "unsplash", APIKey: "u", LastModified: time.Now()})

	creds, err := NewManagerWithStores(older, newer).List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(creds) != 2 {
		t.Fatalf("Expected 2 keys, got %d", len(creds))
	}
	if creds[0].Provider != "pixabay" || creds[0].APIKey != "new" {
		t.Errorf("Expected newest pixabay key first, got %+v", creds[0])
	}
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv("IMGSCRAPER_PASSPHRASE", "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	if err := store.Store(&Credential{Provider: "pixabay", APIKey: "secret-pixabay-key"}); err != nil {
		t.Fatalf("Failed to store: %v", err)
	}
	if err := store.Store(&Credential{Provider: "unsplash", APIKey: "secret-unsplash-key"}); err != nil {
		t.Fatalf("Failed to store: %v", err)
	}

	retrieved, err := store.Retrieve("pixabay")
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if retrieved.APIKey != "secret-pixabay-key" {
		t.Errorf("Key mismatch after encryption/decryption")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte("secret-pixabay-key")) {
		t.Error("File contains plaintext key")
	}

	creds, err := store.List()
	if err != nil || len(creds) != 2 {
		t.Errorf("Expected 2 keys, got %d (%v)", len(creds), err)
	}

	if err := store.Delete("pixabay"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if store.Exists("pixabay") {
		t.Error("Expected pixabay key to be gone")
	}
	if err := store.Delete("unsplash"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected file removed once empty")
	}
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv("IMGSCRAPER_PASSPHRASE", "first")
	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Store(&Credential{Provider: "pixabay", APIKey: "k"}); err != nil {
		t.Fatal(err)
	}

	t.Setenv("IMGSCRAPER_PASSPHRASE", "second")
	other, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Retrieve("pixabay"); err == nil {
		t.Error("Expected decryption to fail with another passphrase")
	}
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv("IMGSCRAPER_PASSPHRASE", "")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Store(&Credential{Provider: "unsplash", APIKey: "k"}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	if err != nil {
		t.Fatalf("Expected generated passphrase file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 passphrase file, got %v", info.Mode().Perm())
	}

	reopened, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if !reopened.Exists("unsplash") {
		t.Error("Expected key readable with the persisted passphrase")
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("IMGSCRAPER_PIXABAY_KEY", "env-key")
	t.Setenv("IMGSCRAPER_UNSPLASH_KEY", "")

	store := NewEnvironmentStore()

	cred, err := store.Retrieve("pixabay")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if cred.APIKey != "env-key" {
		t.Errorf("Key mismatch: got %s", cred.APIKey)
	}
	if store.Exists("unsplash") {
		t.Error("Expected no unsplash key")
	}

	creds, _ := store.List()
	if len(creds) != 1 {
		t.Errorf("Expected 1 key, got %d", len(creds))
	}

	if err := store.Store(&Credential{Provider: "pixabay", APIKey: "x"}); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
	if EnvVar("unsplash-page") != "IMGSCRAPER_UNSPLASH_PAGE_KEY" {
		t.Errorf("Unexpected variable name %s", EnvVar("unsplash-page"))
	}
}

func TestKeyURL(t *testing.T) {
	for _, p := range KeyedProviders {
		if KeyURL(p) == "" {
			t.Errorf("Expected a key URL for %s", p)
		}
	}
	if KeyURL("wikipedia") != "" {
		t.Error("wikipedia takes no key")
	}
}
