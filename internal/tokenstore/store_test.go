package tokenstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

type staticSource struct {
	token *oauth2.Token
	calls int
}

func (s *staticSource) Token() (*oauth2.Token, error) {
	s.calls++
	return s.token, nil
}

func TestStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := New(path, nil)

	if store.Valid() {
		t.Error("Missing token file must not be valid")
	}

	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Save(&oauth2.Token{AccessToken: "abc", RefreshToken: "r1", Expiry: expiry}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("token file mode = %v, want 0600", info.Mode().Perm())
	}

	token, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if token.AccessToken != "abc" || token.RefreshToken != "r1" {
		t.Errorf("Load() = %+v", token)
	}
	if got, _ := store.Expiry(); !got.Equal(expiry) {
		t.Errorf("Expiry() = %v, want %v", got, expiry)
	}
	if !store.Valid() {
		t.Error("Expected stored token to be valid")
	}
}

func TestStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path, nil).Load(); err == nil {
		t.Error("Expected error for corrupt token file")
	}
}

func TestSavingSource_PersistsRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := New(path, nil)

	base := &staticSource{token: &oauth2.Token{AccessToken: "fresh"}}
	source := &savingSource{base: base, last: "stale", store: store}

	if _, err := source.Token(); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	saved, err := store.Load()
	if err != nil {
		t.Fatalf("refreshed token was not saved: %v", err)
	}
	if saved.AccessToken != "fresh" {
		t.Errorf("saved token = %q, want fresh", saved.AccessToken)
	}

	os.Remove(path)
	source.Token()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Unchanged token must not be written again")
	}
}
