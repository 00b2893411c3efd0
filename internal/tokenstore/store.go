// Package tokenstore persists OAuth2 tokens on disk and writes refreshed
// tokens back so the next run starts with a valid one.
package tokenstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

// Store reads and writes a single token file
type Store struct {
	path   string
	logger *slog.Logger
}

// New creates a store for the token file at path
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the token file location
func (s *Store) Path() string {
	return s.path
}

// Load loads a saved token from disk
func (s *Store) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	return &token, nil
}

// Save writes a token to disk with owner-only permissions
func (s *Store) Save(token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// Valid reports whether a stored token exists and can be used or refreshed
func (s *Store) Valid() bool {
	token, err := s.Load()
	if err != nil {
		return false
	}
	return token.Valid() || token.RefreshToken != ""
}

// Expiry returns the expiry time of the stored token
func (s *Store) Expiry() (time.Time, error) {
	token, err := s.Load()
	if err != nil {
		return time.Time{}, err
	}
	return token.Expiry, nil
}

// Client returns an HTTP client whose tokens refresh automatically
func (s *Store) Client(ctx context.Context, config *oauth2.Config) (*http.Client, error) {
	token, err := s.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w (run the auth command first)", err)
	}

	source := &savingSource{
		base:  config.TokenSource(ctx, token),
		last:  token.AccessToken,
		store: s,
	}

	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, source)), nil
}

type savingSource struct {
	mu    sync.Mutex
	base  oauth2.TokenSource
	last  string
	store *Store
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		s.store.logger.Info("token refreshed, saving new token", "token_file", s.store.path)
		if err := s.store.Save(token); err != nil {
			s.store.logger.Warn("failed to save refreshed token", "error", err)
		}
	}
	return token, nil
}
