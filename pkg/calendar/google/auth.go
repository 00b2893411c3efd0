package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"github.com/hekate/calendar-sync/internal/tokenstore"
)

// Scopes needed to read calendars and write synced events
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// TokenManager runs the Google consent flow and hands out authorized clients
type TokenManager struct {
	config *oauth2.Config
	store  *tokenstore.Store
	logger *slog.Logger
}

// NewTokenManager creates a token manager from a Google client secret file
func NewTokenManager(credentialsPath, tokenPath string, logger *slog.Logger) (*TokenManager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	return &TokenManager{
		config: config,
		store:  tokenstore.New(tokenPath, logger),
		logger: logger,
	}, nil
}

// GetAuthURL generates the OAuth2 authorization URL for initial authentication
func (tm *TokenManager) GetAuthURL(state string) string {
	// prompt=consent makes Google return a refresh token on every consent
	return tm.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// ExchangeCode exchanges an authorization code for a token and saves it
func (tm *TokenManager) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := tm.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if err := tm.store.Save(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	tm.logger.Info("successfully obtained and saved OAuth2 token", "token_file", tm.store.Path())
	return token, nil
}

// GetClient returns an HTTP client with a valid token, refreshing if necessary
func (tm *TokenManager) GetClient(ctx context.Context) (*http.Client, error) {
	return tm.store.Client(ctx, tm.config)
}

// IsTokenValid checks if a stored token exists and is valid
func (tm *TokenManager) IsTokenValid() bool {
	return tm.store.Valid()
}
