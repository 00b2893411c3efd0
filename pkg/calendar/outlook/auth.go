package outlook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/hekate/calendar-sync/internal/tokenstore"
)

// Scopes requested from Microsoft identity
var Scopes = []string{"offline_access", "Calendars.ReadWrite"}

// Credentials is the app registration stored in the credentials file
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TenantID     string `json:"tenant_id"`
	RedirectURL  string `json:"redirect_url"`
}

// LoadConfig reads an app registration and builds the OAuth2 config.
// tenantID overrides the file's tenant; "common" is used when both are empty.
func LoadConfig(credentialsPath, tenantID string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if creds.ClientID == "" {
		return nil, fmt.Errorf("credentials file has no client_id")
	}

	tenant := creds.TenantID
	if tenantID != "" {
		tenant = tenantID
	}
	if tenant == "" {
		tenant = "common"
	}

	redirect := creds.RedirectURL
	if redirect == "" {
		redirect = "http://localhost"
	}

	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirect,
		Scopes:       Scopes,
		Endpoint:     microsoft.AzureADEndpoint(tenant),
	}, nil
}

func authorizedClient(credentialsPath, tokenPath, tenantID string, logger *slog.Logger) (*http.Client, error) {
	if credentialsPath == "" || tokenPath == "" {
		return nil, fmt.Errorf("outlook provider requires credentials and token paths")
	}

	config, err := LoadConfig(credentialsPath, tenantID)
	if err != nil {
		return nil, err
	}

	client, err := tokenstore.New(tokenPath, logger).Client(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}
	return client, nil
}
