package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/hekate/calendar-sync/internal/tokenstore"
	"github.com/hekate/calendar-sync/pkg/calendar/google"
	"github.com/hekate/calendar-sync/pkg/calendar/outlook"
	"github.com/hekate/calendar-sync/pkg/config"
)

// authFlow is one provider's consent flow
type authFlow interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) error
}

type googleFlow struct {
	tm *google.TokenManager
}

func (f googleFlow) AuthURL(state string) string {
	return f.tm.GetAuthURL(state)
}

func (f googleFlow) Exchange(ctx context.Context, code string) error {
	_, err := f.tm.ExchangeCode(ctx, code)
	return err
}

type outlookFlow struct {
	config *oauth2.Config
	store  *tokenstore.Store
}

func (f outlookFlow) AuthURL(state string) string {
	return f.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (f outlookFlow) Exchange(ctx context.Context, code string) error {
	token, err := f.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := f.store.Save(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func newAuthFlow(provider, credentials, token, tenant string, logger *slog.Logger) (authFlow, error) {
	switch provider {
	case "google":
		tm, err := google.NewTokenManager(credentials, token, logger)
		if err != nil {
			return nil, err
		}
		return googleFlow{tm: tm}, nil
	case "outlook":
		cfg, err := outlook.LoadConfig(credentials, tenant)
		if err != nil {
			return nil, err
		}
		return outlookFlow{config: cfg, store: tokenstore.New(token, logger)}, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q (expected google or outlook)", provider)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Run the OAuth2 consent flow for a Google or Outlook account and save the token",
		Flags: []cli.Flag{
			debugFlag(),
			&cli.StringFlag{Name: "provider", Value: "google", Usage: "Provider to authenticate with (google or outlook)"},
			&cli.StringFlag{Name: "credentials", Required: true, Usage: "Path to the OAuth2 client credentials file"},
			&cli.StringFlag{Name: "token", Required: true, Usage: "Path the token is written to"},
			&cli.StringFlag{Name: "tenant", Usage: "Microsoft tenant ID (outlook only)"},
			&cli.StringFlag{Name: "code", Usage: "Authorization code; prompted for when omitted"},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(config.LoggingConfig{Format: "text"}, c.Bool("debug"))

			flow, err := newAuthFlow(c.String("provider"), c.String("credentials"), c.String("token"), c.String("tenant"), logger)
			if err != nil {
				return err
			}

			code := c.String("code")
			if code == "" {
				fmt.Printf("Go to the following link in your browser, authorize the app, then paste the authorization code:\n\n%s\n\n", flow.AuthURL(uuid.New().String()))
				code, err = readCode(os.Stdin)
				if err != nil {
					return err
				}
			}

			if err := flow.Exchange(c.Context, code); err != nil {
				return err
			}

			logger.Info("Authentication successful", "provider", c.String("provider"), "token_file", c.String("token"))
			return nil
		},
	}
}

func readCode(r io.Reader) (string, error) {
	fmt.Print("Enter Authorization Code: ")
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read authorization code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return "", fmt.Errorf("no authorization code entered")
	}
	return code, nil
}
