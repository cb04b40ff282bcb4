package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// OAuth2 endpoints for Google accounts.
const (
	authURL  = "https://accounts.google.com/o/oauth2/auth"
	tokenURL = "https://oauth2.googleapis.com/token"
)

// Credentials are the OAuth pieces a source carries in its config.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// CredentialsFromConfig pulls OAuth credentials out of a source's config map.
func CredentialsFromConfig(config map[string]string) (*Credentials, error) {
	creds := &Credentials{
		ClientID:     config["client_id"],
		ClientSecret: config["client_secret"],
		RefreshToken: config["refresh_token"],
	}
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, fmt.Errorf("google: client_id, client_secret and refresh_token are required")
	}
	return creds, nil
}

// NewTokenSource builds a self-refreshing oauth2.TokenSource from stored
// credentials. Access tokens are minted on demand from the refresh token,
// so the source config never needs a live access token.
func NewTokenSource(ctx context.Context, creds *Credentials) oauth2.TokenSource {
	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
	token := &oauth2.Token{RefreshToken: creds.RefreshToken}
	return oauth2.ReuseTokenSource(nil, cfg.TokenSource(ctx, token))
}
