package msgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var calendarScopes = []string{
	"https://graph.microsoft.com/Calendars.Read",
	"offline_access",
}

// OAuthConfig returns the device-flow configuration for a tenant and app.
func OAuthConfig(tenantID, clientID string) *oauth2.Config {
	base := "https://login.microsoftonline.com/" + tenantID + "/oauth2/v2.0/"
	return &oauth2.Config{
		ClientID: clientID,
		Scopes:   calendarScopes,
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: base + "devicecode",
			TokenURL:      base + "token",
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}
}

// TokenStore caches the Graph token as JSON in a single file, usually
// config.TokenFilePath below the application root.
type TokenStore struct {
	path string
}

// NewTokenStore returns a store for the token file at path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Path returns the token file location.
func (s *TokenStore) Path() string {
	return s.path
}

// Load returns the cached token, or nil when nothing has been cached yet.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (delete %s to sign in again): %w", s.path, err)
	}
	return &tok, nil
}

// Save replaces the cached token. The file is written next to the old one
// and renamed into place, readable by the owner only.
func (s *TokenStore) Save(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

// Authenticator obtains Graph tokens for `outlook sync`: the cached token if
// it is still valid, a refreshed one, or a new one from the device flow.
type Authenticator struct {
	Config *oauth2.Config
	Tokens *TokenStore
	// Prompt receives the device-flow sign-in instructions.
	Prompt io.Writer
}

// NewAuthenticator returns an Authenticator for the given tenant and app that
// caches tokens in tokens.
func NewAuthenticator(tenantID, clientID string, tokens *TokenStore, prompt io.Writer) *Authenticator {
	return &Authenticator{Config: OAuthConfig(tenantID, clientID), Tokens: tokens, Prompt: prompt}
}

// Token returns a usable token and caches any new one. The device flow only
// runs when no cached token can be used or refreshed.
func (a *Authenticator) Token(ctx context.Context) (*oauth2.Token, error) {
	if tok := a.cached(ctx); tok != nil {
		return tok, nil
	}

	tok, err := a.deviceLogin(ctx)
	if err != nil {
		return nil, err
	}
	a.remember(tok)
	return tok, nil
}

// Client returns a Graph client whose refreshed tokens are written back to
// the token store.
func (a *Authenticator) Client(ctx context.Context) (*Client, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}
	ts := &cachingTokenSource{
		src:    a.Config.TokenSource(ctx, tok),
		tokens: a.Tokens,
		last:   tok.AccessToken,
	}
	return NewClientWithHTTP(oauth2.NewClient(ctx, ts), graphBaseURL), nil
}

// cached returns the stored token if it is valid or can be refreshed.
func (a *Authenticator) cached(ctx context.Context) *oauth2.Token {
	tok, err := a.Tokens.Load()
	if err != nil {
		log.Warn().Err(err).Str("path", a.Tokens.Path()).Msg("ignoring cached token")
		return nil
	}
	if tok == nil {
		return nil
	}
	if tok.Valid() {
		return tok
	}
	if tok.RefreshToken == "" {
		return nil
	}

	refreshed, err := a.Config.TokenSource(ctx, tok).Token()
	if err != nil {
		log.Info().Err(err).Msg("token refresh failed, signing in again")
		return nil
	}
	a.remember(refreshed)
	return refreshed
}

func (a *Authenticator) deviceLogin(ctx context.Context) (*oauth2.Token, error) {
	resp, err := a.Config.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device auth request failed: %w", err)
	}

	fmt.Fprintln(a.Prompt)
	fmt.Fprintln(a.Prompt, "To sign in, use a web browser to open the page:")
	fmt.Fprintf(a.Prompt, "  %s\n", resp.VerificationURI)
	fmt.Fprintf(a.Prompt, "Enter the code: %s\n", resp.UserCode)
	fmt.Fprintln(a.Prompt)

	tok, err := a.Config.DeviceAccessToken(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("device authentication failed: %w", err)
	}
	return tok, nil
}

func (a *Authenticator) remember(tok *oauth2.Token) {
	if err := a.Tokens.Save(tok); err != nil {
		log.Warn().Err(err).Str("path", a.Tokens.Path()).Msg("could not cache token")
	}
}

// cachingTokenSource writes a token back to the store whenever the
// underlying source hands out a new access token.
type cachingTokenSource struct {
	src    oauth2.TokenSource
	tokens *TokenStore
	last   string
}

func (s *cachingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.tokens.Save(tok); err != nil {
			log.Warn().Err(err).Msg("could not cache refreshed token")
		}
	}
	return tok, nil
}
