// File: internal/oauth/github.go
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"redsocial_backend/internal/config"
)

// DefaultGitHubTokenURL is the fixed GitHub token endpoint. It is a
// field on GitHubBridge so tests can point it at a local server.
const DefaultGitHubTokenURL = "https://github.com/login/oauth/access_token"

// ExchangeError normalizes all token-exchange failure modes: non-2xx
// HTTP status, empty body, missing access_token field, transport
// errors.
type ExchangeError struct {
	Detail string
	Err    error
}

func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth exchange: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("oauth exchange: %s", e.Detail)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// GitHubBridge exchanges a GitHub authorization code for an access
// token. The token is then handed to the identity provider as a
// credential like any other.
type GitHubBridge struct {
	cfg        *config.Config
	httpClient *http.Client
	tokenURL   string
	logger     *zap.Logger
}

// NewGitHubBridge creates the GitHub OAuth bridge.
func NewGitHubBridge(cfg *config.Config, logger *zap.Logger) *GitHubBridge {
	return &GitHubBridge{
		cfg:        cfg,
		httpClient: http.DefaultClient,
		tokenURL:   DefaultGitHubTokenURL,
		logger:     logger.Named("GitHubBridge"),
	}
}

// AuthURL builds the GitHub authorization URL for the configured client.
func (b *GitHubBridge) AuthURL(state string) string {
	oauthCfg := &oauth2.Config{
		ClientID:    b.cfg.GitHubClientID,
		RedirectURL: b.cfg.GitHubRedirectURI,
		Scopes:      strings.Fields(b.cfg.GitHubScope),
		Endpoint:    github.Endpoint,
	}
	return oauthCfg.AuthCodeURL(state)
}

// ExchangeCode POSTs the authorization code to the token endpoint and
// extracts the access token from the JSON response.
func (b *GitHubBridge) ExchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", b.cfg.GitHubClientID)
	form.Set("client_secret", b.cfg.GitHubClientSecret)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &ExchangeError{Detail: "failed to build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		b.logger.Error("GitHub token request failed", zap.Error(err))
		return "", &ExchangeError{Detail: "token endpoint unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b.logger.Warn("GitHub token endpoint returned non-2xx status",
			zap.Int("status", resp.StatusCode))
		return "", &ExchangeError{Detail: fmt.Sprintf("token endpoint returned status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ExchangeError{Detail: "failed to read token response", Err: err}
	}
	if len(body) == 0 {
		return "", &ExchangeError{Detail: "empty token response body"}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &ExchangeError{Detail: "malformed token response", Err: err}
	}
	if payload.AccessToken == "" {
		return "", &ExchangeError{Detail: "token response missing access_token"}
	}

	b.logger.Info("GitHub code exchanged for access token")
	return payload.AccessToken, nil
}
