// File: internal/identity/firebase.go
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"redsocial_backend/internal/config"
)

// DefaultToolkitEndpoint is the Identity Toolkit REST base URL used for
// credential exchanges. It is a field on FirebaseProvider so tests can
// point it at a local server.
const DefaultToolkitEndpoint = "https://identitytoolkit.googleapis.com"

// FirebaseProvider implements Provider against Firebase Authentication.
// Credential exchanges go through the Identity Toolkit REST API (the
// Admin SDK has no password sign-in); account deletion and token
// revocation use the Admin SDK.
type FirebaseProvider struct {
	authClient *firebaseauth.Client
	httpClient *http.Client
	apiKey     string
	endpoint   string
	logger     *zap.Logger

	mu      sync.Mutex
	current *Principal
}

var _ Provider = (*FirebaseProvider)(nil)

// NewFirebaseProvider initializes the Firebase Admin SDK and the REST
// client for credential exchange.
func NewFirebaseProvider(cfg *config.Config, logger *zap.Logger) (*FirebaseProvider, error) {
	if cfg.FirebaseServiceAccountKeyPath == "" {
		logger.Error("Firebase service account key path is not configured.")
		return nil, fmt.Errorf("firebase service account key path is required")
	}

	cleanPath := filepath.Clean(cfg.FirebaseServiceAccountKeyPath)
	opt := option.WithCredentialsFile(cleanPath)

	var app *firebase.App
	var err error
	if cfg.FirebaseProjectID != "" {
		conf := &firebase.Config{ProjectID: cfg.FirebaseProjectID}
		app, err = firebase.NewApp(context.Background(), conf, opt)
	} else {
		// If ProjectID is not specified in config, let SDK infer from credentials
		app, err = firebase.NewApp(context.Background(), nil, opt)
	}
	if err != nil {
		logger.Error("Failed to initialize Firebase Admin SDK app", zap.Error(err), zap.String("keyPath", cleanPath))
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	authClient, err := app.Auth(context.Background())
	if err != nil {
		logger.Error("Failed to get Firebase Auth client", zap.Error(err))
		return nil, fmt.Errorf("error getting Firebase Auth client: %w", err)
	}

	logger.Info("Firebase Admin SDK initialized successfully.")
	return &FirebaseProvider{
		authClient: authClient,
		httpClient: http.DefaultClient,
		apiKey:     cfg.FirebaseWebAPIKey,
		endpoint:   DefaultToolkitEndpoint,
		logger:     logger.Named("FirebaseProvider"),
	}, nil
}

// toolkitResponse is the subset of the Identity Toolkit account payload
// the provider cares about.
type toolkitResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
	IDToken     string `json:"idToken"`
}

func (p *FirebaseProvider) SignInWithCredential(ctx context.Context, cred Credential) (*Principal, error) {
	var (
		resp toolkitResponse
		err  error
	)

	switch c := cred.(type) {
	case PasswordCredential:
		err = p.call(ctx, "signInWithPassword", map[string]interface{}{
			"email":             c.Email,
			"password":          c.Password,
			"returnSecureToken": true,
		}, &resp)
	case GoogleCredential:
		err = p.signInWithIdp(ctx, url.Values{
			"id_token":   {c.IDToken},
			"providerId": {"google.com"},
		}, &resp)
	case GitHubCredential:
		err = p.signInWithIdp(ctx, url.Values{
			"access_token": {c.AccessToken},
			"providerId":   {"github.com"},
		}, &resp)
	case AnonymousCredential:
		err = p.call(ctx, "signUp", map[string]interface{}{
			"returnSecureToken": true,
		}, &resp)
	default:
		return nil, NewError(CodeInvalidCredential, fmt.Sprintf("unsupported credential kind %q", cred.credentialKind()), nil)
	}
	if err != nil {
		p.logger.Warn("Credential exchange failed",
			zap.String("kind", cred.credentialKind()),
			zap.Error(err))
		return nil, err
	}

	principal := principalFromToolkit(&resp)
	p.setCurrent(principal)
	p.logger.Debug("Credential exchange succeeded",
		zap.String("kind", cred.credentialKind()),
		zap.String("uid", principal.ID))
	return principal, nil
}

func (p *FirebaseProvider) SignUpWithPassword(ctx context.Context, email, password string) (*Principal, error) {
	var resp toolkitResponse
	err := p.call(ctx, "signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		p.logger.Warn("Account creation failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	principal := principalFromToolkit(&resp)
	p.setCurrent(principal)
	p.logger.Info("Identity account created", zap.String("uid", principal.ID))
	return principal, nil
}

func (p *FirebaseProvider) SendPasswordReset(ctx context.Context, email string) error {
	var resp struct {
		Email string `json:"email"`
	}
	err := p.call(ctx, "sendOobCode", map[string]interface{}{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, &resp)
	if err != nil {
		p.logger.Warn("Password reset request failed", zap.String("email", email), zap.Error(err))
		return err
	}
	p.logger.Info("Password reset email requested", zap.String("email", email))
	return nil
}

// SignOut clears the current principal. Refresh-token revocation is
// best-effort; its failure never surfaces.
func (p *FirebaseProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	current := p.current
	p.current = nil
	p.mu.Unlock()

	if current != nil {
		if err := p.authClient.RevokeRefreshTokens(ctx, current.ID); err != nil {
			p.logger.Warn("Failed to revoke refresh tokens on sign-out",
				zap.String("uid", current.ID), zap.Error(err))
		}
	}
	return nil
}

func (p *FirebaseProvider) CurrentPrincipal(_ context.Context) (*Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *FirebaseProvider) DeleteAccount(ctx context.Context, principalID string) error {
	if err := p.authClient.DeleteUser(ctx, principalID); err != nil {
		p.logger.Error("Failed to delete identity account", zap.String("uid", principalID), zap.Error(err))
		return NewError(CodeUnknown, "failed to delete identity account", err)
	}
	p.mu.Lock()
	if p.current != nil && p.current.ID == principalID {
		p.current = nil
	}
	p.mu.Unlock()
	p.logger.Info("Identity account deleted", zap.String("uid", principalID))
	return nil
}

func (p *FirebaseProvider) signInWithIdp(ctx context.Context, postBody url.Values, out *toolkitResponse) error {
	return p.call(ctx, "signInWithIdp", map[string]interface{}{
		"postBody":            postBody.Encode(),
		"requestUri":          "http://localhost",
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, out)
}

// call POSTs a JSON body to the Identity Toolkit accounts endpoint and
// decodes the response, normalizing provider error messages to typed
// identity errors.
func (p *FirebaseProvider) call(ctx context.Context, action string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return NewError(CodeUnknown, "failed to encode request", err)
	}

	u := fmt.Sprintf("%s/v1/accounts:%s?key=%s", p.endpoint, action, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return NewError(CodeUnknown, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return NewError(CodeCanceled, "request canceled", err)
		}
		return NewError(CodeNetwork, "identity provider unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewError(CodeNetwork, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(data, &errBody)
		return NewError(mapToolkitError(errBody.Error.Message), errBody.Error.Message, nil)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return NewError(CodeUnknown, "failed to decode response", err)
	}
	return nil
}

// mapToolkitError maps Identity Toolkit error messages to provider
// error codes. Messages may carry a trailing detail ("WEAK_PASSWORD :
// Password should be ...").
func mapToolkitError(message string) string {
	switch {
	case strings.HasPrefix(message, "EMAIL_EXISTS"):
		return CodeEmailInUse
	case strings.HasPrefix(message, "INVALID_EMAIL"):
		return CodeInvalidEmail
	case strings.HasPrefix(message, "WEAK_PASSWORD"):
		return CodeWeakPassword
	case strings.HasPrefix(message, "INVALID_PASSWORD"),
		strings.HasPrefix(message, "INVALID_LOGIN_CREDENTIALS"),
		strings.HasPrefix(message, "INVALID_IDP_RESPONSE"):
		return CodeInvalidCredential
	case strings.HasPrefix(message, "EMAIL_NOT_FOUND"),
		strings.HasPrefix(message, "USER_NOT_FOUND"):
		return CodeUserNotFound
	case strings.HasPrefix(message, "USER_DISABLED"):
		return CodeUserDisabled
	case strings.HasPrefix(message, "TOO_MANY_ATTEMPTS_TRY_LATER"):
		return CodeTooManyRequests
	default:
		return CodeUnknown
	}
}

func principalFromToolkit(resp *toolkitResponse) *Principal {
	return &Principal{
		ID:          resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		PhotoURL:    resp.PhotoURL,
	}
}

func (p *FirebaseProvider) setCurrent(principal *Principal) {
	p.mu.Lock()
	p.current = principal
	p.mu.Unlock()
}
