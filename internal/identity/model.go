// File: internal/identity/model.go
package identity

// Principal is the authenticated identity returned by the identity
// provider. It is immutable once obtained; the session controller owns
// it for the duration of a session.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
}

// Credential is the tagged union of sign-in credential kinds. All
// variants are consumed by the single Provider.SignInWithCredential
// entry point.
type Credential interface {
	credentialKind() string
}

// PasswordCredential authenticates with an email/password pair.
type PasswordCredential struct {
	Email    string
	Password string
}

// GoogleCredential authenticates with a Google ID token.
type GoogleCredential struct {
	IDToken string
}

// GitHubCredential authenticates with a GitHub OAuth access token.
type GitHubCredential struct {
	AccessToken string
}

// AnonymousCredential authenticates as a guest.
type AnonymousCredential struct{}

func (PasswordCredential) credentialKind() string  { return "password" }
func (GoogleCredential) credentialKind() string    { return "google.com" }
func (GitHubCredential) credentialKind() string    { return "github.com" }
func (AnonymousCredential) credentialKind() string { return "anonymous" }
