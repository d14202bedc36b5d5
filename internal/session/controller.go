// File: internal/session/controller.go
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"redsocial_backend/internal/common"
	"redsocial_backend/internal/config"
	"redsocial_backend/internal/identity"
	"redsocial_backend/internal/oauth"
	"redsocial_backend/internal/profile"
)

// RegistrationInput carries the fields for email/password signup.
type RegistrationInput struct {
	Email           string
	Password        string
	NombreCompleto  string
	NombreUsuario   string
	FechaNacimiento string
	Genero          string
}

// Controller owns the authentication state machine. All operations
// serialize their outcome through a single state cell guarded by an
// epoch counter: an operation only commits its result if no newer
// operation has started since, so a stale slow completion can never
// clobber a newer state.
type Controller struct {
	provider    identity.Provider
	store       profile.Store
	provisioner *profile.Provisioner
	bridge      *oauth.GitHubBridge
	cfg         *config.Config
	logger      *zap.Logger

	mu      sync.Mutex
	epoch   uint64
	state   State
	message string
	subs    map[int]chan State
	nextSub int
}

// NewController creates a session controller in the Initial state.
// Callers normally follow up with CheckAuthState to re-derive the
// session from the provider's current principal.
func NewController(
	provider identity.Provider,
	store profile.Store,
	provisioner *profile.Provisioner,
	bridge *oauth.GitHubBridge,
	cfg *config.Config,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		provider:    provider,
		store:       store,
		provisioner: provisioner,
		bridge:      bridge,
		cfg:         cfg,
		logger:      logger.Named("SessionController"),
		state:       State{Status: StatusInitial},
		subs:        make(map[int]chan State),
	}
}

// State returns the current state snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Message returns the ephemeral status/error message, if any. It is
// feedback only, never authoritative.
func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// ClearMessage clears the ephemeral message after the consumer has
// displayed it.
func (c *Controller) ClearMessage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.message = ""
}

// Subscribe registers a state listener. Every committed transition is
// pushed to the returned channel; slow consumers miss intermediate
// states rather than blocking the controller. The cancel func must be
// called to release the subscription.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 16)
	c.subs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// CheckAuthState re-derives the session from the identity provider's
// current principal: nobody signed in means Unauthenticated, otherwise
// the profile decides between Success and NeedsIntereses.
func (c *Controller) CheckAuthState(ctx context.Context) {
	principal, err := c.provider.CurrentPrincipal(ctx)
	if err != nil {
		c.logger.Error("Failed to read current principal", zap.Error(err))
		// No remote work follows, so no Loading transition either.
		e := c.bump()
		c.fail(e, nil, "Error al verificar estado de autenticación")
		return
	}
	if principal == nil {
		e := c.bump()
		c.commit(e, State{Status: StatusUnauthenticated}, "")
		return
	}

	e := c.begin(principal)
	c.rederive(ctx, e, principal, "")
}

// LoginWithEmail signs in with an email/password pair and re-derives
// the session from the profile.
func (c *Controller) LoginWithEmail(ctx context.Context, email, password string) error {
	e := c.begin(nil)

	principal, err := c.provider.SignInWithCredential(ctx, identity.PasswordCredential{
		Email:    email,
		Password: password,
	})
	if err != nil {
		c.fail(e, nil, identityMessage(err, "Error al iniciar sesión"))
		return err
	}

	c.rederive(ctx, e, principal, "¡Bienvenido de vuelta!")
	return nil
}

// LoginWithGoogle exchanges a Google ID token; a first-time principal
// gets a profile provisioned inline.
func (c *Controller) LoginWithGoogle(ctx context.Context, idToken string) error {
	e := c.begin(nil)
	c.setMessage("Verificando credenciales...")
	return c.loginWithProviderCredential(ctx, e, identity.GoogleCredential{IDToken: idToken},
		"Error al iniciar sesión con Google")
}

// LoginWithGitHub exchanges a GitHub access token; a first-time
// principal gets a profile provisioned inline.
func (c *Controller) LoginWithGitHub(ctx context.Context, accessToken string) error {
	e := c.begin(nil)
	return c.loginWithProviderCredential(ctx, e, identity.GitHubCredential{AccessToken: accessToken},
		"Error en la autenticación con GitHub")
}

// HandleGitHubCallback exchanges an authorization code for an access
// token via the bridge, then signs in with it like any other
// credential.
func (c *Controller) HandleGitHubCallback(ctx context.Context, code string) error {
	e := c.begin(nil)

	token, err := c.bridge.ExchangeCode(ctx, code)
	if err != nil {
		c.fail(e, nil, "Error en la autenticación con GitHub")
		return err
	}

	return c.loginWithProviderCredential(ctx, e, identity.GitHubCredential{AccessToken: token},
		"Error en la autenticación con GitHub")
}

// GitHubAuthURL builds the GitHub authorization URL.
func (c *Controller) GitHubAuthURL(state string) string {
	return c.bridge.AuthURL(state)
}

// RegisterWithEmail creates an identity account, provisions its
// profile, signs back out and lands in RegistrationCompleted so the
// user logs in explicitly. A failed provision after the account was
// created triggers a best-effort compensating account deletion.
func (c *Controller) RegisterWithEmail(ctx context.Context, input RegistrationInput) error {
	if err := ValidatePassword(input.Password); err != nil {
		c.failImmediate("Contraseña inválida",
			"La contraseña debe tener al menos 8 caracteres, incluir mayúsculas, minúsculas, números y caracteres especiales")
		return err
	}
	if err := ValidateHandle(input.NombreUsuario); err != nil {
		c.failImmediate("Nombre de usuario inválido",
			"El nombre de usuario debe tener al menos 3 caracteres y no contener espacios")
		return err
	}

	e := c.begin(nil)
	c.setMessage("Creando cuenta...")

	principal, err := c.provider.SignUpWithPassword(ctx, input.Email, input.Password)
	if err != nil {
		c.fail(e, nil, identityMessage(err, "Error en el registro"))
		return err
	}

	c.setMessage("Verificando disponibilidad del nombre de usuario...")
	_, _, err = c.provisioner.EnsureProfile(ctx, principal, profile.Seed{
		Handle:          input.NombreUsuario,
		NombreCompleto:  input.NombreCompleto,
		FechaNacimiento: input.FechaNacimiento,
		Genero:          input.Genero,
	})
	if err != nil {
		// The identity account was freshly created by this operation;
		// roll it back. The delete's own failure is logged, never
		// surfaced, so an orphaned account is possible and accepted.
		if delErr := c.provider.DeleteAccount(ctx, principal.ID); delErr != nil {
			c.logger.Warn("Compensating account deletion failed; identity account orphaned",
				zap.String("uid", principal.ID), zap.Error(delErr))
		}
		c.fail(e, nil, provisionMessage(err))
		return err
	}

	// Sign out so the user has to log in explicitly.
	_ = c.provider.SignOut(ctx)
	c.commit(e, State{Status: StatusRegistrationCompleted},
		"¡Registro exitoso! Por favor, inicia sesión con tu correo y contraseña.")
	c.logger.Info("Registration completed", zap.String("uid", principal.ID))
	return nil
}

// LoginAsGuest signs in anonymously and provisions a guest profile.
func (c *Controller) LoginAsGuest(ctx context.Context) error {
	e := c.begin(nil)

	principal, err := c.provider.SignInWithCredential(ctx, identity.AnonymousCredential{})
	if err != nil {
		c.fail(e, nil, identityMessage(err, "Error al iniciar como invitado"))
		return err
	}

	_, _, err = c.provisioner.EnsureProfile(ctx, principal, profile.Seed{
		Handle:         guestHandle(principal.ID),
		NombreCompleto: "Invitado",
		EsInvitado:     true,
	})
	if err != nil {
		c.fail(e, principal, provisionMessage(err))
		return err
	}

	c.commit(e, State{Status: StatusGuest, Principal: principal}, "")
	return nil
}

// SaveIntereses stores the selected interests for the authenticated
// principal and re-runs the onboarding gate.
func (c *Controller) SaveIntereses(ctx context.Context, intereses []string) error {
	if len(intereses) < c.cfg.MinIntereses {
		err := &ValidationError{Field: "intereses", Reason: "too few interests selected"}
		c.failImmediate("Selecciona al menos un interés", "Selecciona al menos un interés")
		return err
	}

	principal, err := c.provider.CurrentPrincipal(ctx)
	if err == nil && principal == nil {
		err = common.ErrUnauthorized.WithDetails("No authenticated principal.")
	}
	if err != nil {
		c.failImmediate("No hay usuario autenticado", "No hay usuario autenticado")
		return err
	}

	e := c.begin(principal)
	c.setMessage("Guardando intereses...")

	if err := c.store.UpdateIntereses(ctx, principal.ID, intereses); err != nil {
		c.fail(e, principal, "Error al guardar intereses")
		return err
	}

	c.rederive(ctx, e, principal, "¡Intereses guardados correctamente!")
	return nil
}

// ResetPassword triggers a password-reset email and returns the machine
// to Initial.
func (c *Controller) ResetPassword(ctx context.Context, email string) error {
	e := c.begin(nil)

	if err := c.provider.SendPasswordReset(ctx, email); err != nil {
		c.fail(e, nil, identityMessage(err, "Error al enviar el correo de recuperación"))
		return err
	}

	c.commit(e, State{Status: StatusInitial},
		"Se ha enviado un correo para restablecer tu contraseña")
	return nil
}

// SignOut tears the session down. It never fails the session: provider
// teardown errors are logged only. The epoch bump makes any in-flight
// operation moot, so a stale completion cannot overwrite
// Unauthenticated.
func (c *Controller) SignOut(ctx context.Context) {
	e := c.bump()

	if err := c.provider.SignOut(ctx); err != nil {
		c.logger.Warn("Provider sign-out failed", zap.Error(err))
	}

	c.commit(e, State{Status: StatusUnauthenticated}, "")
}

// loginWithProviderCredential is the shared tail of the OAuth and guest
// logins: exchange the credential, provision on first sign-in, gate.
func (c *Controller) loginWithProviderCredential(ctx context.Context, e uint64, cred identity.Credential, failMsg string) error {
	principal, err := c.provider.SignInWithCredential(ctx, cred)
	if err != nil {
		c.fail(e, nil, identityMessage(err, failMsg))
		return err
	}

	c.setMessage("Autenticación exitosa, verificando perfil...")
	doc, created, err := c.provisioner.EnsureProfile(ctx, principal, profile.Seed{})
	if err != nil {
		c.fail(e, principal, provisionMessage(err))
		return err
	}

	if created {
		c.commit(e, State{Status: StatusNeedsIntereses, Principal: principal},
			"¡Perfil creado! Configura tus intereses.")
		return nil
	}

	if profile.Gate(doc, c.cfg.MinIntereses) == profile.Complete {
		c.commit(e, State{Status: StatusSuccess, Principal: principal}, "¡Bienvenido de vuelta!")
	} else {
		c.commit(e, State{Status: StatusNeedsIntereses, Principal: principal},
			"Por favor configura tus intereses")
	}
	return nil
}

// rederive fetches the profile for the principal and commits Success or
// NeedsIntereses according to the onboarding gate. An absent document
// also lands in NeedsIntereses.
func (c *Controller) rederive(ctx context.Context, e uint64, principal *identity.Principal, successMsg string) {
	doc, err := c.store.Get(ctx, principal.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		c.logger.Error("Profile fetch failed during re-derivation",
			zap.String("uid", principal.ID), zap.Error(err))
		c.fail(e, principal, "Error al verificar estado de autenticación")
		return
	}

	if profile.Gate(doc, c.cfg.MinIntereses) == profile.Complete {
		c.commit(e, State{Status: StatusSuccess, Principal: principal}, successMsg)
	} else {
		c.commit(e, State{Status: StatusNeedsIntereses, Principal: principal},
			"Por favor configura tus intereses")
	}
}

// begin starts a new operation: it bumps the epoch (making older
// in-flight operations moot) and publishes Loading.
func (c *Controller) begin(principal *identity.Principal) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	if principal == nil {
		principal = c.state.Principal
	}
	c.setLocked(State{Status: StatusLoading, Principal: principal})
	return c.epoch
}

// bump advances the epoch without publishing Loading.
func (c *Controller) bump() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	return c.epoch
}

// commit publishes a state transition if the operation's epoch is still
// current. A superseded operation's result is dropped.
func (c *Controller) commit(e uint64, s State, message string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e != c.epoch {
		c.logger.Debug("Dropping stale state transition",
			zap.String("status", string(s.Status)),
			zap.Uint64("epoch", e),
			zap.Uint64("current", c.epoch))
		return false
	}
	c.message = message
	c.setLocked(s)
	return true
}

func (c *Controller) fail(e uint64, principal *identity.Principal, message string) {
	c.commit(e, State{Status: StatusError, Principal: principal, Message: message}, message)
}

// failImmediate handles local validation failures: no epoch was taken
// because no remote work starts, but the error still surfaces as a
// state transition.
func (c *Controller) failImmediate(stateMsg, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.message = message
	c.setLocked(State{Status: StatusError, Principal: c.state.Principal, Message: stateMsg})
}

// setMessage updates the ephemeral progress message without a state
// transition.
func (c *Controller) setMessage(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.message = message
}

// setLocked stores and publishes a state. Callers hold c.mu.
func (c *Controller) setLocked(s State) {
	c.state = s
	for _, sub := range c.subs {
		select {
		case sub <- s:
		default:
			// Slow consumer; it will catch up on the next transition.
		}
	}
}

func guestHandle(principalID string) string {
	suffix := principalID
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return "invitado_" + suffix
}

// identityMessage maps a provider error to the user-facing message.
func identityMessage(err error, fallback string) string {
	switch identity.CodeOf(err) {
	case identity.CodeEmailInUse:
		return "Este correo electrónico ya está registrado"
	case identity.CodeInvalidEmail:
		return "El formato del correo electrónico no es válido"
	case identity.CodeWeakPassword:
		return "La contraseña es demasiado débil"
	case identity.CodeInvalidCredential, identity.CodeUserNotFound:
		return "Credencial inválida. Intenta nuevamente."
	case identity.CodeNetwork:
		return "Error de red: Verifica tu conexión"
	case identity.CodeCanceled:
		return "Inicio de sesión cancelado"
	default:
		return fallback
	}
}

// provisionMessage maps a provisioning error to the user-facing
// message.
func provisionMessage(err error) string {
	switch profile.ProvisionKindOf(err) {
	case profile.ProvisionPermission:
		return "Error de permisos al crear el perfil"
	case profile.ProvisionOffline:
		return "Error de conexión: Verifica tu conexión a internet"
	default:
		return "Error al crear perfil"
	}
}
