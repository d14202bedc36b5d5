package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"redsocial_backend/internal/common"
	"redsocial_backend/internal/config"
	"redsocial_backend/internal/identity"
	"redsocial_backend/internal/oauth"
	"redsocial_backend/internal/profile"
)

// fakeProvider is an in-memory identity.Provider for controller tests.
type fakeProvider struct {
	current *identity.Principal

	signInErr  error
	signUpErr  error
	resetErr   error
	deleteErr  error
	currentErr error

	signInPrincipal *identity.Principal
	deletedIDs      []string
	signOutCalls    int
	resetEmails     []string
}

func (f *fakeProvider) SignInWithCredential(ctx context.Context, cred identity.Credential) (*identity.Principal, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	p := f.signInPrincipal
	if p == nil {
		p = &identity.Principal{ID: "uid-1", Email: "bob@example.com"}
	}
	f.current = p
	return p, nil
}

func (f *fakeProvider) SignUpWithPassword(ctx context.Context, email, password string) (*identity.Principal, error) {
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	p := &identity.Principal{ID: "uid-new", Email: email}
	f.current = p
	return p, nil
}

func (f *fakeProvider) SendPasswordReset(ctx context.Context, email string) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resetEmails = append(f.resetEmails, email)
	return nil
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	f.signOutCalls++
	f.current = nil
	return nil
}

func (f *fakeProvider) CurrentPrincipal(ctx context.Context) (*identity.Principal, error) {
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	return f.current, nil
}

func (f *fakeProvider) DeleteAccount(ctx context.Context, principalID string) error {
	f.deletedIDs = append(f.deletedIDs, principalID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.current = nil
	return nil
}

// fakeDocStore is an in-memory profile.Store for controller tests.
type fakeDocStore struct {
	docs map[string]*profile.Document

	getErr    error
	setErr    error
	updateErr error
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: make(map[string]*profile.Document)}
}

func (f *fakeDocStore) Get(ctx context.Context, id string) (*profile.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocStore) Set(ctx context.Context, id string, doc *profile.Document) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.docs[id] = doc
	return nil
}

func (f *fakeDocStore) UpdateIntereses(ctx context.Context, id string, intereses []string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return common.ErrNotFound
	}
	doc.Intereses = intereses
	return nil
}

func (f *fakeDocStore) FindByHandle(ctx context.Context, handle string) (*profile.Document, error) {
	for _, doc := range f.docs {
		if doc.NombreUsuario == handle {
			return doc, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeDocStore) Delete(ctx context.Context, id string) error {
	delete(f.docs, id)
	return nil
}

func (f *fakeDocStore) ListGuestsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	return nil, nil
}

func newTestController(provider *fakeProvider, store *fakeDocStore) *Controller {
	cfg := &config.Config{MinIntereses: 1, HandleProbeCap: 10}
	logger := zap.NewNop()
	provisioner := profile.NewProvisioner(store, cfg, logger)
	return NewController(provider, store, provisioner, nil, cfg, logger)
}

func newTestControllerWithBridge(provider *fakeProvider, store *fakeDocStore) *Controller {
	cfg := &config.Config{
		MinIntereses:       1,
		HandleProbeCap:     10,
		GitHubClientID:     "client-id",
		GitHubClientSecret: "client-secret",
	}
	logger := zap.NewNop()
	provisioner := profile.NewProvisioner(store, cfg, logger)
	bridge := oauth.NewGitHubBridge(cfg, logger)
	return NewController(provider, store, provisioner, bridge, cfg, logger)
}

func TestCheckAuthState(t *testing.T) {
	t.Run("no current principal lands in Unauthenticated", func(t *testing.T) {
		c := newTestController(&fakeProvider{}, newFakeDocStore())

		c.CheckAuthState(context.Background())

		assert.Equal(t, StatusUnauthenticated, c.State().Status)
		assert.Empty(t, c.Message())
	})

	t.Run("provider failure lands in Error without a Loading flash", func(t *testing.T) {
		provider := &fakeProvider{currentErr: identity.NewError(identity.CodeNetwork, "offline", nil)}
		c := newTestController(provider, newFakeDocStore())
		ch, cancel := c.Subscribe()
		defer cancel()

		c.CheckAuthState(context.Background())

		assert.Equal(t, StatusError, c.State().Status)
		select {
		case s := <-ch:
			assert.Equal(t, StatusError, s.Status)
		case <-time.After(time.Second):
			t.Fatal("expected a state transition on the subscription channel")
		}
		// Nothing else was published; the failed check is a single
		// transition, not Loading then Error.
		select {
		case s := <-ch:
			t.Fatalf("unexpected extra transition: %s", s.Status)
		default:
		}
	})

	t.Run("persisted principal with complete profile lands in Success", func(t *testing.T) {
		provider := &fakeProvider{current: &identity.Principal{ID: "uid-1"}}
		store := newFakeDocStore()
		store.docs["uid-1"] = &profile.Document{ID: "uid-1", Intereses: []string{"música"}}
		c := newTestController(provider, store)

		c.CheckAuthState(context.Background())

		state := c.State()
		assert.Equal(t, StatusSuccess, state.Status)
		require.NotNil(t, state.Principal)
		assert.Equal(t, "uid-1", state.Principal.ID)
	})

	t.Run("persisted principal without intereses lands in NeedsIntereses", func(t *testing.T) {
		provider := &fakeProvider{current: &identity.Principal{ID: "uid-1"}}
		store := newFakeDocStore()
		store.docs["uid-1"] = &profile.Document{ID: "uid-1", Intereses: []string{}}
		c := newTestController(provider, store)

		c.CheckAuthState(context.Background())

		assert.Equal(t, StatusNeedsIntereses, c.State().Status)
	})
}

func TestLoginWithEmail(t *testing.T) {
	t.Run("complete profile lands in Success with welcome message", func(t *testing.T) {
		provider := &fakeProvider{}
		store := newFakeDocStore()
		store.docs["uid-1"] = &profile.Document{ID: "uid-1", Intereses: []string{"cine"}}
		c := newTestController(provider, store)

		err := c.LoginWithEmail(context.Background(), "bob@example.com", "Abcdef1!")

		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, c.State().Status)
		assert.Equal(t, "¡Bienvenido de vuelta!", c.Message())
	})

	t.Run("missing profile lands in NeedsIntereses without provisioning", func(t *testing.T) {
		provider := &fakeProvider{}
		store := newFakeDocStore()
		c := newTestController(provider, store)

		err := c.LoginWithEmail(context.Background(), "bob@example.com", "Abcdef1!")

		require.NoError(t, err)
		assert.Equal(t, StatusNeedsIntereses, c.State().Status)
		// Password login never creates a profile document.
		assert.Empty(t, store.docs)
	})

	t.Run("invalid credential lands in Error with Spanish message", func(t *testing.T) {
		provider := &fakeProvider{signInErr: identity.NewError(identity.CodeInvalidCredential, "bad password", nil)}
		c := newTestController(provider, newFakeDocStore())

		err := c.LoginWithEmail(context.Background(), "bob@example.com", "wrong")

		require.Error(t, err)
		assert.Equal(t, StatusError, c.State().Status)
		assert.Equal(t, "Credencial inválida. Intenta nuevamente.", c.Message())
	})
}

func TestLoginWithGoogle(t *testing.T) {
	t.Run("first sign-in provisions and lands in NeedsIntereses", func(t *testing.T) {
		provider := &fakeProvider{signInPrincipal: &identity.Principal{
			ID: "guid-1", Email: "ana@example.com", DisplayName: "Ana García",
		}}
		store := newFakeDocStore()
		c := newTestController(provider, store)

		err := c.LoginWithGoogle(context.Background(), "google-id-token")

		require.NoError(t, err)
		assert.Equal(t, StatusNeedsIntereses, c.State().Status)
		require.Contains(t, store.docs, "guid-1")
		assert.Equal(t, "ana", store.docs["guid-1"].NombreUsuario)
		assert.Equal(t, "Ana García", store.docs["guid-1"].NombreCompleto)
	})

	t.Run("returning sign-in with complete profile lands in Success", func(t *testing.T) {
		provider := &fakeProvider{signInPrincipal: &identity.Principal{ID: "guid-1"}}
		store := newFakeDocStore()
		store.docs["guid-1"] = &profile.Document{ID: "guid-1", NombreUsuario: "ana", Intereses: []string{"viajes"}}
		c := newTestController(provider, store)

		err := c.LoginWithGoogle(context.Background(), "google-id-token")

		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, c.State().Status)
	})
}

func TestLoginWithGitHub(t *testing.T) {
	t.Run("first sign-in provisions and lands in NeedsIntereses", func(t *testing.T) {
		provider := &fakeProvider{signInPrincipal: &identity.Principal{ID: "ghuid-1", Email: "bob@example.com"}}
		store := newFakeDocStore()
		c := newTestController(provider, store)

		err := c.LoginWithGitHub(context.Background(), "gho_abc")

		require.NoError(t, err)
		assert.Equal(t, StatusNeedsIntereses, c.State().Status)
		assert.Contains(t, store.docs, "ghuid-1")
	})

	t.Run("rejected token lands in Error, never Success", func(t *testing.T) {
		provider := &fakeProvider{signInErr: identity.NewError(identity.CodeInvalidCredential, "bad token", nil)}
		c := newTestController(provider, newFakeDocStore())

		err := c.LoginWithGitHub(context.Background(), "gho_bad")

		require.Error(t, err)
		assert.Equal(t, StatusError, c.State().Status)
	})
}

func TestHandleGitHubCallback(t *testing.T) {
	t.Run("exchange failure lands in Error, never Success", func(t *testing.T) {
		provider := &fakeProvider{}
		c := newTestControllerWithBridge(provider, newFakeDocStore())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := c.HandleGitHubCallback(ctx, "some-code")

		require.Error(t, err)
		var exchErr *oauth.ExchangeError
		assert.ErrorAs(t, err, &exchErr)
		assert.Equal(t, StatusError, c.State().Status)
		assert.Equal(t, "Error en la autenticación con GitHub", c.Message())
		// The exchange never completed, so no credential was signed in.
		assert.Nil(t, provider.current)
	})
}

func TestRegisterWithEmail(t *testing.T) {
	input := RegistrationInput{
		Email:          "bob@example.com",
		Password:       "Abcdef1!",
		NombreCompleto: "Bob Martínez",
		NombreUsuario:  "bob",
	}

	t.Run("success signs out and lands in RegistrationCompleted", func(t *testing.T) {
		provider := &fakeProvider{}
		store := newFakeDocStore()
		c := newTestController(provider, store)

		err := c.RegisterWithEmail(context.Background(), input)

		require.NoError(t, err)
		assert.Equal(t, StatusRegistrationCompleted, c.State().Status)
		assert.Equal(t, "¡Registro exitoso! Por favor, inicia sesión con tu correo y contraseña.", c.Message())
		assert.Equal(t, 1, provider.signOutCalls)
		require.Contains(t, store.docs, "uid-new")
		assert.Equal(t, "bob", store.docs["uid-new"].NombreUsuario)
	})

	t.Run("weak password fails before any remote call", func(t *testing.T) {
		provider := &fakeProvider{}
		c := newTestController(provider, newFakeDocStore())

		err := c.RegisterWithEmail(context.Background(), RegistrationInput{
			Email:         "bob@example.com",
			Password:      "abc",
			NombreUsuario: "bob",
		})

		require.Error(t, err)
		assert.Equal(t, StatusError, c.State().Status)
		assert.Nil(t, provider.current)
	})

	t.Run("handle with space fails before any remote call", func(t *testing.T) {
		provider := &fakeProvider{}
		c := newTestController(provider, newFakeDocStore())

		err := c.RegisterWithEmail(context.Background(), RegistrationInput{
			Email:         "bob@example.com",
			Password:      "Abcdef1!",
			NombreUsuario: "bob smith",
		})

		require.Error(t, err)
		assert.Equal(t, StatusError, c.State().Status)
		assert.Nil(t, provider.current)
	})

	t.Run("email in use lands in Error with Spanish message", func(t *testing.T) {
		provider := &fakeProvider{signUpErr: identity.NewError(identity.CodeEmailInUse, "exists", nil)}
		c := newTestController(provider, newFakeDocStore())

		err := c.RegisterWithEmail(context.Background(), input)

		require.Error(t, err)
		assert.Equal(t, StatusError, c.State().Status)
		assert.Equal(t, "Este correo electrónico ya está registrado", c.Message())
	})

	t.Run("provision failure compensates with account deletion", func(t *testing.T) {
		provider := &fakeProvider{}
		store := newFakeDocStore()
		store.setErr = &profile.StoreError{Kind: profile.StoreOffline}
		c := newTestController(provider, store)

		err := c.RegisterWithEmail(context.Background(), input)

		require.Error(t, err)
		assert.Equal(t, StatusError, c.State().Status)
		assert.Equal(t, []string{"uid-new"}, provider.deletedIDs)
	})

	t.Run("compensating deletion failure is swallowed", func(t *testing.T) {
		provider := &fakeProvider{deleteErr: identity.NewError(identity.CodeNetwork, "offline", nil)}
		store := newFakeDocStore()
		store.setErr = &profile.StoreError{Kind: profile.StoreOffline}
		c := newTestController(provider, store)

		err := c.RegisterWithEmail(context.Background(), input)

		// The provision error surfaces, not the deletion error.
		require.Error(t, err)
		assert.Equal(t, profile.ProvisionOffline, profile.ProvisionKindOf(err))
		assert.Equal(t, StatusError, c.State().Status)
	})
}

func TestLoginAsGuest(t *testing.T) {
	provider := &fakeProvider{signInPrincipal: &identity.Principal{ID: "anon-uid-123"}}
	store := newFakeDocStore()
	c := newTestController(provider, store)

	err := c.LoginAsGuest(context.Background())

	require.NoError(t, err)
	state := c.State()
	assert.Equal(t, StatusGuest, state.Status)
	require.NotNil(t, state.Principal)

	doc := store.docs["anon-uid-123"]
	require.NotNil(t, doc)
	assert.Equal(t, "invitado_anon-u", doc.NombreUsuario)
	assert.Equal(t, "Invitado", doc.NombreCompleto)
	assert.True(t, doc.EsInvitado)
}

func TestSaveIntereses(t *testing.T) {
	t.Run("saves and lands in Success", func(t *testing.T) {
		provider := &fakeProvider{current: &identity.Principal{ID: "uid-1"}}
		store := newFakeDocStore()
		store.docs["uid-1"] = &profile.Document{ID: "uid-1", Intereses: []string{}}
		c := newTestController(provider, store)

		err := c.SaveIntereses(context.Background(), []string{"música"})

		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, c.State().Status)
		assert.Equal(t, []string{"música"}, store.docs["uid-1"].Intereses)
		assert.Equal(t, "¡Intereses guardados correctamente!", c.Message())
	})

	t.Run("empty selection is rejected locally", func(t *testing.T) {
		provider := &fakeProvider{current: &identity.Principal{ID: "uid-1"}}
		store := newFakeDocStore()
		store.docs["uid-1"] = &profile.Document{ID: "uid-1"}
		c := newTestController(provider, store)

		err := c.SaveIntereses(context.Background(), []string{})

		require.Error(t, err)
		var valErr *ValidationError
		assert.ErrorAs(t, err, &valErr)
		assert.Equal(t, StatusError, c.State().Status)
		assert.Empty(t, store.docs["uid-1"].Intereses)
	})

	t.Run("no authenticated principal is rejected", func(t *testing.T) {
		c := newTestController(&fakeProvider{}, newFakeDocStore())

		err := c.SaveIntereses(context.Background(), []string{"música"})

		require.Error(t, err)
		assert.Equal(t, StatusError, c.State().Status)
	})

	t.Run("store failure lands in Error", func(t *testing.T) {
		provider := &fakeProvider{current: &identity.Principal{ID: "uid-1"}}
		store := newFakeDocStore()
		store.docs["uid-1"] = &profile.Document{ID: "uid-1"}
		store.updateErr = &profile.StoreError{Kind: profile.StoreOffline}
		c := newTestController(provider, store)

		err := c.SaveIntereses(context.Background(), []string{"música"})

		require.Error(t, err)
		assert.Equal(t, StatusError, c.State().Status)
		assert.Equal(t, "Error al guardar intereses", c.Message())
	})
}

func TestResetPassword(t *testing.T) {
	provider := &fakeProvider{}
	c := newTestController(provider, newFakeDocStore())

	err := c.ResetPassword(context.Background(), "bob@example.com")

	require.NoError(t, err)
	assert.Equal(t, StatusInitial, c.State().Status)
	assert.Equal(t, "Se ha enviado un correo para restablecer tu contraseña", c.Message())
	assert.Equal(t, []string{"bob@example.com"}, provider.resetEmails)
}

func TestSignOut(t *testing.T) {
	provider := &fakeProvider{current: &identity.Principal{ID: "uid-1"}}
	store := newFakeDocStore()
	store.docs["uid-1"] = &profile.Document{ID: "uid-1", Intereses: []string{"cine"}}
	c := newTestController(provider, store)
	c.CheckAuthState(context.Background())
	require.Equal(t, StatusSuccess, c.State().Status)

	c.SignOut(context.Background())

	assert.Equal(t, StatusUnauthenticated, c.State().Status)
	assert.Nil(t, c.State().Principal)
	assert.Empty(t, c.Message())
	assert.Equal(t, 1, provider.signOutCalls)
}

func TestStaleOperationCannotCommit(t *testing.T) {
	c := newTestController(&fakeProvider{}, newFakeDocStore())

	stale := c.begin(nil)
	current := c.begin(nil)

	assert.False(t, c.commit(stale, State{Status: StatusSuccess}, "stale"))
	assert.Equal(t, StatusLoading, c.State().Status)

	assert.True(t, c.commit(current, State{Status: StatusUnauthenticated}, ""))
	assert.Equal(t, StatusUnauthenticated, c.State().Status)
}

func TestSignOutSupersedesInFlightLogin(t *testing.T) {
	// A login epoch taken before SignOut must not be able to commit
	// after it.
	c := newTestController(&fakeProvider{}, newFakeDocStore())

	loginEpoch := c.begin(nil)
	c.SignOut(context.Background())
	require.Equal(t, StatusUnauthenticated, c.State().Status)

	committed := c.commit(loginEpoch, State{Status: StatusSuccess, Principal: &identity.Principal{ID: "uid-1"}}, "late")
	assert.False(t, committed)
	assert.Equal(t, StatusUnauthenticated, c.State().Status)
	assert.Empty(t, c.Message())
}

func TestRegisterThenLoginThenOnboardFlow(t *testing.T) {
	provider := &fakeProvider{}
	store := newFakeDocStore()
	c := newTestController(provider, store)

	err := c.RegisterWithEmail(context.Background(), RegistrationInput{
		Email:          "bob@example.com",
		Password:       "Abcdef1!",
		NombreCompleto: "Bob Martínez",
		NombreUsuario:  "bob",
	})
	require.NoError(t, err)
	require.Equal(t, StatusRegistrationCompleted, c.State().Status)

	// The fresh profile has no interests yet, so login gates on them.
	provider.signInPrincipal = &identity.Principal{ID: "uid-new", Email: "bob@example.com"}
	err = c.LoginWithEmail(context.Background(), "bob@example.com", "Abcdef1!")
	require.NoError(t, err)
	require.Equal(t, StatusNeedsIntereses, c.State().Status)

	err = c.SaveIntereses(context.Background(), []string{"música"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, c.State().Status)
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	c := newTestController(&fakeProvider{}, newFakeDocStore())
	ch, cancel := c.Subscribe()
	defer cancel()

	c.CheckAuthState(context.Background())

	select {
	case s := <-ch:
		assert.Equal(t, StatusUnauthenticated, s.Status)
	case <-time.After(time.Second):
		t.Fatal("expected a state transition on the subscription channel")
	}
}

func TestClearMessage(t *testing.T) {
	provider := &fakeProvider{signInErr: identity.NewError(identity.CodeNetwork, "offline", nil)}
	c := newTestController(provider, newFakeDocStore())

	_ = c.LoginWithEmail(context.Background(), "bob@example.com", "Abcdef1!")
	require.Equal(t, "Error de red: Verifica tu conexión", c.Message())

	c.ClearMessage()
	assert.Empty(t, c.Message())
	// Clearing the message leaves the state untouched.
	assert.Equal(t, StatusError, c.State().Status)
}
