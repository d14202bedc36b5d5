package profile

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
)

// fakeStore is an in-memory Store for provisioner tests.
type fakeStore struct {
	docs map[string]*Document

	getErr  error
	setErr  error
	findErr error

	findCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]*Document)}
}

func (f *fakeStore) Get(ctx context.Context, id string) (*Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return doc, nil
}

func (f *fakeStore) Set(ctx context.Context, id string, doc *Document) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.docs[id] = doc
	return nil
}

func (f *fakeStore) UpdateIntereses(ctx context.Context, id string, intereses []string) error {
	doc, ok := f.docs[id]
	if !ok {
		return common.ErrNotFound
	}
	doc.Intereses = intereses
	return nil
}

func (f *fakeStore) FindByHandle(ctx context.Context, handle string) (*Document, error) {
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, doc := range f.docs {
		if doc.NombreUsuario == handle {
			return doc, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	delete(f.docs, id)
	return nil
}

func (f *fakeStore) ListGuestsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	for id, doc := range f.docs {
		if doc.EsInvitado && doc.FechaRegistro.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func newTestProvisioner(store Store, probeCap int) *Provisioner {
	cfg := &config.Config{HandleProbeCap: probeCap}
	return NewProvisioner(store, cfg, zap.NewNop())
}

func TestEnsureProfile_CreatesWithSeed(t *testing.T) {
	store := newFakeStore()
	p := newTestProvisioner(store, 10)

	principal := &identity.Principal{ID: "uid-1", Email: "bob@example.com"}
	doc, created, err := p.EnsureProfile(context.Background(), principal, Seed{
		Handle:         "bob",
		NombreCompleto: "Bob Martínez",
		Genero:         "masculino",
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "uid-1", doc.ID)
	assert.Equal(t, "bob", doc.NombreUsuario)
	assert.Equal(t, "bob@example.com", doc.Email)
	assert.Equal(t, "Bob Martínez", doc.NombreCompleto)
	assert.NotNil(t, doc.Intereses)
	assert.Empty(t, doc.Intereses)
	assert.False(t, doc.EsInvitado)
	assert.False(t, doc.FechaRegistro.IsZero())
}

func TestEnsureProfile_IdempotentForExistingDocument(t *testing.T) {
	store := newFakeStore()
	existing := &Document{ID: "uid-1", NombreUsuario: "bob", Intereses: []string{"música"}}
	store.docs["uid-1"] = existing
	p := newTestProvisioner(store, 10)

	principal := &identity.Principal{ID: "uid-1", Email: "bob@example.com"}
	doc, created, err := p.EnsureProfile(context.Background(), principal, Seed{Handle: "bob"})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, existing, doc)
	// No handle probing happens for an existing document.
	assert.Zero(t, store.findCalls)
}

func TestEnsureProfile_HandleCollisionAppendsCounter(t *testing.T) {
	store := newFakeStore()
	store.docs["other"] = &Document{ID: "other", NombreUsuario: "bob"}
	p := newTestProvisioner(store, 10)

	principal := &identity.Principal{ID: "uid-1", Email: "bob@example.com"}
	doc, created, err := p.EnsureProfile(context.Background(), principal, Seed{Handle: "bob"})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "bob1", doc.NombreUsuario)
}

func TestEnsureProfile_HandleCollisionChain(t *testing.T) {
	store := newFakeStore()
	store.docs["a"] = &Document{ID: "a", NombreUsuario: "bob"}
	store.docs["b"] = &Document{ID: "b", NombreUsuario: "bob1"}
	store.docs["c"] = &Document{ID: "c", NombreUsuario: "bob2"}
	p := newTestProvisioner(store, 10)

	principal := &identity.Principal{ID: "uid-1"}
	doc, created, err := p.EnsureProfile(context.Background(), principal, Seed{Handle: "bob"})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "bob3", doc.NombreUsuario)
}

func TestEnsureProfile_ProbeCapExhausted(t *testing.T) {
	store := newFakeStore()
	store.docs["a"] = &Document{ID: "a", NombreUsuario: "bob"}
	store.docs["b"] = &Document{ID: "b", NombreUsuario: "bob1"}
	store.docs["c"] = &Document{ID: "c", NombreUsuario: "bob2"}
	p := newTestProvisioner(store, 3)

	principal := &identity.Principal{ID: "uid-1"}
	_, _, err := p.EnsureProfile(context.Background(), principal, Seed{Handle: "bob"})

	require.Error(t, err)
	assert.Equal(t, ProvisionHandleExhausted, ProvisionKindOf(err))
	assert.Equal(t, 3, store.findCalls)
}

func TestEnsureProfile_HandleDerivedFromEmailLocalPart(t *testing.T) {
	store := newFakeStore()
	p := newTestProvisioner(store, 10)

	principal := &identity.Principal{ID: "uid-1", Email: "ana.garcia@example.com"}
	doc, _, err := p.EnsureProfile(context.Background(), principal, Seed{})

	require.NoError(t, err)
	// Local part with '.' stripped.
	assert.Equal(t, "anagarcia", doc.NombreUsuario)
}

func TestEnsureProfile_HandleFallsBackToIDPrefix(t *testing.T) {
	store := newFakeStore()
	p := newTestProvisioner(store, 10)

	principal := &identity.Principal{ID: "abcdefghijklmnop"}
	doc, _, err := p.EnsureProfile(context.Background(), principal, Seed{})

	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", doc.NombreUsuario)
}

func TestEnsureProfile_StoreErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
		want     ProvisionErrorKind
	}{
		{
			name:     "permission denied",
			storeErr: &StoreError{Kind: StorePermission},
			want:     ProvisionPermission,
		},
		{
			name:     "offline",
			storeErr: &StoreError{Kind: StoreOffline},
			want:     ProvisionOffline,
		},
		{
			name:     "unclassified",
			storeErr: &StoreError{Kind: StoreUnknown},
			want:     ProvisionUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.getErr = tt.storeErr
			p := newTestProvisioner(store, 10)

			principal := &identity.Principal{ID: "uid-1"}
			_, _, err := p.EnsureProfile(context.Background(), principal, Seed{Handle: "bob"})

			require.Error(t, err)
			assert.Equal(t, tt.want, ProvisionKindOf(err))
		})
	}
}

func TestEnsureProfile_WriteFailureSurfaces(t *testing.T) {
	store := newFakeStore()
	store.setErr = &StoreError{Kind: StoreOffline}
	p := newTestProvisioner(store, 10)

	principal := &identity.Principal{ID: "uid-1", Email: "bob@example.com"}
	_, created, err := p.EnsureProfile(context.Background(), principal, Seed{Handle: "bob"})

	require.Error(t, err)
	assert.False(t, created)
	assert.Equal(t, ProvisionOffline, ProvisionKindOf(err))
}
