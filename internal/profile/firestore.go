// File: internal/profile/firestore.go
package profile

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"redsocial_backend/internal/common"
	"redsocial_backend/internal/config"
)

// FirestoreStore is the Firestore-backed profile store.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	logger     *zap.Logger
}

var _ Store = (*FirestoreStore)(nil)

// NewFirestoreStore connects to Firestore using the same service
// account credentials as the identity provider.
func NewFirestoreStore(cfg *config.Config, logger *zap.Logger) (*FirestoreStore, error) {
	if cfg.FirebaseProjectID == "" {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore store driver")
	}

	client, err := firestore.NewClient(context.Background(), cfg.FirebaseProjectID,
		option.WithCredentialsFile(cfg.FirebaseServiceAccountKeyPath))
	if err != nil {
		logger.Error("Failed to initialize Firestore client", zap.Error(err))
		return nil, fmt.Errorf("error initializing Firestore client: %w", err)
	}

	logger.Info("Firestore client initialized successfully.",
		zap.String("collection", cfg.FirestoreCollection))
	return &FirestoreStore{
		client:     client,
		collection: cfg.FirestoreCollection,
		logger:     logger.Named("FirestoreStore"),
	}, nil
}

// Close releases the underlying Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*Document, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, common.ErrNotFound.WithDetails("Profile not found for this id.")
		}
		return nil, mapFirestoreErr(err, "get")
	}
	return FromFields(id, snap.Data()), nil
}

func (s *FirestoreStore) Set(ctx context.Context, id string, doc *Document) error {
	if _, err := s.client.Collection(s.collection).Doc(id).Set(ctx, doc.Fields()); err != nil {
		return mapFirestoreErr(err, "set")
	}
	return nil
}

func (s *FirestoreStore) UpdateIntereses(ctx context.Context, id string, intereses []string) error {
	_, err := s.client.Collection(s.collection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "intereses", Value: intereses},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return common.ErrNotFound.WithDetails("Profile not found for this id.")
		}
		return mapFirestoreErr(err, "update")
	}
	return nil
}

func (s *FirestoreStore) FindByHandle(ctx context.Context, handle string) (*Document, error) {
	iter := s.client.Collection(s.collection).
		Where("nombreUsuario", "==", handle).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, common.ErrNotFound.WithDetails("No profile with this handle.")
	}
	if err != nil {
		return nil, mapFirestoreErr(err, "query")
	}
	return FromFields(snap.Ref.ID, snap.Data()), nil
}

func (s *FirestoreStore) Delete(ctx context.Context, id string) error {
	if _, err := s.client.Collection(s.collection).Doc(id).Delete(ctx); err != nil {
		return mapFirestoreErr(err, "delete")
	}
	return nil
}

func (s *FirestoreStore) ListGuestsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	iter := s.client.Collection(s.collection).
		Where("esInvitado", "==", true).
		Where("fechaRegistro", "<", cutoff).
		Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapFirestoreErr(err, "query")
		}
		ids = append(ids, snap.Ref.ID)
	}
	return ids, nil
}

// mapFirestoreErr normalizes Firestore RPC failures to store error
// kinds.
func mapFirestoreErr(err error, op string) error {
	switch status.Code(err) {
	case codes.PermissionDenied:
		return &StoreError{Kind: StorePermission, Detail: op, Err: err}
	case codes.Unavailable, codes.DeadlineExceeded:
		return &StoreError{Kind: StoreOffline, Detail: op, Err: err}
	default:
		return &StoreError{Kind: StoreUnknown, Detail: op, Err: err}
	}
}
