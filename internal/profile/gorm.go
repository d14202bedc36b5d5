// File: internal/profile/gorm.go
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"redsocial_backend/internal/common"
)

// Record is the relational shape of a profile document. The handle
// column is indexed but deliberately not unique: handle uniqueness is
// the provisioner's invariant, not the store's.
type Record struct {
	ID              string `gorm:"type:varchar(128);primaryKey"`
	Email           string `gorm:"type:varchar(255);index"`
	NombreCompleto  string `gorm:"type:varchar(255)"`
	NombreUsuario   string `gorm:"type:varchar(100);index"`
	FechaNacimiento string `gorm:"type:varchar(32)"`
	Genero          string `gorm:"type:varchar(32)"`
	PhotoURL        string `gorm:"type:text"`
	Biografia       string `gorm:"type:text"`
	Intereses       string `gorm:"type:text"`
	FechaRegistro   time.Time
	EsInvitado      bool `gorm:"not null;default:false;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName specifies the table name for profile records.
func (Record) TableName() string {
	return "usuarios"
}

// GormStore is the relational profile store backend.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore creates a GORM-backed profile store and migrates its
// table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*Document, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Profile not found for this id.")
		}
		return nil, mapGormErr(err, "get")
	}
	return recordToDocument(&rec), nil
}

func (s *GormStore) Set(ctx context.Context, id string, doc *Document) error {
	rec, err := documentToRecord(id, doc)
	if err != nil {
		return &StoreError{Kind: StoreUnknown, Detail: "encode", Err: err}
	}
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return mapGormErr(err, "set")
	}
	return nil
}

func (s *GormStore) UpdateIntereses(ctx context.Context, id string, intereses []string) error {
	encoded, err := json.Marshal(intereses)
	if err != nil {
		return &StoreError{Kind: StoreUnknown, Detail: "encode", Err: err}
	}
	res := s.db.WithContext(ctx).Model(&Record{}).
		Where("id = ?", id).
		Update("intereses", string(encoded))
	if res.Error != nil {
		return mapGormErr(res.Error, "update")
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("Profile not found for this id.")
	}
	return nil
}

func (s *GormStore) FindByHandle(ctx context.Context, handle string) (*Document, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("nombre_usuario = ?", handle).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("No profile with this handle.")
		}
		return nil, mapGormErr(err, "query")
	}
	return recordToDocument(&rec), nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Record{}).Error; err != nil {
		return mapGormErr(err, "delete")
	}
	return nil
}

func (s *GormStore) ListGuestsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Record{}).
		Where("es_invitado = ? AND fecha_registro < ?", true, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, mapGormErr(err, "query")
	}
	return ids, nil
}

func recordToDocument(rec *Record) *Document {
	doc := &Document{
		ID:              rec.ID,
		Email:           rec.Email,
		NombreCompleto:  rec.NombreCompleto,
		NombreUsuario:   rec.NombreUsuario,
		FechaNacimiento: rec.FechaNacimiento,
		Genero:          rec.Genero,
		PhotoURL:        rec.PhotoURL,
		Biografia:       rec.Biografia,
		FechaRegistro:   rec.FechaRegistro,
		EsInvitado:      rec.EsInvitado,
	}
	if rec.Intereses != "" {
		// Tolerate a corrupted column rather than failing the read.
		_ = json.Unmarshal([]byte(rec.Intereses), &doc.Intereses)
	}
	return doc
}

func documentToRecord(id string, doc *Document) (*Record, error) {
	intereses := doc.Intereses
	if intereses == nil {
		intereses = []string{}
	}
	encoded, err := json.Marshal(intereses)
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:              id,
		Email:           doc.Email,
		NombreCompleto:  doc.NombreCompleto,
		NombreUsuario:   doc.NombreUsuario,
		FechaNacimiento: doc.FechaNacimiento,
		Genero:          doc.Genero,
		PhotoURL:        doc.PhotoURL,
		Biografia:       doc.Biografia,
		Intereses:       string(encoded),
		FechaRegistro:   doc.FechaRegistro,
		EsInvitado:      doc.EsInvitado,
	}, nil
}

// mapGormErr normalizes database failures to store error kinds.
func mapGormErr(err error, op string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "permission denied"):
		return &StoreError{Kind: StorePermission, Detail: op, Err: err}
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		errors.Is(err, context.DeadlineExceeded):
		return &StoreError{Kind: StoreOffline, Detail: op, Err: err}
	default:
		return &StoreError{Kind: StoreUnknown, Detail: op, Err: err}
	}
}
