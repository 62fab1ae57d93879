package documents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error)
	GetDefaultTemplate(ctx context.Context, organizationID uuid.UUID, docType string) (*Template, error)
	MarkSigned(ctx context.Context, organizationID, documentID uuid.UUID, path, url string, signedAt time.Time) error
	CreateSignature(ctx context.Context, sig *Signature) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDefaultTemplate prefers the template flagged as default for the type.
func (r *gormRepository) GetDefaultTemplate(ctx context.Context, organizationID uuid.UUID, docType string) (*Template, error) {
	var tpl Template
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND type = ?", organizationID, docType).
		Order("is_default DESC").
		Limit(1).
		Take(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *gormRepository) MarkSigned(ctx context.Context, organizationID, documentID uuid.UUID, path, url string, signedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&Document{}).
		Where("id = ? AND organization_id = ?", documentID, organizationID).
		Updates(map[string]interface{}{
			"signed_file_path": path,
			"signed_file_url":  url,
			"status":           StatusSigned,
			"signed_at":        signedAt,
			"updated_at":       signedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) CreateSignature(ctx context.Context, sig *Signature) error {
	if sig.ID == uuid.Nil {
		sig.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(sig).Error
}
