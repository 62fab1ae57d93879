package evidence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is append-only: rows are inserted and read, never changed.
type Repository interface {
	Insert(ctx context.Context, rec *Record) error
	ListByRequest(ctx context.Context, organizationID, requestID uuid.UUID) ([]Record, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Insert(ctx context.Context, rec *Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *gormRepository) ListByRequest(ctx context.Context, organizationID, requestID uuid.UUID) ([]Record, error) {
	var records []Record
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND request_id = ?", organizationID, requestID).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}
