package signing

import (
	"context"

	"gorm.io/gorm"

	"trainhub/platform/signing-backend/internal/documents"
	"trainhub/platform/signing-backend/internal/evidence"
)

// Store groups the repositories a submission writes through.
// Inside WithTx every repository shares one transaction.
type Store interface {
	Signing() Repository
	Documents() documents.Repository
	Evidence() evidence.Repository
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db        *gorm.DB
	signing   Repository
	documents documents.Repository
	evidence  evidence.Repository
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{
		db:        db,
		signing:   NewRepository(db),
		documents: documents.NewRepository(db),
		evidence:  evidence.NewRepository(db),
	}
}

func (s *gormStore) Signing() Repository             { return s.signing }
func (s *gormStore) Documents() documents.Repository { return s.documents }
func (s *gormStore) Evidence() evidence.Repository   { return s.evidence }

// WithTx commits when fn returns nil and rolls back otherwise.
func (s *gormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
