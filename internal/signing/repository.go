package signing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// TokenColumn names the column a request token is matched against.
type TokenColumn string

const (
	ColumnAccessToken TokenColumn = "access_token"
	ColumnLegacyToken TokenColumn = "signature_token"
)

const pgUniqueViolation = "23505"

// AttendanceCompletion is the state written on an emargement request once signed.
type AttendanceCompletion struct {
	RequestID        uuid.UUID
	AttendanceID     uuid.UUID
	SignatureData    string
	SignedAt         time.Time
	Latitude         *float64
	Longitude        *float64
	Accuracy         *float64
	LocationVerified bool
	IPAddress        string
	UserAgent        string
}

// Repository reads and conditionally mutates the signing tables.
// Lookups return nil, nil when nothing matches.
type Repository interface {
	FindSignatureRequest(ctx context.Context, column TokenColumn, token string) (*SignatureRequest, error)
	FindAttendanceRequest(ctx context.Context, column TokenColumn, token string) (*AttendanceRequest, error)
	FindSignatoryByToken(ctx context.Context, token string) (*Signatory, error)
	GetProcess(ctx context.Context, id uuid.UUID) (*SigningProcess, error)
	ListSignatories(ctx context.Context, processID uuid.UUID) ([]Signatory, error)

	MarkSignatureRequestSigned(ctx context.Context, id, signatureID uuid.UUID, signedAt time.Time) error
	CreateAttendance(ctx context.Context, a *Attendance) error
	MarkAttendanceRequestSigned(ctx context.Context, c AttendanceCompletion) error
	MarkSignatorySigned(ctx context.Context, id uuid.UUID, signatureData string, signedAt time.Time) error
	AdvanceProcess(ctx context.Context, t Transition, at time.Time) error

	FindOrganizationContact(ctx context.Context, organizationID uuid.UUID) (string, error)
	FindUserEmail(ctx context.Context, id uuid.UUID) (string, error)
	ListPendingReminders(ctx context.Context, idleSince time.Time, limit int) ([]Signatory, error)
	MarkReminded(ctx context.Context, signatoryID uuid.UUID, at time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindSignatureRequest(ctx context.Context, column TokenColumn, token string) (*SignatureRequest, error) {
	var req SignatureRequest
	err := r.db.WithContext(ctx).Where(string(column)+" = ?", token).Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *gormRepository) FindAttendanceRequest(ctx context.Context, column TokenColumn, token string) (*AttendanceRequest, error) {
	var req AttendanceRequest
	err := r.db.WithContext(ctx).
		Preload("Session").
		Where(string(column)+" = ?", token).
		Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *gormRepository) FindSignatoryByToken(ctx context.Context, token string) (*Signatory, error) {
	var sig Signatory
	err := r.db.WithContext(ctx).Where("token = ?", token).Take(&sig).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

func (r *gormRepository) GetProcess(ctx context.Context, id uuid.UUID) (*SigningProcess, error) {
	var proc SigningProcess
	err := r.db.WithContext(ctx).First(&proc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &proc, nil
}

func (r *gormRepository) ListSignatories(ctx context.Context, processID uuid.UUID) ([]Signatory, error) {
	var list []Signatory
	err := r.db.WithContext(ctx).
		Where("process_id = ?", processID).
		Order("order_index ASC").
		Find(&list).Error
	return list, err
}

// MarkSignatureRequestSigned flips a pending request to signed.
// A request that is no longer pending yields ErrAlreadySigned.
func (r *gormRepository) MarkSignatureRequestSigned(ctx context.Context, id, signatureID uuid.UUID, signedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&SignatureRequest{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]interface{}{
			"status":       StatusSigned,
			"signature_id": signatureID,
			"signed_at":    signedAt,
			"updated_at":   signedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadySigned
	}
	return nil
}

func (r *gormRepository) CreateAttendance(ctx context.Context, a *Attendance) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Create(a).Error
	if isUniqueViolation(err) {
		return ErrAlreadySigned
	}
	return err
}

func (r *gormRepository) MarkAttendanceRequestSigned(ctx context.Context, c AttendanceCompletion) error {
	result := r.db.WithContext(ctx).Model(&AttendanceRequest{}).
		Where("id = ? AND status = ?", c.RequestID, StatusPending).
		Updates(map[string]interface{}{
			"status":            StatusSigned,
			"signature_data":    c.SignatureData,
			"signed_at":         c.SignedAt,
			"attendance_id":     c.AttendanceID,
			"latitude":          c.Latitude,
			"longitude":         c.Longitude,
			"location_accuracy": c.Accuracy,
			"location_verified": c.LocationVerified,
			"ip_address":        nullable(c.IPAddress),
			"user_agent":        nullable(c.UserAgent),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadySigned
	}
	return nil
}

// MarkSignatorySigned sets signed_at once; a signatory that already signed yields ErrAlreadySigned.
func (r *gormRepository) MarkSignatorySigned(ctx context.Context, id uuid.UUID, signatureData string, signedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&Signatory{}).
		Where("id = ? AND signed_at IS NULL", id).
		Updates(map[string]interface{}{
			"signed_at":      signedAt,
			"signature_data": signatureData,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadySigned
	}
	return nil
}

// AdvanceProcess applies t only if the process still sits at t.FromIndex.
func (r *gormRepository) AdvanceProcess(ctx context.Context, t Transition, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&SigningProcess{}).
		Where("id = ? AND current_index = ? AND status <> ?", t.ProcessID, t.FromIndex, processCompleted).
		Updates(map[string]interface{}{
			"status":                t.Status,
			"current_index":         t.ToIndex,
			"intermediate_pdf_path": t.IntermediatePath,
			"intermediate_pdf_url":  t.IntermediateURL,
			"updated_at":            at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// FindOrganizationContact returns the email of an admin or secretary of the organization.
func (r *gormRepository) FindOrganizationContact(ctx context.Context, organizationID uuid.UUID) (string, error) {
	var user User
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND role IN ?", organizationID, []string{"admin", "secretary"}).
		Order("role ASC").
		Limit(1).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

func (r *gormRepository) FindUserEmail(ctx context.Context, id uuid.UUID) (string, error) {
	var user User
	err := r.db.WithContext(ctx).Select("id", "email").Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

// ListPendingReminders returns the signatories whose turn it is and who have
// not been contacted since idleSince.
func (r *gormRepository) ListPendingReminders(ctx context.Context, idleSince time.Time, limit int) ([]Signatory, error) {
	var list []Signatory
	err := r.db.WithContext(ctx).
		Table("signatories AS s").
		Select("s.*").
		Joins("JOIN signing_processes p ON p.id = s.process_id").
		Where("p.status <> ? AND s.signed_at IS NULL AND s.order_index = p.current_index", processCompleted).
		Where("COALESCE(s.last_reminded_at, p.updated_at, p.created_at) < ?", idleSince).
		Order("s.created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *gormRepository) MarkReminded(ctx context.Context, signatoryID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Signatory{}).
		Where("id = ?", signatoryID).
		Update("last_reminded_at", at).Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
