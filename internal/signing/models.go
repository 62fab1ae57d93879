package signing

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	StatusPending RequestStatus = "pending"
	StatusSigned  RequestStatus = "signed"
)

// Session statuses of an attendance session.
const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)

// SignatureRequest is a single-recipient document signature request.
type SignatureRequest struct {
	ID             uuid.UUID     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	OrganizationID uuid.UUID     `json:"organization_id" gorm:"type:uuid;not null;index"`
	DocumentID     uuid.UUID     `json:"document_id" gorm:"type:uuid;not null"`
	RequesterID    *uuid.UUID    `json:"requester_id,omitempty" gorm:"type:uuid"`
	RecipientID    *uuid.UUID    `json:"recipient_id,omitempty" gorm:"type:uuid"`
	RecipientEmail string        `json:"recipient_email"`
	RecipientName  string        `json:"recipient_name"`
	Status         RequestStatus `json:"status" gorm:"not null;default:pending"`
	AccessToken    *string       `json:"-" gorm:"uniqueIndex"`
	SignatureToken *string       `json:"-" gorm:"uniqueIndex"`
	TokenExpiresAt *time.Time    `json:"token_expires_at,omitempty"`
	ExpiresAt      *time.Time    `json:"expires_at,omitempty"`
	SignatureID    *uuid.UUID    `json:"signature_id,omitempty" gorm:"type:uuid"`
	SignedAt       *time.Time    `json:"signed_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

func (SignatureRequest) TableName() string { return "signature_requests" }

// AttendanceSession is the training slot an emargement belongs to.
type AttendanceSession struct {
	ID                 uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	OrganizationID     uuid.UUID  `json:"organization_id" gorm:"type:uuid;not null;index"`
	SessionID          *uuid.UUID `json:"session_id,omitempty" gorm:"type:uuid"`
	Title              string     `json:"title"`
	Date               *time.Time `json:"date,omitempty" gorm:"type:date"`
	RequireGeolocation bool       `json:"require_geolocation"`
	Latitude           *float64   `json:"latitude,omitempty"`
	Longitude          *float64   `json:"longitude,omitempty"`
	RadiusMeters       *float64   `json:"allowed_radius_meters,omitempty" gorm:"column:allowed_radius_meters"`
	Status             string     `json:"status" gorm:"not null;default:open"`
	ClosesAt           *time.Time `json:"closes_at,omitempty"`
}

func (AttendanceSession) TableName() string { return "electronic_attendance_sessions" }

// AttendanceRequest is an emargement request sent to one student.
type AttendanceRequest struct {
	ID                  uuid.UUID          `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	OrganizationID      uuid.UUID          `json:"organization_id" gorm:"type:uuid;not null;index"`
	AttendanceSessionID uuid.UUID          `json:"attendance_session_id" gorm:"type:uuid;not null"`
	Session             *AttendanceSession `json:"session,omitempty" gorm:"foreignKey:AttendanceSessionID"`
	StudentID           uuid.UUID          `json:"student_id" gorm:"type:uuid;not null"`
	StudentEmail        string             `json:"student_email"`
	StudentName         string             `json:"student_name"`
	Status              RequestStatus      `json:"status" gorm:"not null;default:pending"`
	AccessToken         *string            `json:"-" gorm:"uniqueIndex"`
	SignatureToken      *string            `json:"-" gorm:"uniqueIndex"`
	TokenExpiresAt      *time.Time         `json:"token_expires_at,omitempty"`
	SignatureData       *string            `json:"-"`
	SignedAt            *time.Time         `json:"signed_at,omitempty"`
	AttendanceID        *uuid.UUID         `json:"attendance_id,omitempty" gorm:"type:uuid"`
	Latitude            *float64           `json:"latitude,omitempty"`
	Longitude           *float64           `json:"longitude,omitempty"`
	LocationAccuracy    *float64           `json:"location_accuracy,omitempty"`
	LocationVerified    bool               `json:"location_verified"`
	IPAddress           *string            `json:"-"`
	UserAgent           *string            `json:"-"`
}

func (AttendanceRequest) TableName() string { return "electronic_attendance_requests" }

// Attendance is the presence record created on a successful emargement.
type Attendance struct {
	ID               uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	OrganizationID   uuid.UUID  `json:"organization_id" gorm:"type:uuid;not null;index"`
	StudentID        uuid.UUID  `json:"student_id" gorm:"type:uuid;not null"`
	SessionID        *uuid.UUID `json:"session_id,omitempty" gorm:"type:uuid"`
	Date             time.Time  `json:"date" gorm:"type:date"`
	Status           string     `json:"status"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	LocationAccuracy *float64   `json:"location_accuracy,omitempty"`
	CreatedAt        time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Attendance) TableName() string { return "attendance" }

// SigningProcess is an ordered multi-party signature workflow over one document.
type SigningProcess struct {
	ID                  uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	OrganizationID      uuid.UUID `json:"organization_id" gorm:"type:uuid;not null;index"`
	DocumentID          uuid.UUID `json:"document_id" gorm:"type:uuid;not null"`
	Title               string    `json:"title"`
	Status              string    `json:"status" gorm:"not null;default:pending"`
	CurrentIndex        int       `json:"current_index" gorm:"not null;default:0"`
	IntermediatePDFPath *string   `json:"intermediate_pdf_path,omitempty"`
	IntermediatePDFURL  *string   `json:"intermediate_pdf_url,omitempty"`
	CreatedAt           time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (SigningProcess) TableName() string { return "signing_processes" }

// Signatory is one participant of a SigningProcess.
type Signatory struct {
	ID             uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ProcessID      uuid.UUID  `json:"process_id" gorm:"type:uuid;not null;index"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Role           string     `json:"role"`
	OrderIndex     int        `json:"order_index"`
	Token          string     `json:"-" gorm:"uniqueIndex"`
	SignedAt       *time.Time `json:"signed_at,omitempty"`
	SignatureData  *string    `json:"-"`
	LastRemindedAt *time.Time `json:"last_reminded_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Signatory) TableName() string { return "signatories" }

// User is read to find notification contacts.
type User struct {
	ID             uuid.UUID `gorm:"primaryKey;type:uuid"`
	OrganizationID uuid.UUID `gorm:"type:uuid"`
	Email          string
	Role           string
}

func (User) TableName() string { return "users" }
