package documents

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"trainhub/platform/signing-backend/pkg/pdf"
)

type DocumentStatus string

const (
	StatusDraft   DocumentStatus = "draft"
	StatusSent    DocumentStatus = "sent"
	StatusSigned  DocumentStatus = "signed"
	StatusArchive DocumentStatus = "archived"
)

// DefaultType is the document type assumed when a document has none.
const DefaultType = "convention"

// Document is an organization document whose file may be signed.
type Document struct {
	ID             uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	OrganizationID uuid.UUID      `json:"organization_id" gorm:"type:uuid;not null;index"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	FileURL        string         `json:"file_url"`
	SignedFilePath *string        `json:"signed_file_path,omitempty"`
	SignedFileURL  *string        `json:"signed_file_url,omitempty"`
	Status         DocumentStatus `json:"status" gorm:"not null;default:draft"`
	SignedAt       *time.Time     `json:"signed_at,omitempty"`
	Metadata       datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Document) TableName() string { return "documents" }

// DocType returns the document type, defaulting to a training agreement.
func (d *Document) DocType() string {
	if d.Type == "" {
		return DefaultType
	}
	return d.Type
}

// SignZones returns the zones declared in the document metadata.
func (d *Document) SignZones() []pdf.Zone {
	return pdf.ZonesFromMetadata(d.Metadata)
}

// Template holds per-organization defaults for a document type.
type Template struct {
	ID             uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	OrganizationID uuid.UUID      `json:"organization_id" gorm:"type:uuid;not null;index"`
	Type           string         `json:"type" gorm:"not null"`
	Name           string         `json:"name"`
	IsDefault      bool           `json:"is_default" gorm:"default:false"`
	SignZones      datatypes.JSON `json:"sign_zones" gorm:"column:sign_zones;type:jsonb"`
	Metadata       datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

func (Template) TableName() string { return "document_templates" }

// Zones decodes the sign_zones column.
func (t *Template) Zones() []pdf.Zone {
	return pdf.ParseZones(json.RawMessage(t.SignZones))
}

// Signature is a handwritten signature recorded against a document.
type Signature struct {
	ID             uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	OrganizationID uuid.UUID  `json:"organization_id" gorm:"type:uuid;not null;index"`
	DocumentID     uuid.UUID  `json:"document_id" gorm:"type:uuid;not null;index"`
	SignerID       *uuid.UUID `json:"signer_id,omitempty" gorm:"type:uuid"`
	SignatureData  string     `json:"signature_data"`
	SignatureType  string     `json:"signature_type"`
	SignerName     string     `json:"signer_name"`
	SignerEmail    string     `json:"signer_email"`
	Status         string     `json:"status"`
	IsValid        bool       `json:"is_valid"`
	IPAddress      string     `json:"ip_address"`
	UserAgent      string     `json:"user_agent"`
	SignedAt       time.Time  `json:"signed_at"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Signature) TableName() string { return "document_signatures" }
