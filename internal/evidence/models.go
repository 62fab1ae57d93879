package evidence

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"trainhub/platform/signing-backend/pkg/security"
)

type RequestType string

const (
	RequestSignature  RequestType = "signature"
	RequestAttendance RequestType = "attendance"
	RequestProcess    RequestType = "process"
)

// Record is one append-only row of the digital evidence ledger.
type Record struct {
	ID             uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	OrganizationID uuid.UUID      `json:"organization_id" gorm:"type:uuid;not null;index"`
	RequestType    RequestType    `json:"request_type" gorm:"not null"`
	RequestID      uuid.UUID      `json:"request_id" gorm:"type:uuid;not null;index"`
	SignerEmail    string         `json:"signer_email"`
	SignatureData  string         `json:"signature_data"`
	Metadata       datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
	IntegrityHash  string         `json:"integrity_hash" gorm:"not null"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

func (Record) TableName() string { return "digital_evidence" }

// Metadata is the stored form of a signature event context.
type Metadata struct {
	security.Metadata
	SignatoryID      string `json:"signatory_id,omitempty"`
	PDFIntegrityHash string `json:"pdf_integrity_hash,omitempty"`
}

// NewRecord builds a ledger row; metadata is serialized as JSON.
func NewRecord(orgID uuid.UUID, kind RequestType, requestID uuid.UUID, signerEmail, payload string, md Metadata, integrityHash string) *Record {
	raw, _ := json.Marshal(md)
	return &Record{
		ID:             uuid.New(),
		OrganizationID: orgID,
		RequestType:    kind,
		RequestID:      requestID,
		SignerEmail:    signerEmail,
		SignatureData:  payload,
		Metadata:       datatypes.JSON(raw),
		IntegrityHash:  integrityHash,
	}
}

// DecodeMetadata returns the typed metadata of the record.
func (r *Record) DecodeMetadata() (Metadata, error) {
	var md Metadata
	if len(r.Metadata) == 0 {
		return md, nil
	}
	err := json.Unmarshal(r.Metadata, &md)
	return md, err
}
