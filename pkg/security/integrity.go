package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// ErrMissingSecret is returned when the evidence hasher is built without a key.
var ErrMissingSecret = errors.New("security: evidence secret is empty")

// Geolocation is a client-reported position.
type Geolocation struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// Metadata is the server-derived context captured for one signature event.
// Field order is fixed so its JSON encoding is canonical.
type Metadata struct {
	IP           string       `json:"ip,omitempty"`
	UserAgent    string       `json:"user_agent,omitempty"`
	Fingerprint  string       `json:"fingerprint,omitempty"`
	TimestampUTC string       `json:"timestamp_utc"`
	Geolocation  *Geolocation `json:"geolocation,omitempty"`
}

// Hasher computes keyed integrity hashes over signature events.
type Hasher struct {
	secret []byte
}

func NewHasher(secret string) (*Hasher, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &Hasher{secret: []byte(secret)}, nil
}

// Sum returns the hex HMAC-SHA256 of the signer email, the signature payload
// and the canonical metadata.
func (h *Hasher) Sum(signerEmail, signaturePayload string, md Metadata) string {
	return ComputeIntegrityHash(signerEmail, signaturePayload, md, h.secret)
}

// ComputeIntegrityHash is deterministic for identical inputs and secret.
func ComputeIntegrityHash(signerEmail, signaturePayload string, md Metadata, secret []byte) string {
	raw, _ := json.Marshal(md)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(signerEmail))))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strings.TrimSpace(signaturePayload)))
	mac.Write([]byte{'\n'})
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}

// ContentHash returns the hex SHA-256 of b.
func ContentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
