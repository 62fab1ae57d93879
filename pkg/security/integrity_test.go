package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMetadata() Metadata {
	acc := 12.5
	return Metadata{
		IP:           "203.0.113.7",
		UserAgent:    "Mozilla/5.0",
		Fingerprint:  "fp-1",
		TimestampUTC: "2024-03-01T09:30:00.000Z",
		Geolocation:  &Geolocation{Lat: 48.85, Lng: 2.35, Accuracy: &acc},
	}
}

func TestNewHasher_RequiresSecret(t *testing.T) {
	_, err := NewHasher("   ")
	assert.ErrorIs(t, err, ErrMissingSecret)

	h, err := NewHasher("s3cret")
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestComputeIntegrityHash_Deterministic(t *testing.T) {
	h, err := NewHasher("s3cret")
	require.NoError(t, err)

	a := h.Sum("Alice@Example.com", "data:image/png;base64,AAAA", sampleMetadata())
	b := h.Sum("alice@example.com ", " data:image/png;base64,AAAA", sampleMetadata())

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestComputeIntegrityHash_SensitiveToInputs(t *testing.T) {
	md := sampleMetadata()
	base := ComputeIntegrityHash("alice@example.com", "payload", md, []byte("k1"))

	assert.NotEqual(t, base, ComputeIntegrityHash("alice@example.com", "payload", md, []byte("k2")))
	assert.NotEqual(t, base, ComputeIntegrityHash("bob@example.com", "payload", md, []byte("k1")))
	assert.NotEqual(t, base, ComputeIntegrityHash("alice@example.com", "other", md, []byte("k1")))

	md.IP = "198.51.100.1"
	assert.NotEqual(t, base, ComputeIntegrityHash("alice@example.com", "payload", md, []byte("k1")))
}

func TestContentHash(t *testing.T) {
	// sha256("abc")
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		ContentHash([]byte("abc")))
}
