package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathFromPublicURL(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"public url", "https://x.supabase.co/storage/v1/object/public/documents/org/documents/d1/file.pdf", "org/documents/d1/file.pdf", true},
		{"escaped", "https://x.supabase.co/storage/v1/object/public/documents/org/a%20b.pdf", "org/a b.pdf", true},
		{"other bucket", "https://x.supabase.co/storage/v1/object/public/avatars/a.png", "", false},
		{"foreign url", "https://example.com/file.pdf", "", false},
		{"bare key", "org/documents/d1/file.pdf", "org/documents/d1/file.pdf", true},
		{"bucket prefixed key", "/documents/org/file.pdf", "org/file.pdf", true},
		{"empty", "  ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PathFromPublicURL("documents", tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPublicURL_RoundTrip(t *testing.T) {
	u := BuildPublicURL("https://x.supabase.co/", "documents", "org/p/file.pdf")
	assert.Equal(t, "https://x.supabase.co/storage/v1/object/public/documents/org/p/file.pdf", u)

	key, ok := PathFromPublicURL("documents", u)
	require.True(t, ok)
	assert.Equal(t, "org/p/file.pdf", key)
}

func TestMemoryClient(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient("https://cdn.local")

	require.NoError(t, c.Upload(ctx, "documents", "a.pdf", strings.NewReader("v1"), "application/pdf"))
	require.NoError(t, c.Upload(ctx, "documents", "a.pdf", strings.NewReader("v2"), "application/pdf"))

	rc, err := c.Download(ctx, "documents", "a.pdf")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "v2", string(b))

	require.NoError(t, c.Delete(ctx, "documents", "a.pdf"))
	_, err = c.Download(ctx, "documents", "a.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
