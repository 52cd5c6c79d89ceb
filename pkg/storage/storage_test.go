package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	require.NoError(t, c.Upload(ctx, "docs", "certificates/LA-1.pdf", strings.NewReader("%PDF-1.3"), "application/pdf"))
	assert.Equal(t, 1, c.Len())

	rc, err := c.Download(ctx, "docs", "certificates/LA-1.pdf")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF-1.3", string(data))

	ct, ok := c.ContentType("docs", "certificates/LA-1.pdf")
	assert.True(t, ok)
	assert.Equal(t, "application/pdf", ct)

	_, err = c.Download(ctx, "other", "certificates/LA-1.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	u, err := c.GetPresignedURL(ctx, "docs", "a b.pdf", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "memory://docs/a%20b.pdf", u)

	require.NoError(t, c.Delete(ctx, "docs", "certificates/LA-1.pdf"))
	assert.Zero(t, c.Len())
}

func TestNewS3Client_StaticCredentials(t *testing.T) {
	c, err := NewS3Client(context.Background(), S3Options{
		Region:       "ap-southeast-1",
		Endpoint:     "http://localhost:9000",
		AccessKey:    "minio",
		SecretKey:    "minio-secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)

	u, err := c.GetPresignedURL(context.Background(), "docs", "certificates/LA-1.pdf", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://localhost:9000/docs/certificates/LA-1.pdf?"), u)
}
