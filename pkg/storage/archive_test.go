package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockS3Client struct {
	mock.Mock
}

func (m *mockS3Client) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	data, _ := io.ReadAll(body)
	args := m.Called(ctx, bucket, key, contentType, string(data))
	return args.Error(0)
}

func (m *mockS3Client) GetPresignedURL(ctx context.Context, bucket, key string, expiration time.Duration) (string, error) {
	args := m.Called(ctx, bucket, key, expiration)
	return args.String(0), args.Error(1)
}

func TestArchiveKey(t *testing.T) {
	a := NewArchive(nil, "bucket", "/audits/", zap.NewNop())
	assert.Equal(t, "audits/proj-1/rep-9.pdf", a.Key("proj-1", "rep-9", "pdf"))
	assert.Equal(t, "audits/unassigned/rep-9.csv", a.Key("", "rep-9", ".csv"))

	bare := NewArchive(nil, "bucket", "", nil)
	assert.Equal(t, "proj-1/rep-9.xlsx", bare.Key("proj-1", "rep-9", "xlsx"))
}

func TestArchivePut(t *testing.T) {
	client := new(mockS3Client)
	ctx := context.Background()
	client.On("Upload", ctx, "bucket", "audits/proj-1/rep-9.csv", "text/csv", "a,b\n").Return(nil)

	a := NewArchive(client, "bucket", "audits", zap.NewNop())
	key, err := a.Put(ctx, "proj-1", "rep-9", "csv", "text/csv", strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, "audits/proj-1/rep-9.csv", key)
	client.AssertExpectations(t)
}

func TestArchivePutError(t *testing.T) {
	client := new(mockS3Client)
	client.On("Upload", mock.Anything, "bucket", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("access denied"))

	a := NewArchive(client, "bucket", "audits", zap.NewNop())
	_, err := a.Put(context.Background(), "p", "r", "pdf", "application/pdf", strings.NewReader("x"))
	assert.EqualError(t, err, "access denied")
}

func TestArchiveDisabled(t *testing.T) {
	a := NewArchive(nil, "", "", nil)
	assert.False(t, a.Enabled())

	_, err := a.Put(context.Background(), "p", "r", "pdf", "application/pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrArchiveDisabled)
	_, err = a.URL(context.Background(), "k")
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestArchiveURL(t *testing.T) {
	client := new(mockS3Client)
	client.On("GetPresignedURL", mock.Anything, "bucket", "k", DefaultURLExpiry).Return("https://example.test/k", nil)

	url, err := NewArchive(client, "bucket", "", nil).URL(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/k", url)
}
