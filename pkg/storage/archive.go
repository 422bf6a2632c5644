package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrArchiveDisabled = errors.New("report archive is disabled")

// DefaultURLExpiry is the lifetime of presigned download links.
const DefaultURLExpiry = 15 * time.Minute

// Archive stores exported reports at {prefix}/{projectID}/{reportID}.{ext}.
type Archive struct {
	client S3Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewArchive creates an archive. A nil client yields a disabled archive whose
// operations return ErrArchiveDisabled.
func NewArchive(client S3Client, bucket, prefix string, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Enabled reports whether uploads go anywhere.
func (a *Archive) Enabled() bool {
	return a != nil && a.client != nil && a.bucket != ""
}

// Key returns the object key for one exported report.
func (a *Archive) Key(projectID, reportID, ext string) string {
	name := reportID + "." + strings.TrimPrefix(ext, ".")
	if projectID == "" {
		projectID = "unassigned"
	}
	return path.Join(a.prefix, projectID, name)
}

// Put uploads body and returns its key.
func (a *Archive) Put(ctx context.Context, projectID, reportID, ext, contentType string, body io.Reader) (string, error) {
	if !a.Enabled() {
		return "", ErrArchiveDisabled
	}
	key := a.Key(projectID, reportID, ext)
	if err := a.client.Upload(ctx, a.bucket, key, contentType, body); err != nil {
		return "", err
	}
	a.logger.Info("Report archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key))
	return key, nil
}

// URL returns a presigned download link for key.
func (a *Archive) URL(ctx context.Context, key string) (string, error) {
	if !a.Enabled() {
		return "", ErrArchiveDisabled
	}
	return a.client.GetPresignedURL(ctx, a.bucket, key, DefaultURLExpiry)
}
