// Package gcs uploads the master table to a Google Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/couchcryptid/destination-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/destination-etl/internal/domain"
)

// openFunc returns a writer for one object. Closing the writer commits it.
type openFunc func(ctx context.Context, bucket, object, contentType string) io.WriteCloser

// Uploader writes a single named object, replacing the previous version.
type Uploader struct {
	client *storage.Client
	open   openFunc
	bucket string
	object string
	logger *slog.Logger
}

// NewUploader creates a storage client. Credentials come from the environment
// (GOOGLE_APPLICATION_CREDENTIALS or workload identity) unless opts say
// otherwise; STORAGE_EMULATOR_HOST is honoured by the client library.
func NewUploader(ctx context.Context, bucket, object string, logger *slog.Logger, opts ...option.ClientOption) (*Uploader, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	u := newUploader(bucket, object, logger, func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	})
	u.client = client
	return u, nil
}

func newUploader(bucket, object string, logger *slog.Logger, open openFunc) *Uploader {
	return &Uploader{open: open, bucket: bucket, object: object, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (u *Uploader) Name() string { return "gcs" }

// URI returns the gs:// location of the uploaded object.
func (u *Uploader) URI() string { return fmt.Sprintf("gs://%s/%s", u.bucket, u.object) }

// Upload streams r into the object. The object is only replaced when the
// whole stream was written.
func (u *Uploader) Upload(ctx context.Context, r io.Reader, contentType string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := u.open(ctx, u.bucket, u.object, contentType)
	n, err := io.Copy(w, r)
	if err != nil {
		// Cancelling the context before Close aborts the upload.
		cancel()
		_ = w.Close()
		return fmt.Errorf("upload %s: %w", u.URI(), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("commit %s: %w", u.URI(), err)
	}
	u.logger.Info("object uploaded", "uri", u.URI(), "bytes", n)
	return nil
}

// Publish uploads rows as a master CSV, replacing the previous object.
func (u *Uploader) Publish(ctx context.Context, rows []domain.MasterRow, runID string, generatedAt time.Time) error {
	var buf bytes.Buffer
	if err := csvfile.EncodeMaster(&buf, rows); err != nil {
		return fmt.Errorf("encode master csv: %w", err)
	}
	if err := u.Upload(ctx, &buf, "text/csv"); err != nil {
		return err
	}
	u.logger.Debug("master table uploaded", "uri", u.URI(), "run_id", runID, "generated_at", generatedAt)
	return nil
}

// Close releases the storage client.
func (u *Uploader) Close() error {
	if u.client == nil {
		return nil
	}
	return u.client.Close()
}
