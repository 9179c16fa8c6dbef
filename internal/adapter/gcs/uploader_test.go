package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/destination-etl/internal/domain"
)

type fakeObject struct {
	bytes.Buffer
	bucket, object, contentType string
	closed                      bool
	closeErr                    error
	ctx                         context.Context
}

func (f *fakeObject) Close() error {
	f.closed = true
	return f.closeErr
}

func newFake(t *testing.T, obj *fakeObject) *Uploader {
	t.Helper()
	return newUploader("trips", "kayak_master.csv", slog.New(slog.NewTextHandler(io.Discard, nil)),
		func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
			obj.ctx = ctx
			obj.bucket, obj.object, obj.contentType = bucket, object, contentType
			return obj
		})
}

func TestUpload(t *testing.T) {
	obj := &fakeObject{}
	u := newFake(t, obj)

	require.NoError(t, u.Upload(context.Background(), strings.NewReader("city,hotel_name\n"), "text/csv"))

	assert.Equal(t, "trips", obj.bucket)
	assert.Equal(t, "kayak_master.csv", obj.object)
	assert.Equal(t, "text/csv", obj.contentType)
	assert.Equal(t, "city,hotel_name\n", obj.String())
	assert.True(t, obj.closed)
	assert.Equal(t, "gs://trips/kayak_master.csv", u.URI())
	assert.Equal(t, "gcs", u.Name())
	assert.NoError(t, u.Close())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestUpload_ReadErrorAbortsUpload(t *testing.T) {
	obj := &fakeObject{}
	u := newFake(t, obj)

	err := u.Upload(context.Background(), failingReader{}, "text/csv")

	require.ErrorContains(t, err, "disk gone")
	require.ErrorContains(t, err, "gs://trips/kayak_master.csv")
	assert.ErrorIs(t, obj.ctx.Err(), context.Canceled, "upload context is cancelled before close")
}

func TestUpload_CommitError(t *testing.T) {
	obj := &fakeObject{closeErr: errors.New("permission denied")}
	u := newFake(t, obj)

	err := u.Upload(context.Background(), strings.NewReader("x"), "text/csv")
	require.ErrorContains(t, err, "commit gs://trips/kayak_master.csv")
	require.ErrorContains(t, err, "permission denied")
}

func TestPublish_EncodesMasterCSV(t *testing.T) {
	obj := &fakeObject{}
	u := newFake(t, obj)
	rows := []domain.MasterRow{{Listing: domain.HotelListing{City: "Gotham", HotelName: "Wayne", Score: "N/A"}}}

	require.NoError(t, u.Publish(context.Background(), rows, "run-1", time.Now()))

	assert.Equal(t, "text/csv", obj.contentType)
	lines := strings.Split(strings.TrimSpace(obj.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "city_id,city,hotel_name"))
	assert.True(t, strings.HasPrefix(lines[1], ",Gotham,Wayne"))
}
