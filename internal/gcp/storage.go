package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

var (
	// ErrObjectNotFound is returned when a GCS object does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrObjectTooLarge is returned when an object exceeds the read limit.
	ErrObjectTooLarge = errors.New("object too large")
)

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// It reports whether this call created the object; an existing object is left untouched.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType, content string) (bool, error) {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("SKIPPING: Object already exists.", "gcsObject", objectName)
			return false, nil
		}
		slog.Error("Failed to copy content to GCS object", "gcsObject", objectName, "error", err)
		return false, fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("SKIPPING: Object already exists.", "gcsObject", objectName)
			return false, nil
		}
		slog.Error("Failed to close GCS writer", "gcsObject", objectName, "error", err)
		return false, fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return true, nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// ObjectStore reads intake objects on behalf of the services.
type ObjectStore struct {
	client *storage.Client
}

// NewObjectStore wraps a storage client.
func NewObjectStore(client *storage.Client) *ObjectStore {
	return &ObjectStore{client: client}
}

// ReadObject returns the object's bytes, refusing objects larger than limit.
func (s *ObjectStore) ReadObject(ctx context.Context, bucket, name string, limit int64) ([]byte, error) {
	reader, err := s.client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, name)
		}
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, name, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: gs://%s/%s exceeds %d bytes", ErrObjectTooLarge, bucket, name, limit)
	}
	return data, nil
}

// ObjectSize returns the size of an object, or ErrObjectNotFound.
func (s *ObjectStore) ObjectSize(ctx context.Context, bucket, name string) (int64, error) {
	attrs, err := s.client.Bucket(bucket).Object(name).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return 0, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, name)
		}
		return 0, fmt.Errorf("failed to stat gs://%s/%s: %w", bucket, name, err)
	}
	return attrs.Size, nil
}

// URI formats a gs:// URI.
func URI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}
