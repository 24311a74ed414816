package gcs

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// UploadFile uploads a local file to a storage bucket under the given object name.
	UploadFile(ctx context.Context, bucket, object, filePath string) error

	// Write stores data under the given object name.
	Write(ctx context.Context, bucket, object string, data []byte, contentType string) error

	// Read returns the object bytes, or ErrNotFound.
	Read(ctx context.Context, bucket, object string) ([]byte, error)

	// Exists reports whether the object exists.
	Exists(ctx context.Context, bucket, object string) (bool, error)
}
