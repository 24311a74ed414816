package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
)

// uploadTimeout bounds a single object write.
const uploadTimeout = 2 * time.Minute

// Client implements StorageService on Google Cloud Storage. It assumes
// Application Default Credentials are configured.
type Client struct {
	client *storage.Client
}

// NewClient creates a storage client.
func NewClient(ctx context.Context) (*Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewClient: creating storage client: %w", err)
	}
	return &Client{client: client}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}

// UploadFile uploads a local file.
func (c *Client) UploadFile(ctx context.Context, bucket, object, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	if err := c.copy(ctx, bucket, object, f, "application/pdf"); err != nil {
		return fmt.Errorf("UploadFile: %w", err)
	}
	return nil
}

// Write stores data under object.
func (c *Client) Write(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	if err := c.copy(ctx, bucket, object, bytes.NewReader(data), contentType); err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	return nil
}

func (c *Client) copy(ctx context.Context, bucket, object string, r io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to %s: %w", URI(bucket, object), err)
	}
	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload of %s: %w", URI(bucket, object), err)
	}
	return nil
}

// Read downloads the object bytes.
func (c *Client) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	rc, err := c.client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("Read: %s: %w", URI(bucket, object), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Read: opening %s: %w", URI(bucket, object), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Read: reading %s: %w", URI(bucket, object), err)
	}
	return data, nil
}

// Exists reports whether the object exists.
func (c *Client) Exists(ctx context.Context, bucket, object string) (bool, error) {
	_, err := c.client.Bucket(bucket).Object(object).Attrs(ctx)
	switch {
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("Exists: %s: %w", URI(bucket, object), err)
	}
	return true, nil
}

// Fetch downloads the object named by a gs:// URI.
func Fetch(ctx context.Context, svc StorageService, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return svc.Read(ctx, bucket, object)
}
