package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default
// value. Empty values count as unset.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// An existing object is not an error.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, content string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType(objectName)

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("Object already exists. Skipping.", "object", objectName)
			return nil
		}
		slog.Error("Failed to copy content to GCS object.", "object", objectName, "error", err)
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("Object already exists. Skipping.", "object", objectName)
			return nil
		}
		slog.Error("Failed to close GCS writer.", "object", objectName, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

func contentType(objectName string) string {
	switch {
	case strings.HasSuffix(objectName, ".md"):
		return "text/markdown; charset=utf-8"
	case strings.HasSuffix(objectName, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(objectName, ".rtf"):
		return "application/rtf"
	}
	return "application/octet-stream"
}

// ArtifactStore holds rendered files in a single bucket.
type ArtifactStore struct {
	client *storage.Client
	bucket string
}

// NewArtifactStore creates an ArtifactStore for bucket.
func NewArtifactStore(ctx context.Context, bucket string) (*ArtifactStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewArtifactStore: bucket cannot be empty")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &ArtifactStore{client: client, bucket: bucket}, nil
}

// Save writes content to objectName unless it exists and returns its URL.
func (a *ArtifactStore) Save(ctx context.Context, objectName, content string) (string, error) {
	if err := SaveToGCSAtomically(ctx, a.client.Bucket(a.bucket), objectName, content); err != nil {
		return "", err
	}
	return ObjectURL(a.bucket, objectName), nil
}

// Close releases the storage client.
func (a *ArtifactStore) Close() error {
	return a.client.Close()
}

// ObjectURL returns the public HTTPS URL of a GCS object.
func ObjectURL(bucket, objectName string) string {
	return (&url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + bucket + "/" + objectName}).String()
}
