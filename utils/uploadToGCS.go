package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GetGCSClient initializes a Google Cloud Storage client.
func GetGCSClient(ctx context.Context, credentialsJSON string) (*storage.Client, error) {
	// Prefer ADC (service account / GOOGLE_APPLICATION_CREDENTIALS).
	// Explicit JSON (e.g. locally) comes from GCS_CREDENTIALS_JSON.
	if strings.TrimSpace(credentialsJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	return storage.NewClient(ctx)
}

// GCSBucket is one bucket of a storage client.
type GCSBucket struct {
	Client *storage.Client
	Name   string
}

func (b GCSBucket) Bucket() string { return b.Name }

func (b GCSBucket) Upload(ctx context.Context, objectName string, data []byte, contentType string, metadata map[string]string) error {
	return UploadBytesToGCS(ctx, b.Client, b.Name, objectName, data, contentType, metadata)
}

func (b GCSBucket) Exists(ctx context.Context, objectName string) (bool, error) {
	return ObjectExistsInGCS(ctx, b.Client, b.Name, objectName)
}

func UploadBytesToGCS(ctx context.Context, client *storage.Client, bucketName, objectName string, data []byte, contentType string, metadata map[string]string) error {
	if client == nil {
		return errors.New("gcs client is required")
	}
	if bucketName == "" {
		return errors.New("GCS_BUCKET is required")
	}

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	wc.Metadata = metadata

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %v", err)
	}
	return nil
}

// ObjectExistsInGCS checks if an object exists in Google Cloud Storage
func ObjectExistsInGCS(ctx context.Context, client *storage.Client, bucketName, objectName string) (bool, error) {
	_, err := client.Bucket(bucketName).Object(objectName).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
