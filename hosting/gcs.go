package hosting

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"postrelay/logger"
)

// UploadToGCSWithJSON uploads to a Google Cloud Storage bucket using a
// service account key. accessInfo: credentialsJSON (raw or base64), bucket;
// optional prefix and publicBaseURL.
func UploadToGCSWithJSON(ctx context.Context, accessInfo map[string]string, name, contentType string, reader io.Reader) (string, error) {
	bucketName := accessInfo["bucket"]
	if bucketName == "" {
		return "", fmt.Errorf("missing required accessInfo key: bucket")
	}
	objectName := objectKey(accessInfo["prefix"], name)

	credentialsJSON, err := decodeCredentials(accessInfo["credentialsJSON"])
	if err != nil {
		return "", err
	}
	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return "", fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err = io.Copy(wc, reader); err != nil {
		wc.Close()
		return "", fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("Writer.Close: %w", err)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", objectName, bucketName)
	if base := accessInfo["publicBaseURL"]; base != "" {
		return publicURL(base, objectName), nil
	}
	return publicURL("https://storage.googleapis.com", bucketName, objectName), nil
}

// decodeCredentials accepts a service account key as raw JSON or base64.
func decodeCredentials(raw string) ([]byte, error) {
	if raw == "" {
		return nil, fmt.Errorf("missing required accessInfo key: credentialsJSON")
	}
	if raw[0] == '{' {
		return []byte(raw), nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		if b, err := enc.DecodeString(raw); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("credentialsJSON is neither JSON nor base64")
}
