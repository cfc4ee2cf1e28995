package hosting

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"postrelay/logger"
)

// UploadToDirectServe writes the file below baseDir/folder, which this
// service exposes under publicBaseURL (normally PUBLIC_BASE_URL + /media).
func UploadToDirectServe(ctx context.Context, accessInfo map[string]string, name string, reader io.Reader) (string, error) {
	baseDir := accessInfo["baseDir"]
	folder := accessInfo["folder"]
	base := accessInfo["publicBaseURL"]
	if baseDir == "" || base == "" {
		return "", fmt.Errorf("missing required accessInfo keys: baseDir, publicBaseURL")
	}
	if filepath.Base(name) != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if folder != "" && !filepath.IsLocal(folder) {
		return "", fmt.Errorf("folder %q escapes the serve directory", folder)
	}

	fullDir := filepath.Join(baseDir, folder)
	fullPath := filepath.Join(fullDir, name)

	if err := os.MkdirAll(fullDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	// write then rename so the server never serves a partial file
	tmp, err := os.CreateTemp(fullDir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create file in %s: %w", fullDir, err)
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write to file %s: %w", fullPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	logger.Debugf("Saved file '%s' to '%s'", name, fullPath)
	return publicURL(base, folder, name), nil
}
