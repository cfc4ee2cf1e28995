// Package hosting puts prepared media somewhere the social platforms can
// fetch it from and returns the public URL.
package hosting

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"postrelay/logger"
	"postrelay/wordpress"
)

// Backend types accepted by HostMedia.
const (
	BackendWordPress   = "wordpress"
	BackendS3          = "s3"
	BackendGCS         = "gcs"
	BackendSFTP        = "sftp"
	BackendDirectServe = "directServe"
)

// ImageName is the stable file name of the social image of a post.
func ImageName(postID int64) string {
	return fmt.Sprintf("post_social_%d.jpg", postID)
}

// ReelName is the stable file name of the rendered video of a post.
func ReelName(postID int64) string {
	return fmt.Sprintf("reel_%d.mp4", postID)
}

// HostMedia writes one file to the chosen backend and returns its public
// URL. accessInfo carries the backend settings; name is the object name.
func HostMedia(ctx context.Context, accessInfo map[string]string, backendType, name, contentType string, reader io.Reader) (string, error) {
	switch backendType {
	case BackendDirectServe:
		u, err := UploadToDirectServe(ctx, accessInfo, name, reader)
		if err != nil {
			return "", fmt.Errorf("failed to upload to direct serve: %w", err)
		}
		return u, nil
	case BackendS3:
		u, err := UploadToS3WithCreds(ctx, accessInfo, name, contentType, reader)
		if err != nil {
			return "", fmt.Errorf("failed to upload to S3: %w", err)
		}
		return u, nil
	case BackendGCS:
		u, err := UploadToGCSWithJSON(ctx, accessInfo, name, contentType, reader)
		if err != nil {
			return "", fmt.Errorf("failed to upload to GCS: %w", err)
		}
		return u, nil
	case BackendSFTP:
		u, err := UploadToSFTPWithCreds(ctx, accessInfo, name, reader)
		if err != nil {
			return "", fmt.Errorf("failed to upload to SFTP: %w", err)
		}
		return u, nil
	default:
		return "", fmt.Errorf("unknown backend type: %s", backendType)
	}
}

// publicURL joins a base URL and an object path, escaping each segment.
func publicURL(base string, elems ...string) string {
	var segs []string
	for _, e := range elems {
		for _, s := range strings.Split(e, "/") {
			if s != "" {
				segs = append(segs, url.PathEscape(s))
			}
		}
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segs, "/")
}

func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Resolver hosts media for one profile.
type Resolver struct {
	Backend    string
	AccessInfo map[string]string
	// WordPress is used when Backend is wordpress.
	WordPress *wordpress.Client
	// HTTP downloads remote sources in Rehost.
	HTTP *http.Client
}

// Resolve stores the content under name and returns its public URL. The
// same name always maps to the same URL.
func (r *Resolver) Resolve(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	var (
		u   string
		err error
	)
	if r.Backend == BackendWordPress {
		if r.WordPress == nil {
			return "", fmt.Errorf("wordpress hosting needs wordpress credentials")
		}
		u, err = r.WordPress.UploadMedia(ctx, name, contentType, body)
	} else {
		u, err = HostMedia(ctx, r.AccessInfo, r.Backend, name, contentType, body)
	}
	if err != nil {
		return "", err
	}
	logger.Infof("hosted %s via %s at %s", name, r.Backend, u)
	return u, nil
}

// Rehost downloads sourceURL and resolves it under name.
func (r *Resolver) Rehost(ctx context.Context, sourceURL, name, contentType string) (string, error) {
	body, remoteType, err := Fetch(ctx, r.HTTP, sourceURL)
	if err != nil {
		return "", err
	}
	defer body.Close()
	if contentType == "" {
		contentType = remoteType
	}
	return r.Resolve(ctx, name, contentType, body)
}

// Fetch opens a remote file for reading. The caller closes the body.
func Fetch(ctx context.Context, client *http.Client, src string) (io.ReadCloser, string, error) {
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", src, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("download %s: status %d", src, resp.StatusCode)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}
