// Package encoder turns downloaded featured images into JPEGs the social
// platforms accept.
package encoder

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"

	"postrelay/logger"
)

// EncodeFunc is the function signature for any encoder
type EncodeFunc func(ctx context.Context, input, output string, opts EncodeOptions) error

// EncodeOptions bound the output. Width and Height form a box the image is
// shrunk to fit; zero keeps the source size.
type EncodeOptions struct {
	Width, Height int
	Quality       int
}

// SocialImage fits the Instagram feed limits.
var SocialImage = EncodeOptions{Width: 1080, Height: 1350, Quality: 90}

var (
	mu          sync.RWMutex
	jpegEncoder EncodeFunc // nil until DetectImageMagick finds magick
)

// DetectImageMagick enables re-encoding when the magick command is on PATH.
// Without it NormalizeJPEG passes sources through unchanged.
func DetectImageMagick() bool {
	mu.Lock()
	defer mu.Unlock()
	if _, err := exec.LookPath("magick"); err != nil {
		logger.Warnf("encoder [jpg] disabled: command 'magick' not found in PATH")
		jpegEncoder = nil
		return false
	}
	jpegEncoder = EncodeJPG
	logger.Debugf("encoder [jpg] enabled (command: magick)")
	return true
}

func currentEncoder() EncodeFunc {
	mu.RLock()
	defer mu.RUnlock()
	return jpegEncoder
}

// SniffContentType reads the head of a file to detect its MIME type.
func SniffContentType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

// NormalizeJPEG writes a JPEG version of input to output. JPEG sources, and
// any image when ImageMagick is unavailable, are copied as they are.
func NormalizeJPEG(ctx context.Context, input, output string, opts EncodeOptions) error {
	contentType, err := SniffContentType(input)
	if err != nil {
		return fmt.Errorf("sniff %s: %w", input, err)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("source is %s, not an image", contentType)
	}
	if contentType == "image/jpeg" {
		return EncodeCopy(ctx, input, output, opts)
	}

	encode := currentEncoder()
	if encode == nil {
		logger.Warnf("no jpg encoder available, passing %s through unchanged", contentType)
		return EncodeCopy(ctx, input, output, opts)
	}
	return encode(ctx, input, output, opts)
}
