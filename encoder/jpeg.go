package encoder

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// EncodeJPG encodes using ImageMagick
func EncodeJPG(ctx context.Context, in, out string, o EncodeOptions) error {
	return magickEncode(ctx, in, out, o, "jpg")
}

func magickEncode(ctx context.Context, in, out string, o EncodeOptions, format string) error {
	args := []string{in, "-auto-orient"}
	if o.Width > 0 || o.Height > 0 {
		// ">" only ever shrinks
		args = append(args, "-resize", geometry(o.Width, o.Height)+">")
	}
	if o.Quality > 0 {
		args = append(args, "-quality", fmt.Sprint(o.Quality))
	}
	args = append(args, "-strip", fmt.Sprintf("%s:%s", format, out))

	cmd := exec.CommandContext(ctx, "magick", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("magick %s: %w: %s", format, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func geometry(w, h int) string {
	switch {
	case w > 0 && h > 0:
		return fmt.Sprintf("%dx%d", w, h)
	case w > 0:
		return fmt.Sprintf("%d", w)
	default:
		return fmt.Sprintf("x%d", h)
	}
}
