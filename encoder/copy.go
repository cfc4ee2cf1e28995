package encoder

import (
	"context"
	"io"
	"os"

	"postrelay/logger"
)

// EncodeCopy copies the input file to the output path without any encoding.
// It serves sources that are already JPEG and hosts without ImageMagick.
func EncodeCopy(ctx context.Context, input, output string, opts EncodeOptions) error {
	src, err := os.Open(input)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(output)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err = io.Copy(dst, src); err != nil {
		return err
	}
	if err := dst.Sync(); err != nil {
		return err
	}

	logger.Debugf("copied original file from %s to %s", input, output)
	return nil
}
