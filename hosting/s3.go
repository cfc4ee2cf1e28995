package hosting

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"postrelay/logger"
)

// UploadToS3WithCreds uploads to bucket/prefix/name with static keys.
// accessInfo: accessKey, secretKey, region, bucket; optional prefix,
// endpoint (S3 compatible stores) and publicBaseURL.
func UploadToS3WithCreds(ctx context.Context, accessInfo map[string]string, name, contentType string, reader io.Reader) (string, error) {
	bucket := accessInfo["bucket"]
	region := accessInfo["region"]
	if bucket == "" || region == "" {
		return "", fmt.Errorf("missing required accessInfo keys: bucket, region")
	}
	key := objectKey(accessInfo["prefix"], name)

	creds := credentials.NewStaticCredentialsProvider(accessInfo["accessKey"], accessInfo["secretKey"], "")
	opts := s3.Options{
		Region:      region,
		Credentials: creds,
	}
	if endpoint := accessInfo["endpoint"]; endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	s3Client := s3.New(opts)

	uploader := manager.NewUploader(s3Client)

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload object %s to bucket %s: %w", key, bucket, err)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", key, bucket)
	return s3PublicURL(accessInfo, key), nil
}

func s3PublicURL(accessInfo map[string]string, key string) string {
	if base := accessInfo["publicBaseURL"]; base != "" {
		return publicURL(base, key)
	}
	if endpoint := accessInfo["endpoint"]; endpoint != "" {
		return publicURL(endpoint, accessInfo["bucket"], key)
	}
	return publicURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", accessInfo["bucket"], accessInfo["region"]), key)
}
