// server/internal/s3/uploader.go
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"blooddoc-api-server/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the subset of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	Client           PutObjectAPI
	Bucket           string
	Region           string
	CloudFrontDomain string
}

func NewUploader(ctx context.Context, cfg config.S3Config) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Uploader{
		Client:           s3.NewFromConfig(sdkConfig),
		Bucket:           cfg.Bucket,
		Region:           cfg.Region,
		CloudFrontDomain: cfg.CloudFrontDomain,
	}, nil
}

// UploadFile uploads body under objectKey and returns its public URL.
func (u *Uploader) UploadFile(ctx context.Context, body io.Reader, objectKey, contentType string) (string, error) {
	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.Bucket),
		Key:         aws.String(objectKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return u.ObjectURL(objectKey), nil
}

// ArchiveJSON stores v as a JSON document.
func (u *Uploader) ArchiveJSON(ctx context.Context, objectKey string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode archive %s: %w", objectKey, err)
	}
	return u.UploadFile(ctx, bytes.NewReader(data), objectKey, "application/json")
}

// ObjectURL prefers the CloudFront domain and falls back to the regional S3 URL.
func (u *Uploader) ObjectURL(objectKey string) string {
	if u.CloudFrontDomain != "" {
		return fmt.Sprintf("https://%s/%s", u.CloudFrontDomain, objectKey)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.Bucket, u.Region, objectKey)
}
