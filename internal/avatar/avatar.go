// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package avatar stores profile images in S3-compatible object storage.
package avatar

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Error codes.
const (
	CodeInvalidType  = "AVATAR_INVALID_TYPE"
	CodeTooLarge     = "AVATAR_TOO_LARGE"
	CodeUploadFailed = "AVATAR_UPLOAD_FAILED"
)

// MaxSize is the largest accepted image in bytes.
const MaxSize = 5 << 20

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Config selects the bucket and credentials. Endpoint is set for S3-compatible
// services such as MinIO and switches to path-style addressing.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Enabled reports whether enough is configured to upload.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.Region != ""
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads avatars and returns their public URL.
type Store struct {
	client  putObjectAPI
	bucket  string
	baseURL string
	newKey  func(userID, ext string) string
}

// NewS3Store builds a Store from cfg. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg Config) (*Store, error) {
	if !cfg.Enabled() {
		return nil, oops.Code("AVATAR_CONFIG_INVALID").Errorf("s3 bucket and region are required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, oops.Code("AVATAR_CONFIG_INVALID").With("region", cfg.Region).Wrap(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewStore(client, cfg.Bucket, publicBaseURL(cfg)), nil
}

// NewStore creates a Store over an existing client. baseURL prefixes object
// keys in the returned URLs.
func NewStore(client putObjectAPI, bucket, baseURL string) *Store {
	return &Store{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		newKey:  randomKey,
	}
}

func publicBaseURL(cfg Config) string {
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return "https://" + cfg.Bucket + ".s3." + cfg.Region + ".amazonaws.com"
}

func randomKey(userID, ext string) string {
	return "avatars/" + userID + "/" + uuid.NewString() + ext
}

// Upload stores body as the avatar of userID and returns its URL. size is the
// declared length of body.
func (s *Store) Upload(ctx context.Context, userID, contentType string, body io.Reader, size int64) (string, error) {
	ext, ok := extensions[strings.ToLower(contentType)]
	if !ok {
		return "", oops.Code(CodeInvalidType).
			With("content_type", contentType).
			Errorf("avatar must be a png, jpeg, gif or webp image")
	}
	if size > MaxSize {
		return "", oops.Code(CodeTooLarge).
			With("size", size).
			Errorf("avatar exceeds %d bytes", MaxSize)
	}

	key := s.newKey(userID, ext)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", oops.Code(CodeUploadFailed).
			With("bucket", s.bucket).
			With("key", key).
			Wrap(err)
	}
	return s.baseURL + "/" + escapeKey(key), nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
