package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/smallbiznis/fieldops/internal/config"
)

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Storage struct {
	client     objectAPI
	presign    func(ctx context.Context, key string, ttl time.Duration) (string, error)
	bucket     string
	publicBase string
	ttl        time.Duration
	now        func() time.Time
}

func NewS3(ctx context.Context, cfg config.S3Config) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	presigner := s3.NewPresignClient(client)

	return &S3Storage{
		client: client,
		presign: func(ctx context.Context, key string, ttl time.Duration) (string, error) {
			req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(cfg.Bucket),
				Key:    aws.String(key),
			}, func(o *s3.PresignOptions) {
				o.Expires = ttl
			})
			if err != nil {
				return "", err
			}
			return req.URL, nil
		},
		bucket:     cfg.Bucket,
		publicBase: cfg.PublicBaseURL,
		ttl:        cfg.PresignTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, folder, name, contentType string, body io.Reader, size int64) (Object, error) {
	if body == nil || strings.TrimSpace(name) == "" || strings.TrimSpace(contentType) == "" {
		return Object{}, ErrInvalidInput
	}

	key := ObjectKey(folder, name, s.now())
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Object{}, fmt.Errorf("put object: %w", err)
	}

	obj := Object{Key: key, ContentType: contentType, Size: size}
	if s.publicBase != "" {
		obj.URL = s.publicBase + "/" + key
	}
	return obj, nil
}

func (s *S3Storage) PresignGet(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrInvalidInput
	}
	if s.publicBase != "" {
		return s.publicBase + "/" + key, nil
	}
	return s.presign(ctx, key, s.ttl)
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
