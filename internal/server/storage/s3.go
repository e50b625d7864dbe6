// Package storage hands out time-limited URLs for file blobs kept in an
// S3-compatible bucket. File bytes never pass through the server.
package storage

import (
	"context"
	"fmt"
	"mime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) error {
		_, err := c.DeleteObject(ctx, in)
		return err
	}
)

// Presigned is a URL the caller can use directly against the blob store.
type Presigned struct {
	URL       string
	ExpiresAt time.Time
}

// BlobStore is what the services need from blob storage.
type BlobStore interface {
	PresignPut(ctx context.Context, key, mediaType string) (*Presigned, error)
	// PresignGet signs a download of key. When attachment is true the
	// response is served with a Content-Disposition naming fileName.
	PresignGet(ctx context.Context, key, fileName string, attachment bool) (*Presigned, error)
	Delete(ctx context.Context, key string) error
}

// Options configure an S3 store.
type Options struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string
	// URLValidity is how long presigned URLs stay usable.
	URLValidity time.Duration
}

type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	now     func() time.Time
}

var _ BlobStore = (*S3Store)(nil)

// NewS3Store builds a client for an S3-compatible endpoint using static
// credentials and path-style addressing (MinIO friendly).
func NewS3Store(ctx context.Context, opts Options) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = true
	})

	ttl := opts.URLValidity
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// NewStorageKey returns a fresh object key under the owner's prefix.
func NewStorageKey(ownerID string, now time.Time) string {
	return fmt.Sprintf("users/%s/%d/%02d/%02d/%s", ownerID, now.Year(), now.Month(), now.Day(), uuid.New())
}

func (s *S3Store) PresignPut(ctx context.Context, key, mediaType string) (*Presigned, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if mediaType != "" {
		in.ContentType = aws.String(mediaType)
	}

	expires := s.now().Add(s.ttl)
	req, err := presignPutObject(s.presign, ctx, in, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put %s: %w", key, err)
	}
	return &Presigned{URL: req.URL, ExpiresAt: expires}, nil
}

func (s *S3Store) PresignGet(ctx context.Context, key, fileName string, attachment bool) (*Presigned, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if fileName != "" {
		in.ResponseContentDisposition = aws.String(ContentDisposition(fileName, attachment))
	}

	expires := s.now().Add(s.ttl)
	req, err := presignGetObject(s.presign, ctx, in, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("presign get %s: %w", key, err)
	}
	return &Presigned{URL: req.URL, ExpiresAt: expires}, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := deleteObject(s.client, ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ContentDisposition renders the header value for serving fileName either
// inline or as an attachment.
func ContentDisposition(fileName string, attachment bool) string {
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	return mime.FormatMediaType(disposition, map[string]string{"filename": fileName})
}
