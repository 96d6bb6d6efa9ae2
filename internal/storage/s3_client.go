package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"driftchat/config"
	drift_errors "driftchat/pkg/errors"
)

// Client presigns uploads for chat media and avatars. Clients upload
// directly to the bucket; the server never proxies file bytes.
type Client struct {
	cfg     config.S3Config
	s3      *s3.Client
	presign *s3.PresignClient
}

func NewClient(ctx context.Context, cfg config.S3Config) (*Client, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				if service == s3.ServiceID {
					return aws.Endpoint{URL: endpoint, SigningRegion: cfg.Region}, nil
				}
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			}),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return &Client{
		cfg:     cfg,
		s3:      s3Client,
		presign: s3.NewPresignClient(s3Client),
	}, nil
}

// allowedContentTypes maps accepted upload MIME prefixes to key folders.
var allowedContentTypes = map[string]string{
	"image/": "images",
	"video/": "videos",
	"audio/": "audio",
}

// ObjectKey builds a collision-free key for an upload, grouped by media
// kind and owner.
func (c *Client) ObjectKey(ownerID uuid.UUID, contentType, filename string) (string, error) {
	folder := ""
	for prefix, f := range allowedContentTypes {
		if strings.HasPrefix(contentType, prefix) {
			folder = f
			break
		}
	}
	if folder == "" {
		return "", fmt.Errorf("%w: unsupported content type %q", drift_errors.ErrValidation, contentType)
	}
	ext := path.Ext(filename)
	return fmt.Sprintf("%s/%s/%s%s", folder, ownerID, uuid.New(), ext), nil
}

// PresignPut returns a presigned PUT URL plus the headers the uploader must
// send for the signature to match.
func (c *Client) PresignPut(ctx context.Context, key, contentType string, sizeBytes int64) (string, map[string]string, error) {
	if key == "" {
		return "", nil, errors.New("object key is required")
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	if sizeBytes > 0 {
		input.ContentLength = aws.Int64(sizeBytes)
	}

	presigned, err := c.presign.PresignPutObject(ctx, input, func(po *s3.PresignOptions) {
		if c.cfg.PresignTTL > 0 {
			po.Expires = c.cfg.PresignTTL
		}
	})
	if err != nil {
		return "", nil, err
	}

	headers := map[string]string{}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	if sizeBytes > 0 {
		headers["Content-Length"] = strconv.FormatInt(sizeBytes, 10)
	}
	return presigned.URL, headers, nil
}

// FileURL returns the public URL an uploaded object will be served from.
func (c *Client) FileURL(key string) string {
	if key == "" || c.cfg.PublicBase == "" {
		return ""
	}
	return c.cfg.PublicBase + "/" + key
}

// ExpiresAt reports when a presigned URL issued now stops working.
func (c *Client) ExpiresAt() time.Time {
	ttl := c.cfg.PresignTTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return time.Now().Add(ttl)
}
