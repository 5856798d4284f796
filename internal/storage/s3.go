package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string
}

// S3 stores objects in any S3-compatible bucket.
type S3 struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func NewS3(cfg S3Config) (*S3, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	if endpoint == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 storage requires endpoint and bucket")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &S3{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: s3BaseURL(cfg, endpoint),
	}, nil
}

func s3BaseURL(cfg S3Config, endpoint string) string {
	if base := strings.TrimSpace(cfg.PublicBaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.Bucket)
}

func (s *S3) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string, overwrite bool) error {
	cleaned, err := cleanObjectPath(objectPath)
	if err != nil {
		return err
	}
	if !overwrite {
		_, err := s.client.StatObject(ctx, s.bucket, cleaned, minio.StatObjectOptions{})
		if err == nil {
			return ErrObjectExists
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return err
		}
	}

	opts := minio.PutObjectOptions{ContentType: contentType}
	if size <= 0 {
		size = -1
	}
	_, err = s.client.PutObject(ctx, s.bucket, cleaned, r, size, opts)
	return err
}

func (s *S3) PublicURL(objectPath string) string {
	return joinURL(s.baseURL, objectPath)
}

func (s *S3) PathFromURL(url string) (string, bool) {
	return stripURLBase(s.baseURL, url)
}

func (s *S3) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    strings.TrimLeft(prefix, "/"),
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, info.Err
		}
		objects = append(objects, Object{Path: info.Key, Size: info.Size, ModTime: info.LastModified})
	}
	return objects, nil
}

func (s *S3) Delete(ctx context.Context, objectPath string) error {
	cleaned, err := cleanObjectPath(objectPath)
	if err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, cleaned, minio.RemoveObjectOptions{})
}
