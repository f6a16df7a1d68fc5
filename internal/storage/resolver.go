// Package storage превращает непрозрачный адрес файла пресета в URL для скачивания.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNoLocation — у пресета не задан файл.
var ErrNoLocation = errors.New("asset location is empty")

// ErrSigningDisabled — адрес s3://, но подписывающий клиент не настроен.
var ErrSigningDisabled = errors.New("s3 signing is not configured")

const defaultPresignTTL = 15 * time.Minute

// Presigner — то, что нужно от s3.PresignClient.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config — параметры S3-совместимого хранилища (AWS, MinIO).
type S3Config struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// NewPresigner собирает PresignClient из статических ключей.
func NewPresigner(ctx context.Context, c S3Config) (*s3.PresignClient, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return s3.NewPresignClient(client), nil
}

// Resolver отдаёт s3://bucket/key как подписанный GET, остальные адреса как есть.
type Resolver struct {
	presigner Presigner
	ttl       time.Duration
}

// NewResolver создаёт резолвер. presigner может быть nil, тогда s3:// недоступен.
func NewResolver(p Presigner, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	return &Resolver{presigner: p, ttl: ttl}
}

// Resolve возвращает URL, на который можно перенаправить клиента.
func (r *Resolver) Resolve(ctx context.Context, location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", ErrNoLocation
	}

	bucket, key, ok := parseS3(location)
	if !ok {
		return location, nil
	}
	if r.presigner == nil {
		return "", ErrSigningDisabled
	}

	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", location, err)
	}
	return req.URL, nil
}

func parseS3(location string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(location, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
