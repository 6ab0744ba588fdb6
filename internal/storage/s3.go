package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/RMahshie/sweepwatch/pkg/models"
)

// SnapshotExporter writes checkpoint snapshots to object storage
type SnapshotExporter interface {
	// Export uploads the snapshot and returns its object key
	Export(ctx context.Context, cp *models.Checkpoint, snap models.Snapshot) (string, error)
	// Fetch downloads and decodes an exported snapshot
	Fetch(ctx context.Context, key string) (Document, error)
}

type s3Exporter struct {
	client *s3.Client
	bucket string
	prefix string
	codec  Codec
}

// S3Config holds configuration for S3 service
type S3Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string // defaults to "snapshots"
	Codec     Codec
}

// NewS3Exporter creates a new S3 snapshot exporter
func NewS3Exporter(ctx context.Context, cfg S3Config) (SnapshotExporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "snapshots"
	}
	if cfg.Codec == (Codec{}) {
		cfg.Codec = Codec{Format: FormatJSON, Compression: CompressionNone}
	}

	region := cfg.Region
	if cfg.Endpoint != "" || region == "" {
		region = "us-east-1" // MinIO doesn't care about region
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "http://" + endpoint
		}

		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true // MinIO requires path-style URLs
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &s3Exporter{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.TrimSuffix(cfg.Prefix, "/"),
		codec:  cfg.Codec,
	}, nil
}

// ObjectKey returns the key a checkpoint is exported under
func ObjectKey(prefix string, cp *models.Checkpoint, c Codec) string {
	return fmt.Sprintf("%s/%s/%s%s", prefix, cp.CreatedAt.UTC().Format("2006/01/02"), cp.ID, c.Extension())
}

// Export encodes and uploads a snapshot
func (s *s3Exporter) Export(ctx context.Context, cp *models.Checkpoint, snap models.Snapshot) (string, error) {
	data, err := s.codec.Encode(NewDocument(cp, snap))
	if err != nil {
		return "", err
	}

	key := ObjectKey(s.prefix, cp, s.codec)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(s.codec.ContentType()),
		Metadata: map[string]string{
			"checkpoint-id": cp.ID.String(),
			"bin-count":     fmt.Sprint(snap.Len()),
			"format":        string(s.codec.Format),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	return key, nil
}

// Fetch downloads a snapshot from S3/MinIO
func (s *s3Exporter) Fetch(ctx context.Context, key string) (Document, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Document{}, fmt.Errorf("failed to download snapshot: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	return s.codec.Decode(data)
}
