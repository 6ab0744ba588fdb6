package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

// setupMinio starts a MinIO container and returns its endpoint and a fresh bucket
func setupMinio(t *testing.T) (endpoint, bucket string) {
	t.Helper()
	ctx := context.Background()

	container, err := tcminio.Run(ctx,
		"minio/minio:RELEASE.2024-10-29T16-01-48Z",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	endpoint, err = container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	bucket = "sweepwatch-test-" + uuid.New().String()[:8]
	require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	return endpoint, bucket
}

func TestS3Exporter_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	endpoint, bucket := setupMinio(t)
	cp, snap := testCheckpoint()

	exporter, err := NewS3Exporter(ctx, S3Config{
		Bucket:    bucket,
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Codec:     Codec{Format: FormatCBOR, Compression: CompressionZstd},
	})
	require.NoError(t, err)

	key, err := exporter.Export(ctx, cp, snap)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/2026/03/14/"+cp.ID.String()+".cbor.zst", key)

	doc, err := exporter.Fetch(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, cp.ID, doc.CheckpointID)
	assert.Equal(t, snap, doc.Snapshot())

	_, err = exporter.Fetch(ctx, "snapshots/missing.cbor.zst")
	assert.Error(t, err)
}

func TestNewS3Exporter_RequiresBucket(t *testing.T) {
	_, err := NewS3Exporter(context.Background(), S3Config{})
	assert.EqualError(t, err, "S3_BUCKET is required")
}
