package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// S3API is the subset of the S3 client used by S3Mirror.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror stores cached documents as zstd-compressed objects under
// {prefix}/{key}.zst.
type S3Mirror struct {
	client S3API
	bucket string
	prefix string
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

// Compile-time interface check.
var _ Mirror = (*S3Mirror)(nil)

// NewS3Mirror creates a mirror for bucket/prefix.
func NewS3Mirror(client S3API, bucket, prefix string) (*S3Mirror, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(12)))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &S3Mirror{client: client, bucket: bucket, prefix: prefix, enc: enc, dec: dec}, nil
}

// ObjectKey returns the S3 key for a mirror key.
func (m *S3Mirror) ObjectKey(key string) string {
	return path.Join(m.prefix, key) + ".zst"
}

// Get downloads and decompresses an object. Missing objects return (nil, nil).
func (m *S3Mirror) Get(ctx context.Context, key string) ([]byte, error) {
	objKey := m.ObjectKey(key)
	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &m.bucket,
		Key:    &objKey,
	})
	if err != nil {
		if isMissingObject(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("S3 GetObject %s: %w", objKey, err)
	}
	defer result.Body.Close()

	compressed, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", objKey, err)
	}
	data, err := m.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", objKey, err)
	}
	return data, nil
}

// isMissingObject reports a missing key. Buckets without ListBucket
// permission answer with a generic NotFound instead of NoSuchKey.
func isMissingObject(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// projectTag is the URL-encoded object tagging for cost allocation.
const projectTag = "Project=transcript-insight"

// Put compresses and uploads data.
func (m *S3Mirror) Put(ctx context.Context, key string, data []byte) error {
	objKey := m.ObjectKey(key)
	compressed := m.enc.EncodeAll(data, make([]byte, 0, len(data)/3))
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          &m.bucket,
		Key:             &objKey,
		Body:            bytes.NewReader(compressed),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("zstd"),
		Tagging:         aws.String(projectTag),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", objKey, err)
	}
	log.Debug().Str("key", objKey).Int("raw", len(data)).Int("compressed", len(compressed)).Msg("Mirrored to S3")
	return nil
}
