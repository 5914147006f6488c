package snapshot

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"odyssey-archiver/core/storage"
	"odyssey-archiver/core/utils"

	"github.com/minio/minio-go/v7"
)

// Archiver uploads one gzipped JSON object per run containing every raw
// payload observed during the pass. It is an off-database audit trail; the
// run coordinator treats upload failures as non-fatal.
type Archiver struct {
	client storage.Client
	bucket string
	prefix string

	now func() time.Time
}

// New creates an Archiver writing into the given bucket under prefix.
func New(client storage.Client, bucket, prefix string) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    utils.UTCNow,
	}
}

// Upload writes the raw payloads of one run as a single
// <prefix>/<runType>/<timestamp>.json.gz object.
func (a *Archiver) Upload(ctx context.Context, runType string, raws []json.RawMessage) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", a.bucket, err)
		}
	}

	payload, err := json.Marshal(raws)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}

	objectName := fmt.Sprintf("%s/%s/%s.json.gz", a.prefix, runType, a.now().Format("20060102T150405Z"))
	_, err = a.client.PutObject(ctx, a.bucket, objectName, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "application/gzip",
	})
	if err != nil {
		return fmt.Errorf("upload snapshot %s: %w", objectName, err)
	}
	return nil
}
