package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Scotty108/Cascadian-sub010/internal/domain"
)

// uploadPartSize is the multipart part size. Large batch runs can produce
// archives past the single-PutObject comfort zone, so uploads always go
// through the multipart manager.
const uploadPartSize int64 = 5 * 1024 * 1024

// Archiver implements domain.ResultArchiver by serializing a batch run's
// results to JSONL and uploading the file to the archive bucket.
//
// Key layout: <prefix>/YYYY-MM-DD/<runID>.jsonl, partitioned by run date.
type Archiver struct {
	client *Client
	prefix string
	now    func() time.Time
}

// NewArchiver creates an Archiver writing under the given key prefix.
// An empty prefix defaults to "results".
func NewArchiver(c *Client, prefix string) *Archiver {
	if prefix == "" {
		prefix = "results"
	}
	return &Archiver{client: c, prefix: prefix, now: time.Now}
}

// ArchiveResults uploads one JSONL line per wallet result under a key
// derived from the run ID.
func (a *Archiver) ArchiveResults(ctx context.Context, runID string, results []domain.EngineResult) error {
	if len(results) == 0 {
		return nil
	}

	buf, err := marshalJSONL(results)
	if err != nil {
		return fmt.Errorf("s3blob: archive results marshal: %w", err)
	}

	key := fmt.Sprintf("%s/%s/%s.jsonl", a.prefix, a.now().UTC().Format("2006-01-02"), runID)

	uploader := manager.NewUploader(a.client.s3, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
	})
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.client.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: archive results upload %s: %w", key, err)
	}
	return nil
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.ResultArchiver = (*Archiver)(nil)
