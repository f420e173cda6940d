package s3blob

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/verdantlabs/greenbond/internal/domain"
)

// archiveBatchSize bounds how many audit rows one archive pass loads into
// memory.
const archiveBatchSize = 5000

// Archiver moves submission audit rows past the retention window out of the
// primary store into blob storage. Rows are serialized as gzip-compressed
// JSONL, partitioned by the cutoff date; deletion targets exactly the ids of
// the uploaded batch and happens only after the upload succeeded, so a failed
// pass leaves the rows in place for the next run.
type Archiver struct {
	writer      domain.BlobWriter
	submissions domain.SubmissionStore
	retention   time.Duration
	batchSize   int
	logger      *slog.Logger
}

// NewArchiver creates an Archiver that archives submission records older than
// the retention duration.
func NewArchiver(writer domain.BlobWriter, submissions domain.SubmissionStore, retention time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:      writer,
		submissions: submissions,
		retention:   retention,
		batchSize:   archiveBatchSize,
		logger:      logger.With(slog.String("component", "archiver")),
	}
}

// Run performs one archive pass and returns how many rows were archived.
// Batches repeat until no rows remain past the cutoff.
func (a *Archiver) Run(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-a.retention)

	var total int64
	for batch := 0; ; batch++ {
		recs, err := a.submissions.ListBefore(ctx, cutoff, a.batchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive query: %w", err)
		}
		if len(recs) == 0 {
			break
		}

		key := archiveKey(cutoff, batch)
		data, err := marshalGzipJSONL(recs)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive encode: %w", err)
		}

		if err := a.writer.Write(ctx, key, data, "application/gzip"); err != nil {
			return total, fmt.Errorf("s3blob: archive upload %s: %w", key, err)
		}

		// Delete exactly the rows in the uploaded batch. Timestamp-ranged
		// deletion would take out rows sharing the boundary timestamp that
		// the batch limit cut off before upload.
		ids := make([]string, len(recs))
		for i, rec := range recs {
			ids[i] = rec.ID
		}
		deleted, err := a.submissions.Delete(ctx, ids)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive delete: %w", err)
		}
		total += deleted

		a.logger.InfoContext(ctx, "archived submission batch",
			slog.String("key", key),
			slog.Int("records", len(recs)),
			slog.Int64("deleted", deleted),
		)

		if len(recs) < a.batchSize {
			break
		}
	}

	return total, nil
}

// RunPeriodically runs archive passes at the given interval until ctx is
// cancelled. Errors are logged, never fatal; the next tick retries.
func (a *Archiver) RunPeriodically(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive pass failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// archiveKey builds the object key for one archive batch, partitioned by the
// cutoff date.
//
//	archive/submissions/2025-08-01/batch-0000.jsonl.gz
func archiveKey(cutoff time.Time, batch int) string {
	return fmt.Sprintf("archive/submissions/%s/batch-%04d.jsonl.gz", cutoff.Format("2006-01-02"), batch)
}

// marshalGzipJSONL serializes records as newline-delimited JSON and
// gzip-compresses the result.
func marshalGzipJSONL(recs []domain.SubmissionRecord) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	enc.SetEscapeHTML(false)

	for i, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}
