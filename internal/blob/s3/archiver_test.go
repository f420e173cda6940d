package s3blob

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/greenbond/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	objects map[string][]byte
	err     error
}

func (w *fakeWriter) Write(ctx context.Context, key string, data []byte, contentType string) error {
	if w.err != nil {
		return w.err
	}
	if w.objects == nil {
		w.objects = map[string][]byte{}
	}
	w.objects[key] = data
	return nil
}

type fakeSubmissions struct {
	recs    []domain.SubmissionRecord
	deleted [][]string
}

func (s *fakeSubmissions) Append(ctx context.Context, rec domain.SubmissionRecord) error {
	s.recs = append(s.recs, rec)
	return nil
}

func (s *fakeSubmissions) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.SubmissionRecord, error) {
	var out []domain.SubmissionRecord
	for _, rec := range s.recs {
		if rec.CreatedAt.Before(cutoff) {
			out = append(out, rec)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeSubmissions) Delete(ctx context.Context, ids []string) (int64, error) {
	s.deleted = append(s.deleted, ids)
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var kept []domain.SubmissionRecord
	var n int64
	for _, rec := range s.recs {
		if drop[rec.ID] {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	s.recs = kept
	return n, nil
}

func record(id string, age time.Duration) domain.SubmissionRecord {
	return domain.SubmissionRecord{
		ID:        id,
		Account:   "rAccount",
		TxType:    domain.TxPayment,
		Kind:      domain.OutcomeSucceeded,
		CreatedAt: time.Now().UTC().Add(-age),
	}
}

func TestArchiverMovesAgedRows(t *testing.T) {
	writer := &fakeWriter{}
	subs := &fakeSubmissions{recs: []domain.SubmissionRecord{
		record("old-1", 100*24*time.Hour),
		record("old-2", 95*24*time.Hour),
		record("fresh", time.Hour),
	}}
	a := NewArchiver(writer, subs, 90*24*time.Hour, testLogger())

	total, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	// The fresh row survives.
	require.Len(t, subs.recs, 1)
	assert.Equal(t, "fresh", subs.recs[0].ID)

	// The uploaded object is gzip JSONL holding both aged rows.
	require.Len(t, writer.objects, 1)
	for _, data := range writer.objects {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		require.NoError(t, err)
		lines, err := io.ReadAll(gz)
		require.NoError(t, err)

		var ids []string
		for _, line := range bytes.Split(bytes.TrimSpace(lines), []byte("\n")) {
			var rec domain.SubmissionRecord
			require.NoError(t, json.Unmarshal(line, &rec))
			ids = append(ids, rec.ID)
		}
		assert.ElementsMatch(t, []string{"old-1", "old-2"}, ids)
	}
}

func TestArchiverFullBatchWithTiedTimestamps(t *testing.T) {
	// Three rows share one timestamp and the batch holds two: the row the
	// limit cut off must survive the first delete and land in the next batch.
	ts := time.Now().UTC().Add(-100 * 24 * time.Hour)
	tied := func(id string) domain.SubmissionRecord {
		return domain.SubmissionRecord{
			ID:        id,
			Account:   "rAccount",
			TxType:    domain.TxPayment,
			Kind:      domain.OutcomeSucceeded,
			CreatedAt: ts,
		}
	}
	writer := &fakeWriter{}
	subs := &fakeSubmissions{recs: []domain.SubmissionRecord{tied("a"), tied("b"), tied("c")}}
	a := NewArchiver(writer, subs, 90*24*time.Hour, testLogger())
	a.batchSize = 2

	total, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Empty(t, subs.recs)

	// Every row made it into an uploaded object before deletion.
	var archived []string
	for _, data := range writer.objects {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		require.NoError(t, err)
		lines, err := io.ReadAll(gz)
		require.NoError(t, err)
		for _, line := range bytes.Split(bytes.TrimSpace(lines), []byte("\n")) {
			var rec domain.SubmissionRecord
			require.NoError(t, json.Unmarshal(line, &rec))
			archived = append(archived, rec.ID)
		}
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, archived)
}

func TestArchiverNoRowsIsNoop(t *testing.T) {
	writer := &fakeWriter{}
	subs := &fakeSubmissions{recs: []domain.SubmissionRecord{record("fresh", time.Hour)}}
	a := NewArchiver(writer, subs, 90*24*time.Hour, testLogger())

	total, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, writer.objects)
	assert.Empty(t, subs.deleted)
}

func TestArchiverKeepsRowsWhenUploadFails(t *testing.T) {
	writer := &fakeWriter{err: assert.AnError}
	subs := &fakeSubmissions{recs: []domain.SubmissionRecord{record("old", 100*24*time.Hour)}}
	a := NewArchiver(writer, subs, 90*24*time.Hour, testLogger())

	_, err := a.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, subs.recs, 1, "rows stay in place for the next pass")
}
