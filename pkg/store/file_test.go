package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestFileStore(t *testing.T) (*FileStore, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	s := NewFileStore(t.TempDir(), zap.New(core))
	return s, logs
}

func TestFileStoreMonotonicity(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()

	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	first, err := s.Put(ctx, "job-1", "fp-a", Content{Body: "# one", Changes: []string{"a"}})
	require.NoError(t, err)

	second, err := s.Put(ctx, "job-1", "fp-a", Content{Body: "# two"})
	require.NoError(t, err)
	assert.NotEqual(t, first.RecordID, second.RecordID)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, frozen, first.CreatedAt)

	got, err := s.GetMostRecent(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.RecordID, got.RecordID)
	assert.Equal(t, second.Seq, got.Seq)
	assert.True(t, second.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, "# two", got.Body)
	assert.Equal(t, int64(2), got.Seq)
	assert.Equal(t, []string{}, got.Changes)

	// A later timestamp wins regardless of sequence.
	s.now = func() time.Time { return frozen.Add(time.Minute) }
	third, err := s.Put(ctx, "job-1", "fp-b", Content{Body: "# three"})
	require.NoError(t, err)

	got, err = s.GetMostRecent(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, third.RecordID, got.RecordID)
}

func TestFileStoreGetByFingerprint(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "job-1", "fp-a", Content{Body: "# a"})
	require.NoError(t, err)
	idB, err := s.Put(ctx, "job-1", "fp-b", Content{Body: "# b"})
	require.NoError(t, err)
	_, err = s.Put(ctx, "job-1", "fp-c", Content{Body: "# c"})
	require.NoError(t, err)

	got, err := s.GetByFingerprint(ctx, "job-1", "fp-b")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, idB.RecordID, got.RecordID)

	got, err = s.GetByFingerprint(ctx, "job-1", "fp-missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.GetByFingerprint(ctx, "job-2", "fp-b")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreEmpty(t *testing.T) {
	s, _ := newTestFileStore(t)

	got, err := s.GetMostRecent(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreRejectsEmptyBody(t *testing.T) {
	s, _ := newTestFileStore(t)

	_, err := s.Put(context.Background(), "job-1", "fp", Content{Body: "  "})
	assert.Error(t, err)
}

func TestFileStoreDeleteAndInvalidate(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()

	idA, err := s.Put(ctx, "job-1", "fp", Content{Body: "# a"})
	require.NoError(t, err)
	idB, err := s.Put(ctx, "job-1", "fp", Content{Body: "# b"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "job-1", idB.RecordID))

	got, err := s.GetMostRecent(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, idA.RecordID, got.RecordID)

	require.NoError(t, s.Delete(ctx, "job-1", "no-such-record"))

	require.NoError(t, s.InvalidateAll(ctx, "job-1"))

	got, err = s.GetMostRecent(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreSkipsCorruptRecords(t *testing.T) {
	s, logs := newTestFileStore(t)
	ctx := context.Background()

	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	good, err := s.Put(ctx, "job-1", "fp", Content{Body: "# good"})
	require.NoError(t, err)

	dir := s.jobDir("job-1")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "5-truncated.json"), []byte(`{"body": "# par`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "6-nobody.json"), []byte(`{"changes": []}`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "7-blank.json"), []byte(`{"body": "  "}`), 0600))

	got, err := s.GetMostRecent(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, good.RecordID, got.RecordID)

	assert.Equal(t, 3, logs.FilterMessage("skipping unreadable content record").Len())

	// Sequence numbers keep increasing past corrupt files.
	next, err := s.Put(ctx, "job-1", "fp", Content{Body: "# next"})
	require.NoError(t, err)

	got, err = s.GetMostRecent(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, next.RecordID, got.RecordID)
	assert.Equal(t, int64(8), got.Seq)
}

func TestFileStoreReadsLegacyRecords(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()

	dir := s.jobDir("job-1")
	require.NoError(t, os.MkdirAll(dir, 0750))

	legacy := filepath.Join(dir, "tailored.json")
	require.NoError(t, os.WriteFile(legacy, []byte(`{"content": "# legacy", "changes": ["old change"]}`), 0600))

	got, err := s.GetMostRecent(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "# legacy", got.Body)
	assert.Equal(t, []string{"old change"}, got.Changes)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, "tailored", got.RecordID)
	assert.Empty(t, got.Fingerprint)

	require.NoError(t, s.Delete(ctx, "job-1", got.RecordID))
	_, err = os.Stat(legacy)
	assert.True(t, os.IsNotExist(err))
}

func TestParseRecordFileName(t *testing.T) {
	seq, id, ok := parseRecordFileName("12-0b5c-uuid.json")
	assert.True(t, ok)
	assert.Equal(t, int64(12), seq)
	assert.Equal(t, "0b5c-uuid", id)

	_, _, ok = parseRecordFileName("tailored.json")
	assert.False(t, ok)

	_, _, ok = parseRecordFileName("12-x.txt")
	assert.False(t, ok)
}
