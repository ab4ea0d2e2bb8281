package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/nikogura/resume-forge/pkg/logging"
)

// FileStore keeps each record as <root>/content/<jobID>/<seq>-<recordID>.json.
type FileStore struct {
	root   string
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewFileStore creates a file-backed store under dataDir.
func NewFileStore(dataDir string, logger *zap.Logger) (s *FileStore) {
	s = &FileStore{
		root:   filepath.Join(dataDir, "content"),
		logger: logging.OrNop(logger),
		now:    func() time.Time { return time.Now().UTC() },
	}
	return s
}

func (s *FileStore) jobDir(jobID string) string {
	return filepath.Join(s.root, jobID)
}

// Put appends a new record with a fresh id and the next sequence number and returns it as
// written.
func (s *FileStore) Put(ctx context.Context, jobID, fingerprint string, content Content) (record TailoredContent, err error) {
	err = ctx.Err()
	if err != nil {
		return record, err
	}

	if strings.TrimSpace(content.Body) == "" {
		err = errors.New("refusing to store empty content")
		return record, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.jobDir(jobID)
	err = os.MkdirAll(dir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create content directory: %s", dir)
		return record, err
	}

	var seq int64
	seq, err = s.nextSeq(dir)
	if err != nil {
		return record, err
	}

	stored := TailoredContent{
		RecordID:    uuid.NewString(),
		JobID:       jobID,
		Body:        content.Body,
		Changes:     content.Changes,
		Fingerprint: fingerprint,
		CreatedAt:   s.now(),
		Seq:         seq,
	}
	if stored.Changes == nil {
		stored.Changes = []string{}
	}

	var data []byte
	data, err = json.MarshalIndent(stored, "", "  ")
	if err != nil {
		err = errors.Wrap(err, "failed to marshal content record")
		return record, err
	}

	path := filepath.Join(dir, recordFileName(seq, stored.RecordID))
	err = writeAtomic(path, data)
	if err != nil {
		return record, err
	}

	record = stored
	return record, err
}

// GetMostRecent returns the newest readable record for the job.
func (s *FileStore) GetMostRecent(ctx context.Context, jobID string) (record *TailoredContent, err error) {
	var records []TailoredContent
	records, err = s.load(ctx, jobID)
	if err != nil || len(records) == 0 {
		return record, err
	}

	record = &records[0]
	return record, err
}

// GetByFingerprint returns the newest readable record with the given fingerprint.
func (s *FileStore) GetByFingerprint(ctx context.Context, jobID, fingerprint string) (record *TailoredContent, err error) {
	if fingerprint == "" {
		return record, err
	}

	var records []TailoredContent
	records, err = s.load(ctx, jobID)
	if err != nil {
		return record, err
	}

	for i := range records {
		if records[i].Fingerprint == fingerprint {
			record = &records[i]
			return record, err
		}
	}

	return record, err
}

// Delete removes one record. Deleting a missing record is not an error.
func (s *FileStore) Delete(ctx context.Context, jobID, recordID string) (err error) {
	err = ctx.Err()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if recordID == "" {
		return err
	}

	var matches []string
	matches, err = filepath.Glob(filepath.Join(s.jobDir(jobID), "*-"+recordID+".json"))
	if err != nil {
		err = errors.Wrap(err, "failed to locate content record")
		return err
	}
	// Legacy records are named after their id.
	matches = append(matches, filepath.Join(s.jobDir(jobID), recordID+".json"))

	for _, path := range matches {
		rmErr := os.Remove(path)
		if rmErr != nil && !os.IsNotExist(rmErr) {
			err = errors.Wrapf(rmErr, "failed to delete content record: %s", path)
			return err
		}
	}

	return err
}

// InvalidateAll removes every record for the job.
func (s *FileStore) InvalidateAll(ctx context.Context, jobID string) (err error) {
	err = ctx.Err()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.RemoveAll(s.jobDir(jobID))
	if err != nil {
		err = errors.Wrapf(err, "failed to invalidate content for job %s", jobID)
	}
	return err
}

// load reads every record for the job, newest first, skipping unreadable ones.
func (s *FileStore) load(ctx context.Context, jobID string) (records []TailoredContent, err error) {
	err = ctx.Err()
	if err != nil {
		return records, err
	}

	dir := s.jobDir(jobID)

	var entries []os.DirEntry
	entries, err = os.ReadDir(dir)
	if os.IsNotExist(err) {
		err = nil
		return records, err
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to list content directory: %s", dir)
		return records, err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		record, readErr := readRecord(path, jobID)
		if readErr != nil {
			s.logger.Warn("skipping unreadable content record",
				zap.String(logging.FieldJob, jobID),
				zap.String("path", path),
				zap.Error(readErr),
			)
			continue
		}
		records = append(records, record)
	}

	sortRecent(records)
	return records, err
}

// readRecord parses a record file. Files from earlier versions stored {"content", "changes"}
// and carry their sequence and id only in the file name.
func readRecord(path, jobID string) (record TailoredContent, err error) {
	var data []byte
	data, err = os.ReadFile(path)
	if err != nil {
		return record, err
	}

	if !gjson.ValidBytes(data) {
		err = errors.New("record is not valid JSON")
		return record, err
	}

	doc := gjson.ParseBytes(data)

	if doc.Get("body").Exists() {
		err = json.Unmarshal(data, &record)
		if err != nil {
			return record, err
		}
	} else {
		legacy := doc.Get("content")
		if !legacy.Exists() || legacy.Type != gjson.String {
			err = errors.New("record has no body")
			return record, err
		}

		record.Body = legacy.String()
		for _, change := range doc.Get("changes").Array() {
			record.Changes = append(record.Changes, change.String())
		}

		seq, id, ok := parseRecordFileName(filepath.Base(path))
		if ok {
			record.Seq = seq
			record.RecordID = id
		} else {
			record.RecordID = strings.TrimSuffix(filepath.Base(path), ".json")
		}

		var info os.FileInfo
		info, err = os.Stat(path)
		if err != nil {
			return record, err
		}
		record.CreatedAt = info.ModTime().UTC()
	}

	if strings.TrimSpace(record.Body) == "" {
		err = errors.New("record has empty body")
		return record, err
	}

	if record.JobID == "" {
		record.JobID = jobID
	}

	return record, err
}

func (s *FileStore) nextSeq(dir string) (seq int64, err error) {
	var entries []os.DirEntry
	entries, err = os.ReadDir(dir)
	if err != nil {
		err = errors.Wrapf(err, "failed to list content directory: %s", dir)
		return seq, err
	}

	for _, entry := range entries {
		n, _, ok := parseRecordFileName(entry.Name())
		if ok && n > seq {
			seq = n
		}
	}

	seq++
	return seq, err
}

func recordFileName(seq int64, recordID string) string {
	return strconv.FormatInt(seq, 10) + "-" + recordID + ".json"
}

func parseRecordFileName(name string) (seq int64, recordID string, ok bool) {
	base := strings.TrimSuffix(name, ".json")
	if base == name {
		return seq, recordID, ok
	}

	idx := strings.IndexByte(base, '-')
	if idx <= 0 {
		return seq, recordID, ok
	}

	n, err := strconv.ParseInt(base[:idx], 10, 64)
	if err != nil {
		return seq, recordID, ok
	}

	seq, recordID, ok = n, base[idx+1:], true
	return seq, recordID, ok
}

// writeAtomic writes data to a temp file in the target directory and renames it into place.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)

	var tmp *os.File
	tmp, err = os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		err = errors.Wrapf(err, "failed to create temp file in %s", dir)
		return err
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		err = errors.Wrapf(err, "failed to write temp file for %s", path)
		return err
	}

	err = os.Rename(tmpName, path)
	if err != nil {
		_ = os.Remove(tmpName)
		err = errors.Wrapf(err, "failed to move record into place: %s", path)
		return err
	}

	return err
}
