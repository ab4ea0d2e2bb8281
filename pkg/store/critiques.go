package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nikogura/resume-forge/pkg/logging"
)

// CritiqueRecord is one critic verdict on a rendered artifact.
type CritiqueRecord struct {
	Rating          int       `json:"rating"`
	Strengths       []string  `json:"strengths"`
	Weaknesses      []string  `json:"weaknesses"`
	Recommendations []string  `json:"recommendations"`
	Analysis        string    `json:"analysis"`
	Domain          string    `json:"domain"`
	CreatedAt       time.Time `json:"created_at"`
}

// CritiqueLog appends critiques to <data>/critiques/<jobID>.jsonl and keeps the merged,
// deduplicated recommendations in <jobID>.recommendations.json.
type CritiqueLog struct {
	dir    string
	logger *zap.Logger

	mu sync.Mutex
}

// NewCritiqueLog creates a critique log under dataDir.
func NewCritiqueLog(dataDir string, logger *zap.Logger) (l *CritiqueLog) {
	l = &CritiqueLog{
		dir:    filepath.Join(dataDir, "critiques"),
		logger: logging.OrNop(logger),
	}
	return l
}

// Append records a critique and merges its recommendations into the job's list.
func (l *CritiqueLog) Append(jobID string, record CritiqueRecord) (merged []string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	err = os.MkdirAll(l.dir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create critiques directory: %s", l.dir)
		return merged, err
	}

	var line []byte
	line, err = json.Marshal(record)
	if err != nil {
		err = errors.Wrap(err, "failed to marshal critique")
		return merged, err
	}

	logPath := filepath.Join(l.dir, jobID+".jsonl")

	var f *os.File
	f, err = os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to open critique log: %s", logPath)
		return merged, err
	}

	_, err = f.Write(append(line, '\n'))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to append critique: %s", logPath)
		return merged, err
	}

	merged = MergeRecommendations(l.recommendations(jobID), record.Recommendations)

	var data []byte
	data, err = json.MarshalIndent(merged, "", "  ")
	if err != nil {
		err = errors.Wrap(err, "failed to marshal recommendations")
		return merged, err
	}

	err = writeAtomic(l.recommendationsPath(jobID), data)
	return merged, err
}

// Recommendations returns the job's accumulated recommendations.
func (l *CritiqueLog) Recommendations(jobID string) (recs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recs = l.recommendations(jobID)
	return recs
}

// History returns every readable critique for the job, oldest first.
func (l *CritiqueLog) History(jobID string) (records []CritiqueRecord, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var data []byte
	data, err = os.ReadFile(filepath.Join(l.dir, jobID+".jsonl"))
	if os.IsNotExist(err) {
		err = nil
		return records, err
	}
	if err != nil {
		err = errors.Wrap(err, "failed to read critique log")
		return records, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var record CritiqueRecord
		if jsonErr := json.Unmarshal(scanner.Bytes(), &record); jsonErr != nil {
			l.logger.Warn("skipping corrupt critique entry", zap.String(logging.FieldJob, jobID), zap.Error(jsonErr))
			continue
		}
		records = append(records, record)
	}

	err = scanner.Err()
	return records, err
}

func (l *CritiqueLog) recommendationsPath(jobID string) string {
	return filepath.Join(l.dir, jobID+".recommendations.json")
}

func (l *CritiqueLog) recommendations(jobID string) (recs []string) {
	data, err := os.ReadFile(l.recommendationsPath(jobID))
	if err != nil {
		return recs
	}

	err = json.Unmarshal(data, &recs)
	if err != nil {
		l.logger.Warn("ignoring corrupt recommendations list", zap.String(logging.FieldJob, jobID), zap.Error(err))
		recs = nil
	}
	return recs
}

// MergeRecommendations appends the new items to existing, skipping blanks and anything that
// matches an earlier item ignoring case and whitespace.
func MergeRecommendations(existing, incoming []string) (merged []string) {
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged = make([]string, 0, len(existing)+len(incoming))

	for _, list := range [][]string{existing, incoming} {
		for _, item := range list {
			item = strings.TrimSpace(item)
			key := normalizeKey(item)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, item)
		}
	}

	return merged
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
