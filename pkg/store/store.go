// Package store persists tailored content, per-job session status and critique history.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Content is the body and change list produced by one generation.
type Content struct {
	Body    string   `json:"body"`
	Changes []string `json:"changes"`
}

// TailoredContent is a stored generation. Records are replaced whole, never edited.
type TailoredContent struct {
	RecordID    string    `json:"record_id"`
	JobID       string    `json:"job_id"`
	Body        string    `json:"body"`
	Changes     []string  `json:"changes"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	Seq         int64     `json:"seq"`
}

// Store is the tailored-content store. Lookups that find nothing return (nil, nil).
type Store interface {
	Put(ctx context.Context, jobID, fingerprint string, content Content) (TailoredContent, error)
	GetMostRecent(ctx context.Context, jobID string) (*TailoredContent, error)
	GetByFingerprint(ctx context.Context, jobID, fingerprint string) (*TailoredContent, error)
	Delete(ctx context.Context, jobID, recordID string) error
	InvalidateAll(ctx context.Context, jobID string) error
}

// FingerprintInput is everything a generation depends on.
type FingerprintInput struct {
	JobID           string
	ProfileHash     string
	ProfileModTime  time.Time
	Options         interface{}
	TemplateVersion string
}

type canonicalFingerprint struct {
	JobID           string      `json:"job_id"`
	ProfileHash     string      `json:"profile_hash"`
	ProfileModTime  string      `json:"profile_mtime"`
	Options         interface{} `json:"options"`
	TemplateVersion string      `json:"template_version"`
}

// Fingerprint returns the sha256 hex digest of the canonical JSON form of in.
func Fingerprint(in FingerprintInput) (fp string, err error) {
	canonical := canonicalFingerprint{
		JobID:           in.JobID,
		ProfileHash:     in.ProfileHash,
		ProfileModTime:  in.ProfileModTime.UTC().Format(time.RFC3339Nano),
		Options:         in.Options,
		TemplateVersion: in.TemplateVersion,
	}

	var data []byte
	data, err = json.Marshal(canonical)
	if err != nil {
		err = errors.Wrap(err, "failed to encode fingerprint input")
		return fp, err
	}

	sum := sha256.Sum256(data)
	fp = hex.EncodeToString(sum[:])
	return fp, err
}

// sortRecent orders records newest first: CreatedAt desc, then Seq desc.
func sortRecent(records []TailoredContent) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].Seq > records[j].Seq
	})
}
