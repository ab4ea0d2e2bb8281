package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/sjson"
)

// WriteDebugArtifact stores a raw provider reply as <dataDir>/debug/<jobID>/<stage>-<timestamp>.json
// and returns its path.
func WriteDebugArtifact(dataDir, jobID, stage, raw string, cause error, at time.Time) (path string, err error) {
	if dataDir == "" {
		err = errors.New("no data directory configured for debug artifacts")
		return path, err
	}

	doc := "{}"
	for _, kv := range []struct {
		key   string
		value interface{}
	}{
		{"stage", stage},
		{"job_id", jobID},
		{"error", fmt.Sprint(cause)},
		{"created_at", at.UTC().Format(time.RFC3339Nano)},
		{"raw", raw},
	} {
		doc, err = sjson.Set(doc, kv.key, kv.value)
		if err != nil {
			err = errors.Wrapf(err, "failed to build debug artifact field %s", kv.key)
			return path, err
		}
	}

	dir := filepath.Join(dataDir, "debug", jobID)
	err = os.MkdirAll(dir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create debug directory: %s", dir)
		return path, err
	}

	path = filepath.Join(dir, fmt.Sprintf("%s-%s.json", stage, at.UTC().Format("20060102T150405.000000000")))
	err = os.WriteFile(path, []byte(doc), 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to write debug artifact: %s", path)
		path = ""
		return path, err
	}

	return path, err
}
