package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nikogura/resume-forge/pkg/logging"
)

// SessionStatus is the persisted per-job state the orchestrator consults instead of inspecting
// output directories.
type SessionStatus struct {
	JobID            string    `json:"job_id"`
	HasContent       bool      `json:"has_content"`
	HasArtifact      bool      `json:"has_artifact"`
	CritiqueDone     bool      `json:"critique_done"`
	LastArtifactPath string    `json:"last_artifact_path,omitempty"`
	LastFingerprint  string    `json:"last_fingerprint,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// StatusStore keeps one status file per job under <data>/status.
type StatusStore struct {
	dir    string
	logger *zap.Logger

	mu sync.Mutex
}

// NewStatusStore creates a status store under dataDir.
func NewStatusStore(dataDir string, logger *zap.Logger) (s *StatusStore) {
	s = &StatusStore{
		dir:    filepath.Join(dataDir, "status"),
		logger: logging.OrNop(logger),
	}
	return s
}

// Get returns the job's status. A missing or corrupt file yields a zero status.
func (s *StatusStore) Get(jobID string) (status SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status = s.read(jobID)
	return status
}

// Update applies fn to the current status and persists the result.
func (s *StatusStore) Update(jobID string, fn func(*SessionStatus)) (status SessionStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status = s.read(jobID)
	fn(&status)
	status.JobID = jobID
	status.UpdatedAt = time.Now().UTC()

	err = os.MkdirAll(s.dir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create status directory: %s", s.dir)
		return status, err
	}

	var data []byte
	data, err = json.MarshalIndent(status, "", "  ")
	if err != nil {
		err = errors.Wrap(err, "failed to marshal session status")
		return status, err
	}

	err = writeAtomic(s.path(jobID), data)
	return status, err
}

func (s *StatusStore) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

func (s *StatusStore) read(jobID string) (status SessionStatus) {
	data, err := os.ReadFile(s.path(jobID))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("unable to read session status", zap.String(logging.FieldJob, jobID), zap.Error(err))
		}
		status.JobID = jobID
		return status
	}

	err = json.Unmarshal(data, &status)
	if err != nil {
		s.logger.Warn("ignoring corrupt session status", zap.String(logging.FieldJob, jobID), zap.Error(err))
		status = SessionStatus{JobID: jobID}
	}
	return status
}
