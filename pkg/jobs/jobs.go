// Package jobs stores job postings and imports them from files or URLs.
package jobs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// JobRecord is a job posting. The pipeline treats it as read-only input.
type JobRecord struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Location        string    `json:"location,omitempty"`
	Description     string    `json:"description"`
	SalaryRange     string    `json:"salary_range,omitempty"`
	ApplicantSignal string    `json:"applicant_signal,omitempty"`
	URL             string    `json:"url,omitempty"`
	CompanySlug     string    `json:"company_slug,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ErrNotFound is returned when a job id has no record.
var ErrNotFound = errors.New("job not found")

// Repository reads and writes job records.
type Repository interface {
	Get(id string) (JobRecord, error)
	Put(job JobRecord) error
}

// FileRepository keeps one JSON file per job under <dir>/<id>.json.
type FileRepository struct {
	Dir string
}

// NewFileRepository returns a repository rooted at <dataDir>/jobs.
func NewFileRepository(dataDir string) (repo *FileRepository) {
	repo = &FileRepository{Dir: filepath.Join(dataDir, "jobs")}
	return repo
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidID reports whether id is safe to use as a file name.
func ValidID(id string) (ok bool) {
	ok = idPattern.MatchString(id) && !strings.Contains(id, "..")
	return ok
}

// Get loads a job by id.
func (r *FileRepository) Get(id string) (job JobRecord, err error) {
	if !ValidID(id) {
		err = errors.Errorf("invalid job id %q", id)
		return job, err
	}

	path := filepath.Join(r.Dir, id+".json")

	var data []byte
	data, err = os.ReadFile(path)
	if os.IsNotExist(err) {
		err = errors.Wrapf(ErrNotFound, "job %s", id)
		return job, err
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to read job file: %s", path)
		return job, err
	}

	err = json.Unmarshal(data, &job)
	if err != nil {
		err = errors.Wrapf(err, "failed to parse job file: %s", path)
		return job, err
	}

	if strings.TrimSpace(job.Description) == "" {
		err = errors.Errorf("job %s has no description", id)
		return job, err
	}

	return job, err
}

// Put writes a job record, filling CompanySlug and CreatedAt when empty.
func (r *FileRepository) Put(job JobRecord) (err error) {
	if !ValidID(job.ID) {
		err = errors.Errorf("invalid job id %q", job.ID)
		return err
	}

	if job.CompanySlug == "" {
		job.CompanySlug = Slug(job.Company)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	err = os.MkdirAll(r.Dir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create jobs directory: %s", r.Dir)
		return err
	}

	var data []byte
	data, err = json.MarshalIndent(job, "", "  ")
	if err != nil {
		err = errors.Wrap(err, "failed to marshal job")
		return err
	}

	path := filepath.Join(r.Dir, job.ID+".json")
	err = os.WriteFile(path, data, 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to write job file: %s", path)
		return err
	}

	return err
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases a company name and joins its words with dashes.
func Slug(name string) (slug string) {
	slug = slugStrip.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	return slug
}

// CompanyContext returns <companiesDir>/<slug>.md when it exists, or "".
func CompanyContext(companiesDir string, job JobRecord) (text string, err error) {
	if companiesDir == "" {
		return text, err
	}

	slug := job.CompanySlug
	if slug == "" {
		slug = Slug(job.Company)
	}
	if slug == "" {
		return text, err
	}

	path := filepath.Join(companiesDir, slug+".md")

	var data []byte
	data, err = os.ReadFile(path)
	if os.IsNotExist(err) {
		err = nil
		return text, err
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to read company context: %s", path)
		return text, err
	}

	text = strings.TrimSpace(string(data))
	return text, err
}
