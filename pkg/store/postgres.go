package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/nikogura/resume-forge/pkg/logging"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	insertContentSQL = `INSERT INTO tailored_content (record_id, job_id, fingerprint, body, changes, created_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING seq`

	selectContentSQL = `SELECT record_id, job_id, fingerprint, body, changes, created_at, seq FROM tailored_content`

	recentOrderSQL = ` ORDER BY created_at DESC, seq DESC`

	deleteContentSQL = `DELETE FROM tailored_content WHERE job_id = $1 AND record_id = $2`

	deleteJobContentSQL = `DELETE FROM tailored_content WHERE job_id = $1`
)

// PostgresStore keeps tailored content in the tailored_content table.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewPostgresStore wraps an open database handle. The schema must already be migrated.
func NewPostgresStore(db *sql.DB, logger *zap.Logger) (s *PostgresStore) {
	s = &PostgresStore{
		db:     db,
		logger: logging.OrNop(logger),
		now:    func() time.Time { return time.Now().UTC() },
	}
	return s
}

// OpenPostgres connects with the pgx driver and applies migrations.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (s *PostgresStore, err error) {
	var db *sql.DB
	db, err = sql.Open("pgx", dsn)
	if err != nil {
		err = errors.Wrap(err, "failed to open database")
		return s, err
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()
		err = errors.Wrap(err, "failed to connect to database")
		return s, err
	}

	err = Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return s, err
	}

	s = NewPostgresStore(db, logger)
	return s, err
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sql.DB) (err error) {
	goose.SetBaseFS(migrationFiles)

	err = goose.SetDialect("postgres")
	if err != nil {
		err = errors.Wrap(err, "failed to set migration dialect")
		return err
	}

	err = goose.UpContext(ctx, db, "migrations")
	if err != nil {
		err = errors.Wrap(err, "failed to apply migrations")
	}
	return err
}

// Close closes the database handle.
func (s *PostgresStore) Close() (err error) {
	err = s.db.Close()
	return err
}

// Put inserts a new record and returns it; seq is assigned by the database.
func (s *PostgresStore) Put(ctx context.Context, jobID, fingerprint string, content Content) (record TailoredContent, err error) {
	if strings.TrimSpace(content.Body) == "" {
		err = errors.New("refusing to store empty content")
		return record, err
	}

	changes := content.Changes
	if changes == nil {
		changes = []string{}
	}

	var changesJSON []byte
	changesJSON, err = json.Marshal(changes)
	if err != nil {
		err = errors.Wrap(err, "failed to marshal changes")
		return record, err
	}

	stored := TailoredContent{
		RecordID:    uuid.NewString(),
		JobID:       jobID,
		Body:        content.Body,
		Changes:     changes,
		Fingerprint: fingerprint,
		CreatedAt:   s.now(),
	}

	err = s.db.QueryRowContext(ctx, insertContentSQL,
		stored.RecordID, jobID, fingerprint, content.Body, string(changesJSON), stored.CreatedAt,
	).Scan(&stored.Seq)
	if err != nil {
		err = errors.Wrapf(err, "failed to insert content for job %s", jobID)
		return record, err
	}

	record = stored
	return record, err
}

// GetMostRecent returns the newest readable record for the job.
func (s *PostgresStore) GetMostRecent(ctx context.Context, jobID string) (record *TailoredContent, err error) {
	record, err = s.first(ctx, jobID, selectContentSQL+` WHERE job_id = $1`+recentOrderSQL, jobID)
	return record, err
}

// GetByFingerprint returns the newest readable record with the given fingerprint.
func (s *PostgresStore) GetByFingerprint(ctx context.Context, jobID, fingerprint string) (record *TailoredContent, err error) {
	if fingerprint == "" {
		return record, err
	}
	record, err = s.first(ctx, jobID, selectContentSQL+` WHERE job_id = $1 AND fingerprint = $2`+recentOrderSQL, jobID, fingerprint)
	return record, err
}

// Delete removes one record.
func (s *PostgresStore) Delete(ctx context.Context, jobID, recordID string) (err error) {
	_, err = s.db.ExecContext(ctx, deleteContentSQL, jobID, recordID)
	if err != nil {
		err = errors.Wrapf(err, "failed to delete content %s for job %s", recordID, jobID)
	}
	return err
}

// InvalidateAll removes every record for the job.
func (s *PostgresStore) InvalidateAll(ctx context.Context, jobID string) (err error) {
	_, err = s.db.ExecContext(ctx, deleteJobContentSQL, jobID)
	if err != nil {
		err = errors.Wrapf(err, "failed to invalidate content for job %s", jobID)
	}
	return err
}

// first scans rows in order and returns the first one that decodes, logging the rest.
func (s *PostgresStore) first(ctx context.Context, jobID, query string, args ...interface{}) (record *TailoredContent, err error) {
	var rows *sql.Rows
	rows, err = s.db.QueryContext(ctx, query, args...)
	if err != nil {
		err = errors.Wrapf(err, "failed to query content for job %s", jobID)
		return record, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tc      TailoredContent
			changes []byte
		)

		err = rows.Scan(&tc.RecordID, &tc.JobID, &tc.Fingerprint, &tc.Body, &changes, &tc.CreatedAt, &tc.Seq)
		if err != nil {
			err = errors.Wrap(err, "failed to scan content row")
			return record, err
		}

		jsonErr := json.Unmarshal(changes, &tc.Changes)
		if jsonErr != nil || strings.TrimSpace(tc.Body) == "" {
			if jsonErr == nil {
				jsonErr = errors.New("empty body")
			}
			s.logger.Warn("skipping unreadable content row",
				zap.String(logging.FieldJob, jobID),
				zap.String("record_id", tc.RecordID),
				zap.Error(jsonErr),
			)
			continue
		}

		record = &tc
		return record, err
	}

	err = rows.Err()
	if err != nil {
		err = errors.Wrap(err, "failed to read content rows")
	}
	return record, err
}
