package queued

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/runstage/runstage/internal/manager"
)

// jobRow is one job as the registry sees it. The database is the source of
// truth for queued-manager lifecycle state; staging directories and process
// handles hang off it.
type jobRow struct {
	ID          string
	ToolID      string
	CommandLine string
	Launched    bool
	Status      manager.Status
	ReturnCode  *int
}

type store struct {
	db *sql.DB
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *store) insert(ctx context.Context, jobID, toolID string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs(id, tool_id, status, created_at)
VALUES(?, ?, ?, ?);
`, jobID, toolID, manager.StatusQueued, nowString())
	if err != nil {
		return fmt.Errorf("register job %q: %w", jobID, err)
	}
	return nil
}

// markLaunched records the command line and makes the job claimable. It
// refuses jobs that are unknown or no longer queued.
func (s *store) markLaunched(ctx context.Context, jobID, commandLine string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs SET command_line = ?, launched = 1
WHERE id = ? AND status = ? AND launched = 0;
`, commandLine, jobID, manager.StatusQueued)
	if err != nil {
		return fmt.Errorf("mark job %q launched: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark job %q launched: %w", jobID, err)
	}
	if n == 0 {
		row, getErr := s.get(ctx, jobID)
		if getErr != nil {
			return getErr
		}
		if row == nil {
			return fmt.Errorf("%w: %q", manager.ErrJobNotFound, jobID)
		}
		return fmt.Errorf("launch job %q: status is %q, launched %v", jobID, row.Status, row.Launched)
	}
	return nil
}

// claimNext atomically claims the oldest launched, queued job and marks it
// running. Returns (nil, nil) when nothing is claimable.
func (s *store) claimNext(ctx context.Context) (*jobRow, error) {
	row := s.db.QueryRowContext(ctx, `
WITH next AS (
  SELECT id
  FROM jobs
  WHERE status = ? AND launched = 1
  ORDER BY created_at ASC, rowid ASC
  LIMIT 1
)
UPDATE jobs
SET status = ?, started_at = ?
WHERE id IN (SELECT id FROM next)
RETURNING id, tool_id, command_line, launched, status, return_code;
`, manager.StatusQueued, manager.StatusRunning, nowString())

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return j, nil
}

// finish moves a running job to a terminal state. It loses quietly to a
// concurrent cancellation: the conditional update means a job already
// cancelled stays cancelled.
func (s *store) finish(ctx context.Context, jobID string, status manager.Status, returnCode *int) error {
	var rc any
	if returnCode != nil {
		rc = *returnCode
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE jobs SET status = ?, return_code = ?, completed_at = ?
WHERE id = ? AND status = ?;
`, status, rc, nowString(), jobID, manager.StatusRunning)
	if err != nil {
		return fmt.Errorf("finish job %q: %w", jobID, err)
	}
	return nil
}

// cancel marks a non-terminal job cancelled; reports whether a row changed.
func (s *store) cancel(ctx context.Context, jobID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs SET status = ?, completed_at = ?
WHERE id = ? AND status IN (?, ?);
`, manager.StatusCancelled, nowString(), jobID, manager.StatusQueued, manager.StatusRunning)
	if err != nil {
		return false, fmt.Errorf("cancel job %q: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel job %q: %w", jobID, err)
	}
	return n > 0, nil
}

func (s *store) get(ctx context.Context, jobID string) (*jobRow, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, tool_id, command_line, launched, status, return_code
FROM jobs WHERE id = ?;
`, jobID)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read job %q: %w", jobID, err)
	}
	return j, nil
}

func (s *store) delete(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?;`, jobID); err != nil {
		return fmt.Errorf("delete job %q: %w", jobID, err)
	}
	return nil
}

// requeueRunning returns jobs stranded in running back to queued. Called
// once at startup: any job marked running by a previous process lost its
// child when that process died.
func (s *store) requeueRunning(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs SET status = ?, started_at = NULL
WHERE status = ?;
`, manager.StatusQueued, manager.StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("requeue running jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue running jobs: %w", err)
	}
	return int(n), nil
}

func scanJob(row *sql.Row) (*jobRow, error) {
	var (
		j        jobRow
		statusS  string
		launched int
		rc       sql.NullInt64
	)
	if err := row.Scan(&j.ID, &j.ToolID, &j.CommandLine, &launched, &statusS, &rc); err != nil {
		return nil, err
	}
	j.Status = manager.Status(statusS)
	j.Launched = launched != 0
	if rc.Valid {
		code := int(rc.Int64)
		j.ReturnCode = &code
	}
	return &j, nil
}
