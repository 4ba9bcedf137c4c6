package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskbuddy/internal/models"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("not found")

type TaskRepository interface {
	Store(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id int64) (*models.Task, error)
	FindAllByUser(ctx context.Context, userID string) ([]models.Task, error)
	UpdateContent(ctx context.Context, id int64, content string) error
	Delete(ctx context.Context, id int64) error

	// Time fields are written on their own so a content edit and a time
	// write on the same row never overwrite each other.
	UpdateTime(ctx context.Context, id int64, u TimeUpdate) error
	UpdateReminderOffset(ctx context.Context, id int64, offset *int) error
	ResolvePendingTime(ctx context.Context, id int64, pending string, resolved models.TimeValue) (bool, error)

	// Reminder sweep
	ListDueCandidates(ctx context.Context) ([]models.DueCandidate, error)
	ReminderSent(ctx context.Context, id int64) (bool, error)
	MarkReminderSent(ctx context.Context, id int64) (bool, error)
}

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `id, user_id, content, time_type, time_value, reminder_offset, reminder_sent, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner, t *models.Task, extra ...any) error {
	var offset sql.NullInt64
	dest := []any{
		&t.ID, &t.UserID, &t.Content, &t.TimeType, &t.TimeValue,
		&offset, &t.ReminderSent, &t.CreatedAt, &t.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	t.ReminderOffset = nil
	if offset.Valid {
		v := int(offset.Int64)
		t.ReminderOffset = &v
	}
	return nil
}

func nullableOffset(offset *int) any {
	if offset == nil {
		return nil
	}
	return int64(*offset)
}

func (r *taskRepository) Store(ctx context.Context, task *models.Task) error {
	if task.TimeType == "" {
		task.TimeType = models.TimeTypeNone
	}
	query := `
		INSERT INTO tasks (user_id, content, time_type, time_value, reminder_offset, reminder_sent)
		VALUES ($1,$2,$3,$4,$5,FALSE)
		RETURNING id, reminder_sent, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query,
		task.UserID, task.Content, task.TimeType, task.TimeValue, nullableOffset(task.ReminderOffset),
	).Scan(&task.ID, &task.ReminderSent, &task.CreatedAt, &task.UpdatedAt)
}

func (r *taskRepository) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task := &models.Task{}
	if err := scanTask(r.db.QueryRowContext(ctx, query, id), task); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) FindAllByUser(ctx context.Context, userID string) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := scanTask(rows, &t); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) UpdateContent(ctx context.Context, id int64, content string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET content=$1, updated_at=NOW() WHERE id=$2`, content, id)
	return expectRow(res, err, id)
}

func (r *taskRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return expectRow(res, err, id)
}

// TimeUpdate is one write of a task's time columns. KeepValue and KeepOffset
// leave that column as stored, so a write made since the caller's read
// (an offset change, a sweep resolving the phrase) survives.
type TimeUpdate struct {
	Type       models.TimeType
	Value      models.TimeValue
	Offset     *int
	KeepValue  bool
	KeepOffset bool
}

// UpdateTime never touches reminder_sent: once a reminder fired it stays fired.
func (r *taskRepository) UpdateTime(ctx context.Context, id int64, u TimeUpdate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET time_type=$1,
			time_value=CASE WHEN $2 THEN time_value ELSE $3 END,
			reminder_offset=CASE WHEN $4 THEN reminder_offset ELSE $5 END,
			updated_at=NOW()
		WHERE id=$6`,
		u.Type, u.KeepValue, u.Value, u.KeepOffset, nullableOffset(u.Offset), id)
	return expectRow(res, err, id)
}

func (r *taskRepository) UpdateReminderOffset(ctx context.Context, id int64, offset *int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET reminder_offset=$1, updated_at=NOW() WHERE id=$2`, nullableOffset(offset), id)
	return expectRow(res, err, id)
}

// ResolvePendingTime replaces a pending phrase with its instant only if the
// row still holds that exact phrase. false means someone else got there first.
func (r *taskRepository) ResolvePendingTime(ctx context.Context, id int64, pending string, resolved models.TimeValue) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET time_value=$1, updated_at=NOW() WHERE id=$2 AND time_value=$3`,
		resolved, id, pending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *taskRepository) ListDueCandidates(ctx context.Context) ([]models.DueCandidate, error) {
	q := `
SELECT t.id, t.user_id, t.content, t.time_type, t.time_value, t.reminder_offset, t.reminder_sent,
       t.created_at, t.updated_at,
       u.user_id IS NOT NULL, COALESCE(u.phone_number, ''), COALESCE(u.phone_verified, FALSE),
       COALESCE(u.time_zone, '')
FROM tasks t
LEFT JOIN users u ON u.user_id = t.user_id
WHERE t.time_type <> 'none'
  AND t.time_value IS NOT NULL
  AND t.reminder_offset IS NOT NULL
  AND t.reminder_sent = FALSE
ORDER BY t.id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DueCandidate
	for rows.Next() {
		var c models.DueCandidate
		if err := scanTask(rows, &c.Task, &c.OwnerFound, &c.PhoneNumber, &c.PhoneVerified, &c.TimeZone); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *taskRepository) ReminderSent(ctx context.Context, id int64) (bool, error) {
	var sent bool
	err := r.db.QueryRowContext(ctx, `SELECT reminder_sent FROM tasks WHERE id=$1`, id).Scan(&sent)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return sent, err
}

// MarkReminderSent flips reminder_sent once. false means it was already set
// (or the task is gone).
func (r *taskRepository) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET reminder_sent=TRUE, updated_at=NOW() WHERE id=$1 AND reminder_sent=FALSE`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func expectRow(res sql.Result, err error, id int64) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}
