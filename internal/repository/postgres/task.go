package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dtroode/tasktracker/internal/model"
)

var _ model.TaskStore = (*TaskRepository)(nil)

const taskColumns = `id, title, description, status, priority, due_date, completed_at, user_id, created_at, updated_at`

// Listings are always ordered newest first with id as a tie-break.
const taskOrder = ` ORDER BY created_at DESC, id DESC`

type TaskRepository struct {
	db *Connection
}

func NewTaskRepository(db *Connection) *TaskRepository {
	return &TaskRepository{
		db: db,
	}
}

func (r *TaskRepository) Create(ctx context.Context, task model.Task) (model.Task, error) {
	query := `INSERT INTO tasks (id, title, description, status, priority, due_date, completed_at, user_id, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING ` + taskColumns

	var saved model.Task
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		return scanTask(conn.QueryRow(ctx, query,
			task.ID, task.Title, task.Description, task.Status.Ordinal(), task.Priority.Ordinal(),
			task.DueDate, task.CompletedAt, task.UserID, task.CreatedAt, task.UpdatedAt,
		), &saved)
	})
	if err != nil {
		return model.Task{}, mapError(err, "failed to create task")
	}

	return saved, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	var task model.Task
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		return scanTask(conn.QueryRow(ctx, query, id), &task)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err, "failed to get task by id")
	}

	return &task, nil
}

func (r *TaskRepository) FindByUser(ctx context.Context, userID uuid.UUID, filter model.TaskFilter, page model.Pagination) ([]model.Task, error) {
	query, args := buildListQuery(userID, filter, page)

	tasks, err := r.queryTasks(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to list tasks")
	}

	return tasks, nil
}

// Update writes every mutable column. user_id and created_at are never changed.
func (r *TaskRepository) Update(ctx context.Context, task model.Task) (model.Task, error) {
	query := `UPDATE tasks
			  SET title = $2, description = $3, status = $4, priority = $5,
			      due_date = $6, completed_at = $7, updated_at = $8
			  WHERE id = $1
			  RETURNING ` + taskColumns

	var saved model.Task
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		return scanTask(conn.QueryRow(ctx, query,
			task.ID, task.Title, task.Description, task.Status.Ordinal(), task.Priority.Ordinal(),
			task.DueDate, task.CompletedAt, task.UpdatedAt,
		), &saved)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Task{}, model.ErrNotFound
		}
		return model.Task{}, mapError(err, "failed to update task")
	}

	return saved, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM tasks WHERE id = $1`

	var affected int64
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		cmd, err := conn.Exec(ctx, query, id)
		if err != nil {
			return err
		}
		affected = cmd.RowsAffected()
		return nil
	})
	if err != nil {
		return mapError(err, "failed to delete task")
	}
	if affected == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *TaskRepository) FindOverdue(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
			  WHERE user_id = $1 AND due_date IS NOT NULL AND due_date < $2 AND status <> $3` + taskOrder

	tasks, err := r.queryTasks(ctx, query, userID, now, model.TaskStatusCompleted.Ordinal())
	if err != nil {
		return nil, mapError(err, "failed to list overdue tasks")
	}

	return tasks, nil
}

// Statistics aggregates counts per status and priority in a single pass.
func (r *TaskRepository) Statistics(ctx context.Context, userID uuid.UUID, now time.Time) (model.TaskStatistics, error) {
	const query = `
		SELECT status, priority, COUNT(*),
		       COUNT(*) FILTER (WHERE due_date IS NOT NULL AND due_date < $2 AND status <> $3)
		FROM tasks
		WHERE user_id = $1
		GROUP BY status, priority`

	stats := model.NewTaskStatistics()
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, userID, now, model.TaskStatusCompleted.Ordinal())
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var statusOrdinal, priorityOrdinal int16
			var count, overdue int64
			if err := rows.Scan(&statusOrdinal, &priorityOrdinal, &count, &overdue); err != nil {
				return err
			}
			status, err := model.TaskStatusFromOrdinal(statusOrdinal)
			if err != nil {
				return err
			}
			priority, err := model.TaskPriorityFromOrdinal(priorityOrdinal)
			if err != nil {
				return err
			}
			stats.Total += int(count)
			stats.ByStatus[status] += int(count)
			stats.ByPriority[priority] += int(count)
			stats.Overdue += int(overdue)
		}
		return rows.Err()
	})
	if err != nil {
		return model.TaskStatistics{}, mapError(err, "failed to compute task statistics")
	}

	return stats, nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	tasks := make([]model.Task, 0)
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var task model.Task
			if err := scanTask(rows, &task); err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

// buildListQuery renders the scoped, filtered and paginated task listing.
// userID is always the first placeholder.
func buildListQuery(userID uuid.UUID, filter model.TaskFilter, page model.Pagination) (string, []any) {
	page = page.Normalize()

	var (
		sb   strings.Builder
		args = []any{userID}
		n    = 2
	)

	sb.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`)

	if filter.Status != nil {
		args = append(args, filter.Status.Ordinal())
		sb.WriteString(fmt.Sprintf(" AND status = $%d", n))
		n++
	}
	if filter.Priority != nil {
		args = append(args, filter.Priority.Ordinal())
		sb.WriteString(fmt.Sprintf(" AND priority = $%d", n))
		n++
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		sb.WriteString(fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d)", n, n))
		n++
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		sb.WriteString(fmt.Sprintf(" AND due_date < $%d", n))
		n++
	}
	if filter.DueAfter != nil {
		args = append(args, *filter.DueAfter)
		sb.WriteString(fmt.Sprintf(" AND due_date > $%d", n))
		n++
	}

	args = append(args, page.Limit, page.Offset)
	sb.WriteString(taskOrder)
	sb.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", n, n+1))

	return sb.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanTask(row pgx.Row, task *model.Task) error {
	var statusOrdinal, priorityOrdinal int16
	err := row.Scan(
		&task.ID, &task.Title, &task.Description, &statusOrdinal, &priorityOrdinal,
		&task.DueDate, &task.CompletedAt, &task.UserID, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return err
	}

	task.Status, err = model.TaskStatusFromOrdinal(statusOrdinal)
	if err != nil {
		return err
	}
	task.Priority, err = model.TaskPriorityFromOrdinal(priorityOrdinal)
	if err != nil {
		return err
	}
	return nil
}
