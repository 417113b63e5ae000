package memory

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/tasktracker/internal/model"
)

var _ model.TaskStore = (*TaskRepository)(nil)

type TaskRepository struct {
	s *Store
}

func (r *TaskRepository) Create(ctx context.Context, task model.Task) (model.Task, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, err
	}
	if err := checkTask(task); err != nil {
		return model.Task{}, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[task.UserID]; !ok {
		return model.Task{}, model.ErrInvalidReference
	}
	if _, ok := r.s.tasks[task.ID]; ok {
		return model.Task{}, model.NewDuplicateError("id")
	}

	r.s.tasks[task.ID] = cloneTask(task)
	return cloneTask(task), nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	task, ok := r.s.tasks[id]
	if !ok {
		return nil, nil
	}
	found := cloneTask(task)
	return &found, nil
}

func (r *TaskRepository) FindByUser(ctx context.Context, userID uuid.UUID, filter model.TaskFilter, page model.Pagination) ([]model.Task, error) {
	page = page.Normalize()

	tasks, err := r.collect(ctx, func(t model.Task) bool {
		return t.UserID == userID && filter.Matches(t)
	})
	if err != nil {
		return nil, err
	}

	if page.Offset >= len(tasks) {
		return []model.Task{}, nil
	}
	end := min(page.Offset+page.Limit, len(tasks))
	return tasks[page.Offset:end], nil
}

// Update replaces the mutable fields. Owner and creation time are kept.
func (r *TaskRepository) Update(ctx context.Context, task model.Task) (model.Task, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, err
	}
	if err := checkTask(task); err != nil {
		return model.Task{}, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.tasks[task.ID]
	if !ok {
		return model.Task{}, model.ErrNotFound
	}

	task.UserID = current.UserID
	task.CreatedAt = current.CreatedAt
	r.s.tasks[task.ID] = cloneTask(task)
	return cloneTask(task), nil
}

func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[id]; !ok {
		return model.ErrNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

func (r *TaskRepository) FindOverdue(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.Task, error) {
	return r.collect(ctx, func(t model.Task) bool {
		return t.UserID == userID && t.IsOverdue(now)
	})
}

func (r *TaskRepository) Statistics(ctx context.Context, userID uuid.UUID, now time.Time) (model.TaskStatistics, error) {
	if err := ctx.Err(); err != nil {
		return model.TaskStatistics{}, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := model.NewTaskStatistics()
	for _, t := range r.s.tasks {
		if t.UserID == userID {
			stats.Add(t, now)
		}
	}
	return stats, nil
}

// collect returns matching tasks newest first, ties broken by id descending.
func (r *TaskRepository) collect(ctx context.Context, match func(model.Task) bool) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	out := make([]model.Task, 0)
	for _, t := range r.s.tasks {
		if match(t) {
			out = append(out, cloneTask(t))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) > 0
	})
	return out, nil
}

// checkTask enforces the same row constraints as the tasks table.
func checkTask(t model.Task) error {
	switch {
	case strings.TrimSpace(t.Title) == "":
		return model.NewValidationError("title", "violates constraint tasks_title_not_blank")
	case !t.Status.Valid():
		return model.NewValidationError("status", "violates constraint tasks_status_check")
	case !t.Priority.Valid():
		return model.NewValidationError("priority", "violates constraint tasks_priority_check")
	case t.IsCompleted() != (t.CompletedAt != nil):
		return model.NewValidationError("completed_at", "violates constraint tasks_completed_at_matches_status")
	}
	return nil
}
