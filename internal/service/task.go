package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dtroode/tasktracker/internal/logger"
	"github.com/dtroode/tasktracker/internal/model"
	"github.com/dtroode/tasktracker/internal/validation"
)

// bulkConcurrency bounds the per-item calls a bulk operation runs at once.
const bulkConcurrency = 4

type Task struct {
	taskStore model.TaskStore
	logger    *logger.Logger
	now       func() time.Time
}

func NewTask(taskStore model.TaskStore, logger *logger.Logger) *Task {
	return &Task{
		taskStore: taskStore,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateTask stores a new pending task owned by userID.
func (s *Task) CreateTask(ctx context.Context, userID uuid.UUID, req model.CreateTaskRequest) (model.Task, error) {
	s.logger.Debug("Task service: creating task", "user_id", userID)

	now := s.now().UTC()
	req, err := validation.CreateTask(req, now)
	if err != nil {
		return model.Task{}, err
	}

	priority := model.DefaultTaskPriority
	if req.Priority != nil {
		priority = *req.Priority
	}

	task, err := s.taskStore.Create(ctx, model.Task{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		Status:      model.TaskStatusPending,
		Priority:    priority,
		DueDate:     req.DueDate,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return model.Task{}, s.storeError("failed to create task", err, "user_id", userID)
	}

	s.logger.Info("Task service: task created", "user_id", userID, "task_id", task.ID)

	return task, nil
}

func (s *Task) GetTask(ctx context.Context, userID, taskID uuid.UUID) (model.Task, error) {
	return s.owned(ctx, userID, taskID)
}

// UpdateTask applies a partial update. Only the fields present in req are
// validated and written.
func (s *Task) UpdateTask(ctx context.Context, userID, taskID uuid.UUID, req model.UpdateTaskRequest) (model.Task, error) {
	s.logger.Debug("Task service: updating task", "user_id", userID, "task_id", taskID)

	task, err := s.owned(ctx, userID, taskID)
	if err != nil {
		return model.Task{}, err
	}

	now := s.now().UTC()
	req, err = validation.UpdateTask(req, now)
	if err != nil {
		return model.Task{}, err
	}
	if req.IsEmpty() {
		return task, nil
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		if *req.Description == "" {
			task.Description = nil
		} else {
			task.Description = req.Description
		}
	}
	if req.Status != nil {
		task.SetStatus(*req.Status, now)
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	switch {
	case req.ClearDueDate:
		task.DueDate = nil
	case req.DueDate != nil:
		task.DueDate = req.DueDate
	}

	return s.save(ctx, task, now)
}

func (s *Task) CompleteTask(ctx context.Context, userID, taskID uuid.UUID) (model.Task, error) {
	return s.setStatus(ctx, userID, taskID, model.TaskStatusCompleted)
}

// UncompleteTask reopens a task as pending. A previous in-progress state is not restored.
func (s *Task) UncompleteTask(ctx context.Context, userID, taskID uuid.UUID) (model.Task, error) {
	return s.setStatus(ctx, userID, taskID, model.TaskStatusPending)
}

func (s *Task) DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error {
	s.logger.Debug("Task service: deleting task", "user_id", userID, "task_id", taskID)

	if _, err := s.owned(ctx, userID, taskID); err != nil {
		return err
	}

	if err := s.taskStore.Delete(ctx, taskID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		return s.storeError("failed to delete task", err, "user_id", userID, "task_id", taskID)
	}

	s.logger.Info("Task service: task deleted", "user_id", userID, "task_id", taskID)

	return nil
}

// GetTasks lists the caller's tasks. The scope is always userID; the filter
// has no way to widen it.
func (s *Task) GetTasks(ctx context.Context, userID uuid.UUID, filter model.TaskFilter, page model.Pagination) ([]model.Task, error) {
	page, err := validation.Pagination(page)
	if err != nil {
		return nil, err
	}

	tasks, err := s.taskStore.FindByUser(ctx, userID, filter, page)
	if err != nil {
		return nil, s.storeError("failed to list tasks", err, "user_id", userID)
	}

	return tasks, nil
}

func (s *Task) GetOverdueTasks(ctx context.Context, userID uuid.UUID) ([]model.Task, error) {
	tasks, err := s.taskStore.FindOverdue(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, s.storeError("failed to list overdue tasks", err, "user_id", userID)
	}

	return tasks, nil
}

func (s *Task) GetTaskStatistics(ctx context.Context, userID uuid.UUID) (model.TaskStatistics, error) {
	stats, err := s.taskStore.Statistics(ctx, userID, s.now().UTC())
	if err != nil {
		return model.TaskStatistics{}, s.storeError("failed to compute task statistics", err, "user_id", userID)
	}

	return stats, nil
}

// SearchTasks matches term against title and description. A blank term finds nothing.
func (s *Task) SearchTasks(ctx context.Context, userID uuid.UUID, term string, limit int) ([]model.Task, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []model.Task{}, nil
	}

	return s.GetTasks(ctx, userID, model.TaskFilter{Search: term}, model.Pagination{Limit: limit})
}

// BulkUpdateStatus moves every listed task to status. Items fail independently;
// the call fails only when none succeeded.
func (s *Task) BulkUpdateStatus(ctx context.Context, userID uuid.UUID, taskIDs []uuid.UUID, status model.TaskStatus) ([]model.Task, error) {
	if err := validation.Status(status); err != nil {
		return nil, err
	}

	results := make([]*model.Task, len(taskIDs))
	failed := s.bulk(ctx, taskIDs, func(ctx context.Context, i int, taskID uuid.UUID) error {
		task, err := s.setStatus(ctx, userID, taskID, status)
		if err != nil {
			return err
		}
		results[i] = &task
		return nil
	})

	if len(taskIDs) > 0 && failed == len(taskIDs) {
		return nil, &model.BulkError{Failed: failed, Total: len(taskIDs)}
	}

	updated := make([]model.Task, 0, len(taskIDs)-failed)
	for _, task := range results {
		if task != nil {
			updated = append(updated, *task)
		}
	}

	s.logger.Info("Task service: bulk status update finished",
		"user_id", userID, "status", status.String(), "updated", len(updated), "failed", failed)

	return updated, nil
}

// BulkDeleteTasks deletes every listed task and returns how many were removed.
func (s *Task) BulkDeleteTasks(ctx context.Context, userID uuid.UUID, taskIDs []uuid.UUID) (int, error) {
	failed := s.bulk(ctx, taskIDs, func(ctx context.Context, _ int, taskID uuid.UUID) error {
		return s.DeleteTask(ctx, userID, taskID)
	})

	if len(taskIDs) > 0 && failed == len(taskIDs) {
		return 0, &model.BulkError{Failed: failed, Total: len(taskIDs)}
	}

	deleted := len(taskIDs) - failed
	s.logger.Info("Task service: bulk delete finished", "user_id", userID, "deleted", deleted, "failed", failed)

	return deleted, nil
}

// bulk runs fn for every id with bounded concurrency and returns the number of failures.
func (s *Task) bulk(ctx context.Context, taskIDs []uuid.UUID, fn func(ctx context.Context, i int, taskID uuid.UUID) error) int {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed int
	)
	g.SetLimit(bulkConcurrency)

	for i, taskID := range taskIDs {
		g.Go(func() error {
			if err := fn(ctx, i, taskID); err != nil {
				s.logger.Debug("Task service: bulk item failed", "task_id", taskID, "error", err.Error())
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return failed
}

func (s *Task) setStatus(ctx context.Context, userID, taskID uuid.UUID, status model.TaskStatus) (model.Task, error) {
	s.logger.Debug("Task service: changing task status", "user_id", userID, "task_id", taskID, "status", status.String())

	task, err := s.owned(ctx, userID, taskID)
	if err != nil {
		return model.Task{}, err
	}

	now := s.now().UTC()
	task.SetStatus(status, now)

	return s.save(ctx, task, now)
}

func (s *Task) save(ctx context.Context, task model.Task, now time.Time) (model.Task, error) {
	task.UpdatedAt = now

	updated, err := s.taskStore.Update(ctx, task)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Task{}, err
		}
		return model.Task{}, s.storeError("failed to update task", err, "user_id", task.UserID, "task_id", task.ID)
	}

	s.logger.Info("Task service: task updated", "user_id", task.UserID, "task_id", task.ID)

	return updated, nil
}

// owned loads taskID and checks that userID owns it.
func (s *Task) owned(ctx context.Context, userID, taskID uuid.UUID) (model.Task, error) {
	task, err := s.taskStore.FindByID(ctx, taskID)
	if err != nil {
		return model.Task{}, s.storeError("failed to get task", err, "user_id", userID, "task_id", taskID)
	}
	if task == nil {
		return model.Task{}, model.ErrNotFound
	}
	if task.UserID != userID {
		s.logger.Warn("Task service: access to foreign task denied",
			"user_id", userID, "task_id", taskID, "owner_id", task.UserID)
		return model.Task{}, model.ErrForbidden
	}

	return *task, nil
}

func (s *Task) storeError(msg string, err error, args ...any) error {
	if model.IsRetryable(err) {
		s.logger.Error("Task service: "+msg, append(args, "error", err.Error())...)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
