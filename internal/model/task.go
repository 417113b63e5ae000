package model

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStore defines persistence operations for tasks.
// The user scope is always passed separately from the filter.
type TaskStore interface {
	Create(ctx context.Context, task Task) (Task, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Task, error)
	FindByUser(ctx context.Context, userID uuid.UUID, filter TaskFilter, page Pagination) ([]Task, error)
	Update(ctx context.Context, task Task) (Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindOverdue(ctx context.Context, userID uuid.UUID, now time.Time) ([]Task, error)
	Statistics(ctx context.Context, userID uuid.UUID, now time.Time) (TaskStatistics, error)
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus int16

const (
	TaskStatusPending    TaskStatus = 0
	TaskStatusInProgress TaskStatus = 1
	TaskStatusCompleted  TaskStatus = 2
)

// TaskStatuses lists every status in ordinal order.
var TaskStatuses = []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted}

func (s TaskStatus) Valid() bool {
	return s >= TaskStatusPending && s <= TaskStatusCompleted
}

func (s TaskStatus) String() string {
	switch s {
	case TaskStatusPending:
		return "pending"
	case TaskStatusInProgress:
		return "in_progress"
	case TaskStatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", int16(s))
	}
}

// Ordinal is the value stored in the tasks.status column.
func (s TaskStatus) Ordinal() int16 {
	return int16(s)
}

// TaskStatusFromOrdinal converts a stored tasks.status value.
func TaskStatusFromOrdinal(v int16) (TaskStatus, error) {
	s := TaskStatus(v)
	if !s.Valid() {
		return 0, fmt.Errorf("unknown task status ordinal %d", v)
	}
	return s, nil
}

// ParseTaskStatus accepts the names produced by String.
func ParseTaskStatus(name string) (TaskStatus, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)
	for _, s := range TaskStatuses {
		if s.String() == n {
			return s, nil
		}
	}
	return 0, NewValidationError("status", fmt.Sprintf("unknown status %q", name))
}

// TaskPriority ranks tasks. Medium is the default.
type TaskPriority int16

const (
	TaskPriorityLow    TaskPriority = 0
	TaskPriorityMedium TaskPriority = 1
	TaskPriorityHigh   TaskPriority = 2

	DefaultTaskPriority = TaskPriorityMedium
)

// TaskPriorities lists every priority in ordinal order.
var TaskPriorities = []TaskPriority{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh}

func (p TaskPriority) Valid() bool {
	return p >= TaskPriorityLow && p <= TaskPriorityHigh
}

func (p TaskPriority) String() string {
	switch p {
	case TaskPriorityLow:
		return "low"
	case TaskPriorityMedium:
		return "medium"
	case TaskPriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int16(p))
	}
}

// Ordinal is the value stored in the tasks.priority column.
func (p TaskPriority) Ordinal() int16 {
	return int16(p)
}

// TaskPriorityFromOrdinal converts a stored tasks.priority value.
func TaskPriorityFromOrdinal(v int16) (TaskPriority, error) {
	p := TaskPriority(v)
	if !p.Valid() {
		return 0, fmt.Errorf("unknown task priority ordinal %d", v)
	}
	return p, nil
}

// ParseTaskPriority accepts the names produced by String.
func ParseTaskPriority(name string) (TaskPriority, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, p := range TaskPriorities {
		if p.String() == n {
			return p, nil
		}
	}
	return 0, NewValidationError("priority", fmt.Sprintf("unknown priority %q", name))
}

// Task is a unit of work owned by a single user.
// CompletedAt is set if and only if Status is TaskStatusCompleted.
type Task struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	UserID      uuid.UUID    `json:"user_id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (t Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}

// IsOverdue reports whether the task is past due and still open.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.IsCompleted()
}

// DaysUntilDue returns whole days until the due date, negative when past due.
func (t Task) DaysUntilDue(now time.Time) (int, bool) {
	if t.DueDate == nil {
		return 0, false
	}
	return int(t.DueDate.Sub(now).Hours() / 24), true
}

// SetStatus moves the task to status and keeps CompletedAt consistent with it.
func (t *Task) SetStatus(status TaskStatus, now time.Time) {
	switch {
	case status == TaskStatusCompleted && t.Status != TaskStatusCompleted:
		completedAt := now
		t.CompletedAt = &completedAt
	case status != TaskStatusCompleted:
		t.CompletedAt = nil
	}
	t.Status = status
}

// CreateTaskRequest carries the caller-supplied fields of a new task.
type CreateTaskRequest struct {
	Title       string
	Description *string
	Priority    *TaskPriority
	DueDate     *time.Time
}

// UpdateTaskRequest is a partial update: nil fields are left untouched.
// An empty Description clears it; ClearDueDate removes the due date.
type UpdateTaskRequest struct {
	Title        *string
	Description  *string
	Status       *TaskStatus
	Priority     *TaskPriority
	DueDate      *time.Time
	ClearDueDate bool
}

// IsEmpty reports whether the request touches no field.
func (r UpdateTaskRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.Status == nil &&
		r.Priority == nil && r.DueDate == nil && !r.ClearDueDate
}

// TaskFilter narrows a task listing. Zero values mean "no constraint".
type TaskFilter struct {
	Status    *TaskStatus
	Priority  *TaskPriority
	Search    string
	DueBefore *time.Time
	DueAfter  *time.Time
}

// Matches applies the filter to a single task.
func (f TaskFilter) Matches(t Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.DueBefore != nil && (t.DueDate == nil || !t.DueDate.Before(*f.DueBefore)) {
		return false
	}
	if f.DueAfter != nil && (t.DueDate == nil || !t.DueDate.After(*f.DueAfter)) {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		inTitle := strings.Contains(strings.ToLower(t.Title), term)
		inDescription := t.Description != nil && strings.Contains(strings.ToLower(*t.Description), term)
		if !inTitle && !inDescription {
			return false
		}
	}
	return true
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Pagination windows a listing. A zero Limit means DefaultPageLimit.
type Pagination struct {
	Offset int
	Limit  int
}

// Normalize applies the default limit and clamps it to MaxPageLimit.
func (p Pagination) Normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	return p
}

// TaskStatistics aggregates a user's full task set.
type TaskStatistics struct {
	Total      int                  `json:"total"`
	ByStatus   map[TaskStatus]int   `json:"by_status"`
	ByPriority map[TaskPriority]int `json:"by_priority"`
	Overdue    int                  `json:"overdue"`
}

// NewTaskStatistics returns statistics with every status and priority present at zero.
func NewTaskStatistics() TaskStatistics {
	stats := TaskStatistics{
		ByStatus:   make(map[TaskStatus]int, len(TaskStatuses)),
		ByPriority: make(map[TaskPriority]int, len(TaskPriorities)),
	}
	for _, s := range TaskStatuses {
		stats.ByStatus[s] = 0
	}
	for _, p := range TaskPriorities {
		stats.ByPriority[p] = 0
	}
	return stats
}

// Add counts a single task.
func (s *TaskStatistics) Add(t Task, now time.Time) {
	s.Total++
	s.ByStatus[t.Status]++
	s.ByPriority[t.Priority]++
	if t.IsOverdue(now) {
		s.Overdue++
	}
}

// CompletionRate is the completed share of all tasks in percent, rounded to two decimals.
func (s TaskStatistics) CompletionRate() float64 {
	if s.Total == 0 {
		return 0
	}
	rate := float64(s.ByStatus[TaskStatusCompleted]) / float64(s.Total) * 100
	return math.Round(rate*100) / 100
}
