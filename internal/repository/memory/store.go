// Package memory keeps users and tasks in process memory. It mirrors the
// constraints of the postgres schema and is used by tests and local runs.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dtroode/tasktracker/internal/model"
)

type Store struct {
	mu sync.RWMutex

	users map[uuid.UUID]model.User
	tasks map[uuid.UUID]model.Task
}

func NewStore() *Store {
	return &Store{
		users: make(map[uuid.UUID]model.User),
		tasks: make(map[uuid.UUID]model.Task),
	}
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

func (s *Store) Tasks() *TaskRepository {
	return &TaskRepository{s: s}
}

// DeleteUser removes the user together with every task it owns.
func (s *Store) DeleteUser(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.users, id)
	for taskID, task := range s.tasks {
		if task.UserID == id {
			delete(s.tasks, taskID)
		}
	}
	return nil
}

func cloneTask(t model.Task) model.Task {
	out := t
	if t.Description != nil {
		d := *t.Description
		out.Description = &d
	}
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}
