package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/dtroode/tasktracker/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; ok {
		return model.User{}, model.NewDuplicateError("id")
	}
	for _, existing := range r.s.users {
		if existing.Username == user.Username {
			return model.User{}, model.NewDuplicateError("username")
		}
		if existing.Email == user.Email {
			return model.User{}, model.NewDuplicateError("email")
		}
	}

	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.find(ctx, func(u model.User) bool { return u.ID == id })
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.find(ctx, func(u model.User) bool { return u.Username == username })
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.find(ctx, func(u model.User) bool { return u.Email == email })
}

func (r *UserRepository) Update(ctx context.Context, user model.User) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.users[user.ID]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	for id, existing := range r.s.users {
		if id != user.ID && existing.Email == user.Email {
			return model.User{}, model.NewDuplicateError("email")
		}
	}

	current.Email = user.Email
	current.PasswordHash = user.PasswordHash
	current.UpdatedAt = user.UpdatedAt
	r.s.users[user.ID] = current
	return current, nil
}

func (r *UserRepository) find(ctx context.Context, match func(model.User) bool) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}
