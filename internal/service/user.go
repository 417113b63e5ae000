package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/tasktracker/internal/logger"
	"github.com/dtroode/tasktracker/internal/model"
	"github.com/dtroode/tasktracker/internal/validation"
)

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	VerifyDummy(password string) bool
	NeedsRehash(hash string) bool
}

type User struct {
	userStore model.UserStore
	hasher    PasswordHasher
	logger    *logger.Logger
	now       func() time.Time
}

func NewUser(userStore model.UserStore, hasher PasswordHasher, logger *logger.Logger) *User {
	return &User{
		userStore: userStore,
		hasher:    hasher,
		logger:    logger,
		now:       time.Now,
	}
}

// Register creates an account. Uniqueness is decided by the store, so two
// concurrent registrations of the same username cannot both succeed.
func (s *User) Register(ctx context.Context, req model.RegisterRequest) (model.User, error) {
	s.logger.Debug("User service: registering user", "username", req.Username)

	req, err := validation.Register(req)
	if err != nil {
		return model.User{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.logger.Error("User service: failed to hash password", "username", req.Username, "error", err.Error())
		return model.User{}, err
	}

	now := s.now().UTC()
	user, err := s.userStore.Create(ctx, model.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		var dup *model.DuplicateError
		if errors.As(err, &dup) {
			s.logger.Info("User service: registration conflict", "username", req.Username, "field", dup.Field)
			return model.User{}, err
		}
		return model.User{}, s.storeError("failed to create user", err, "username", req.Username)
	}

	s.logger.Info("User service: user registered", "user_id", user.ID, "username", user.Username)

	return user.Public(), nil
}

// Authenticate resolves identifier as a username first and then as an email.
// Unknown accounts and wrong passwords fail with the same error.
func (s *User) Authenticate(ctx context.Context, identifier, password string) (model.User, error) {
	identifier = strings.TrimSpace(identifier)
	s.logger.Debug("User service: authenticating", "identifier", identifier)

	user, err := s.lookup(ctx, identifier)
	if err != nil {
		return model.User{}, s.storeError("failed to find user", err, "identifier", identifier)
	}

	if user == nil {
		s.hasher.VerifyDummy(password)
		s.logger.Warn("User service: authentication failed", "identifier", identifier)
		return model.User{}, model.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Warn("User service: authentication failed", "identifier", identifier, "user_id", user.ID)
		return model.User{}, model.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, *user, password)
	}

	s.logger.Info("User service: user authenticated", "user_id", user.ID)

	return user.Public(), nil
}

func (s *User) GetProfile(ctx context.Context, userID uuid.UUID) (model.User, error) {
	user, err := s.userStore.FindByID(ctx, userID)
	if err != nil {
		return model.User{}, s.storeError("failed to get user", err, "user_id", userID)
	}
	if user == nil {
		return model.User{}, model.ErrNotFound
	}

	return user.Public(), nil
}

// UpdateProfile changes the email and/or password. The username never changes.
func (s *User) UpdateProfile(ctx context.Context, userID uuid.UUID, req model.UpdateProfileRequest) (model.User, error) {
	s.logger.Debug("User service: updating profile", "user_id", userID)

	req, err := validation.UpdateProfile(req)
	if err != nil {
		return model.User{}, err
	}

	user, err := s.userStore.FindByID(ctx, userID)
	if err != nil {
		return model.User{}, s.storeError("failed to get user", err, "user_id", userID)
	}
	if user == nil {
		return model.User{}, model.ErrNotFound
	}
	if req.Email == nil && req.Password == nil {
		return user.Public(), nil
	}

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			s.logger.Error("User service: failed to hash password", "user_id", userID, "error", err.Error())
			return model.User{}, err
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = s.now().UTC()

	updated, err := s.userStore.Update(ctx, *user)
	if err != nil {
		var dup *model.DuplicateError
		if errors.As(err, &dup) || errors.Is(err, model.ErrNotFound) {
			return model.User{}, err
		}
		return model.User{}, s.storeError("failed to update user", err, "user_id", userID)
	}

	s.logger.Info("User service: profile updated", "user_id", userID)

	return updated.Public(), nil
}

func (s *User) lookup(ctx context.Context, identifier string) (*model.User, error) {
	if identifier == "" {
		return nil, nil
	}

	user, err := s.userStore.FindByUsername(ctx, identifier)
	if err != nil || user != nil {
		return user, err
	}
	if !strings.Contains(identifier, "@") {
		return nil, nil
	}
	return s.userStore.FindByEmail(ctx, strings.ToLower(identifier))
}

// rehash upgrades a hash produced with an older cost. Failures are only logged.
func (s *User) rehash(ctx context.Context, user model.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("User service: failed to rehash password", "user_id", user.ID, "error", err.Error())
		return
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now().UTC()
	if _, err := s.userStore.Update(ctx, user); err != nil {
		s.logger.Warn("User service: failed to store rehashed password", "user_id", user.ID, "error", err.Error())
	}
}

func (s *User) storeError(msg string, err error, args ...any) error {
	if model.IsRetryable(err) {
		s.logger.Error("User service: "+msg, append(args, "error", err.Error())...)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
