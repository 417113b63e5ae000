package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dtroode/tasktracker/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

const userColumns = `id, username, email, password_hash, created_at, updated_at`

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	query := `INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING ` + userColumns

	var saved model.User
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		return scanUser(conn.QueryRow(ctx, query,
			user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
		), &saved)
	})
	if err != nil {
		return model.User{}, mapError(err, "failed to create user")
	}

	return saved, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id, "failed to get user by id")
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.findOne(ctx, query, username, "failed to get user by username")
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.findOne(ctx, query, email, "failed to get user by email")
}

// Update persists email, password hash and updated_at. Username is immutable.
func (r *UserRepository) Update(ctx context.Context, user model.User) (model.User, error) {
	query := `UPDATE users SET email = $2, password_hash = $3, updated_at = $4
			  WHERE id = $1
			  RETURNING ` + userColumns

	var saved model.User
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		return scanUser(conn.QueryRow(ctx, query, user.ID, user.Email, user.PasswordHash, user.UpdatedAt), &saved)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, mapError(err, "failed to update user")
	}

	return saved, nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any, action string) (*model.User, error) {
	var user model.User
	err := r.db.withConn(ctx, func(conn *pgxpool.Conn) error {
		return scanUser(conn.QueryRow(ctx, query, arg), &user)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err, action)
	}

	return &user, nil
}

func scanUser(row pgx.Row, user *model.User) error {
	return row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.CreatedAt, &user.UpdatedAt,
	)
}
