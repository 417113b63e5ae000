//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/tasktracker/internal/model"
	repo "github.com/dtroode/tasktracker/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "tasktracker_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/tasktracker_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func connect(t *testing.T, settings repo.PoolSettings) *repo.Connection {
	t.Helper()
	conn, err := repo.NewConnection(context.Background(), dsn, settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newUser(name string) model.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return model.User{
		ID:           uuid.New(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "$2a$12$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newTask(owner uuid.UUID, title string, createdAt time.Time) model.Task {
	return model.Task{
		ID:        uuid.New(),
		Title:     title,
		Status:    model.TaskStatusPending,
		Priority:  model.TaskPriorityMedium,
		UserID:    owner,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	ur := repo.NewUserRepository(connect(t, repo.PoolSettings{}))

	u := newUser("user_crud")
	saved, err := ur.Create(ctx, u)
	require.NoError(t, err)
	require.Equal(t, u.ID, saved.ID)

	byName, err := ur.FindByUsername(ctx, u.Username)
	require.NoError(t, err)
	require.NotNil(t, byName)
	require.Equal(t, u.ID, byName.ID)

	byEmail, err := ur.FindByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	require.Equal(t, u.ID, byEmail.ID)

	missing, err := ur.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)

	t.Run("duplicate username", func(t *testing.T) {
		dup := newUser("user_crud")
		dup.Email = "other@example.com"
		_, err := ur.Create(ctx, dup)

		var dupErr *model.DuplicateError
		require.ErrorAs(t, err, &dupErr)
		require.Equal(t, "username", dupErr.Field)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := newUser("user_crud_2")
		dup.Email = u.Email
		_, err := ur.Create(ctx, dup)

		var dupErr *model.DuplicateError
		require.ErrorAs(t, err, &dupErr)
		require.Equal(t, "email", dupErr.Field)
	})

	t.Run("update", func(t *testing.T) {
		saved.Email = "changed@example.com"
		saved.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		updated, err := ur.Update(ctx, saved)
		require.NoError(t, err)
		require.Equal(t, "changed@example.com", updated.Email)

		_, err = ur.Update(ctx, newUser("ghost"))
		require.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestTaskRepository(t *testing.T) {
	ctx := context.Background()
	conn := connect(t, repo.PoolSettings{})
	ur := repo.NewUserRepository(conn)
	tr := repo.NewTaskRepository(conn)

	owner, err := ur.Create(ctx, newUser("task_owner"))
	require.NoError(t, err)
	other, err := ur.Create(ctx, newUser("task_other"))
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Microsecond)
	description := "two liters of milk"
	due := base.Add(48 * time.Hour)

	first := newTask(owner.ID, "Buy milk", base)
	first.Description = &description
	first.DueDate = &due
	first.Priority = model.TaskPriorityHigh
	second := newTask(owner.ID, "Write report", base.Add(time.Second))
	third := newTask(owner.ID, "100% done_ish", base.Add(2*time.Second))
	foreign := newTask(other.ID, "Buy milk too", base)

	for _, task := range []model.Task{first, second, third, foreign} {
		_, err := tr.Create(ctx, task)
		require.NoError(t, err)
	}

	t.Run("find by id", func(t *testing.T) {
		got, err := tr.FindByID(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Buy milk", got.Title)
		assert.Equal(t, model.TaskPriorityHigh, got.Priority)
		require.NotNil(t, got.Description)
		assert.Equal(t, description, *got.Description)
		assert.Nil(t, got.CompletedAt)

		missing, err := tr.FindByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("list is scoped and newest first", func(t *testing.T) {
		list, err := tr.FindByUser(ctx, owner.ID, model.TaskFilter{}, model.Pagination{})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, third.ID, list[0].ID)
		assert.Equal(t, second.ID, list[1].ID)
		assert.Equal(t, first.ID, list[2].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		list, err := tr.FindByUser(ctx, owner.ID, model.TaskFilter{}, model.Pagination{Offset: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, second.ID, list[0].ID)
	})

	t.Run("filters", func(t *testing.T) {
		high := model.TaskPriorityHigh
		list, err := tr.FindByUser(ctx, owner.ID, model.TaskFilter{Priority: &high}, model.Pagination{})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, first.ID, list[0].ID)

		list, err = tr.FindByUser(ctx, owner.ID, model.TaskFilter{Search: "LITERS"}, model.Pagination{})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, first.ID, list[0].ID)

		list, err = tr.FindByUser(ctx, owner.ID, model.TaskFilter{Search: "100%"}, model.Pagination{})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, third.ID, list[0].ID)

		list, err = tr.FindByUser(ctx, owner.ID, model.TaskFilter{Search: "_"}, model.Pagination{})
		require.NoError(t, err)
		require.Len(t, list, 1)

		before := base.Add(72 * time.Hour)
		list, err = tr.FindByUser(ctx, owner.ID, model.TaskFilter{DueBefore: &before}, model.Pagination{})
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("update", func(t *testing.T) {
		got, err := tr.FindByID(ctx, second.ID)
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Microsecond)
		got.SetStatus(model.TaskStatusCompleted, now)
		got.UpdatedAt = now
		updated, err := tr.Update(ctx, *got)
		require.NoError(t, err)
		assert.Equal(t, model.TaskStatusCompleted, updated.Status)
		require.NotNil(t, updated.CompletedAt)

		_, err = tr.Update(ctx, newTask(owner.ID, "ghost", now))
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("completed_at must match status", func(t *testing.T) {
		got, err := tr.FindByID(ctx, third.ID)
		require.NoError(t, err)
		got.Status = model.TaskStatusCompleted
		_, err = tr.Update(ctx, *got)

		var vErr *model.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("overdue and statistics", func(t *testing.T) {
		later := base.Add(72 * time.Hour)
		overdue, err := tr.FindOverdue(ctx, owner.ID, later)
		require.NoError(t, err)
		require.Len(t, overdue, 1)
		assert.Equal(t, first.ID, overdue[0].ID)

		stats, err := tr.Statistics(ctx, owner.ID, later)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 1, stats.ByStatus[model.TaskStatusCompleted])
		assert.Equal(t, 2, stats.ByStatus[model.TaskStatusPending])
		assert.Equal(t, 0, stats.ByStatus[model.TaskStatusInProgress])
		assert.Equal(t, 1, stats.ByPriority[model.TaskPriorityHigh])
		assert.Equal(t, 1, stats.Overdue)
	})

	t.Run("unknown owner", func(t *testing.T) {
		_, err := tr.Create(ctx, newTask(uuid.New(), "orphan", base))
		require.ErrorIs(t, err, model.ErrInvalidReference)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, tr.Delete(ctx, third.ID))
		require.ErrorIs(t, tr.Delete(ctx, third.ID), model.ErrNotFound)
	})

	t.Run("deleting a user cascades", func(t *testing.T) {
		_, err := conn.Exec(ctx, `DELETE FROM users WHERE id = $1`, other.ID)
		require.NoError(t, err)

		got, err := tr.FindByID(ctx, foreign.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestConnection_PoolExhausted(t *testing.T) {
	ctx := context.Background()
	conn := connect(t, repo.PoolSettings{MaxConns: 1, AcquireTimeout: 100 * time.Millisecond})
	ur := repo.NewUserRepository(conn)

	held, err := conn.Acquire(ctx)
	require.NoError(t, err)
	defer held.Release()

	_, err = ur.FindByID(ctx, uuid.New())
	require.ErrorIs(t, err, model.ErrPoolExhausted)
	assert.True(t, model.IsRetryable(err))
}
