package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/dtroode/tasktracker/internal/config"
	"github.com/dtroode/tasktracker/internal/logger"
	"github.com/dtroode/tasktracker/internal/model"
	"github.com/dtroode/tasktracker/internal/password"
	"github.com/dtroode/tasktracker/internal/repository/postgres"
	"github.com/dtroode/tasktracker/internal/service"
	"github.com/dtroode/tasktracker/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

// Core bundles the services a front end drives.
type Core struct {
	Users    *service.User
	Tasks    *service.Task
	Sessions *token.JWT
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel).With("version", buildVersion)

	logAppVersion()

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN, postgres.PoolSettings{
		MaxConns:       cfg.Database.MaxConns,
		AcquireTimeout: cfg.Database.AcquireTimeout,
	})
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	core, err := newCore(db, cfg, logger)
	if err != nil {
		db.Close()
		logger.Fatal("failed to initialize services", "error", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		logger.Fatal("database is not reachable", "error", err)
	}

	// Touches the tasks table through the full service stack.
	if _, err := core.Tasks.GetTaskStatistics(ctx, uuid.Nil); err != nil {
		db.Close()
		logger.Fatal("schema check failed", "error", err)
	}

	if err := checkSessions(core.Sessions); err != nil {
		db.Close()
		logger.Fatal("session token check failed", "error", err)
	}

	logger.Info("task tracker core is ready",
		"max_conns", cfg.Database.MaxConns,
		"acquire_timeout", cfg.Database.AcquireTimeout.String())
}

func newCore(db *postgres.Connection, cfg *config.Config, logger *logger.Logger) (*Core, error) {
	hasher, err := password.NewHasher()
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	return &Core{
		Users:    service.NewUser(postgres.NewUserRepository(db), hasher, logger),
		Tasks:    service.NewTask(postgres.NewTaskRepository(db), logger),
		Sessions: token.NewJWT(cfg.JWT.Secret, cfg.JWT.TTL),
	}, nil
}

// checkSessions issues a token for a throwaway identity and parses it back.
func checkSessions(sessions *token.JWT) error {
	user := model.User{ID: uuid.New(), Username: "bootstrap"}

	tok, err := sessions.Issue(user)
	if err != nil {
		return fmt.Errorf("failed to issue session token: %w", err)
	}
	session, err := sessions.Parse(tok)
	if err != nil {
		return fmt.Errorf("failed to parse session token: %w", err)
	}
	if session.UserID != user.ID {
		return fmt.Errorf("session token subject mismatch: got %s", session.UserID)
	}

	return nil
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
