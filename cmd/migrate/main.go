package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/upb/auth-service/config"
	"github.com/upb/auth-service/internal/observability"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/repositories/postgres"
	"github.com/upb/auth-service/services/account"
	"go.uber.org/zap"
)

const superuserCommand = "superuser"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [%s|%s] [args]\n", strings.Join(postgres.MigrationCommands, "|"), superuserCommand)
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "up"
	var args []string
	if flag.NArg() > 0 {
		command, args = flag.Arg(0), flag.Args()[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, command, args); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string) error {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:   os.Getenv("LOG_LEVEL"),
		Format:  os.Getenv("LOG_FORMAT"),
		Service: "auth-migrate",
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}

	db, err := postgres.NewDB(dbCfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if command == superuserCommand {
		factory := postgres.NewRepositoryFactoryFromDB(db, logger)
		accounts := account.NewService(factory.NewRepositories(), factory.GetTransactionManager(), logger)
		return ensureSuperuser(ctx, accounts, config.LoadSuperuser(), logger)
	}

	if err := db.Migrate(ctx, command, args...); err != nil {
		return err
	}
	logger.Info("migrations applied", zap.String("command", command))
	return nil
}

type superuserEnsurer interface {
	EnsureSuperuser(ctx context.Context, username, email, password string) (*models.User, error)
}

// ensureSuperuser creates the bootstrap admin. Without SUPERUSER_PASSWORD it
// does nothing so the command is safe to run on every deploy.
func ensureSuperuser(ctx context.Context, accounts superuserEnsurer, cfg config.SuperuserConfig, logger *zap.Logger) error {
	if cfg.Password == "" {
		logger.Info("SUPERUSER_PASSWORD not set, skipping superuser bootstrap")
		return nil
	}

	user, err := accounts.EnsureSuperuser(ctx, cfg.Username, cfg.Email, cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to ensure superuser: %w", err)
	}
	logger.Info("superuser ready",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username))
	return nil
}
