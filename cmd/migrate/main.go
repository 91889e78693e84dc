package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	appmigrations "github.com/wizardoma/radiance-wellness/migrations"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

const usage = "usage: migrate [up | down <steps> | force <version> | version]"

func main() {
	_ = godotenv.Load()
	logger := logging.New(os.Getenv("LOG_LEVEL"))

	if err := run(os.Args[1:], strings.TrimSpace(os.Getenv("DATABASE_URL")), logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, databaseURL string, logger *logging.Logger) error {
	cmd, arg, err := parseArgs(args)
	if err != nil {
		return err
	}
	if databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("db driver: %w", err)
	}
	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		return fmt.Errorf("source driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch cmd {
	case "force":
		if err := m.Force(arg); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
		logger.Info("forced schema version", "version", arg)
	case "down":
		if err := m.Steps(-arg); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
		logger.Info("rolled back migrations", "steps", arg)
	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("read version: %w", err)
		}
		logger.Info("schema version", "version", version, "dirty", dirty)
	default:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
		logger.Info("migrations complete")
	}
	return nil
}

// parseArgs validates the command line before any database work.
func parseArgs(args []string) (string, int, error) {
	if len(args) == 0 {
		return "up", 0, nil
	}
	switch args[0] {
	case "up", "version":
		return args[0], 0, nil
	case "down", "force":
		if len(args) < 2 {
			return "", 0, fmt.Errorf("%s needs a number; %s", args[0], usage)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return "", 0, fmt.Errorf("invalid number %q: %w", args[1], err)
		}
		if args[0] == "down" && n < 1 {
			return "", 0, fmt.Errorf("down needs at least one step")
		}
		return args[0], n, nil
	default:
		return "", 0, errors.New(usage)
	}
}
