package database

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate 将内嵌的 SQL 迁移应用到 dsn 指向的数据库，已是最新版本时视为成功。
func Migrate(dsn string, logger log.Logger) error {
	return RunMigrate(dsn, "up", 0, logger)
}

// RunMigrate 执行迁移命令：up、down、version、force。
func RunMigrate(dsn, command string, forceVersion int, logger log.Logger) error {
	helper := log.NewHelper(logger)

	switch command {
	case "up", "down", "version", "force":
	default:
		return fmt.Errorf("unknown migrate command: %s (use: up, down, version, force)", command)
	}

	migrateURL, err := toMigrateURL(dsn)
	if err != nil {
		return err
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer m.Close()
	m.Log = &migrateLogger{helper: helper}

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
	case "force":
		if err := m.Force(forceVersion); err != nil {
			return fmt.Errorf("migrate force: %w", err)
		}
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migrate version: %w", err)
	}
	helper.Infof("migration %s done: version=%d dirty=%v", command, version, dirty)
	return nil
}

// toMigrateURL 将 postgres:// DSN 转换为 golang-migrate pgx/v5 驱动使用的 pgx5:// 形式。
func toMigrateURL(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil || parsed.Scheme == "" {
		return "", fmt.Errorf("migrate requires a URL-form DSN: %s", sanitizeDSN(dsn))
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql", "pgx5":
		parsed.Scheme = "pgx5"
	default:
		return "", fmt.Errorf("unsupported DSN scheme %q", parsed.Scheme)
	}
	return parsed.String(), nil
}

type migrateLogger struct {
	helper *log.Helper
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.helper.Infof(strings.TrimRight(format, "\n"), v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
