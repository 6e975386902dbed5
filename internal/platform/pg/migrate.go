package pg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"pgwait/internal/shared"
)

// MigrationInfo содержит информацию о результате применения миграций.
type MigrationInfo struct {
	Applied        bool // Были ли применены новые миграции
	CurrentVersion uint // Версия до применения
	FinalVersion   uint // Версия после применения
	Dirty          bool // Находится ли БД в "грязном" состоянии
}

// ApplyMigrations применяет все доступные миграции к базе данных.
// Вызывается после того, как Connector дождался базы.
// Повторный вызов безопасен: migrate.ErrNoChange не считается ошибкой.
//
// Параметры:
//   - dsn: строка подключения в любом формате, который понимает pgx (URL или key=value)
//   - source: URL источника ("file://migrations") или путь к каталогу без схемы
func ApplyMigrations(dsn, source string) (MigrationInfo, error) {
	if !hasScheme(source) {
		return ApplyMigrationsFromFS(dsn, os.DirFS(source), ".")
	}

	m, err := newMigrate(dsn, func(drv database.Driver) (*migrate.Migrate, error) {
		return migrate.NewWithDatabaseInstance(source, "postgres", drv)
	})
	if err != nil {
		return MigrationInfo{}, err
	}
	defer closeMigrate(m)

	return up(m)
}

// ApplyMigrationsFromFS применяет миграции из fs.FS (например, embed.FS).
func ApplyMigrationsFromFS(dsn string, fsys fs.FS, dirName string) (MigrationInfo, error) {
	m, err := newMigrateFS(dsn, fsys, dirName)
	if err != nil {
		return MigrationInfo{}, err
	}
	defer closeMigrate(m)

	return up(m)
}

// MigrationVersion возвращает текущую версию примененных миграций и флаг dirty.
// Если миграции еще не применялись, возвращает 0 без ошибки.
func MigrationVersion(dsn, source string) (uint, bool, error) {
	var (
		m   *migrate.Migrate
		err error
	)
	if hasScheme(source) {
		m, err = newMigrate(dsn, func(drv database.Driver) (*migrate.Migrate, error) {
			return migrate.NewWithDatabaseInstance(source, "postgres", drv)
		})
	} else {
		m, err = newMigrateFS(dsn, os.DirFS(source), ".")
	}
	if err != nil {
		return 0, false, err
	}
	defer closeMigrate(m)

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

func newMigrateFS(dsn string, fsys fs.FS, dirName string) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(fsys, dirName)
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := newMigrate(dsn, func(drv database.Driver) (*migrate.Migrate, error) {
		return migrate.NewWithInstance("iofs", sourceDriver, "postgres", drv)
	})
	if err != nil {
		_ = sourceDriver.Close()
		return nil, err
	}
	return m, nil
}

// newMigrate открывает database/sql поверх pgx с той же конфигурацией,
// что и Connector, и передает драйвер migrate в build.
func newMigrate(dsn string, build func(database.Driver) (*migrate.Migrate, error)) (*migrate.Migrate, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, shared.MarkKind(fmt.Errorf("parse connection string: %w", err), shared.KindValidation)
	}

	db := stdlib.OpenDB(*connCfg)
	drv, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open migration driver: %w", err)
	}

	m, err := build(drv)
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

func hasScheme(source string) bool {
	return strings.Contains(source, "://")
}

func up(m *migrate.Migrate) (MigrationInfo, error) {
	var info MigrationInfo

	currentVersion, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationInfo{}, fmt.Errorf("failed to get current version: %w", err)
	}
	info.CurrentVersion = currentVersion
	info.FinalVersion = currentVersion
	info.Dirty = dirty

	if dirty {
		return info, fmt.Errorf("database is in dirty state at version %d", currentVersion)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return info, nil
		}
		return info, fmt.Errorf("failed to apply migrations: %w", err)
	}

	info.Applied = true
	if finalVersion, _, err := m.Version(); err == nil {
		info.FinalVersion = finalVersion
	}
	return info, nil
}

func closeMigrate(m *migrate.Migrate) {
	sourceErr, dbErr := m.Close()
	_, _ = sourceErr, dbErr
}
