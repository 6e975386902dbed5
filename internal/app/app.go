package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"

	"pgwait/internal/config"
	"pgwait/internal/platform/logger"
	"pgwait/internal/platform/pg"
	"pgwait/internal/shared"
	"pgwait/pkg/retry"
)

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
}

// New creates a new App instance and loads configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "pgwait",
	})
	return &App{cfg: cfg, log: log}, nil
}

// Close flushes and closes the log file.
func (a *App) Close() error {
	return logger.Close(a.log)
}

// Run waits for the database, optionally applies migrations and exits.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	dsn, err := buildDSN(a.cfg)
	if err != nil {
		return err
	}
	policy := a.policy()

	a.log.Info("waiting for database",
		slog.String("target", pg.Redacted(dsn)),
		slog.Int("max_attempts", policy.MaxAttempts),
		slog.Duration("max_wait", policy.MaxWait()),
	)

	conn, err := pg.NewConnector(dsn, policy, a.log).Connect(ctx)
	if err != nil {
		return explain(err, policy)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := conn.Close(closeCtx); err != nil {
			a.log.Warn("close connection", slog.Any("err", err))
		}
	}()

	a.log.Info("database ready",
		slog.String("server_version", conn.PgConn().ParameterStatus("server_version")),
	)

	if a.cfg.MigrationsPath == "" {
		return nil
	}
	return a.migrate(dsn)
}

// migrate applies MIGRATIONS_PATH: a golang-migrate source URL or a plain directory.
func (a *App) migrate(dsn string) error {
	source := a.cfg.MigrationsPath
	version, dirty, err := pg.MigrationVersion(dsn, source)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if dirty {
		return fmt.Errorf("migrations: database is dirty at version %d; fix the schema and force the version before rerunning", version)
	}
	a.log.Info("applying migrations",
		slog.String("source", source),
		slog.Uint64("current_version", uint64(version)),
	)

	info, err := pg.ApplyMigrations(dsn, source)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	a.log.Info("migrations done",
		slog.Bool("applied", info.Applied),
		slog.Uint64("from_version", uint64(info.CurrentVersion)),
		slog.Uint64("to_version", uint64(info.FinalVersion)),
	)
	return nil
}

func (a *App) policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = a.cfg.Retry.MaxAttempts
	p.InitialDelay = a.cfg.Retry.InitialDelay
	return p
}

// buildDSN returns DATABASE_URL when set, otherwise assembles the
// connection string from the discrete DB_* settings.
func buildDSN(cfg config.Config) (string, error) {
	if cfg.DB.URL != "" {
		return withDefaults(cfg.DB.URL, cfg)
	}

	dsn := pg.DSNConfig{
		Host:            cfg.DB.Host,
		Port:            cfg.DB.Port,
		User:            cfg.DB.User,
		Password:        cfg.DB.Password,
		Database:        cfg.DB.Name,
		SSLMode:         cfg.DB.SSLMode,
		ApplicationName: cfg.DB.ApplicationName,
		ConnectTimeout:  cfg.DB.ConnectTimeout,
	}
	if err := pg.ValidateConfig(dsn); err != nil {
		return "", err
	}
	return pg.BuildDSN(dsn), nil
}

// withDefaults validates a user supplied connection string with pgx, which
// accepts both URL and keyword/value forms, and adds connect_timeout and
// application_name when it sets neither.
func withDefaults(raw string, cfg config.Config) (string, error) {
	connCfg, err := pgx.ParseConfig(raw)
	if err != nil {
		return "", shared.MarkKind(fmt.Errorf("DATABASE_URL: %w", err), shared.KindValidation)
	}

	extra := make([][2]string, 0, 2)
	if connCfg.ConnectTimeout == 0 && cfg.DB.ConnectTimeout > 0 {
		extra = append(extra, [2]string{"connect_timeout", strconv.Itoa(cfg.DB.ConnectTimeout)})
	}
	if connCfg.RuntimeParams["application_name"] == "" && cfg.DB.ApplicationName != "" {
		extra = append(extra, [2]string{"application_name", cfg.DB.ApplicationName})
	}
	if len(extra) == 0 {
		return raw, nil
	}

	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", shared.MarkKind(fmt.Errorf("DATABASE_URL: %w", err), shared.KindValidation)
		}
		q := u.Query()
		for _, kv := range extra {
			q.Set(kv[0], kv[1])
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(raw))
	for _, kv := range extra {
		fmt.Fprintf(&b, " %s='%s'", kv[0], strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(kv[1]))
	}
	return b.String(), nil
}

// explain prefixes err with what the operator should check.
func explain(err error, policy retry.Policy) error {
	var exhausted *retry.RetriesExhaustedError
	switch {
	case errors.As(err, &exhausted):
		return fmt.Errorf("database did not accept connections within %s; check that it is running and DB_HOST/DB_PORT point at it: %w",
			policy.MaxWait(), err)
	case shared.IsUnauthorized(err):
		return fmt.Errorf("database rejected the credentials; check DB_USER and DB_PASSWORD: %w", err)
	case shared.IsValidation(err):
		return fmt.Errorf("invalid connection settings: %w", err)
	case shared.IsCanceled(err):
		return fmt.Errorf("interrupted while waiting for database: %w", err)
	default:
		return err
	}
}
