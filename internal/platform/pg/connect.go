package pg

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"pgwait/internal/shared"
	"pgwait/pkg/retry"
)

// dialFunc открывает одно подключение. В проде это pgx.ConnectConfig.
type dialFunc func(ctx context.Context, cfg *pgx.ConnConfig) (*pgx.Conn, error)

// Connector устанавливает одно подключение к PostgreSQL, повторяя попытки,
// пока сервер не начнет принимать соединения или не кончится политика повторов.
//
// Connector не хранит изменяемого состояния: каждый вызов Connect начинает
// отсчет попыток и задержек заново, поэтому его можно вызывать повторно
// и из нескольких горутин.
type Connector struct {
	dsn    string
	policy retry.Policy
	log    *slog.Logger
	dial   dialFunc
}

// NewConnector создает Connector для заданного DSN и политики повторов.
// Если log равен nil, используется slog.Default().
func NewConnector(dsn string, policy retry.Policy, log *slog.Logger) *Connector {
	if log == nil {
		log = slog.Default()
	}
	return &Connector{
		dsn:    dsn,
		policy: policy,
		log:    log,
		dial:   pgx.ConnectConfig,
	}
}

// Connect возвращает живое подключение. Владение подключением переходит
// вызывающему, он же отвечает за conn.Close.
//
// Ошибки:
//   - *retry.RetriesExhaustedError - база не стала доступна за MaxAttempts попыток
//   - ошибка с shared.KindUnauthorized / shared.KindValidation - неверные параметры, без повторов
//   - ошибка контекста - вызывающий отменил ожидание
func (c *Connector) Connect(ctx context.Context) (*pgx.Conn, error) {
	connCfg, err := pgx.ParseConfig(c.dsn)
	if err != nil {
		return nil, shared.MarkKind(fmt.Errorf("parse connection string: %w", err), shared.KindValidation)
	}

	log := c.log.With(
		slog.String("host", connCfg.Host),
		slog.Int("port", int(connCfg.Port)),
		slog.String("database", connCfg.Database),
	)

	// Копия политики: добавляем логирование, не трогая исходный OnRetry
	policy := c.policy
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("database not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", policy.MaxAttempts),
			slog.Duration("delay", delay),
			slog.String("kind", shared.KindOf(err).String()),
			slog.Any("err", err),
		)
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}

	log.Debug("connecting to database",
		slog.Int("max_attempts", policy.MaxAttempts),
		slog.Duration("max_wait", policy.MaxWait()),
	)

	start := time.Now()
	conn, err := retry.Connect(policy, func() (*pgx.Conn, error) {
		conn, err := c.dial(ctx, connCfg.Copy())
		if err != nil {
			return nil, Classify(ctx, err)
		}
		return conn, nil
	})
	if err != nil {
		log.Error("database connection failed",
			slog.String("kind", shared.KindOf(err).String()),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("err", err),
		)
		return nil, err
	}

	log.Info("database connection established", slog.Duration("elapsed", time.Since(start)))
	return conn, nil
}
