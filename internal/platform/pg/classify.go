package pg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"pgwait/internal/shared"
	"pgwait/pkg/retry"
)

// Коды ошибок PostgreSQL, которые встречаются во время запуска сервера.
// См. https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgCodeAdminShutdown      = "57P01"
	pgCodeCrashShutdown      = "57P02"
	pgCodeCannotConnectNow   = "57P03" // the database system is starting up
	pgCodeTooManyConnections = "53300"

	pgCodeInvalidPassword      = "28P01"
	pgCodeInvalidAuthorization = "28000"
	pgCodeInvalidCatalogName   = "3D000" // database does not exist
)

// Сообщения, по которым распознаются сетевые сбои, когда тип ошибки потерян.
var transientMessages = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"server closed the connection",
	"the database system is starting up",
	"the database system is shutting down",
}

// Classify превращает ошибку одной попытки подключения в ошибку с явным видом:
// временные сбои (сервер еще не поднялся, сеть недоступна) помечаются
// retry.Transient и shared.KindUnavailable/KindTimeout, остальные возвращаются
// как фатальные.
//
// ctx - контекст вызывающего. Если он завершен, ошибка всегда фатальна.
func Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	// Вызывающий сдался - больше не пытаемся
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}

	var parseErr *pgconn.ParseConfigError
	if errors.As(err, &parseErr) {
		return shared.MarkKind(err, shared.KindValidation)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPgError(err, pgErr)
	}

	// Таймаут отдельной попытки (connect_timeout) при живом контексте вызывающего
	if pgconn.Timeout(err) || shared.IsTimeout(err) {
		return retry.Transient(shared.MarkKind(err, shared.KindTimeout))
	}

	if isNetworkError(err) || hasTransientMessage(err) {
		return retry.Transient(shared.MarkKind(err, shared.KindUnavailable))
	}

	return err
}

func classifyPgError(err error, pgErr *pgconn.PgError) error {
	code := pgErr.Code

	switch {
	// Class 08 - Connection Exception. Из класса 57 только остановка и запуск сервера:
	// 57P04 (database_dropped) и 57014 (query_canceled) сами не проходят
	case strings.HasPrefix(code, "08"),
		code == pgCodeAdminShutdown,
		code == pgCodeCrashShutdown,
		code == pgCodeCannotConnectNow,
		code == pgCodeTooManyConnections:
		return retry.Transient(shared.MarkKind(err, shared.KindUnavailable))
	case code == pgCodeInvalidPassword, code == pgCodeInvalidAuthorization:
		return shared.MarkKind(err, shared.KindUnauthorized)
	case code == pgCodeInvalidCatalogName:
		return shared.MarkKind(err, shared.KindValidation)
	}
	return err
}

// isNetworkError проверяет ошибки сетевого уровня.
func isNetworkError(err error) bool {
	// Имя контейнера может не резолвиться, пока он не создан
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
		syscall.ENETDOWN,
		syscall.EPIPE,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func hasTransientMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
