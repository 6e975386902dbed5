package pg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"pgwait/internal/shared"
	"pgwait/pkg/retry"
)

func refused() error {
	return &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED},
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantKind      shared.Kind
	}{
		{
			name:          "connection_refused",
			err:           fmt.Errorf("failed to connect: %w", refused()),
			wantTransient: true,
			wantKind:      shared.KindUnavailable,
		},
		{
			name:          "dns_not_found",
			err:           &net.DNSError{Err: "no such host", Name: "database", IsNotFound: true},
			wantTransient: true,
			wantKind:      shared.KindUnavailable,
		},
		{
			name:          "server_closed_early",
			err:           fmt.Errorf("read: %w", io.ErrUnexpectedEOF),
			wantTransient: true,
			wantKind:      shared.KindUnavailable,
		},
		{
			name:          "attempt_timeout",
			err:           fmt.Errorf("dial: %w", context.DeadlineExceeded),
			wantTransient: true,
			wantKind:      shared.KindTimeout,
		},
		{
			name:          "starting_up",
			err:           &pgconn.PgError{Code: "57P03", Message: "the database system is starting up"},
			wantTransient: true,
			wantKind:      shared.KindUnavailable,
		},
		{
			name:          "admin_shutdown",
			err:           &pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"},
			wantTransient: true,
			wantKind:      shared.KindUnavailable,
		},
		{
			name:     "database_dropped",
			err:      &pgconn.PgError{Code: "57P04", Message: "terminating connection because database was dropped"},
			wantKind: shared.KindUnknown,
		},
		{
			name:     "query_canceled",
			err:      &pgconn.PgError{Code: "57014", Message: "canceling statement due to user request"},
			wantKind: shared.KindUnknown,
		},
		{
			name:          "connection_exception_class",
			err:           &pgconn.PgError{Code: "08006", Message: "connection failure"},
			wantTransient: true,
			wantKind:      shared.KindUnavailable,
		},
		{
			name:          "too_many_connections",
			err:           &pgconn.PgError{Code: "53300", Message: "sorry, too many clients already"},
			wantTransient: true,
			wantKind:      shared.KindUnavailable,
		},
		{
			name:          "refused_message_only",
			err:           errors.New("dial tcp 172.18.0.2:5432: connect: connection refused"),
			wantTransient: true,
			wantKind:      shared.KindUnavailable,
		},
		{
			name:     "bad_password",
			err:      &pgconn.PgError{Code: "28P01", Message: "password authentication failed for user \"postgres\""},
			wantKind: shared.KindUnauthorized,
		},
		{
			name:     "no_pg_hba_entry",
			err:      &pgconn.PgError{Code: "28000", Message: "no pg_hba.conf entry"},
			wantKind: shared.KindUnauthorized,
		},
		{
			name:     "missing_database",
			err:      &pgconn.PgError{Code: "3D000", Message: "database \"app\" does not exist"},
			wantKind: shared.KindValidation,
		},
		{
			name:     "other_server_error",
			err:      &pgconn.PgError{Code: "XX000", Message: "internal error"},
			wantKind: shared.KindUnknown,
		},
		{
			name:     "unknown_error",
			err:      errors.New("something odd"),
			wantKind: shared.KindUnknown,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Classify(context.Background(), tt.err)

			if retry.IsTransient(got) != tt.wantTransient {
				t.Errorf("IsTransient = %v, want %v (err: %v)", retry.IsTransient(got), tt.wantTransient, got)
			}
			if kind := shared.KindOf(got); kind != tt.wantKind {
				t.Errorf("KindOf = %v, want %v", kind, tt.wantKind)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classified error should wrap the original")
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	t.Parallel()

	if Classify(context.Background(), nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestClassify_CallerCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := Classify(ctx, refused())
	if retry.IsTransient(got) {
		t.Errorf("errors after caller cancellation must be fatal, got %v", got)
	}
	if !errors.Is(got, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", got)
	}
	if shared.KindOf(got) != shared.KindCanceled {
		t.Errorf("expected KindCanceled, got %v", shared.KindOf(got))
	}
}
