package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnavailable indicates that the database is not reachable or not ready yet
	ErrUnavailable = errors.New("database unavailable")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrUnauthorized indicates that the server rejected the credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation indicates malformed or unusable connection parameters
	ErrValidation = errors.New("validation failed")
)

// Kind represents a category of error for easier classification and handling.
type Kind int

const (
	// KindUnknown represents an unclassified error
	KindUnknown Kind = iota
	// KindUnavailable represents a database that cannot be reached yet
	KindUnavailable
	// KindTimeout represents timeout errors
	KindTimeout
	// KindUnauthorized represents authentication errors
	KindUnauthorized
	// KindValidation represents bad connection parameters
	KindValidation
	// KindCanceled represents context cancellation
	KindCanceled
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "Unavailable"
	case KindTimeout:
		return "Timeout"
	case KindUnauthorized:
		return "Unauthorized"
	case KindValidation:
		return "Validation"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

var kindToSentinel = map[Kind]error{
	KindUnavailable:  ErrUnavailable,
	KindTimeout:      ErrTimeout,
	KindUnauthorized: ErrUnauthorized,
	KindValidation:   ErrValidation,
}

// kindPriorities defines the deterministic order used by KindOf.
var kindPriorities = []Kind{
	KindCanceled,
	KindTimeout,
	KindUnauthorized,
	KindValidation,
	KindUnavailable,
}

// KindOf returns the Kind of err by walking its chain.
// Returns KindUnknown for nil and unrecognized errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	for _, kind := range kindPriorities {
		switch kind {
		case KindCanceled:
			if IsCanceled(err) {
				return KindCanceled
			}
		case KindTimeout:
			if IsTimeout(err) {
				return KindTimeout
			}
		default:
			if errors.Is(err, kindToSentinel[kind]) {
				return kind
			}
		}
	}

	return KindUnknown
}

// SentinelOf returns the sentinel error for the given Kind.
// For KindUnknown and KindCanceled, it returns nil.
func SentinelOf(kind Kind) error {
	return kindToSentinel[kind]
}

// MarkKind wraps err with the sentinel for kind, preserving the original error.
// Both KindOf(MarkKind(err, kind)) == kind and errors.Is(MarkKind(err, kind), err) hold.
// If err is nil, the sentinel itself is returned (nil for kinds without one).
// Marking an error with a kind it already has returns it unchanged.
func MarkKind(err error, kind Kind) error {
	sentinel := SentinelOf(kind)
	if err == nil {
		return sentinel
	}
	if sentinel == nil || KindOf(err) == kind {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// IsCanceled reports whether the error indicates a canceled context.
func IsCanceled(err error) bool {
	return err != nil && errors.Is(err, context.Canceled)
}

// IsTimeout reports whether the error indicates a timeout.
// It checks for context.DeadlineExceeded, net.Error timeouts, and ErrTimeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsUnavailable reports whether the error indicates an unreachable database.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsUnauthorized reports whether the error indicates rejected credentials.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsValidation reports whether the error indicates bad connection parameters.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
