// Package shared contains the error taxonomy used when talking to the database.
//
// # Error Kinds
//
// Failures are labeled with a Kind so callers can tell a database that is still
// starting up from one that rejects the configuration:
//
//   - ErrUnavailable: the server cannot be reached or is not accepting connections yet
//   - ErrTimeout: a single attempt ran out of time
//   - ErrUnauthorized: the server rejected the credentials
//   - ErrValidation: connection parameters are malformed or point at nothing
//
// Context cancellation is reported as KindCanceled without a sentinel.
//
// Use MarkKind to label a driver error while keeping it reachable through errors.Is:
//
//	if pgErr.Code == "28P01" {
//	    return shared.MarkKind(err, shared.KindUnauthorized)
//	}
//
// and KindOf to read it back:
//
//	switch shared.KindOf(err) {
//	case shared.KindUnauthorized:
//	    // check DB_USER / DB_PASSWORD
//	case shared.KindUnavailable, shared.KindTimeout:
//	    // the database never came up
//	}
//
// # Kind Priority
//
// When several kinds are present (errors.Join or double marking) KindOf returns the first
// match in this order: Canceled, Timeout, Unauthorized, Validation, Unavailable.
package shared
