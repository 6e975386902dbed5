// Package retry establishes connections to dependencies that may not be ready yet,
// retrying transient failures with a growing backoff.
//
// Key Features:
//   - Immutable Policy (attempt limit and base delay), safe to share and reuse
//   - Explicit transient/fatal split through the TransientError marker
//   - Attempt-count context on exhaustion (RetriesExhaustedError)
//   - Observability hook (OnRetry) and injectable Sleep for tests
//
// Basic Usage:
//
//	conn, err := retry.Connect(retry.DefaultPolicy(), func() (*pgx.Conn, error) {
//	    c, err := pgx.Connect(ctx, dsn)
//	    if err != nil && isStartingUp(err) {
//	        return nil, retry.Transient(err)
//	    }
//	    return c, err
//	})
//
// Backoff:
//
// After the i-th failed attempt Connect sleeps i*d before trying again, where d starts
// at InitialDelay and doubles after every sleep. With the default policy
// (8 attempts, 500ms) the waits are 0.5s, 2s, 6s, 16s, 40s, 96s and 224s:
//
//	p := retry.DefaultPolicy()
//	fmt.Println(p.Delays(), p.MaxWait())
//
// Connect blocks for the whole run and has no cancellation of its own; callers
// needing a deadline should make the connect function fail fatally once it passes.
package retry
