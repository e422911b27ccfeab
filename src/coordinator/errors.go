package coordinator

import "github.com/pkg/errors"

var (
	// ErrStaleSession is returned when a new session is not higher than the
	// highest known session.
	ErrStaleSession = errors.New("stale session")

	// ErrShutdown is returned by requests made after, or interrupted by, a
	// shutdown.
	ErrShutdown = errors.New("coordinator is shut down")

	// ErrTimeout is returned when a request is not answered in time.
	ErrTimeout = errors.New("request timed out")

	// ErrTooManyStorageFailures is sent on the fatal channel when consecutive
	// storage writes keep failing.
	ErrTooManyStorageFailures = errors.New("too many consecutive storage failures")

	// errSessionPruned is passed to deferred work whose session left the
	// window before its session information arrived.
	errSessionPruned = errors.New("session pruned")
)
