package runtime

import (
	"context"
	"errors"

	"github.com/mosaicnetworks/disputes/src/dispute"
)

// ErrUnknownSession is returned when the runtime has no information about a
// session.
var ErrUnknownSession = errors.New("unknown session")

// API is the runtime session-information service.
type API interface {
	// SessionInfo returns the validator set of a session.
	SessionInfo(ctx context.Context, session dispute.SessionIndex) (*ValidatorSet, error)
}
