package runtime

import (
	"context"
	"sync"

	"github.com/mosaicnetworks/disputes/src/dispute"
)

// StaticRuntime implements API with validator sets held in memory. A default
// set, if any, is returned for sessions that were not set explicitly.
type StaticRuntime struct {
	l        sync.Mutex
	sessions map[dispute.SessionIndex]*ValidatorSet
	def      *ValidatorSet
}

// NewStaticRuntime creates a StaticRuntime which returns def for every
// session. def may be nil.
func NewStaticRuntime(def *ValidatorSet) *StaticRuntime {
	return &StaticRuntime{
		sessions: make(map[dispute.SessionIndex]*ValidatorSet),
		def:      def,
	}
}

// SetSession sets the validator set of a session.
func (s *StaticRuntime) SetSession(session dispute.SessionIndex, vs *ValidatorSet) {
	s.l.Lock()
	s.sessions[session] = vs
	s.l.Unlock()
}

// SessionInfo implements API.
func (s *StaticRuntime) SessionInfo(ctx context.Context, session dispute.SessionIndex) (*ValidatorSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.l.Lock()
	defer s.l.Unlock()

	if vs, ok := s.sessions[session]; ok {
		return vs, nil
	}

	if s.def != nil {
		return s.def, nil
	}

	return nil, ErrUnknownSession
}
