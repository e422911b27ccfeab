package store

import (
	"sync"

	cm "github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/dispute"
)

type voteKey struct {
	session   dispute.SessionIndex
	candidate dispute.CandidateHash
}

// InmemStore implements the Store interface with in-memory maps. It stores and
// returns copies, so callers never share vote sets with the store.
type InmemStore struct {
	l      sync.RWMutex
	votes  map[voteKey]*dispute.CandidateVotes
	active map[voteKey]bool
	window *dispute.Window
	closed bool
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		votes:  make(map[voteKey]*dispute.CandidateVotes),
		active: make(map[voteKey]bool),
	}
}

// GetCandidateVotes implements the Store interface.
func (s *InmemStore) GetCandidateVotes(session dispute.SessionIndex, candidate dispute.CandidateHash) (*dispute.CandidateVotes, error) {
	s.l.RLock()
	defer s.l.RUnlock()

	if s.closed {
		return nil, cm.NewStoreErr("CandidateVotes", cm.Closed, "")
	}

	cv, ok := s.votes[voteKey{session, candidate}]
	if !ok {
		return nil, cm.NewStoreErr("CandidateVotes", cm.KeyNotFound, candidateKey(session, candidate))
	}

	return cv.Copy(), nil
}

// PutCandidateVotes implements the Store interface.
func (s *InmemStore) PutCandidateVotes(votes *dispute.CandidateVotes) error {
	s.l.Lock()
	defer s.l.Unlock()

	if s.closed {
		return cm.NewStoreErr("CandidateVotes", cm.Closed, "")
	}

	k := voteKey{votes.Session, votes.Candidate}
	s.votes[k] = votes.Copy()

	if votes.Status == dispute.Active {
		s.active[k] = true
	} else {
		delete(s.active, k)
	}

	return nil
}

// ActiveCandidateVotes implements the Store interface.
func (s *InmemStore) ActiveCandidateVotes(from, to dispute.SessionIndex) ([]*dispute.CandidateVotes, error) {
	s.l.RLock()
	defer s.l.RUnlock()

	if s.closed {
		return nil, cm.NewStoreErr("CandidateVotes", cm.Closed, "")
	}

	res := []*dispute.CandidateVotes{}
	for k := range s.active {
		if k.session >= from && k.session <= to {
			res = append(res, s.votes[k].Copy())
		}
	}
	sortCandidateVotes(res)

	return res, nil
}

// RecentCandidateVotes implements the Store interface.
func (s *InmemStore) RecentCandidateVotes(from, to dispute.SessionIndex) ([]*dispute.CandidateVotes, error) {
	s.l.RLock()
	defer s.l.RUnlock()

	if s.closed {
		return nil, cm.NewStoreErr("CandidateVotes", cm.Closed, "")
	}

	res := []*dispute.CandidateVotes{}
	for k, cv := range s.votes {
		if k.session >= from && k.session <= to {
			res = append(res, cv.Copy())
		}
	}
	sortCandidateVotes(res)

	return res, nil
}

// Prune implements the Store interface.
func (s *InmemStore) Prune(below dispute.SessionIndex) (int, error) {
	s.l.Lock()
	defer s.l.Unlock()

	if s.closed {
		return 0, cm.NewStoreErr("CandidateVotes", cm.Closed, "")
	}

	count := 0
	for k := range s.votes {
		if k.session < below {
			delete(s.votes, k)
			delete(s.active, k)
			count++
		}
	}

	return count, nil
}

// GetWindow implements the Store interface.
func (s *InmemStore) GetWindow() (dispute.Window, error) {
	s.l.RLock()
	defer s.l.RUnlock()

	if s.closed {
		return dispute.Window{}, cm.NewStoreErr("Window", cm.Closed, "")
	}

	if s.window == nil {
		return dispute.Window{}, cm.NewStoreErr("Window", cm.Empty, "")
	}

	return *s.window, nil
}

// SetWindow implements the Store interface.
func (s *InmemStore) SetWindow(window dispute.Window) error {
	s.l.Lock()
	defer s.l.Unlock()

	if s.closed {
		return cm.NewStoreErr("Window", cm.Closed, "")
	}

	s.window = &window

	return nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	s.l.Lock()
	s.closed = true
	s.l.Unlock()
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}
