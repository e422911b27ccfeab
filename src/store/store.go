// Package store persists candidate vote sets and the session window bounds.
//
// Vote sets are keyed by (session, candidate). Every Active vote set also has
// an entry in an "active" index so that open disputes can be listed without
// scanning every record. A write of a vote set and its index entry is atomic.
// Prune removes everything below a session in a single batch.
//
// Two implementations are provided: InmemStore, which is lost when the process
// exits, and BadgerStore, which persists to disk with BadgerDB.
package store

import (
	"sort"

	"github.com/mosaicnetworks/disputes/src/dispute"
)

// Store is an interface for backend stores.
type Store interface {
	// GetCandidateVotes returns the vote set of a candidate in a session. It
	// returns a KeyNotFound StoreErr if there is none.
	GetCandidateVotes(session dispute.SessionIndex, candidate dispute.CandidateHash) (*dispute.CandidateVotes, error)
	// PutCandidateVotes writes a vote set and updates the active index
	// according to its status.
	PutCandidateVotes(votes *dispute.CandidateVotes) error
	// ActiveCandidateVotes returns the Active vote sets with a session in
	// [from, to], ordered by session then candidate.
	ActiveCandidateVotes(from, to dispute.SessionIndex) ([]*dispute.CandidateVotes, error)
	// RecentCandidateVotes returns all the vote sets with a session in
	// [from, to], ordered by session then candidate.
	RecentCandidateVotes(from, to dispute.SessionIndex) ([]*dispute.CandidateVotes, error)
	// Prune deletes every vote set, and index entry, with a session strictly
	// lower than below. It returns the number of vote sets deleted.
	Prune(below dispute.SessionIndex) (int, error)
	// GetWindow returns the persisted window bounds. It returns an Empty
	// StoreErr if they were never set.
	GetWindow() (dispute.Window, error)
	// SetWindow persists the window bounds.
	SetWindow(window dispute.Window) error
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}

func sortCandidateVotes(res []*dispute.CandidateVotes) {
	sort.Slice(res, func(i, j int) bool {
		if res[i].Session != res[j].Session {
			return res[i].Session < res[j].Session
		}
		return string(res[i].Candidate[:]) < string(res[j].Candidate[:])
	})
}
