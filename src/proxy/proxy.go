package proxy

import (
	"context"

	"github.com/mosaicnetworks/disputes/src/dispute"
)

// ValidationRequest asks a CandidateValidator for a verdict on a candidate.
// ID uniquely identifies the request for tracing.
type ValidationRequest struct {
	ID        string
	Session   dispute.SessionIndex
	Candidate dispute.CandidateHash
}

// CandidateValidator judges candidates. ValidateCandidate returns true if the
// candidate is valid. An error means no verdict could be obtained, in which
// case the caller may retry.
type CandidateValidator interface {
	ValidateCandidate(ctx context.Context, req ValidationRequest) (bool, error)
}

// VoteDistributor sends a locally signed vote to the other validators.
type VoteDistributor interface {
	DistributeVote(ctx context.Context, session dispute.SessionIndex, candidate dispute.CandidateHash, vote dispute.Vote) error
}
