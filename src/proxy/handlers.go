package proxy

import (
	"context"

	"github.com/mosaicnetworks/disputes/src/dispute"
)

// ValidatorFunc is an adapter to use an ordinary function as a
// CandidateValidator.
type ValidatorFunc func(ctx context.Context, req ValidationRequest) (bool, error)

// ValidateCandidate implements CandidateValidator.
func (f ValidatorFunc) ValidateCandidate(ctx context.Context, req ValidationRequest) (bool, error) {
	return f(ctx, req)
}

// DistributorFunc is an adapter to use an ordinary function as a
// VoteDistributor.
type DistributorFunc func(ctx context.Context, session dispute.SessionIndex, candidate dispute.CandidateHash, vote dispute.Vote) error

// DistributeVote implements VoteDistributor.
func (f DistributorFunc) DistributeVote(ctx context.Context, session dispute.SessionIndex, candidate dispute.CandidateHash, vote dispute.Vote) error {
	return f(ctx, session, candidate, vote)
}
